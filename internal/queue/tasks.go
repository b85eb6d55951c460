package queue

const (
	TypeArtifactArchive = "artifact:archive"
)

// ArtifactArchivePayload identifies a synthesized response to copy into object storage.
type ArtifactArchivePayload struct {
	SessionID   string `json:"session_id"`
	Path        string `json:"path"`
	ContentType string `json:"content_type"`
}
