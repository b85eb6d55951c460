package multimodal

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/nikhilbhutani/aidoctor/internal/llm"
)

// AnalysisError is returned when the image can't be prepared or the model call fails.
type AnalysisError struct {
	Provider string
	Err      error
}

func (e *AnalysisError) Error() string {
	if e.Provider == "" {
		return fmt.Sprintf("image analysis: %v", e.Err)
	}
	return fmt.Sprintf("image analysis via %s: %v", e.Provider, e.Err)
}

func (e *AnalysisError) Unwrap() error { return e.Err }

var (
	ErrNoImage          = errors.New("image input must have base64 or file_path")
	ErrNotAnImage       = errors.New("input is not an image")
	ErrEmptyModelOutput = errors.New("model returned an empty response")
)

// VisionService sends an image and a prompt to a vision-capable model.
type VisionService struct {
	gateway  llm.Gateway
	provider string
	model    string
}

func NewVisionService(gw llm.Gateway, provider, model string) *VisionService {
	return &VisionService{gateway: gw, provider: provider, model: model}
}

// ImageInput represents an image for vision analysis.
type ImageInput struct {
	// Exactly one of these should be set
	Base64   string `json:"base64,omitempty"`
	FilePath string `json:"file_path,omitempty"`
	MimeType string `json:"mime_type,omitempty"` // sniffed from content when empty
}

// VisionRequest holds the input for a vision task.
type VisionRequest struct {
	Prompt string     `json:"prompt"`
	Image  ImageInput `json:"image"`
	Model  string     `json:"model,omitempty"`
}

// VisionResponse holds the output from a vision task.
type VisionResponse struct {
	Content     string  `json:"content"`
	Provider    string  `json:"provider"`
	Model       string  `json:"model"`
	InputTokens int     `json:"input_tokens"`
	CostUSD     float64 `json:"cost_usd"`
}

// Analyze sends the prompt and the image as one user turn and returns the model's narrative.
func (v *VisionService) Analyze(ctx context.Context, req VisionRequest) (*VisionResponse, error) {
	img, err := resolveImage(req.Image)
	if err != nil {
		return nil, &AnalysisError{Err: err}
	}

	model := req.Model
	if model == "" {
		model = v.model
	}

	resp, err := v.gateway.Chat(ctx, llm.ChatRequest{
		Provider: v.provider,
		Model:    model,
		Messages: []llm.Message{
			{Role: "user", Content: req.Prompt, Images: []llm.Image{img}},
		},
	})
	if err != nil {
		return nil, &AnalysisError{Provider: v.provider, Err: err}
	}

	content := strings.TrimSpace(resp.Content)
	if content == "" {
		return nil, &AnalysisError{Provider: resp.Provider, Err: ErrEmptyModelOutput}
	}

	return &VisionResponse{
		Content:     content,
		Provider:    resp.Provider,
		Model:       resp.Model,
		InputTokens: resp.InputTokens,
		CostUSD:     resp.CostUSD,
	}, nil
}

// EncodeImage reads a file and returns its standard base64 encoding.
func EncodeImage(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read image file: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func resolveImage(img ImageInput) (llm.Image, error) {
	var data []byte
	var encoded string

	switch {
	case img.Base64 != "":
		raw, err := base64.StdEncoding.DecodeString(img.Base64)
		if err != nil {
			return llm.Image{}, fmt.Errorf("decode base64 image: %w", err)
		}
		data, encoded = raw, img.Base64
	case img.FilePath != "":
		raw, err := os.ReadFile(img.FilePath)
		if err != nil {
			return llm.Image{}, fmt.Errorf("read image file: %w", err)
		}
		data, encoded = raw, base64.StdEncoding.EncodeToString(raw)
	default:
		return llm.Image{}, ErrNoImage
	}

	mimeType := img.MimeType
	if mimeType == "" {
		mimeType = mimetype.Detect(data).String()
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return llm.Image{}, fmt.Errorf("%w (detected %s)", ErrNotAnImage, mimeType)
	}

	return llm.Image{MIMEType: mimeType, Base64: encoded}, nil
}
