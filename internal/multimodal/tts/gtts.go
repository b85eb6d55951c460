package tts

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// maxChunkRunes is the longest text the Translate TTS endpoint accepts per call.
const maxChunkRunes = 100

// GoogleTranslateConfig configures the keyless Google Translate speech endpoint.
type GoogleTranslateConfig struct {
	BaseURL  string // default: "https://translate.google.com"
	Language string // default: "en"
}

// GoogleTranslateTTS needs no credential, which makes it the guaranteed fallback.
// Long text is split into chunks whose MP3 streams are concatenated.
type GoogleTranslateTTS struct {
	cfg        GoogleTranslateConfig
	httpClient *http.Client
}

func NewGoogleTranslateTTS(cfg GoogleTranslateConfig) *GoogleTranslateTTS {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://translate.google.com"
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	return &GoogleTranslateTTS{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (g *GoogleTranslateTTS) Name() string { return "gtts" }

func (g *GoogleTranslateTTS) Synthesize(ctx context.Context, req SynthesisRequest) (*SynthesisResult, error) {
	chunks := splitText(req.Input, maxChunkRunes)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("no text to synthesize")
	}

	var audio bytes.Buffer
	for i, chunk := range chunks {
		if err := g.fetchChunk(ctx, chunk, i, len(chunks), &audio); err != nil {
			return nil, fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err)
		}
	}

	return &SynthesisResult{Audio: audio.Bytes(), ContentType: "audio/mpeg"}, nil
}

func (g *GoogleTranslateTTS) fetchChunk(ctx context.Context, text string, idx, total int, w io.Writer) error {
	q := url.Values{}
	q.Set("ie", "UTF-8")
	q.Set("client", "tw-ob")
	q.Set("tl", g.cfg.Language)
	q.Set("q", text)
	q.Set("idx", strconv.Itoa(idx))
	q.Set("total", strconv.Itoa(total))
	q.Set("textlen", strconv.Itoa(len([]rune(text))))

	httpReq, err := http.NewRequestWithContext(ctx, "GET", g.cfg.BaseURL+"/translate_tts?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	httpReq.Header.Set("User-Agent", "Mozilla/5.0")
	httpReq.Header.Set("Accept", "audio/mpeg")

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("translate tts request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("translate tts failed (status %d): %s", resp.StatusCode, string(b))
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return fmt.Errorf("read audio: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("translate tts returned no audio")
	}
	return nil
}

// splitText breaks text into chunks of at most max runes, preferring sentence
// punctuation, then whitespace, and hard-splitting words that are still too long.
func splitText(text string, max int) []string {
	text = strings.Join(strings.Fields(text), " ")
	var chunks []string
	for text != "" {
		runes := []rune(text)
		if len(runes) <= max {
			chunks = append(chunks, text)
			break
		}

		cut := -1
		for i := max; i > 0; i-- {
			if strings.ContainsRune(".!?;:,", runes[i-1]) {
				cut = i
				break
			}
		}
		if cut == -1 {
			for i := max; i > 0; i-- {
				if unicode.IsSpace(runes[i]) {
					cut = i
					break
				}
			}
		}
		if cut == -1 {
			cut = max
		}

		if chunk := strings.TrimSpace(string(runes[:cut])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		text = strings.TrimSpace(string(runes[cut:]))
	}
	return chunks
}
