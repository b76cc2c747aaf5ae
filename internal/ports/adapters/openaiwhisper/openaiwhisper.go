package openaiwhisper

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	openai "github.com/sashabaranov/go-openai"

	"github.com/forPelevin/shortsbot/internal/logging"
	"github.com/forPelevin/shortsbot/internal/ports"
	"github.com/forPelevin/shortsbot/internal/types"
)

// Adapter transcribes through the hosted Whisper API.
//
// The API client is built on the first Transcribe call and reused for the
// lifetime of the Adapter, which is safe for concurrent use.
type Adapter struct {
	key      string
	baseURL  string
	language string
	audio    ports.AudioExtractor

	once   sync.Once
	client *openai.Client
}

type Option func(*Adapter)

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(u string) Option {
	return func(a *Adapter) { a.baseURL = u }
}

func New(apiKey, language string, audio ports.AudioExtractor, opts ...Option) *Adapter {
	a := &Adapter{key: apiKey, language: language, audio: audio}
	for _, o := range opts {
		o(a)
	}
	return a
}

func (a *Adapter) init() {
	cfg := openai.DefaultConfig(a.key)
	if a.baseURL != "" {
		cfg.BaseURL = a.baseURL
	}
	a.client = openai.NewClientWithConfig(cfg)
}

func (a *Adapter) Transcribe(ctx context.Context, videoPath, workDir string) (types.Transcript, error) {
	a.once.Do(a.init)

	wav := filepath.Join(workDir, "audio.wav")
	if err := a.audio.ExtractAudioMono16k(ctx, videoPath, wav); err != nil {
		return types.Transcript{}, err
	}

	resp, err := a.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: wav,
		Format:   openai.AudioResponseFormatVerboseJSON,
		Language: a.language,
		TimestampGranularities: []openai.TranscriptionTimestampGranularity{
			openai.TranscriptionTimestampGranularitySegment,
		},
	})
	if err != nil {
		return types.Transcript{}, fmt.Errorf("whisper api: %s", logging.Redact(err.Error(), a.key))
	}

	tr := types.Transcript{Language: resp.Language}
	for _, s := range resp.Segments {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		tr.Segments = append(tr.Segments, types.Segment{Start: s.Start, End: s.End, Text: text})
	}
	return tr, nil
}
