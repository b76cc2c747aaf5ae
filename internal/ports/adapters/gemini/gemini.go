package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/h2non/filetype"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/forPelevin/shortsbot/internal/domain/moments"
	"github.com/forPelevin/shortsbot/internal/logging"
	"github.com/forPelevin/shortsbot/internal/types"
)

const defaultMIMEType = "video/mp4"

// files and models are the parts of *genai.Client the adapter uses.
type files interface {
	UploadFromPath(ctx context.Context, path string, config *genai.UploadFileConfig) (*genai.File, error)
	Get(ctx context.Context, name string, config *genai.GetFileConfig) (*genai.File, error)
	Delete(ctx context.Context, name string, config *genai.DeleteFileConfig) (*genai.DeleteFileResponse, error)
}

type models interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type Config struct {
	APIKey       string
	Model        string
	RPS          float64
	Timeout      time.Duration
	PollInterval time.Duration
	Logger       *slog.Logger
}

// Adapter selects viral moments by sending the whole video to Gemini.
type Adapter struct {
	files   files
	models  models
	key     string
	model   string
	timeout time.Duration
	poll    time.Duration
	limiter *rate.Limiter
	log     *slog.Logger
}

func New(ctx context.Context, cfg Config) (*Adapter, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %s", logging.Redact(err.Error(), cfg.APIKey))
	}
	return newAdapter(client.Files, client.Models, cfg), nil
}

func newAdapter(f files, m models, cfg Config) *Adapter {
	if cfg.RPS <= 0 {
		cfg.RPS = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	burst := int(cfg.RPS)
	if burst < 1 {
		burst = 1
	}
	return &Adapter{
		files:   f,
		models:  m,
		key:     cfg.APIKey,
		model:   cfg.Model,
		timeout: cfg.Timeout,
		poll:    cfg.PollInterval,
		limiter: rate.NewLimiter(rate.Limit(cfg.RPS), burst),
		log:     logging.WithComponent(cfg.Logger, "gemini"),
	}
}

// Analyze uploads the video, waits for Gemini to process it and asks for
// 3-5 viral moments. The uploaded file is deleted afterwards.
func (a *Adapter) Analyze(ctx context.Context, videoPath string) ([]types.Moment, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	mime := sniffMIME(videoPath)
	f, err := a.files.UploadFromPath(ctx, videoPath, &genai.UploadFileConfig{MIMEType: mime})
	if err != nil {
		return nil, a.wrap("upload video", err)
	}
	defer a.cleanup(f.Name)
	a.log.Debug("video uploaded", "file", f.Name, "mime", mime)

	f, err = a.waitActive(ctx, f)
	if err != nil {
		return nil, err
	}

	if err := a.limiter.Wait(ctx); err != nil {
		return nil, a.wrap("rate limit", err)
	}
	contents := []*genai.Content{
		{
			Role: string(genai.RoleUser),
			Parts: []*genai.Part{
				{FileData: &genai.FileData{FileURI: f.URI, MIMEType: f.MIMEType}},
				{Text: moments.Prompt},
			},
		},
	}
	resp, err := a.models.GenerateContent(ctx, a.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return nil, a.wrap("generate content", err)
	}
	text := resp.Text()
	a.log.Debug("analysis received", "chars", len(text))

	ms, err := moments.Parse(text)
	if err != nil {
		return nil, err
	}
	return ms, nil
}

func (a *Adapter) waitActive(ctx context.Context, f *genai.File) (*genai.File, error) {
	t := time.NewTicker(a.poll)
	defer t.Stop()
	for f.State == genai.FileStateProcessing || f.State == genai.FileStateUnspecified {
		select {
		case <-ctx.Done():
			return nil, a.wrap("wait for file processing", ctx.Err())
		case <-t.C:
		}
		var err error
		if f, err = a.files.Get(ctx, f.Name, nil); err != nil {
			return nil, a.wrap("get file status", err)
		}
	}
	if f.State == genai.FileStateFailed {
		msg := "unknown error"
		if f.Error != nil && f.Error.Message != "" {
			msg = f.Error.Message
		}
		return nil, fmt.Errorf("gemini: file processing failed: %s", msg)
	}
	return f, nil
}

// cleanup runs on its own context so a cancelled request still frees the
// uploaded file.
func (a *Adapter) cleanup(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := a.files.Delete(ctx, name, nil); err != nil {
		a.log.Warn("delete uploaded file failed", "file", name, "error", logging.Redact(err.Error(), a.key))
	}
}

func (a *Adapter) wrap(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("gemini %s: timeout after %s (model=%s): %w", op, a.timeout, a.model, err)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("gemini %s: %w", op, err)
	}
	return fmt.Errorf("gemini %s: %s", op, logging.Redact(err.Error(), a.key))
}

func sniffMIME(path string) string {
	kind, err := filetype.MatchFile(path)
	if err != nil || kind == filetype.Unknown {
		return defaultMIMEType
	}
	if !strings.HasPrefix(kind.MIME.Value, "video/") {
		return defaultMIMEType
	}
	return kind.MIME.Value
}
