// Package pipeline wires adapters from configuration and runs the bot or a
// one-off offline cut.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"golang.org/x/sync/errgroup"

	"github.com/forPelevin/shortsbot/internal/config"
	"github.com/forPelevin/shortsbot/internal/health"
	"github.com/forPelevin/shortsbot/internal/logging"
	"github.com/forPelevin/shortsbot/internal/ports"
	"github.com/forPelevin/shortsbot/internal/ports/adapters/ffmpeg"
	"github.com/forPelevin/shortsbot/internal/ports/adapters/gemini"
	"github.com/forPelevin/shortsbot/internal/ports/adapters/openaiwhisper"
	"github.com/forPelevin/shortsbot/internal/ports/adapters/telegram"
	"github.com/forPelevin/shortsbot/internal/ports/adapters/whispercpp"
	"github.com/forPelevin/shortsbot/internal/ports/adapters/ytdlp"
	"github.com/forPelevin/shortsbot/internal/types"
	"github.com/forPelevin/shortsbot/internal/usecase"
)

type runner interface {
	Run(ctx context.Context, in usecase.Input) (usecase.Result, error)
}

// Build constructs the usecase and its adapters.
func Build(ctx context.Context, cfg config.Config, log *slog.Logger) (usecase.Usecase, error) {
	// adapters
	v := ffmpeg.New(cfg.Media.FFmpegPath, cfg.Media.FFprobePath)
	dl := ytdlp.New(cfg.Media.YtDlpPath, cfg.Media.AllowedHosts)
	asr, err := newTranscriber(cfg.Transcription, v)
	if err != nil {
		return usecase.Usecase{}, err
	}
	an, err := gemini.New(ctx, gemini.Config{
		APIKey:       cfg.Gemini.APIKey,
		Model:        cfg.Gemini.Model,
		RPS:          cfg.Gemini.RPS,
		Timeout:      cfg.Gemini.Timeout.Duration,
		PollInterval: cfg.Gemini.PollInterval.Duration,
		Logger:       logging.WithComponent(log, "gemini"),
	})
	if err != nil {
		return usecase.Usecase{}, err
	}

	return usecase.New(usecase.Deps{
		Downloader:  dl,
		Analyzer:    an,
		Transcriber: asr,
		Video:       v,
		Logger:      logging.WithComponent(log, "usecase"),
	}), nil
}

func newTranscriber(c config.Transcription, audio ports.AudioExtractor) (ports.Transcriber, error) {
	switch c.Backend {
	case config.TranscriberWhisper, "":
		return whispercpp.New(c.WhisperBin, c.WhisperModel, c.Language, audio), nil
	case config.TranscriberOpenAI:
		return openaiwhisper.New(c.OpenAIKey, c.Language, audio), nil
	default:
		return nil, fmt.Errorf("unknown transcriber %q", c.Backend)
	}
}

// Serve runs the Telegram bot, and the health endpoint when configured,
// until ctx is done.
func Serve(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	uc, err := Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	bot, err := telegram.New(telegram.Config{
		Token:          cfg.Bot.Token,
		MaxConcurrent:  cfg.Bot.MaxConcurrentRequests,
		RequestTimeout: cfg.Bot.RequestTimeout.Duration,
		Logger:         log,
	}, uc)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return bot.Run(gctx) })
	if cfg.Bot.HealthAddr != "" {
		srv := health.NewServer(cfg.Bot.HealthAddr, logging.WithComponent(log, "health"))
		g.Go(func() error { return srv.Run(gctx) })
	}
	return g.Wait()
}

type CutConfig struct {
	// Input is a local video path or an http(s) link.
	Input  string
	OutDir string
	Logf   func(format string, args ...any)
}

// Cut renders the shorts for one video into a fresh run directory under
// cfg.OutDir and writes manifest.json next to the clips. It returns the run
// directory.
func Cut(ctx context.Context, cfg config.Config, cut CutConfig, log *slog.Logger) (string, error) {
	uc, err := Build(ctx, cfg, log)
	if err != nil {
		return "", err
	}
	return runCut(ctx, uc, cut, time.Now().UTC())
}

func runCut(ctx context.Context, r runner, cfg CutConfig, now time.Time) (string, error) {
	logf := cfg.Logf
	if logf == nil {
		logf = func(string, ...any) {}
	}

	in := usecase.Input{Emit: logEvents(logf)}
	if isLink(cfg.Input) {
		in.URL = cfg.Input
	} else {
		absIn, err := filepath.Abs(cfg.Input)
		if err != nil {
			return "", err
		}
		if _, err := os.Stat(absIn); err != nil {
			return "", fmt.Errorf("stat input: %w", err)
		}
		in.LocalPath = absIn
	}

	outDir := cfg.OutDir
	if outDir == "" {
		outDir = "out"
	}
	runOutDir := buildRunOutDir(outDir, sourceName(cfg.Input), now)
	clipsDir := filepath.Join(runOutDir, "clips")
	if err := os.MkdirAll(clipsDir, 0o755); err != nil {
		return "", err
	}
	logf("output run dir: %s", runOutDir)
	in.OutDir = clipsDir

	res, err := r.Run(ctx, in)
	if err != nil {
		return runOutDir, err
	}

	m := buildManifest(cfg.Input, res.Clips)
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return runOutDir, fmt.Errorf("marshal manifest: %w", err)
	}
	manifestPath := filepath.Join(runOutDir, "manifest.json")
	if err := os.WriteFile(manifestPath, b, 0o644); err != nil {
		return runOutDir, err
	}
	logf("manifest written (%d clips): %s", len(m.Clips), manifestPath)

	if len(res.Clips) == 0 {
		return runOutDir, errors.New("no clips rendered")
	}
	return runOutDir, nil
}

func buildManifest(input string, clips []types.RenderedClip) types.Manifest {
	m := types.Manifest{Input: input, Clips: make([]types.ManifestClip, 0, len(clips))}
	for _, c := range clips {
		m.Clips = append(m.Clips, types.ManifestClip{
			ID:          fmt.Sprintf("%03d", c.Index),
			StartSec:    c.Moment.Start,
			EndSec:      c.Moment.End,
			File:        filepath.ToSlash(filepath.Join("clips", filepath.Base(c.Path))),
			Title:       c.Moment.Title,
			Description: c.Moment.Description,
			Tags:        c.Moment.Tags,
			Hook:        c.Moment.Hook,
			ViralReason: c.Moment.ViralReason,
		})
	}
	return m
}

func logEvents(logf func(format string, args ...any)) usecase.Emitter {
	return func(_ context.Context, ev usecase.Event) {
		switch ev.Kind {
		case usecase.KindMomentsFound:
			logf("%d moments selected", ev.Total)
		case usecase.KindCaptionsUnavailable:
			logf("captions unavailable: %v", ev.Err)
		case usecase.KindClipReady:
			logf("clip %d/%d ready: %s", ev.Index, ev.Total, ev.Clip.Path)
		case usecase.KindClipFailed:
			logf("clip %d/%d failed: %v", ev.Index, ev.Total, ev.Err)
		case usecase.KindState:
			switch ev.State {
			case usecase.StateRendering:
				logf("rendering %d/%d", ev.Index, ev.Total)
			case usecase.StateFailed:
				logf("failed: %v", ev.Err)
			default:
				logf("%s", ev.State)
			}
		}
	}
}

func isLink(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// sourceName picks a readable name for the run directory.
func sourceName(input string) string {
	if !isLink(input) {
		return input
	}
	u, err := url.Parse(input)
	if err != nil {
		return "link"
	}
	if v := u.Query().Get("v"); v != "" {
		return v
	}
	if base := path.Base(u.Path); base != "/" && base != "." {
		return base
	}
	return u.Hostname()
}

func buildRunOutDir(outRoot, input string, now time.Time) string {
	name := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	name = normalizePathSegment(name)
	if name == "" {
		name = "input"
	}
	ts := now.UTC().Format("20060102-150405Z")
	runSeed := fmt.Sprintf("%s|%d", input, now.UTC().UnixNano())
	suffix := hash(runSeed)[:6]
	return filepath.Join(outRoot, fmt.Sprintf("%s-%s-%s", name, ts, suffix))
}

func normalizePathSegment(s string) string {
	var b strings.Builder
	prevDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
			prevDash = false
		default:
			if !prevDash {
				b.WriteByte('-')
				prevDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:12]
}

// ensure adapters implement ports
var _ ports.VideoTool = (*ffmpeg.Adapter)(nil)
var _ ports.Downloader = (*ytdlp.Adapter)(nil)
var _ ports.Analyzer = (*gemini.Adapter)(nil)
var _ ports.Transcriber = (*whispercpp.Adapter)(nil)
var _ ports.Transcriber = (*openaiwhisper.Adapter)(nil)
var _ telegram.Runner = usecase.Usecase{}
