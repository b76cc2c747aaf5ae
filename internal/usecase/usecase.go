package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/forPelevin/shortsbot/internal/domain/moments"
	"github.com/forPelevin/shortsbot/internal/domain/subtitles"
	"github.com/forPelevin/shortsbot/internal/logging"
	"github.com/forPelevin/shortsbot/internal/ports"
	"github.com/forPelevin/shortsbot/internal/types"
)

type Deps struct {
	Downloader  ports.Downloader
	Analyzer    ports.Analyzer
	Transcriber ports.Transcriber
	Video       ports.VideoTool
	Logger      *slog.Logger
}

type Usecase struct{ d Deps }

func New(d Deps) Usecase {
	if d.Logger == nil {
		d.Logger = logging.Discard()
	}
	return Usecase{d: d}
}

// Input describes one request. Exactly one of LocalPath, Upload and URL is
// used, in that order of preference.
type Input struct {
	RequestID string

	LocalPath string
	Upload    ports.Fetcher
	URL       string

	// OutDir keeps rendered clips after Run returns. When empty, clips live in
	// the request's temporary directory and are removed with it.
	OutDir string
	// TempDir is the parent of the request's work directory.
	TempDir string

	Emit Emitter
}

type Result struct {
	RequestID     string
	Source        types.VideoInfo
	Moments       []types.Moment
	Clips         []types.RenderedClip
	Failures      []*RenderError
	TranscriptErr error
}

// Run drives one request through acquire, analyze, transcribe and render.
// Moments are rendered sequentially in the order the analyzer returned them.
// A failed transcription or render does not abort the request; a failed
// download or analysis does. The work directory is always removed.
func (u Usecase) Run(ctx context.Context, in Input) (Result, error) {
	emit := in.Emit
	if emit == nil {
		emit = func(context.Context, Event) {}
	}
	res := Result{RequestID: in.RequestID}
	if res.RequestID == "" {
		res.RequestID = uuid.NewString()
	}
	log := logging.WithRequestID(u.d.Logger, res.RequestID)
	started := time.Now()

	fail := func(err error) (Result, error) {
		log.Error("request failed", "error", err, "elapsed", time.Since(started).String())
		emit(ctx, Event{Kind: KindState, State: StateFailed, Err: err})
		return res, err
	}

	emit(ctx, Event{Kind: KindState, State: StateReceived})

	workDir, err := os.MkdirTemp(in.TempDir, "shortsbot-"+shortID(res.RequestID)+"-")
	if err != nil {
		return fail(fmt.Errorf("create work dir: %w", err))
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			log.Warn("remove work dir failed", "dir", workDir, "error", err)
		}
	}()

	emit(ctx, Event{Kind: KindState, State: StateAcquiring})
	src, err := u.acquire(ctx, in, workDir)
	if err != nil {
		return fail(&DownloadError{Err: err})
	}
	info, err := u.d.Video.Probe(ctx, src)
	if err != nil {
		// Unreadable media is reported per clip by the renderer.
		log.Warn("probe source failed", "error", err)
		info = types.VideoInfo{Path: src}
	}
	res.Source = info
	log.Info("source acquired", "width", info.Width, "height", info.Height, "duration", info.Duration.String())

	emit(ctx, Event{Kind: KindState, State: StateAnalyzing})
	ms, err := u.d.Analyzer.Analyze(ctx, src)
	if err == nil && len(ms) == 0 {
		err = moments.ErrNoClips
	}
	if err != nil {
		return fail(&AnalysisError{Err: err})
	}
	res.Moments = ms
	log.Info("moments selected", "count", len(ms))
	emit(ctx, Event{Kind: KindMomentsFound, Total: len(ms)})

	emit(ctx, Event{Kind: KindState, State: StateTranscribing})
	tr, err := u.d.Transcriber.Transcribe(ctx, src, workDir)
	if err != nil {
		if ctx.Err() != nil {
			return fail(ctx.Err())
		}
		terr := &TranscriptionError{Err: err}
		res.TranscriptErr = terr
		tr = types.Transcript{}
		log.Warn("transcription failed, rendering without captions", "error", err)
		emit(ctx, Event{Kind: KindCaptionsUnavailable, Err: terr})
	} else {
		log.Info("transcribed", "segments", len(tr.Segments), "language", tr.Language)
	}

	outDir := in.OutDir
	if outDir == "" {
		outDir = workDir
	}
	for i, m := range ms {
		idx := i + 1
		emit(ctx, Event{Kind: KindState, State: StateRendering, Index: idx, Total: len(ms)})

		clip, err := u.render(ctx, info, tr, m, idx, workDir, outDir)
		if err != nil {
			if ctx.Err() != nil {
				return fail(ctx.Err())
			}
			rerr := &RenderError{Index: idx, Err: err}
			res.Failures = append(res.Failures, rerr)
			log.Error("render failed", "index", idx, "start", m.Start, "end", m.End, "error", err)
			emit(ctx, Event{Kind: KindClipFailed, Index: idx, Total: len(ms), Err: rerr})
			continue
		}
		res.Clips = append(res.Clips, clip)
		log.Info("clip rendered", "index", idx, "path", clip.Path)
		emit(ctx, Event{Kind: KindClipReady, Index: idx, Total: len(ms), Clip: &clip})
	}

	log.Info("request done", "clips", len(res.Clips), "failed", len(res.Failures), "elapsed", time.Since(started).String())
	emit(ctx, Event{Kind: KindState, State: StateDone, Total: len(ms)})
	return res, nil
}

func (u Usecase) acquire(ctx context.Context, in Input, workDir string) (string, error) {
	dst := filepath.Join(workDir, "input.mp4")
	switch {
	case in.LocalPath != "":
		st, err := os.Stat(in.LocalPath)
		if err != nil {
			return "", fmt.Errorf("stat input: %w", err)
		}
		if st.IsDir() {
			return "", fmt.Errorf("input %s is a directory", in.LocalPath)
		}
		return in.LocalPath, nil
	case in.Upload != nil:
		if err := in.Upload.Fetch(ctx, dst); err != nil {
			return "", err
		}
		return dst, nil
	case in.URL != "":
		if u.d.Downloader == nil {
			return "", errors.New("no downloader configured")
		}
		if err := u.d.Downloader.Download(ctx, in.URL, dst); err != nil {
			return "", err
		}
		return dst, nil
	default:
		return "", errors.New("request has no video")
	}
}

func (u Usecase) render(
	ctx context.Context,
	src types.VideoInfo,
	tr types.Transcript,
	m types.Moment,
	idx int,
	workDir, outDir string,
) (types.RenderedClip, error) {
	id := fmt.Sprintf("%03d", idx)
	clipPath := filepath.Join(outDir, id+".mp4")

	assPath := ""
	cues := subtitles.Select(tr, m)
	if len(cues) > 0 || m.Hook != "" {
		assPath = filepath.Join(workDir, id+".ass")
		ass := subtitles.BuildASS(cues, m.Hook, time.Duration(m.Length()*float64(time.Second)))
		if err := writeFile(assPath, []byte(ass)); err != nil {
			return types.RenderedClip{}, err
		}
	}

	if err := u.d.Video.RenderShort(ctx, src, m, assPath, clipPath); err != nil {
		return types.RenderedClip{}, err
	}
	return types.RenderedClip{Index: idx, Path: clipPath, Moment: m}, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func writeFile(path string, b []byte) error {
	return os.WriteFile(path, b, 0o644)
}
