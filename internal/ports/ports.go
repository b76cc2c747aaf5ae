package ports

import (
	"context"

	"github.com/forPelevin/shortsbot/internal/types"
)

// Downloader fetches a remote video into outPath.
type Downloader interface {
	Download(ctx context.Context, url, outPath string) error
}

// Fetcher writes an already-uploaded file to dst.
type Fetcher interface {
	Fetch(ctx context.Context, dst string) error
}

type Analyzer interface {
	Analyze(ctx context.Context, videoPath string) ([]types.Moment, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, videoPath, workDir string) (types.Transcript, error)
}

type AudioExtractor interface {
	ExtractAudioMono16k(ctx context.Context, inMP4, outWav string) error
}

type VideoTool interface {
	AudioExtractor
	Probe(ctx context.Context, inMP4 string) (types.VideoInfo, error)
	RenderShort(ctx context.Context, src types.VideoInfo, m types.Moment, assPath, outMP4 string) error
}
