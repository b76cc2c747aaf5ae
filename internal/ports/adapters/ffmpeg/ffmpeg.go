package ffmpeg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/forPelevin/shortsbot/internal/domain/layout"
	"github.com/forPelevin/shortsbot/internal/types"
)

const (
	outputFPS = 30
	// Output kept from a failed command.
	maxOutputTail = 4 * 1024
	// Moments may end this far past the probed duration before being rejected.
	endTolerance = 50 * time.Millisecond
)

type Adapter struct {
	ffmpeg  string
	ffprobe string
}

func New(ffmpegPath, ffprobePath string) *Adapter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Adapter{ffmpeg: ffmpegPath, ffprobe: ffprobePath}
}

func (a *Adapter) ExtractAudioMono16k(ctx context.Context, inMP4, outWav string) error {
	cmd := exec.CommandContext(ctx, a.ffmpeg,
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", inMP4,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		"-f", "wav",
		outWav,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg extract audio: %w\n%s", err, tail(b))
	}
	return nil
}

// RenderShort cuts [m.Start, m.End) out of src, crops and scales it to a
// 1080x1920 frame, burns assPath (if any) and encodes H.264/AAC at 30 fps.
func (a *Adapter) RenderShort(ctx context.Context, src types.VideoInfo, m types.Moment, assPath, outMP4 string) error {
	args, err := renderArgs(src, m, assPath, outMP4)
	if err != nil {
		return err
	}
	cmd := exec.CommandContext(ctx, a.ffmpeg, args...)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg render clip: %w\n%s", err, tail(b))
	}
	return nil
}

func renderArgs(src types.VideoInfo, m types.Moment, assPath, outMP4 string) ([]string, error) {
	if err := checkRange(src, m); err != nil {
		return nil, err
	}
	vf, err := layout.Filter(src.Width, src.Height)
	if err != nil {
		return nil, err
	}
	if assPath != "" {
		vf += ",subtitles=" + escapeFilterPath(assPath)
	}
	return []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-ss", fmtSeconds(m.Start),
		"-to", fmtSeconds(m.End),
		"-i", src.Path,
		"-vf", vf,
		"-r", strconv.Itoa(outputFPS),
		"-c:v", "libx264",
		"-preset", "medium",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", "192k",
		"-movflags", "+faststart",
		outMP4,
	}, nil
}

func checkRange(src types.VideoInfo, m types.Moment) error {
	if m.Start < 0 {
		return fmt.Errorf("invalid clip range: start %.3fs is negative", m.Start)
	}
	if m.End <= m.Start {
		return fmt.Errorf("invalid clip range: end %.3fs is not after start %.3fs", m.End, m.Start)
	}
	if src.Duration > 0 {
		end := time.Duration(m.End * float64(time.Second))
		if end > src.Duration+endTolerance {
			return fmt.Errorf("invalid clip range: end %.3fs is past source duration %s", m.End, src.Duration)
		}
	}
	return nil
}

type probeOutput struct {
	Streams []struct {
		Width    int               `json:"width"`
		Height   int               `json:"height"`
		Tags     map[string]string `json:"tags"`
		SideData []struct {
			Rotation float64 `json:"rotation"`
		} `json:"side_data_list"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe reads the display size and duration of the first video stream.
// Rotated streams (phone footage) report their displayed orientation.
func (a *Adapter) Probe(ctx context.Context, inMP4 string) (types.VideoInfo, error) {
	cmd := exec.CommandContext(ctx, a.ffprobe,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height:stream_tags=rotate:stream_side_data=rotation:format=duration",
		"-of", "json",
		inMP4,
	)
	b, err := cmd.Output()
	if err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			return types.VideoInfo{}, fmt.Errorf("ffprobe: %w\n%s", err, tail(ee.Stderr))
		}
		return types.VideoInfo{}, fmt.Errorf("ffprobe: %w", err)
	}
	return parseProbe(inMP4, b)
}

func parseProbe(path string, b []byte) (types.VideoInfo, error) {
	var p probeOutput
	if err := json.Unmarshal(b, &p); err != nil {
		return types.VideoInfo{}, fmt.Errorf("parse ffprobe output: %w", err)
	}
	if len(p.Streams) == 0 {
		return types.VideoInfo{}, fmt.Errorf("ffprobe: no video stream in %s", path)
	}
	s := p.Streams[0]
	if s.Width <= 0 || s.Height <= 0 {
		return types.VideoInfo{}, fmt.Errorf("ffprobe: invalid frame size %dx%d", s.Width, s.Height)
	}

	rotation := 0.0
	if v, ok := s.Tags["rotate"]; ok {
		if r, err := strconv.ParseFloat(v, 64); err == nil {
			rotation = r
		}
	}
	for _, sd := range s.SideData {
		if sd.Rotation != 0 {
			rotation = sd.Rotation
		}
	}
	w, h := s.Width, s.Height
	if r := int(rotation) % 180; r == 90 || r == -90 {
		w, h = h, w
	}

	info := types.VideoInfo{Path: path, Width: w, Height: h}
	if d := strings.TrimSpace(p.Format.Duration); d != "" && d != "N/A" {
		sec, err := strconv.ParseFloat(d, 64)
		if err != nil {
			return types.VideoInfo{}, fmt.Errorf("parse duration %q: %w", d, err)
		}
		info.Duration = time.Duration(sec * float64(time.Second))
	}
	return info, nil
}

func fmtSeconds(sec float64) string {
	return strconv.FormatFloat(sec, 'f', 3, 64)
}

func escapeFilterPath(p string) string {
	p = strings.ReplaceAll(p, "\\", "\\\\")
	p = strings.ReplaceAll(p, ":", "\\:")
	p = strings.ReplaceAll(p, "'", "\\'")
	p = strings.ReplaceAll(p, ",", "\\,")
	return p
}

func tail(b []byte) string {
	if len(b) <= maxOutputTail {
		return string(b)
	}
	return "..." + string(b[len(b)-maxOutputTail:])
}
