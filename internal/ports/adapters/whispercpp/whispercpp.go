package whispercpp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/forPelevin/shortsbot/internal/ports"
	"github.com/forPelevin/shortsbot/internal/types"
)

// Adapter transcribes with a local whisper.cpp build.
//
// New never touches the filesystem. The binary and model are resolved on the
// first Transcribe call and the outcome, success or failure, is kept for the
// lifetime of the Adapter. After that the Adapter is read-only and safe for
// concurrent use.
type Adapter struct {
	bin      string
	model    string
	language string
	audio    ports.AudioExtractor

	once    sync.Once
	binPath string
	initErr error
}

func New(binPath, modelPath, language string, audio ports.AudioExtractor) *Adapter {
	if language == "" {
		language = "auto"
	}
	return &Adapter{bin: binPath, model: modelPath, language: language, audio: audio}
}

func (a *Adapter) init() {
	p, err := exec.LookPath(a.bin)
	if err != nil {
		a.initErr = fmt.Errorf("whisper.cpp binary %q: %w", a.bin, err)
		return
	}
	st, err := os.Stat(a.model)
	if err != nil {
		a.initErr = fmt.Errorf("whisper model: %w", err)
		return
	}
	if st.IsDir() {
		a.initErr = fmt.Errorf("whisper model %s is a directory", a.model)
		return
	}
	a.binPath = p
}

func (a *Adapter) Transcribe(ctx context.Context, videoPath, workDir string) (types.Transcript, error) {
	a.once.Do(a.init)
	if a.initErr != nil {
		return types.Transcript{}, a.initErr
	}

	wav := filepath.Join(workDir, "audio.wav")
	if err := a.audio.ExtractAudioMono16k(ctx, videoPath, wav); err != nil {
		return types.Transcript{}, err
	}

	outPrefix := filepath.Join(workDir, "whisper")
	args := []string{
		"-m", a.model,
		"-f", wav,
		"-l", a.language,
		"-oj",
		"-of", outPrefix,
		"-np",
	}
	cmd := exec.CommandContext(ctx, a.binPath, args...)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return types.Transcript{}, fmt.Errorf("whisper.cpp failed: %w\n%s", err, string(b))
	}

	jb, err := os.ReadFile(outPrefix + ".json")
	if err != nil {
		return types.Transcript{}, err
	}
	return parseOutput(jb)
}

type output struct {
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

// parseOutput reads whisper.cpp's -oj file; offsets are in milliseconds.
func parseOutput(b []byte) (types.Transcript, error) {
	var out output
	if err := json.Unmarshal(b, &out); err != nil {
		return types.Transcript{}, fmt.Errorf("decode whisper.cpp output: %w", err)
	}
	if out.Transcription == nil {
		return types.Transcript{}, errors.New("whisper.cpp output has no transcription")
	}
	tr := types.Transcript{Language: out.Result.Language}
	for _, s := range out.Transcription {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		tr.Segments = append(tr.Segments, types.Segment{
			Start: float64(s.Offsets.From) / 1000,
			End:   float64(s.Offsets.To) / 1000,
			Text:  text,
		})
	}
	return tr, nil
}
