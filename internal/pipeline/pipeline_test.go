package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/forPelevin/shortsbot/internal/config"
	"github.com/forPelevin/shortsbot/internal/ports/adapters/openaiwhisper"
	"github.com/forPelevin/shortsbot/internal/ports/adapters/whispercpp"
	"github.com/forPelevin/shortsbot/internal/types"
	"github.com/forPelevin/shortsbot/internal/usecase"
)

func TestBuildRunOutDir(t *testing.T) {
	now := time.Date(2026, 2, 12, 10, 30, 45, 1234, time.UTC)
	got := buildRunOutDir("out", "/tmp/My Cool.Video.mp4", now)
	base := filepath.Base(got)
	if filepath.Dir(got) != "out" {
		t.Fatalf("unexpected parent dir: %s", got)
	}
	if !strings.HasPrefix(base, "my-cool-video-20260212-103045Z-") {
		t.Fatalf("unexpected run dir format: %s", base)
	}
	if len(base) != len("my-cool-video-20260212-103045Z-")+6 {
		t.Fatalf("unexpected run dir suffix length: %s", base)
	}
}

func TestNormalizePathSegment(t *testing.T) {
	tests := map[string]string{
		"  My Cool.Video  ": "my-cool-video",
		"___":               "",
		"abc123":            "abc123",
		"Name (v2)!":        "name-v2",
		"Été à Paris":       "été-à-paris",
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			if got := normalizePathSegment(in); got != want {
				t.Fatalf("normalizePathSegment(%q) = %q, want %q", in, got, want)
			}
		})
	}
}

func TestSourceName(t *testing.T) {
	tests := map[string]string{
		"/videos/talk.mp4":                          "/videos/talk.mp4",
		"https://www.youtube.com/watch?v=dQw4w9WgX": "dQw4w9WgX",
		"https://youtu.be/abc123":                   "abc123",
		"https://cdn.example.com/":                  "cdn.example.com",
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			if got := sourceName(in); got != want {
				t.Fatalf("sourceName(%q) = %q, want %q", in, got, want)
			}
		})
	}
}

func TestNewTranscriber(t *testing.T) {
	tr, err := newTranscriber(config.Transcription{Backend: config.TranscriberWhisper, WhisperModel: "m.bin"}, nil)
	if err != nil {
		t.Fatalf("whisper: %v", err)
	}
	if _, ok := tr.(*whispercpp.Adapter); !ok {
		t.Fatalf("expected whispercpp adapter, got %T", tr)
	}

	tr, err = newTranscriber(config.Transcription{Backend: config.TranscriberOpenAI, OpenAIKey: "k"}, nil)
	if err != nil {
		t.Fatalf("openai: %v", err)
	}
	if _, ok := tr.(*openaiwhisper.Adapter); !ok {
		t.Fatalf("expected openai adapter, got %T", tr)
	}

	if _, err := newTranscriber(config.Transcription{Backend: "vosk"}, nil); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

type fakeRunner struct {
	in    usecase.Input
	clips []types.Moment
	err   error
}

func (f *fakeRunner) Run(ctx context.Context, in usecase.Input) (usecase.Result, error) {
	f.in = in
	if f.err != nil {
		return usecase.Result{}, f.err
	}
	var res usecase.Result
	for i, m := range f.clips {
		p := filepath.Join(in.OutDir, fmt.Sprintf("%03d.mp4", i+1))
		if err := os.WriteFile(p, []byte("mp4"), 0o644); err != nil {
			return usecase.Result{}, err
		}
		clip := types.RenderedClip{Index: i + 1, Path: p, Moment: m}
		res.Clips = append(res.Clips, clip)
		in.Emit(ctx, usecase.Event{Kind: usecase.KindClipReady, Index: i + 1, Total: len(f.clips), Clip: &clip})
	}
	return res, nil
}

func TestRunCut_WritesManifest(t *testing.T) {
	in := filepath.Join(t.TempDir(), "Talk.mp4")
	if err := os.WriteFile(in, []byte("video"), 0o644); err != nil {
		t.Fatal(err)
	}
	out := t.TempDir()
	r := &fakeRunner{clips: []types.Moment{
		{Start: 120, End: 165, Title: "a", Tags: []string{"#x"}, Hook: "Wait for it"},
		{Start: 300, End: 340, Title: "b"},
	}}
	var logs []string
	logf := func(format string, args ...any) { logs = append(logs, format) }

	runDir, err := runCut(context.Background(), r, CutConfig{Input: in, OutDir: out, Logf: logf}, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	if err != nil {
		t.Fatalf("runCut: %v", err)
	}
	if !strings.HasPrefix(filepath.Base(runDir), "talk-20260102-030405Z-") {
		t.Fatalf("unexpected run dir: %s", runDir)
	}
	if r.in.LocalPath != in || r.in.URL != "" {
		t.Fatalf("expected local input, got %+v", r.in)
	}
	if r.in.OutDir != filepath.Join(runDir, "clips") {
		t.Fatalf("clips dir = %s", r.in.OutDir)
	}

	b, err := os.ReadFile(filepath.Join(runDir, "manifest.json"))
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	var m types.Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("decode manifest: %v", err)
	}
	if m.Input != in || len(m.Clips) != 2 {
		t.Fatalf("unexpected manifest: %+v", m)
	}
	if m.Clips[0].ID != "001" || m.Clips[0].File != "clips/001.mp4" || m.Clips[0].Hook != "Wait for it" {
		t.Fatalf("unexpected first clip: %+v", m.Clips[0])
	}
	if m.Clips[1].StartSec != 300 || m.Clips[1].EndSec != 340 {
		t.Fatalf("unexpected second clip: %+v", m.Clips[1])
	}
	if len(logs) == 0 {
		t.Fatal("expected progress logs")
	}
}

func TestRunCut_Link(t *testing.T) {
	r := &fakeRunner{clips: []types.Moment{{Start: 0, End: 30}}}
	runDir, err := runCut(context.Background(), r, CutConfig{Input: "https://youtu.be/abc", OutDir: t.TempDir()}, time.Now())
	if err != nil {
		t.Fatalf("runCut: %v", err)
	}
	if r.in.URL != "https://youtu.be/abc" || r.in.LocalPath != "" {
		t.Fatalf("expected link input, got %+v", r.in)
	}
	if !strings.HasPrefix(filepath.Base(runDir), "abc-") {
		t.Fatalf("unexpected run dir: %s", runDir)
	}
}

func TestRunCut_Errors(t *testing.T) {
	if _, err := runCut(context.Background(), &fakeRunner{}, CutConfig{Input: filepath.Join(t.TempDir(), "missing.mp4")}, time.Now()); err == nil {
		t.Fatal("expected error for missing input")
	}

	want := &usecase.AnalysisError{Err: errors.New("no clips")}
	_, err := runCut(context.Background(), &fakeRunner{err: want}, CutConfig{Input: "https://youtu.be/x", OutDir: t.TempDir()}, time.Now())
	var aerr *usecase.AnalysisError
	if !errors.As(err, &aerr) {
		t.Fatalf("expected AnalysisError, got %v", err)
	}

	_, err = runCut(context.Background(), &fakeRunner{}, CutConfig{Input: "https://youtu.be/x", OutDir: t.TempDir()}, time.Now())
	if err == nil || !strings.Contains(err.Error(), "no clips rendered") {
		t.Fatalf("expected no clips error, got %v", err)
	}
}
