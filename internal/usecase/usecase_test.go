package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/forPelevin/shortsbot/internal/types"
)

type fakeVideoTool struct {
	info       types.VideoInfo
	probeErr   error
	failAt     map[int]error
	renders    []types.Moment
	renderASS  []string
	renderOuts []string
}

func (f *fakeVideoTool) ExtractAudioMono16k(_ context.Context, _, _ string) error { return nil }

func (f *fakeVideoTool) Probe(_ context.Context, in string) (types.VideoInfo, error) {
	if f.probeErr != nil {
		return types.VideoInfo{}, f.probeErr
	}
	info := f.info
	info.Path = in
	return info, nil
}

func (f *fakeVideoTool) RenderShort(_ context.Context, _ types.VideoInfo, m types.Moment, assPath, outMP4 string) error {
	f.renders = append(f.renders, m)
	if err := f.failAt[len(f.renders)]; err != nil {
		return err
	}
	ass := ""
	if assPath != "" {
		b, err := os.ReadFile(assPath)
		if err != nil {
			return err
		}
		ass = string(b)
	}
	f.renderASS = append(f.renderASS, ass)
	f.renderOuts = append(f.renderOuts, outMP4)
	return os.WriteFile(outMP4, []byte("mp4"), 0o644)
}

type fakeAnalyzer struct {
	moments []types.Moment
	err     error
	calls   int
}

func (f *fakeAnalyzer) Analyze(_ context.Context, _ string) ([]types.Moment, error) {
	f.calls++
	return f.moments, f.err
}

type fakeTranscriber struct {
	tr  types.Transcript
	err error
}

func (f fakeTranscriber) Transcribe(_ context.Context, _, _ string) (types.Transcript, error) {
	return f.tr, f.err
}

type fakeDownloader struct{ err error }

func (f fakeDownloader) Download(_ context.Context, _, outPath string) error {
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(outPath, []byte("video"), 0o644)
}

type recorder struct{ events []Event }

func (r *recorder) emit(_ context.Context, ev Event) { r.events = append(r.events, ev) }

func (r *recorder) count(k Kind, s State) int {
	n := 0
	for _, ev := range r.events {
		if ev.Kind == k && (k != KindState || ev.State == s) {
			n++
		}
	}
	return n
}

func scenarioMoment() types.Moment {
	return types.Moment{Start: 120, End: 165, Title: "t", Description: "d", Tags: []string{"#x", "#y"}, Hook: "Wait for it", ViralReason: "r"}
}

func scenarioTranscript() types.Transcript {
	return types.Transcript{Segments: []types.Segment{{Start: 125, End: 130, Text: "hello"}}}
}

func sourceFile(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "in.mp4")
	if err := os.WriteFile(p, []byte("video"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	return p
}

func TestRun_Scenario(t *testing.T) {
	t.Parallel()

	video := &fakeVideoTool{info: types.VideoInfo{Width: 1920, Height: 1080, Duration: 10 * time.Minute}}
	uc := New(Deps{
		Analyzer:    &fakeAnalyzer{moments: []types.Moment{scenarioMoment()}},
		Transcriber: fakeTranscriber{tr: scenarioTranscript()},
		Video:       video,
	})

	rec := &recorder{}
	res, err := uc.Run(context.Background(), Input{LocalPath: sourceFile(t), TempDir: t.TempDir(), Emit: rec.emit})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Clips) != 1 || len(video.renders) != 1 {
		t.Fatalf("expected 1 clip, got %d clips and %d renders", len(res.Clips), len(video.renders))
	}
	if got := res.Clips[0].Moment.Length(); got != 45 {
		t.Fatalf("expected 45s moment, got %v", got)
	}
	ass := video.renderASS[0]
	if !strings.Contains(ass, "Dialogue: 0,0:00:05.00,0:00:10.00,Caption,,0,0,0,,hello") {
		t.Fatalf("expected caption over local [5,10), got:\n%s", ass)
	}
	if !strings.Contains(ass, "Dialogue: 1,0:00:00.00,0:00:03.00,Hook,,0,0,0,,Wait for it") {
		t.Fatalf("expected hook over [0,3), got:\n%s", ass)
	}

	var seq []string
	for _, ev := range rec.events {
		switch ev.Kind {
		case KindState:
			seq = append(seq, ev.State.String())
		case KindMomentsFound:
			seq = append(seq, "moments")
		case KindClipReady:
			seq = append(seq, "clip")
		}
	}
	want := "received acquiring analyzing moments transcribing rendering clip done"
	if strings.Join(seq, " ") != want {
		t.Fatalf("unexpected event sequence:\n got: %s\nwant: %s", strings.Join(seq, " "), want)
	}
}

func TestRun_EmptyMomentsAbortsWithoutRendering(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		analyzer *fakeAnalyzer
	}{
		{name: "empty list", analyzer: &fakeAnalyzer{}},
		{name: "service error", analyzer: &fakeAnalyzer{err: errors.New("boom")}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			video := &fakeVideoTool{info: types.VideoInfo{Width: 1920, Height: 1080}}
			uc := New(Deps{Analyzer: tc.analyzer, Transcriber: fakeTranscriber{}, Video: video})
			rec := &recorder{}

			_, err := uc.Run(context.Background(), Input{LocalPath: sourceFile(t), TempDir: t.TempDir(), Emit: rec.emit})
			var aerr *AnalysisError
			if !errors.As(err, &aerr) {
				t.Fatalf("expected AnalysisError, got %v", err)
			}
			if len(video.renders) != 0 {
				t.Fatalf("expected no render attempts, got %d", len(video.renders))
			}
			if n := rec.count(KindState, StateFailed); n != 1 {
				t.Fatalf("expected exactly one failure notice, got %d", n)
			}
			if n := rec.count(KindState, StateDone); n != 0 {
				t.Fatalf("expected no done event, got %d", n)
			}
		})
	}
}

func TestRun_TranscriptionFailureKeepsHook(t *testing.T) {
	t.Parallel()

	video := &fakeVideoTool{info: types.VideoInfo{Width: 1920, Height: 1080}}
	second := scenarioMoment()
	second.Start, second.End, second.Hook = 200, 240, "Second hook"
	uc := New(Deps{
		Analyzer:    &fakeAnalyzer{moments: []types.Moment{scenarioMoment(), second}},
		Transcriber: fakeTranscriber{tr: scenarioTranscript(), err: errors.New("decode failed")},
		Video:       video,
	})
	rec := &recorder{}

	res, err := uc.Run(context.Background(), Input{LocalPath: sourceFile(t), TempDir: t.TempDir(), Emit: rec.emit})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	var terr *TranscriptionError
	if !errors.As(res.TranscriptErr, &terr) {
		t.Fatalf("expected TranscriptionError in result, got %v", res.TranscriptErr)
	}
	if rec.count(KindCaptionsUnavailable, 0) != 1 {
		t.Fatalf("expected one captions-unavailable event")
	}
	if len(video.renderASS) != 2 {
		t.Fatalf("expected both moments rendered, got %d", len(video.renderASS))
	}
	for i, ass := range video.renderASS {
		if strings.Contains(ass, ",Caption,") {
			t.Fatalf("clip %d: expected no transcript captions, got:\n%s", i+1, ass)
		}
		if !strings.Contains(ass, ",Hook,") {
			t.Fatalf("clip %d: expected hook caption, got:\n%s", i+1, ass)
		}
	}
}

func TestRun_RenderFailureContinues(t *testing.T) {
	t.Parallel()

	ms := []types.Moment{
		{Start: 0, End: 30, Hook: "a"},
		{Start: 30, End: 60, Hook: "b"},
		{Start: 60, End: 90, Hook: "c"},
	}
	video := &fakeVideoTool{
		info:   types.VideoInfo{Width: 1920, Height: 1080},
		failAt: map[int]error{2: errors.New("encoder crashed")},
	}
	uc := New(Deps{Analyzer: &fakeAnalyzer{moments: ms}, Transcriber: fakeTranscriber{}, Video: video})
	rec := &recorder{}

	res, err := uc.Run(context.Background(), Input{LocalPath: sourceFile(t), TempDir: t.TempDir(), Emit: rec.emit})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(video.renders) != 3 {
		t.Fatalf("expected all 3 moments attempted, got %d", len(video.renders))
	}
	if len(res.Clips) != 2 || res.Clips[0].Index != 1 || res.Clips[1].Index != 3 {
		t.Fatalf("unexpected clips: %+v", res.Clips)
	}
	if len(res.Failures) != 1 || res.Failures[0].Index != 2 {
		t.Fatalf("expected render failure for short 2, got %+v", res.Failures)
	}
	if rec.count(KindClipFailed, 0) != 1 || rec.count(KindState, StateDone) != 1 {
		t.Fatalf("expected one clip failure and a done event, got %+v", rec.events)
	}
}

func TestRun_KeepsOverlappingMomentsInOrder(t *testing.T) {
	t.Parallel()

	ms := []types.Moment{
		{Start: 120, End: 160},
		{Start: 20, End: 60},
		{Start: 130, End: 170},
	}
	video := &fakeVideoTool{info: types.VideoInfo{Width: 1280, Height: 720}}
	uc := New(Deps{Analyzer: &fakeAnalyzer{moments: ms}, Transcriber: fakeTranscriber{}, Video: video})

	if _, err := uc.Run(context.Background(), Input{LocalPath: sourceFile(t), TempDir: t.TempDir()}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(video.renders) != 3 {
		t.Fatalf("expected 3 renders, got %d", len(video.renders))
	}
	for i := range ms {
		if video.renders[i].Start != ms[i].Start {
			t.Fatalf("render %d started at %v, want %v", i, video.renders[i].Start, ms[i].Start)
		}
	}
	if video.renderASS[0] != "" {
		t.Fatalf("expected no subtitle file without hook and captions")
	}
}

func TestRun_DownloadFailure(t *testing.T) {
	t.Parallel()

	analyzer := &fakeAnalyzer{moments: []types.Moment{scenarioMoment()}}
	uc := New(Deps{
		Downloader:  fakeDownloader{err: errors.New("geo-blocked")},
		Analyzer:    analyzer,
		Transcriber: fakeTranscriber{},
		Video:       &fakeVideoTool{},
	})
	rec := &recorder{}

	_, err := uc.Run(context.Background(), Input{URL: "https://youtu.be/x", TempDir: t.TempDir(), Emit: rec.emit})
	var derr *DownloadError
	if !errors.As(err, &derr) {
		t.Fatalf("expected DownloadError, got %v", err)
	}
	if analyzer.calls != 0 {
		t.Fatalf("expected no analysis after failed download")
	}
	if rec.count(KindState, StateFailed) != 1 {
		t.Fatalf("expected one failure event")
	}
}

func TestRun_RemovesWorkDir(t *testing.T) {
	t.Parallel()

	tmp := t.TempDir()
	uc := New(Deps{
		Downloader:  fakeDownloader{},
		Analyzer:    &fakeAnalyzer{moments: []types.Moment{scenarioMoment()}},
		Transcriber: fakeTranscriber{tr: scenarioTranscript()},
		Video:       &fakeVideoTool{info: types.VideoInfo{Width: 1920, Height: 1080}},
	})

	var clipPath string
	emit := func(_ context.Context, ev Event) {
		if ev.Kind == KindClipReady {
			clipPath = ev.Clip.Path
			if _, err := os.Stat(clipPath); err != nil {
				t.Errorf("clip should exist while the event is handled: %v", err)
			}
		}
	}
	if _, err := uc.Run(context.Background(), Input{URL: "https://youtu.be/x", TempDir: tmp, Emit: emit}); err != nil {
		t.Fatalf("run: %v", err)
	}
	entries, err := os.ReadDir(tmp)
	if err != nil {
		t.Fatalf("read temp dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected work dir to be removed, found %d entries", len(entries))
	}
	if _, err := os.Stat(clipPath); !os.IsNotExist(err) {
		t.Fatalf("expected clip to be removed with the work dir, stat err=%v", err)
	}
}

func TestRun_OutDirKeepsClips(t *testing.T) {
	t.Parallel()

	out := t.TempDir()
	uc := New(Deps{
		Analyzer:    &fakeAnalyzer{moments: []types.Moment{scenarioMoment()}},
		Transcriber: fakeTranscriber{},
		Video:       &fakeVideoTool{info: types.VideoInfo{Width: 1920, Height: 1080}},
	})
	res, err := uc.Run(context.Background(), Input{LocalPath: sourceFile(t), OutDir: out, TempDir: t.TempDir()})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if want := filepath.Join(out, "001.mp4"); res.Clips[0].Path != want {
		t.Fatalf("clip path = %s, want %s", res.Clips[0].Path, want)
	}
	if _, err := os.Stat(res.Clips[0].Path); err != nil {
		t.Fatalf("expected clip to survive: %v", err)
	}
}

func TestRun_NoSource(t *testing.T) {
	uc := New(Deps{Analyzer: &fakeAnalyzer{}, Transcriber: fakeTranscriber{}, Video: &fakeVideoTool{}})
	_, err := uc.Run(context.Background(), Input{TempDir: t.TempDir()})
	var derr *DownloadError
	if !errors.As(err, &derr) {
		t.Fatalf("expected DownloadError, got %v", err)
	}
}

func TestChannelEmitter(t *testing.T) {
	ch := make(chan Event, 1)
	ChannelEmitter(ch)(context.Background(), Event{Kind: KindState, State: StateDone})
	if ev := <-ch; ev.State != StateDone {
		t.Fatalf("unexpected event %+v", ev)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ChannelEmitter(make(chan Event))(ctx, Event{})
}
