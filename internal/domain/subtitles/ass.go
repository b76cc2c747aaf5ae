package subtitles

import (
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/forPelevin/shortsbot/internal/domain/layout"
	"github.com/forPelevin/shortsbot/internal/types"
)

// HookDuration is how long the hook caption stays on screen.
const HookDuration = 3 * time.Second

// Cue is one caption in clip-local time.
type Cue struct {
	Start time.Duration
	End   time.Duration
	Text  string
}

// Select returns the transcript segments that lie fully inside the moment,
// shifted to clip-local time. Segments that only partially overlap the
// moment are dropped, not clipped.
func Select(tr types.Transcript, m types.Moment) []Cue {
	inside := lo.Filter(tr.Segments, func(s types.Segment, _ int) bool {
		return s.Start >= m.Start && s.End <= m.End && strings.TrimSpace(s.Text) != ""
	})
	return lo.Map(inside, func(s types.Segment, _ int) Cue {
		return Cue{
			Start: dur(s.Start - m.Start),
			End:   dur(s.End - m.Start),
			Text:  strings.TrimSpace(s.Text),
		}
	})
}

// Render builds the full ASS script for one moment: transcript captions at
// the bottom and the hook on top over the first HookDuration.
func Render(tr types.Transcript, m types.Moment) string {
	return BuildASS(Select(tr, m), m.Hook, dur(m.Length()))
}

func BuildASS(cues []Cue, hook string, clipLen time.Duration) string {
	var b strings.Builder
	b.WriteString(assHeader())
	b.WriteString("\n\n[Events]\n")
	b.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")
	for _, c := range cues {
		writeDialogue(&b, 0, c.Start, c.End, "Caption", c.Text)
	}
	if h := strings.TrimSpace(hook); h != "" {
		end := HookDuration
		if clipLen > 0 && clipLen < end {
			end = clipLen
		}
		writeDialogue(&b, 1, 0, end, "Hook", h)
	}
	return b.String()
}

func writeDialogue(b *strings.Builder, layer int, start, end time.Duration, style, text string) {
	fmt.Fprintf(b, "Dialogue: %d,%s,%s,%s,,0,0,0,,%s\n", layer, assTime(start), assTime(end), style, sanitizeASS(text))
}

// Both styles are top-anchored (alignment 8) so MarginV is the distance of
// the text's top edge from the top of the frame.
func assHeader() string {
	captionTop := layout.TargetHeight * 80 / 100
	hookTop := layout.TargetHeight * 15 / 100
	return strings.TrimSpace(fmt.Sprintf(`
[Script Info]
ScriptType: v4.00+
PlayResX: %d
PlayResY: %d
WrapStyle: 0
ScaledBorderAndShadow: yes

[V4+ Styles]
Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding
Style: Caption,Arial,50,&H00FFFFFF,&H00FFFFFF,&H00000000,&H00000000,-1,0,0,0,100,100,0,0,1,3,0,8,50,50,%d,1
Style: Hook,Arial,60,&H0000FFFF,&H0000FFFF,&H00000000,&H00000000,-1,0,0,0,100,100,0,0,1,4,0,8,50,50,%d,1
`, layout.TargetWidth, layout.TargetHeight, captionTop, hookTop))
}

func assTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hs := int(d / time.Hour)
	d -= time.Duration(hs) * time.Hour
	ms := int(d / time.Minute)
	d -= time.Duration(ms) * time.Minute
	s := int(d / time.Second)
	d -= time.Duration(s) * time.Second
	cs := int(d / (10 * time.Millisecond))
	return fmt.Sprintf("%d:%02d:%02d.%02d", hs, ms, s, cs)
}

func sanitizeASS(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "{", "(")
	s = strings.ReplaceAll(s, "}", ")")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(strings.TrimSpace(s), "\n", "\\N")
	return s
}

func dur(sec float64) time.Duration { return time.Duration(sec * float64(time.Second)) }
