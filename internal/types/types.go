package types

import "time"

type VideoInfo struct {
	Path     string
	Width    int
	Height   int
	Duration time.Duration
}

type Transcript struct {
	Language string    `json:"language,omitempty"`
	Segments []Segment `json:"segments"`
}

type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
	Words []Word  `json:"words,omitempty"`
}

type Word struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Word  string  `json:"word"`
}

// Moment is one clip proposed by the analyzer. Start and End are seconds
// on the source timeline.
type Moment struct {
	Start       float64  `json:"start"`
	End         float64  `json:"end"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Hook        string   `json:"hook"`
	ViralReason string   `json:"viral_reason"`
}

func (m Moment) Length() float64 { return m.End - m.Start }

type RenderedClip struct {
	Index  int
	Path   string
	Moment Moment
}

type Manifest struct {
	Input string         `json:"input"`
	Clips []ManifestClip `json:"clips"`
}

type ManifestClip struct {
	ID          string   `json:"id"`
	StartSec    float64  `json:"start_sec"`
	EndSec      float64  `json:"end_sec"`
	File        string   `json:"file"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Hook        string   `json:"hook"`
	ViralReason string   `json:"viral_reason"`
}
