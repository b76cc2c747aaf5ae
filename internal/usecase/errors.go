package usecase

import "fmt"

// DownloadError means the source video could not be acquired.
type DownloadError struct{ Err error }

func (e *DownloadError) Error() string { return "download: " + e.Err.Error() }
func (e *DownloadError) Unwrap() error { return e.Err }

// AnalysisError means no usable moments came back; the request is aborted.
type AnalysisError struct{ Err error }

func (e *AnalysisError) Error() string { return "analysis: " + e.Err.Error() }
func (e *AnalysisError) Unwrap() error { return e.Err }

// TranscriptionError degrades rendering to hook-only captions.
type TranscriptionError struct{ Err error }

func (e *TranscriptionError) Error() string { return "transcription: " + e.Err.Error() }
func (e *TranscriptionError) Unwrap() error { return e.Err }

// RenderError is scoped to one moment; Index is 1-based.
type RenderError struct {
	Index int
	Err   error
}

func (e *RenderError) Error() string { return fmt.Sprintf("render short %d: %s", e.Index, e.Err) }
func (e *RenderError) Unwrap() error { return e.Err }
