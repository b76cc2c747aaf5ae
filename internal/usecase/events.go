package usecase

import (
	"context"

	"github.com/forPelevin/shortsbot/internal/types"
)

type State int

const (
	StateReceived State = iota
	StateAcquiring
	StateAnalyzing
	StateTranscribing
	StateRendering
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateReceived:
		return "received"
	case StateAcquiring:
		return "acquiring"
	case StateAnalyzing:
		return "analyzing"
	case StateTranscribing:
		return "transcribing"
	case StateRendering:
		return "rendering"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

type Kind int

const (
	// KindState marks a state transition. Rendering transitions carry Index and Total.
	KindState Kind = iota
	// KindMomentsFound carries the number of moments in Total.
	KindMomentsFound
	// KindCaptionsUnavailable carries the transcription error in Err.
	KindCaptionsUnavailable
	// KindClipReady carries the rendered clip. The file is removed once Run
	// returns, so handlers must deliver it before returning.
	KindClipReady
	// KindClipFailed carries a *RenderError.
	KindClipFailed
)

type Event struct {
	Kind  Kind
	State State
	Index int
	Total int
	Clip  *types.RenderedClip
	Err   error
}

// Emitter receives events synchronously, in order.
type Emitter func(ctx context.Context, ev Event)

// ChannelEmitter forwards events to ch, blocking until each is received or
// ctx is done.
func ChannelEmitter(ch chan<- Event) Emitter {
	return func(ctx context.Context, ev Event) {
		select {
		case ch <- ev:
		case <-ctx.Done():
		}
	}
}
