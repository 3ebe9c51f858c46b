package call

import (
	"sync"
	"time"

	"github.com/mkravets/vox/internal/bus"
)

// Cue identifies a call audio cue.
type Cue string

const (
	CueRingtone Cue = "ringtone"
	CueRingback Cue = "ringback"
	CueNone     Cue = "none"
)

// BusRinger publishes ring cue changes on the bus for front ends to play.
// The daemon itself produces no audio. Stop is idempotent.
type BusRinger struct {
	bus *bus.Bus

	mu      sync.Mutex
	current Cue
}

// NewBusRinger creates a ringer backed by the event bus.
func NewBusRinger(b *bus.Bus) *BusRinger {
	return &BusRinger{bus: b, current: CueNone}
}

func (r *BusRinger) StartRingtone() { r.set(CueRingtone) }
func (r *BusRinger) StartRingback() { r.set(CueRingback) }
func (r *BusRinger) Stop()          { r.set(CueNone) }

// Current returns the cue that should be playing right now.
func (r *BusRinger) Current() Cue {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

func (r *BusRinger) set(c Cue) {
	r.mu.Lock()
	if r.current == c {
		r.mu.Unlock()
		return
	}
	r.current = c
	r.mu.Unlock()
	if r.bus != nil {
		r.bus.Publish(bus.Event{Kind: bus.KindCallCue, Timestamp: time.Now(), Payload: c})
	}
}
