package bridge

import (
	"sync"
	"sync/atomic"

	"github.com/satriahrh/acrbridge/domain/repositories"
)

const defaultRelayBuffer = 64

// VendorEvent is a callback captured from a recognition client
type VendorEvent struct {
	Generation uint64
	// Recording is the recording that was current when the event was queued
	Recording  uint64
	Method     string
	Result     string
	Volume     float64
}

// Relay turns vendor callbacks, delivered on arbitrary goroutines, into a
// stream of events consumed by the session goroutine.
type Relay struct {
	events    chan VendorEvent
	done      chan struct{}
	closeOnce sync.Once
	recording atomic.Uint64
}

// NewRelay creates a relay with the given queue size
func NewRelay(buffer int) *Relay {
	if buffer <= 0 {
		buffer = defaultRelayBuffer
	}
	return &Relay{
		events: make(chan VendorEvent, buffer),
		done:   make(chan struct{}),
	}
}

// Events is the consumer side of the relay
func (r *Relay) Events() <-chan VendorEvent {
	return r.events
}

// Listener returns a vendor listener whose events carry the given generation
func (r *Relay) Listener(generation uint64) repositories.RecognitionListener {
	return &relayListener{relay: r, generation: generation}
}

// BeginRecording starts a new recording and returns its number. Events
// queued from now on carry it.
func (r *Relay) BeginRecording() uint64 {
	return r.recording.Add(1)
}

// Close releases blocked producers. Events sent afterwards are discarded.
func (r *Relay) Close() {
	r.closeOnce.Do(func() {
		close(r.done)
	})
}

type relayListener struct {
	relay      *Relay
	generation uint64
}

// OnResult blocks until the event is queued or the relay is closed
func (l *relayListener) OnResult(result string) {
	event := VendorEvent{
		Generation: l.generation,
		Recording:  l.relay.recording.Load(),
		Method:     EventResult,
		Result:     result,
	}
	select {
	case <-l.relay.done:
		return
	default:
	}
	select {
	case l.relay.events <- event:
	case <-l.relay.done:
	}
}

// OnVolumeChanged drops the event when the queue is full
func (l *relayListener) OnVolumeChanged(volume float64) {
	event := VendorEvent{
		Generation: l.generation,
		Recording:  l.relay.recording.Load(),
		Method:     EventVolume,
		Volume:     volume,
	}
	select {
	case <-l.relay.done:
	case l.relay.events <- event:
	default:
	}
}
