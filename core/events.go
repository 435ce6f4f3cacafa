package core

import (
	"sync"
	"time"
)

// MaxInactivityTimeout bounds every wait in a flow. Its firing is treated
// exactly like a user initiated abort.
const MaxInactivityTimeout = 5 * time.Minute

// EventConfig selects which event sources a wait listens to. The abort
// signal is always armed.
type EventConfig uint8

const (
	EventNFC EventConfig = 1 << iota
	EventHost
)

// AbortEvent reports a device-wide abort. Timeout distinguishes an
// inactivity timeout from an explicit abort signal; both end the flow.
type AbortEvent struct {
	Flag    bool
	Timeout bool
}

// NFCEvent reports that a card was detected in the field.
type NFCEvent struct {
	Flag bool
}

// HostEvent carries one inbound host message.
type HostEvent struct {
	Flag bool
	Msg  []byte
}

// Status is the outcome of a combined wait: exactly one of the events has
// its flag set.
type Status struct {
	Abort AbortEvent
	NFC   NFCEvent
	Host  HostEvent
}

// Engine multiplexes the three event sources a flow can suspend on: card
// presence, host messages and the device-wide abort. One flow at a time may
// wait on it.
type Engine struct {
	nfc  chan struct{}
	host chan []byte

	abortOnce sync.Once
	abort     chan struct{}
}

// NewEngine returns an Engine ready to accept events.
func NewEngine() *Engine {
	return &Engine{
		nfc:   make(chan struct{}, 1),
		host:  make(chan []byte, 4),
		abort: make(chan struct{}),
	}
}

// GetEvents blocks until one of the enabled sources fires, the abort signal
// is raised, or timeout elapses. It resumes with exactly one triggering
// event.
func (e *Engine) GetEvents(config EventConfig, timeout time.Duration) Status {
	var nfcCh chan struct{}
	var hostCh chan []byte

	if config&EventNFC != 0 {
		nfcCh = e.nfc
	}
	if config&EventHost != 0 {
		hostCh = e.host
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-e.abort:
		return Status{Abort: AbortEvent{Flag: true}}
	case <-timer.C:
		return Status{Abort: AbortEvent{Flag: true, Timeout: true}}
	case <-nfcCh:
		return Status{NFC: NFCEvent{Flag: true}}
	case msg := <-hostCh:
		return Status{Host: HostEvent{Flag: true, Msg: msg}}
	}
}

// NotifyCardDetected records a card presence event. Non-blocking; presence
// is level triggered, a pending event absorbs repeats.
func (e *Engine) NotifyCardDetected() {
	select {
	case e.nfc <- struct{}{}:
	default:
	}
}

// SubmitHostMessage queues an inbound host message for the waiting flow.
func (e *Engine) SubmitHostMessage(msg []byte) {
	e.host <- msg
}

// Abort raises the device-wide abort signal. Idempotent; every current and
// future wait resumes with an abort event.
func (e *Engine) Abort() {
	e.abortOnce.Do(func() {
		close(e.abort)
	})
}
