package cardsim

import (
	"errors"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/tapvault/tapvault-go/apdu"
	"github.com/tapvault/tapvault-go/core"
	"github.com/tapvault/tapvault-go/nfc"
)

var (
	ErrNoCardDetected = errors.New("no card in field")
	ErrCardRemoved    = errors.New("card was removed from field")
)

// Reader emulates the radio driver's presence state machine over an emulated
// card. It implements nfc.Controller for the flows and types.Channel for the
// command set, and posts presence events to the engine.
type Reader struct {
	engine *core.Engine

	mu    sync.Mutex
	card  *Card
	slot  uint8
	state nfc.PresenceState
}

// NewReader returns a reader with card sitting on slot. A nil card leaves
// the field empty until InsertCard.
func NewReader(engine *core.Engine, card *Card, slot uint8) *Reader {
	return &Reader{
		engine: engine,
		card:   card,
		slot:   slot,
		state:  nfc.StateOff,
	}
}

// InsertCard places a card in the field. If a select task is pending the
// detection is reported immediately.
func (r *Reader) InsertCard(card *Card, slot uint8, acceptable uint8) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.card = card
	r.slot = slot

	if r.state == nfc.StateWaitSelectCardResp {
		r.detect(acceptable)
	}
}

// RemoveCard takes the card out of the field.
func (r *Reader) RemoveCard() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.card = nil
	if r.state == nfc.StateWaitForCardRemoval || r.state == nfc.StateCardDetected {
		r.state = nfc.StateCardRemoved
	}
}

// EnableSelectCardTask implements nfc.Controller.
func (r *Reader) EnableSelectCardTask(acceptable uint8) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// select command goes out immediately, then the field is polled
	r.state = nfc.StateWaitSelectCardResp
	r.detect(acceptable)
}

// EnableWaitForRemovalTask implements nfc.Controller.
func (r *Reader) EnableWaitForRemovalTask() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != nfc.StateCardDetected {
		return ErrNoCardDetected
	}

	r.state = nfc.StateWaitForCardRemoval
	return nil
}

// ResetEvent implements nfc.Controller.
func (r *Reader) ResetEvent() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == nfc.StateCardRemoved {
		r.state = nfc.StateOff
	}
}

// DestroyContext implements nfc.Controller.
func (r *Reader) DestroyContext() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.state = nfc.StateOff
}

// State returns the current presence state.
func (r *Reader) State() nfc.PresenceState {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.state
}

// Send implements types.Channel against the detected card.
func (r *Reader) Send(cmd *apdu.Command) (*apdu.Response, error) {
	r.mu.Lock()
	card := r.card
	state := r.state
	r.mu.Unlock()

	switch state {
	case nfc.StateCardDetected, nfc.StateWaitForCardRemoval:
	case nfc.StateCardRemoved:
		return nil, ErrCardRemoved
	default:
		return nil, ErrNoCardDetected
	}

	log.Debugf("sending apdu command %x to card slot %d", cmd.Ins, r.slot)
	return card.Process(cmd), nil
}

// detect moves to card-detected and fires the presence event when a card
// with an acceptable slot bit is in the field. Callers hold the lock.
func (r *Reader) detect(acceptable uint8) {
	if r.card == nil || acceptable&nfc.CardMask(r.slot) == 0 {
		return
	}

	r.state = nfc.StateCardDetected
	r.engine.NotifyCardDetected()
	log.Debugf("card detected on slot %d", r.slot)
}
