// Package nfc defines the command interface the flows use to drive the card
// presence sub-state-machine. The radio driver behind it is external;
// cardsim ships an emulated implementation.
package nfc

// PresenceState enumerates the states of the card presence state machine
// owned by the radio driver.
type PresenceState uint8

const (
	StateOff PresenceState = iota
	StateSetSelectCardCmd
	StateWaitSelectCardResp
	StateCardDetected
	StateWaitForCardRemoval
	StateCardRemoved
)

func (s PresenceState) String() string {
	switch s {
	case StateOff:
		return "off"
	case StateSetSelectCardCmd:
		return "set-select-card-cmd"
	case StateWaitSelectCardResp:
		return "wait-select-card-resp"
	case StateCardDetected:
		return "card-detected"
	case StateWaitForCardRemoval:
		return "wait-for-card-removal"
	case StateCardRemoved:
		return "card-removed"
	default:
		return "unknown"
	}
}

// AcceptableCardsAll accepts any of the configured card slots.
const AcceptableCardsAll = uint8(0x0F)

// CardMask encodes a card slot index as its bit in an acceptable-cards mask.
func CardMask(index uint8) uint8 {
	return 1 << index
}

// Controller is the narrow command surface of the card presence driver.
type Controller interface {
	// EnableSelectCardTask starts detection of a card whose slot bit is set
	// in acceptable. Detection is reported through the event engine.
	EnableSelectCardTask(acceptable uint8)
	// EnableWaitForRemovalTask checks that a card is still in the field and
	// starts waiting for its removal.
	EnableWaitForRemovalTask() error
	// ResetEvent clears a latched presence event.
	ResetEvent()
	// DestroyContext resets driver state after a flow ends.
	DestroyContext()
}
