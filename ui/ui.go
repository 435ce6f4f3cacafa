// Package ui is the screen collaborator of the flows. Rendering is external;
// the interface mirrors the firmware's instruction, delay and confirmation
// screens with the same text bounds.
package ui

import (
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	// MaxHeadingLen and MaxMessageLen match the fixed screen buffers.
	MaxHeadingLen = 30
	MaxMessageLen = 100
)

const (
	TextTapCard           = "Tap card #%d"
	TextTapACard          = "Tap a card"
	TextPlaceCardTillBeep = "Do not lift until you hear %d beep sounds"
	TextProcessing        = "..."

	TextAuthCardConfirm = "Verify card authenticity?"
	TextAuthCardFailed  = "Card authentication failed"
	TextAuthCardSuccess = "Card authentication successful"

	// DelayTime is how long terminal result screens stay up.
	DelayTime = 2 * time.Second
)

// Screen is the display surface of a flow. Instruction and Delay are fire
// and forget; Confirm blocks for the user's decision.
type Screen interface {
	Instruction(message, heading string)
	Delay(message string, duration time.Duration)
	Confirm(message string) bool
}

// Clip bounds s to max bytes, matching the firmware's fixed buffers.
func Clip(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}

	return s
}

// LogScreen renders screens to the log. Used by the demo binary and tests.
type LogScreen struct{}

func (LogScreen) Instruction(message, heading string) {
	log.WithField("heading", Clip(heading, MaxHeadingLen)).Info(Clip(message, MaxMessageLen))
}

func (LogScreen) Delay(message string, duration time.Duration) {
	log.WithField("duration", duration).Info(Clip(message, MaxMessageLen))
}

// Confirm always accepts; a real device blocks on the user here.
func (LogScreen) Confirm(message string) bool {
	log.Info(Clip(message, MaxMessageLen))
	return true
}
