// Package core provides the device-wide pieces every flow shares: the flow
// status register the host can query and the combined event wait that is the
// only suspension point of a running flow.
package core

import "sync"

// AuthCardStatus enumerates the phases of the card authentication protocol
// family.
type AuthCardStatus uint8

const (
	AuthCardStatusInit AuthCardStatus = iota
	AuthCardStatusUserConfirmed
	AuthCardStatusSerialSigned
	AuthCardStatusChallengeSigned
	AuthCardStatusPairingDone
)

func (s AuthCardStatus) String() string {
	switch s {
	case AuthCardStatusInit:
		return "init"
	case AuthCardStatusUserConfirmed:
		return "user-confirmed"
	case AuthCardStatusSerialSigned:
		return "serial-signed"
	case AuthCardStatusChallengeSigned:
		return "challenge-signed"
	case AuthCardStatusPairingDone:
		return "pairing-done"
	default:
		return "unknown"
	}
}

// StatusRegister is the process-wide flow status. The active flow is its
// sole writer; a host-facing status query reads it concurrently.
type StatusRegister struct {
	mu   sync.RWMutex
	flow AuthCardStatus
}

// SetFlowStatus records the current phase.
func (r *StatusRegister) SetFlowStatus(s AuthCardStatus) {
	r.mu.Lock()
	r.flow = s
	r.mu.Unlock()
}

// FlowStatus returns the current phase.
func (r *StatusRegister) FlowStatus() AuthCardStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.flow
}
