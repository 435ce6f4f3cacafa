// Package manager implements the host-facing device management flows, of
// which card authentication is the first: a multi-round challenge-response
// proving a tapped card is genuine, optionally followed by pairing a trust
// key into it.
package manager

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/tapvault/tapvault-go/core"
	"github.com/tapvault/tapvault-go/hostproto"
	"github.com/tapvault/tapvault-go/nfc"
	"github.com/tapvault/tapvault-go/types"
	"github.com/tapvault/tapvault-go/ui"
	"github.com/tapvault/tapvault-go/wallet"
)

func signSerialBeepCount(pairCardRequired bool) int {
	if pairCardRequired {
		return 3
	}
	return 2
}

func signChallengeBeepCount(pairCardRequired bool) int {
	if pairCardRequired {
		return 2
	}
	return 1
}

// FlowStatus is the narrow phase-register surface the flow mutates.
type FlowStatus interface {
	SetFlowStatus(core.AuthCardStatus)
	FlowStatus() core.AuthCardStatus
}

// CardOperator is the opaque card operation surface of the flow.
type CardOperator interface {
	SignSerial() (*types.SerialSignature, error)
	SignChallenge(challenge []byte) (*types.Signature, error)
	Pair() error
}

// SendFunc pushes an encoded response onto the host link. The transport must
// not retain the buffer; it is wiped after sending.
type SendFunc func([]byte) error

type authCardScreenCtx struct {
	heading          string
	message          string
	acceptableCards  uint8
	pairCardRequired bool
}

type authCardData struct {
	query hostproto.Query
	ctx   authCardScreenCtx
}

// App runs the manager flows against its collaborators. Exactly one session
// executes at a time; App must not be re-entered while one is active.
type App struct {
	status FlowStatus
	events *core.Engine
	nfc    nfc.Controller
	card   CardOperator
	screen ui.Screen
	send   SendFunc

	// Timeout bounds every wait in a session. A firing is handled exactly
	// like a device abort.
	Timeout time.Duration

	slog *log.Entry
}

func NewApp(status FlowStatus, events *core.Engine, reader nfc.Controller, card CardOperator, screen ui.Screen, send SendFunc) *App {
	return &App{
		status:  status,
		events:  events,
		nfc:     reader,
		card:    card,
		screen:  screen,
		send:    send,
		Timeout: core.MaxInactivityTimeout,
		slog:    log.WithField("flow", "auth-card"),
	}
}

// HandleAuthCard runs one card authentication session to completion. Any
// first query other than initiate is ignored without a response or state
// change. The session ends at pairing-done, on the first handler error, or
// on the device abort signal; an abort discards any partially decoded query.
func (a *App) HandleAuthCard(query *hostproto.Query) error {
	if query == nil || query.AuthCard == nil {
		return ErrInvalidArgs
	}

	if query.AuthCard.Initiate == nil {
		// ignore invalid request
		return nil
	}

	slog := a.slog.WithField("session", uuid.NewString())
	a.slog = slog
	defer a.nfc.DestroyContext()

	data := &authCardData{
		query: *query,
		ctx: authCardScreenCtx{
			acceptableCards: nfc.AcceptableCardsAll,
		},
	}

	a.status.SetFlowStatus(core.AuthCardStatusInit)

	var resp hostproto.AuthCardResponse
	for {
		if err := a.handleAuthCardQuery(data, &resp); err != nil {
			slog.WithError(err).Debug("session ended")
			return err
		}

		if resp.HasResponse() {
			if err := a.sendAuthCardResponse(&resp); err != nil {
				return err
			}
			resp = hostproto.AuthCardResponse{}
		}

		if a.status.FlowStatus() == core.AuthCardStatusPairingDone {
			slog.Debug("session complete")
			return nil
		}

		evt := a.events.GetEvents(core.EventHost, a.Timeout)
		if evt.Abort.Flag {
			slog.WithField("timeout", evt.Abort.Timeout).Debug("session aborted")
			return ErrAbort
		}

		if err := decodeAuthCardQueryIfHostEvt(&evt.Host, &data.query); err != nil {
			slog.WithError(err).Debug("bad host query")
			return err
		}
	}
}

func (a *App) handleAuthCardQuery(data *authCardData, resp *hostproto.AuthCardResponse) error {
	if data == nil || resp == nil {
		return ErrInvalidArgs
	}

	if data.query.AuthCard.RequestsSet() > 1 {
		return ErrInvalidArgs
	}

	switch {
	case data.query.AuthCard.Initiate != nil:
		return a.handleInitiateQuery(data, resp)
	case data.query.AuthCard.Challenge != nil:
		return a.handleChallengeQuery(data, resp)
	case data.query.AuthCard.Result != nil:
		return a.handleResultQuery(data, resp)
	default:
		return ErrUnknownQuery
	}
}

func (a *App) handleInitiateQuery(data *authCardData, resp *hostproto.AuthCardResponse) error {
	if a.status.FlowStatus() != core.AuthCardStatusInit {
		return ErrInvalidState
	}

	if !a.screen.Confirm(ui.TextAuthCardConfirm) {
		return ErrUserRejected
	}

	a.status.SetFlowStatus(core.AuthCardStatusUserConfirmed)
	a.prepareCardAuthContext(data)

	return a.handleSignCardSerial(data, resp)
}

func (a *App) prepareCardAuthContext(data *authCardData) {
	initiate := data.query.AuthCard.Initiate

	data.ctx.acceptableCards = nfc.AcceptableCardsAll
	data.ctx.heading = ui.TextTapACard
	if initiate.CardIndex != nil {
		data.ctx.acceptableCards = nfc.CardMask(*initiate.CardIndex)
		data.ctx.heading = ui.Clip(fmt.Sprintf(ui.TextTapCard, *initiate.CardIndex), ui.MaxHeadingLen)
	}

	data.ctx.pairCardRequired = initiate.PairCard != nil && *initiate.PairCard

	beeps := signSerialBeepCount(data.ctx.pairCardRequired)
	data.ctx.message = ui.Clip(fmt.Sprintf(ui.TextPlaceCardTillBeep, beeps), ui.MaxMessageLen)
}

func (a *App) handleSignCardSerial(data *authCardData, resp *hostproto.AuthCardResponse) error {
	a.screen.Instruction(data.ctx.message, data.ctx.heading)
	a.nfc.EnableSelectCardTask(data.ctx.acceptableCards)

	evt := a.events.GetEvents(core.EventNFC, a.Timeout)
	if evt.Abort.Flag {
		return ErrAbort
	}

	serialSig, err := a.card.SignSerial()
	if err != nil {
		a.slog.WithError(err).Error("sign serial failed")
		return ErrCardOperation
	}

	a.status.SetFlowStatus(core.AuthCardStatusSerialSigned)

	beeps := signChallengeBeepCount(data.ctx.pairCardRequired)
	data.ctx.message = ui.Clip(fmt.Sprintf(ui.TextPlaceCardTillBeep, beeps), ui.MaxMessageLen)
	a.screen.Instruction(data.ctx.message, data.ctx.heading)

	resp.SerialSignature = &hostproto.SerialSignature{
		Serial:    serialSig.Serial,
		Signature: serialSig.Signature.Raw(),
	}

	return nil
}

func (a *App) handleChallengeQuery(data *authCardData, resp *hostproto.AuthCardResponse) error {
	if a.status.FlowStatus() != core.AuthCardStatusSerialSigned {
		return ErrInvalidState
	}

	if len(data.query.AuthCard.Challenge.Challenge) != hostproto.ChallengeSize {
		return ErrInvalidArgs
	}

	return a.handleSignChallenge(data, resp)
}

func (a *App) handleSignChallenge(data *authCardData, resp *hostproto.AuthCardResponse) error {
	a.nfc.EnableSelectCardTask(data.ctx.acceptableCards)

	evt := a.events.GetEvents(core.EventNFC, a.Timeout)
	if evt.Abort.Flag {
		return ErrAbort
	}

	sig, err := a.card.SignChallenge(data.query.AuthCard.Challenge.Challenge)
	if err != nil {
		a.slog.WithError(err).Error("sign challenge failed")
		return ErrCardOperation
	}

	a.status.SetFlowStatus(core.AuthCardStatusChallengeSigned)

	if data.ctx.pairCardRequired {
		data.ctx.message = ui.Clip(fmt.Sprintf(ui.TextPlaceCardTillBeep, 1), ui.MaxMessageLen)
	} else {
		data.ctx.message = ui.TextProcessing
	}
	a.screen.Instruction(data.ctx.message, data.ctx.heading)

	resp.ChallengeSignature = &hostproto.ChallengeSignature{
		Signature: sig.Raw(),
	}

	return nil
}

func (a *App) handleResultQuery(data *authCardData, resp *hostproto.AuthCardResponse) error {
	verified := data.query.AuthCard.Result.Verified

	switch a.status.FlowStatus() {
	case core.AuthCardStatusSerialSigned:
		if verified {
			// a true verification cannot arrive before the challenge step
			return ErrInvalidState
		}

		resp.FlowComplete = &hostproto.FlowComplete{}
		a.screen.Delay(ui.TextAuthCardFailed, ui.DelayTime)
		return nil

	case core.AuthCardStatusChallengeSigned:
		if !verified {
			resp.FlowComplete = &hostproto.FlowComplete{}
			a.screen.Delay(ui.TextAuthCardFailed, ui.DelayTime)
			return nil
		}

		if data.ctx.pairCardRequired {
			if err := a.card.Pair(); err != nil {
				a.slog.WithError(err).Error("card pairing failed")
				return ErrCardOperation
			}
		}

		a.status.SetFlowStatus(core.AuthCardStatusPairingDone)
		resp.FlowComplete = &hostproto.FlowComplete{}
		a.screen.Delay(ui.TextAuthCardSuccess, ui.DelayTime)
		return nil

	default:
		return ErrInvalidState
	}
}

func (a *App) sendAuthCardResponse(resp *hostproto.AuthCardResponse) error {
	if resp == nil || !resp.HasResponse() {
		return ErrInvalidArgs
	}

	result := hostproto.Result{AuthCard: resp}
	raw, err := result.Encode()
	if err != nil {
		return ErrEncodingFailed
	}

	err = a.send(raw)
	wallet.Zero(raw)

	return err
}

func decodeAuthCardQueryIfHostEvt(evt *core.HostEvent, out *hostproto.Query) error {
	if evt == nil || out == nil {
		return ErrInvalidArgs
	}

	if !evt.Flag {
		// no host event; an abort is handled by the caller
		return nil
	}

	query, err := hostproto.DecodeQuery(evt.Msg)
	if err != nil {
		return ErrDecodingFailed
	}

	if query.AuthCard == nil {
		return ErrUnknownQuery
	}

	*out = *query
	return nil
}
