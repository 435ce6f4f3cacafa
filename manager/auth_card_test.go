package manager

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tapvault/tapvault-go/core"
	"github.com/tapvault/tapvault-go/hostproto"
	"github.com/tapvault/tapvault-go/nfc"
	"github.com/tapvault/tapvault-go/types"
	"github.com/tapvault/tapvault-go/ui"
)

type fakeScreen struct {
	mu           sync.Mutex
	instructions []string
	delays       []string
	confirm      bool
}

func (s *fakeScreen) Instruction(message, heading string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.instructions = append(s.instructions, heading+"|"+message)
}

func (s *fakeScreen) Delay(message string, duration time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, message)
}

func (s *fakeScreen) Confirm(message string) bool {
	return s.confirm
}

func (s *fakeScreen) shown() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.instructions...)
}

func (s *fakeScreen) delayed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.delays...)
}

type fakeReader struct {
	mu             sync.Mutex
	engine         *core.Engine
	detectOnSelect bool
	masks          []uint8
	destroyed      bool
}

func (r *fakeReader) EnableSelectCardTask(acceptable uint8) {
	r.mu.Lock()
	r.masks = append(r.masks, acceptable)
	detect := r.detectOnSelect
	r.mu.Unlock()

	if detect {
		r.engine.NotifyCardDetected()
	}
}

func (r *fakeReader) EnableWaitForRemovalTask() error { return nil }
func (r *fakeReader) ResetEvent()                     {}

func (r *fakeReader) DestroyContext() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.destroyed = true
}

func (r *fakeReader) lastMask() uint8 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.masks) == 0 {
		return 0
	}
	return r.masks[len(r.masks)-1]
}

type fakeCard struct {
	mu           sync.Mutex
	serial       []byte
	sig          *types.Signature
	serialErr    error
	challengeErr error
	pairErr      error
	paired       bool
}

func newFakeCard(t *testing.T) *fakeCard {
	key, err := ethcrypto.GenerateKey()
	require.NoError(t, err)

	serial := []byte{0x54, 0x56, 0x4C, 0x54, 0x02}
	msg := sha256.Sum256(serial)
	raw, err := ethcrypto.Sign(msg[:], key)
	require.NoError(t, err)

	sig, err := types.ParseRecoverableSignature(msg[:], raw)
	require.NoError(t, err)

	return &fakeCard{serial: serial, sig: sig}
}

func (c *fakeCard) SignSerial() (*types.SerialSignature, error) {
	if c.serialErr != nil {
		return nil, c.serialErr
	}
	return &types.SerialSignature{Serial: c.serial, Signature: c.sig}, nil
}

func (c *fakeCard) SignChallenge(challenge []byte) (*types.Signature, error) {
	if c.challengeErr != nil {
		return nil, c.challengeErr
	}
	return c.sig, nil
}

func (c *fakeCard) Pair() error {
	if c.pairErr != nil {
		return c.pairErr
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.paired = true
	return nil
}

type testApp struct {
	app    *App
	engine *core.Engine
	status *core.StatusRegister
	screen *fakeScreen
	reader *fakeReader
	card   *fakeCard
	sent   chan []byte
}

func newTestApp(t *testing.T) *testApp {
	ta := &testApp{
		engine: core.NewEngine(),
		status: &core.StatusRegister{},
		screen: &fakeScreen{confirm: true},
		card:   newFakeCard(t),
		sent:   make(chan []byte, 4),
	}
	ta.reader = &fakeReader{engine: ta.engine, detectOnSelect: true}

	send := func(raw []byte) error {
		buf := make([]byte, len(raw))
		copy(buf, raw)
		ta.sent <- buf
		return nil
	}

	ta.app = NewApp(ta.status, ta.engine, ta.reader, ta.card, ta.screen, send)
	ta.app.Timeout = time.Second

	return ta
}

func initiateQuery(cardIndex *uint8, pairCard bool) *hostproto.Query {
	initiate := &hostproto.AuthCardInitiate{CardIndex: cardIndex}
	if pairCard {
		initiate.PairCard = &pairCard
	}

	return &hostproto.Query{AuthCard: &hostproto.AuthCardRequest{Initiate: initiate}}
}

func (ta *testApp) submit(t *testing.T, req *hostproto.AuthCardRequest) {
	raw, err := (&hostproto.Query{AuthCard: req}).Encode()
	require.NoError(t, err)
	ta.engine.SubmitHostMessage(raw)
}

func (ta *testApp) response(t *testing.T) *hostproto.AuthCardResponse {
	select {
	case raw := <-ta.sent:
		result, err := hostproto.DecodeResult(raw)
		require.NoError(t, err)
		require.NotNil(t, result.AuthCard)
		return result.AuthCard
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a response")
		return nil
	}
}

func (ta *testApp) run(query *hostproto.Query) chan error {
	done := make(chan error, 1)
	go func() {
		done <- ta.app.HandleAuthCard(query)
	}()

	return done
}

func waitErr(t *testing.T, done chan error) error {
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("session did not terminate")
		return nil
	}
}

// Scenario: initiate without a card index and without pairing.
func TestAuthCardGenericTap(t *testing.T) {
	ta := newTestApp(t)
	done := ta.run(initiateQuery(nil, false))

	resp := ta.response(t)
	require.NotNil(t, resp.SerialSignature)
	assert.Equal(t, ta.card.serial, resp.SerialSignature.Serial)
	assert.Len(t, resp.SerialSignature.Signature, 65)

	assert.Equal(t, core.AuthCardStatusSerialSigned, ta.status.FlowStatus())
	assert.Equal(t, nfc.AcceptableCardsAll, ta.reader.lastMask())

	shown := ta.screen.shown()
	require.Len(t, shown, 2)
	assert.Equal(t, ui.TextTapACard+"|"+fmt.Sprintf(ui.TextPlaceCardTillBeep, 2), shown[0])
	assert.Equal(t, ui.TextTapACard+"|"+fmt.Sprintf(ui.TextPlaceCardTillBeep, 1), shown[1])

	ta.engine.Abort()
	assert.ErrorIs(t, waitErr(t, done), ErrAbort)
	assert.True(t, ta.reader.destroyed)
}

// Scenario: slot restricted initiate with pairing, driven to completion.
func TestAuthCardPairingFullSession(t *testing.T) {
	ta := newTestApp(t)

	index := uint8(2)
	challenge := make([]byte, hostproto.ChallengeSize)
	done := ta.run(initiateQuery(&index, true))

	resp := ta.response(t)
	require.NotNil(t, resp.SerialSignature)
	assert.Equal(t, nfc.CardMask(2), ta.reader.lastMask())

	ta.submit(t, &hostproto.AuthCardRequest{
		Challenge: &hostproto.AuthCardChallenge{Challenge: challenge},
	})

	resp = ta.response(t)
	require.NotNil(t, resp.ChallengeSignature)
	assert.Equal(t, core.AuthCardStatusChallengeSigned, ta.status.FlowStatus())

	ta.submit(t, &hostproto.AuthCardRequest{
		Result: &hostproto.AuthCardResult{Verified: true},
	})

	resp = ta.response(t)
	require.NotNil(t, resp.FlowComplete)

	assert.NoError(t, waitErr(t, done))
	assert.True(t, ta.card.paired)
	assert.Equal(t, core.AuthCardStatusPairingDone, ta.status.FlowStatus())

	shown := ta.screen.shown()
	require.Len(t, shown, 3)
	heading := fmt.Sprintf(ui.TextTapCard, 2)
	assert.Equal(t, heading+"|"+fmt.Sprintf(ui.TextPlaceCardTillBeep, 3), shown[0])
	assert.Equal(t, heading+"|"+fmt.Sprintf(ui.TextPlaceCardTillBeep, 2), shown[1])
	assert.Equal(t, heading+"|"+fmt.Sprintf(ui.TextPlaceCardTillBeep, 1), shown[2])

	assert.Equal(t, []string{ui.TextAuthCardSuccess}, ta.screen.delayed())
}

// Idle text replaces the beep hint after the challenge when no pairing was
// requested.
func TestAuthCardNoPairingIdleText(t *testing.T) {
	ta := newTestApp(t)
	done := ta.run(initiateQuery(nil, false))

	ta.response(t)
	ta.submit(t, &hostproto.AuthCardRequest{
		Challenge: &hostproto.AuthCardChallenge{Challenge: make([]byte, hostproto.ChallengeSize)},
	})
	ta.response(t)

	ta.submit(t, &hostproto.AuthCardRequest{
		Result: &hostproto.AuthCardResult{Verified: true},
	})
	resp := ta.response(t)
	require.NotNil(t, resp.FlowComplete)
	assert.NoError(t, waitErr(t, done))

	shown := ta.screen.shown()
	require.Len(t, shown, 3)
	assert.Equal(t, ui.TextTapACard+"|"+ui.TextProcessing, shown[2])
	assert.False(t, ta.card.paired)
}

// Scenario: verification failure reported while only the serial is signed.
func TestAuthCardSerialVerificationFailure(t *testing.T) {
	ta := newTestApp(t)
	ta.app.Timeout = 100 * time.Millisecond
	done := ta.run(initiateQuery(nil, false))

	ta.response(t)
	ta.submit(t, &hostproto.AuthCardRequest{
		Result: &hostproto.AuthCardResult{Verified: false},
	})

	resp := ta.response(t)
	require.NotNil(t, resp.FlowComplete)
	assert.Equal(t, core.AuthCardStatusSerialSigned, ta.status.FlowStatus())
	assert.Equal(t, []string{ui.TextAuthCardFailed}, ta.screen.delayed())

	// the session is not terminal after a failure response; it times out
	assert.ErrorIs(t, waitErr(t, done), ErrAbort)
}

// Scenario: timeout during the sign-serial card wait.
func TestAuthCardTimeoutDuringCardWait(t *testing.T) {
	ta := newTestApp(t)
	ta.reader.detectOnSelect = false
	ta.app.Timeout = 50 * time.Millisecond

	done := ta.run(initiateQuery(nil, false))
	assert.ErrorIs(t, waitErr(t, done), ErrAbort)

	assert.Empty(t, ta.sent)
	assert.Equal(t, core.AuthCardStatusUserConfirmed, ta.status.FlowStatus())
}

// A session whose first query is not initiate is ignored entirely.
func TestAuthCardNonInitiateFirstQueryIgnored(t *testing.T) {
	ta := newTestApp(t)
	ta.status.SetFlowStatus(core.AuthCardStatusChallengeSigned)

	query := &hostproto.Query{AuthCard: &hostproto.AuthCardRequest{
		Result: &hostproto.AuthCardResult{Verified: true},
	}}

	assert.NoError(t, ta.app.HandleAuthCard(query))
	assert.Empty(t, ta.sent)
	assert.Equal(t, core.AuthCardStatusChallengeSigned, ta.status.FlowStatus())
}

func TestAuthCardNilQuery(t *testing.T) {
	ta := newTestApp(t)
	assert.ErrorIs(t, ta.app.HandleAuthCard(nil), ErrInvalidArgs)
}

func TestAuthCardUserRejection(t *testing.T) {
	ta := newTestApp(t)
	ta.screen.confirm = false

	done := ta.run(initiateQuery(nil, false))
	assert.ErrorIs(t, waitErr(t, done), ErrUserRejected)
	assert.Empty(t, ta.sent)
	assert.Equal(t, core.AuthCardStatusInit, ta.status.FlowStatus())
}

func TestAuthCardSignSerialFailure(t *testing.T) {
	ta := newTestApp(t)
	ta.card.serialErr = errors.New("card gone")

	done := ta.run(initiateQuery(nil, false))
	assert.ErrorIs(t, waitErr(t, done), ErrCardOperation)
	assert.Empty(t, ta.sent)
}

func TestAuthCardPairingFailure(t *testing.T) {
	ta := newTestApp(t)
	ta.card.pairErr = errors.New("write refused")

	done := ta.run(initiateQuery(nil, true))
	ta.response(t)

	ta.submit(t, &hostproto.AuthCardRequest{
		Challenge: &hostproto.AuthCardChallenge{Challenge: make([]byte, hostproto.ChallengeSize)},
	})
	ta.response(t)

	ta.submit(t, &hostproto.AuthCardRequest{
		Result: &hostproto.AuthCardResult{Verified: true},
	})

	assert.ErrorIs(t, waitErr(t, done), ErrCardOperation)
	assert.NotEqual(t, core.AuthCardStatusPairingDone, ta.status.FlowStatus())
}

func TestAuthCardUndecodableHostMessage(t *testing.T) {
	ta := newTestApp(t)
	done := ta.run(initiateQuery(nil, false))

	ta.response(t)
	ta.engine.SubmitHostMessage([]byte{0xFF, 0x00, 0xFF})

	assert.ErrorIs(t, waitErr(t, done), ErrDecodingFailed)
}

// Phase gating checked directly against the dispatch handler.
func TestAuthCardPhaseGating(t *testing.T) {
	queryFor := func(req *hostproto.AuthCardRequest) *authCardData {
		return &authCardData{query: hostproto.Query{AuthCard: req}}
	}

	initiate := queryFor(&hostproto.AuthCardRequest{Initiate: &hostproto.AuthCardInitiate{}})
	challenge := queryFor(&hostproto.AuthCardRequest{
		Challenge: &hostproto.AuthCardChallenge{Challenge: make([]byte, hostproto.ChallengeSize)},
	})
	resultTrue := queryFor(&hostproto.AuthCardRequest{Result: &hostproto.AuthCardResult{Verified: true}})
	unknown := queryFor(&hostproto.AuthCardRequest{})
	multiKind := queryFor(&hostproto.AuthCardRequest{
		Challenge: &hostproto.AuthCardChallenge{Challenge: make([]byte, hostproto.ChallengeSize)},
		Result:    &hostproto.AuthCardResult{Verified: true},
	})

	cases := []struct {
		name  string
		data  *authCardData
		phase core.AuthCardStatus
		want  error
	}{
		{"result at init", resultTrue, core.AuthCardStatusInit, ErrInvalidState},
		{"result at user-confirmed", resultTrue, core.AuthCardStatusUserConfirmed, ErrInvalidState},
		{"true result before challenge", resultTrue, core.AuthCardStatusSerialSigned, ErrInvalidState},
		{"challenge at init", challenge, core.AuthCardStatusInit, ErrInvalidState},
		{"challenge after challenge", challenge, core.AuthCardStatusChallengeSigned, ErrInvalidState},
		{"initiate after init", initiate, core.AuthCardStatusSerialSigned, ErrInvalidState},
		{"unknown request", unknown, core.AuthCardStatusInit, ErrUnknownQuery},
		{"multiple kinds set", multiKind, core.AuthCardStatusSerialSigned, ErrInvalidArgs},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ta := newTestApp(t)
			ta.status.SetFlowStatus(tc.phase)

			var resp hostproto.AuthCardResponse
			err := ta.app.handleAuthCardQuery(tc.data, &resp)
			assert.ErrorIs(t, err, tc.want)
			assert.False(t, resp.HasResponse())
			assert.Equal(t, tc.phase, ta.status.FlowStatus())
		})
	}
}

func TestAuthCardChallengeBadSize(t *testing.T) {
	ta := newTestApp(t)
	ta.status.SetFlowStatus(core.AuthCardStatusSerialSigned)

	data := &authCardData{query: hostproto.Query{AuthCard: &hostproto.AuthCardRequest{
		Challenge: &hostproto.AuthCardChallenge{Challenge: make([]byte, 8)},
	}}}

	var resp hostproto.AuthCardResponse
	assert.ErrorIs(t, ta.app.handleAuthCardQuery(data, &resp), ErrInvalidArgs)
}
