package main

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"flag"
	"fmt"
	stdlog "log"
	"os"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/ethereum/go-ethereum/log"

	tapvault "github.com/tapvault/tapvault-go"
	"github.com/tapvault/tapvault-go/cardsim"
	"github.com/tapvault/tapvault-go/core"
	"github.com/tapvault/tapvault-go/hostproto"
	"github.com/tapvault/tapvault-go/manager"
	"github.com/tapvault/tapvault-go/types"
	"github.com/tapvault/tapvault-go/ui"
)

type commandFunc func() error

var (
	logger = log.New("package", "tapvault-go/cmd/tapvault-auth")

	commands map[string]commandFunc

	flagCommand  = flag.String("c", "auth", "command")
	flagCard     = flag.Int("card", -1, "restrict the session to one card slot")
	flagPair     = flag.Bool("pair", false, "pair the card after authentication")
	flagPass     = flag.String("pass", "tapvault-pass", "pairing password")
	flagLogLevel = flag.String("l", "", `Log level, one of: "ERROR", "WARN", "INFO", "DEBUG", and "TRACE"`)
)

func initLogger() {
	if *flagLogLevel == "" {
		*flagLogLevel = "info"
	}

	level, err := log.LvlFromString(strings.ToLower(*flagLogLevel))
	if err != nil {
		stdlog.Fatal(err)
	}

	handler := log.StreamHandler(os.Stderr, log.TerminalFormat(true))
	filteredHandler := log.LvlFilterHandler(level, handler)
	log.Root().SetHandler(filteredHandler)
}

func init() {
	flag.Parse()
	initLogger()

	commands = map[string]commandFunc{
		"auth": commandAuth,
	}
}

func usage() {
	fmt.Printf("\nUsage: tapvault-auth COMMAND [FLAGS]\n\nValid commands:\n\n")
	for name := range commands {
		fmt.Printf("- %s\n", name)
	}
	fmt.Print("\nFlags:\n\n")
	flag.PrintDefaults()
	os.Exit(1)
}

func fail(msg string, ctx ...interface{}) {
	logger.Error(msg, ctx...)
	os.Exit(1)
}

func main() {
	cmd, ok := commands[*flagCommand]
	if !ok {
		logger.Error("unknown command", "command", *flagCommand)
		usage()
	}

	err := cmd()
	if err != nil {
		fail("error executing command", "command", *flagCommand, "error", err)
	}
}

// commandAuth runs a full authentication session: an emulated host drives
// the flow over an in-process link while an emulated card answers through
// the reader. The verification boolean is computed here, off-device, by
// recovering the card key from each signature and checking the factory
// certificate.
func commandAuth() error {
	caKey, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return err
	}

	card, err := cardsim.Issue(caKey, [4]byte{0x54, 0x56, 0x4C, 0x54}, 1)
	if err != nil {
		return err
	}

	slot := uint8(1)
	engine := core.NewEngine()
	reader := cardsim.NewReader(engine, card, slot)

	cs := tapvault.NewCommandSet(reader)
	cs.SetPairingPassword(*flagPass)

	status := &core.StatusRegister{}
	responses := make(chan []byte, 4)
	send := func(raw []byte) error {
		buf := make([]byte, len(raw))
		copy(buf, raw)
		responses <- buf
		return nil
	}

	app := manager.NewApp(status, engine, reader, cs, ui.LogScreen{}, send)

	initiate := &hostproto.AuthCardInitiate{}
	if *flagCard >= 0 {
		index := uint8(*flagCard)
		initiate.CardIndex = &index
	}
	if *flagPair {
		initiate.PairCard = flagPair
	}

	// The host learns card certificates out of band, keyed by serial; here
	// the registry holds the one card we issued.
	caPub := caKey.PubKey().SerializeCompressed()
	registry := map[string][]byte{
		string(card.Serial()): card.Certificate(),
	}

	done := make(chan error, 1)
	go func() {
		done <- app.HandleAuthCard(&hostproto.Query{
			AuthCard: &hostproto.AuthCardRequest{Initiate: initiate},
		})
	}()

	serial, err := verifySerial(caPub, registry, responses)
	if err != nil {
		return err
	}
	logger.Info("card serial verified", "serial", hex.EncodeToString(serial))

	challenge := make([]byte, hostproto.ChallengeSize)
	if _, err := rand.Read(challenge); err != nil {
		return err
	}

	if err := submit(engine, &hostproto.AuthCardRequest{
		Challenge: &hostproto.AuthCardChallenge{Challenge: challenge},
	}); err != nil {
		return err
	}

	verified, err := verifyChallenge(caPub, registry, serial, challenge, responses)
	if err != nil {
		return err
	}
	logger.Info("challenge verified", "verified", verified)

	if err := submit(engine, &hostproto.AuthCardRequest{
		Result: &hostproto.AuthCardResult{Verified: verified},
	}); err != nil {
		return err
	}

	if err := <-done; err != nil {
		return err
	}

	if *flagPair {
		logger.Info("card paired", "key", hex.EncodeToString(card.PairingKey()))
	}

	logger.Info("authentication session complete", "status", status.FlowStatus().String())
	return nil
}

func submit(engine *core.Engine, req *hostproto.AuthCardRequest) error {
	raw, err := (&hostproto.Query{AuthCard: req}).Encode()
	if err != nil {
		return err
	}

	engine.SubmitHostMessage(raw)
	return nil
}

func receive(responses chan []byte) (*hostproto.AuthCardResponse, error) {
	result, err := hostproto.DecodeResult(<-responses)
	if err != nil {
		return nil, err
	}

	if result.AuthCard == nil {
		return nil, fmt.Errorf("response is not an auth card response")
	}

	return result.AuthCard, nil
}

// lookupCertifiedKey resolves a serial to the card public key certified by
// the factory CA.
func lookupCertifiedKey(caPub []byte, registry map[string][]byte, serial []byte) ([]byte, error) {
	raw, ok := registry[string(serial)]
	if !ok {
		return nil, fmt.Errorf("no certificate on record for serial %x", serial)
	}

	cert, err := types.ParseCertificate(raw)
	if err != nil {
		return nil, err
	}

	if err := cert.Verify(caPub); err != nil {
		return nil, err
	}

	return cert.CardPublicKey(), nil
}

func verifySerial(caPub []byte, registry map[string][]byte, responses chan []byte) ([]byte, error) {
	resp, err := receive(responses)
	if err != nil {
		return nil, err
	}

	if resp.SerialSignature == nil {
		return nil, fmt.Errorf("expected a serial signature response")
	}

	serial := resp.SerialSignature.Serial
	cardPub, err := lookupCertifiedKey(caPub, registry, serial)
	if err != nil {
		return nil, err
	}

	msg := sha256.Sum256(serial)
	if !types.VerifyRecoverable(cardPub, msg[:], resp.SerialSignature.Signature) {
		return nil, fmt.Errorf("serial signature does not verify")
	}

	return serial, nil
}

func verifyChallenge(caPub []byte, registry map[string][]byte, serial, challenge []byte, responses chan []byte) (bool, error) {
	resp, err := receive(responses)
	if err != nil {
		return false, err
	}

	if resp.ChallengeSignature == nil {
		return false, fmt.Errorf("expected a challenge signature response")
	}

	cardPub, err := lookupCertifiedKey(caPub, registry, serial)
	if err != nil {
		return false, err
	}

	h := sha256.New()
	h.Write(serial)
	h.Write(challenge)

	return types.VerifyRecoverable(cardPub, h.Sum(nil), resp.ChallengeSignature.Signature), nil
}
