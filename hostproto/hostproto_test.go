package hostproto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryRoundTrip(t *testing.T) {
	index := uint8(3)
	pair := true
	q := &Query{AuthCard: &AuthCardRequest{
		Initiate: &AuthCardInitiate{CardIndex: &index, PairCard: &pair},
	}}

	raw, err := q.Encode()
	require.NoError(t, err)

	decoded, err := DecodeQuery(raw)
	require.NoError(t, err)
	require.NotNil(t, decoded.AuthCard)
	require.NotNil(t, decoded.AuthCard.Initiate)
	assert.Equal(t, uint8(3), *decoded.AuthCard.Initiate.CardIndex)
	assert.True(t, *decoded.AuthCard.Initiate.PairCard)
	assert.Nil(t, decoded.AuthCard.Challenge)
	assert.Nil(t, decoded.AuthCard.Result)
}

func TestInitiateOptionalFieldsAbsent(t *testing.T) {
	raw, err := (&Query{AuthCard: &AuthCardRequest{Initiate: &AuthCardInitiate{}}}).Encode()
	require.NoError(t, err)

	decoded, err := DecodeQuery(raw)
	require.NoError(t, err)
	assert.Nil(t, decoded.AuthCard.Initiate.CardIndex)
	assert.Nil(t, decoded.AuthCard.Initiate.PairCard)
}

func TestResultEncodeRequiresResponse(t *testing.T) {
	_, err := (&Result{}).Encode()
	assert.ErrorIs(t, err, ErrNoRequestSet)

	_, err = (&Result{AuthCard: &AuthCardResponse{}}).Encode()
	assert.ErrorIs(t, err, ErrNoRequestSet)

	raw, err := (&Result{AuthCard: &AuthCardResponse{FlowComplete: &FlowComplete{}}}).Encode()
	require.NoError(t, err)

	decoded, err := DecodeResult(raw)
	require.NoError(t, err)
	assert.NotNil(t, decoded.AuthCard.FlowComplete)
}

func TestDecodeQueryRejectsMultipleKinds(t *testing.T) {
	q := &Query{AuthCard: &AuthCardRequest{
		Challenge: &AuthCardChallenge{Challenge: make([]byte, ChallengeSize)},
		Result:    &AuthCardResult{Verified: true},
	}}
	assert.Equal(t, 2, q.AuthCard.RequestsSet())

	raw, err := q.Encode()
	require.NoError(t, err)

	_, err = DecodeQuery(raw)
	assert.ErrorIs(t, err, ErrMultipleRequestsSet)
}

func TestDecodeQueryGarbage(t *testing.T) {
	_, err := DecodeQuery([]byte{0xFF, 0x00})
	assert.Error(t, err)
}
