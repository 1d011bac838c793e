package api

import (
	"context"
	"testing"
	"time"

	"github.com/nimda/routeros-brute/internal/testutil"
	"github.com/nimda/routeros-brute/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbeModern(t *testing.T) {
	router := testutil.NewFakeRouter(t, testutil.ModeModern, map[string]string{"admin": "secret"})
	client := NewClient(router.Host(), WithPort(router.Port()), WithTimeout(time.Second))

	res, err := client.Probe(context.Background(), "admin", "wrong")
	require.NoError(t, err)
	assert.False(t, res.Legacy)
	assert.Equal(t, ReplyTrap, res.First)
	require.Len(t, res.Sentences, 2)
	assert.Equal(t, "!trap", res.Sentences[0][0])
	assert.Equal(t, []string{"!done"}, res.Sentences[1])

	res, err = client.Probe(context.Background(), "admin", "secret")
	require.NoError(t, err)
	assert.Equal(t, ReplyPlainSuccess, res.First)
	assert.Len(t, res.Sentences, 1)
}

func TestProbeLegacyDoesNotAnswerChallenge(t *testing.T) {
	router := testutil.NewFakeRouter(t, testutil.ModeLegacy, map[string]string{"admin": "secret"})
	client := NewClient(router.Host(), WithPort(router.Port()), WithTimeout(time.Second))

	res, err := client.Probe(context.Background(), "admin", "secret")
	require.NoError(t, err)
	assert.True(t, res.Legacy)
	assert.Equal(t, ReplyChallenge, res.First)
	assert.Len(t, res.Sentences, 1)
	assert.Equal(t, []string{"admin:secret"}, router.Logins())
}

func TestProbeHangup(t *testing.T) {
	router := testutil.NewFakeRouter(t, testutil.ModeHangup, nil)
	client := NewClient(router.Host(), WithPort(router.Port()), WithTimeout(time.Second))

	_, err := client.Probe(context.Background(), "admin", "")
	require.Error(t, err)
	assert.True(t, utils.IsTransient(err))
}
