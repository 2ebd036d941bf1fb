package api

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/bankroll/bankroll"
)

func TestAuth_IssueAndParse(t *testing.T) {
	auth := NewAuth("secret", time.Hour)
	p := &bankroll.Participant{SessionID: "s1", Token: "t1", Name: "alice"}

	signed, err := auth.Issue(p)
	require.NoError(t, err)

	c, err := auth.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, &Caller{Session: "s1", Token: "t1", Manager: false}, c)
}

func TestAuth_RejectsForeignTokens(t *testing.T) {
	p := &bankroll.Participant{SessionID: "s1", Token: "t1", Manager: true}

	t.Run("other secret", func(t *testing.T) {
		signed, err := NewAuth("other", time.Hour).Issue(p)
		require.NoError(t, err)
		_, err = NewAuth("secret", time.Hour).Parse(signed)
		assert.Error(t, err)
	})

	t.Run("unsigned", func(t *testing.T) {
		claims := Claims{SessionID: "s1", Manager: true, RegisteredClaims: jwt.RegisteredClaims{Subject: "t1"}}
		unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = NewAuth("secret", time.Hour).Parse(unsigned)
		assert.Error(t, err)
	})

	t.Run("missing session", func(t *testing.T) {
		claims := Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "t1"}}
		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
		require.NoError(t, err)
		_, err = NewAuth("secret", time.Hour).Parse(signed)
		assert.Error(t, err)
	})
}
