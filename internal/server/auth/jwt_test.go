package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const alice = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"

func TestGenerateAndParseToken(t *testing.T) {
	secret := []byte("test-secret")

	token, err := GenerateToken(alice, secret, time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	identity, err := GetIdentityFromToken(token, secret)
	require.NoError(t, err)
	require.Equal(t, alice, identity)
}

func TestGetIdentityFromToken_WrongSecret(t *testing.T) {
	token, err := GenerateToken(alice, []byte("right"), time.Minute)
	require.NoError(t, err)

	_, err = GetIdentityFromToken(token, []byte("wrong"))
	require.Error(t, err)
}

func TestGetIdentityFromToken_Expired(t *testing.T) {
	token, err := GenerateToken(alice, []byte("s"), -time.Minute)
	require.NoError(t, err)

	_, err = GetIdentityFromToken(token, []byte("s"))
	require.Error(t, err)
}

func TestGetIdentityFromToken_Garbage(t *testing.T) {
	_, err := GetIdentityFromToken("not-a-token", []byte("s"))
	require.Error(t, err)
}
