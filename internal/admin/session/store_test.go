package session

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeyScheme(t *testing.T) {
	t.Parallel()

	require.Equal(t, "access_token:u1:tok", Key(ClassAccess, "u1", "tok"))
	require.Equal(t, "refresh_token:u1:tok", Key(ClassRefresh, "u1", "tok"))
	require.Equal(t, "user_tokens:u1", IndexKey("u1"))
	require.Equal(t, "access_token:*:tok", Pattern(ClassAccess, "tok"))
}
