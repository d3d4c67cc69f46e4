package relayctl

import (
	"bytes"
	"errors"
	"testing"

	"github.com/dmitrijs2005/vaultrelay/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubReadPassword(t *testing.T, b []byte, err error) *int {
	t.Helper()
	calls := 0
	orig := readPassword
	readPassword = func(int) ([]byte, error) {
		calls++
		return b, err
	}
	t.Cleanup(func() { readPassword = orig })
	return &calls
}

func TestResolveSecret(t *testing.T) {
	t.Run("flag wins", func(t *testing.T) {
		t.Setenv(common.AdminSecretEnv, "from-env")
		calls := stubReadPassword(t, []byte("typed"), nil)

		s, err := resolveSecret("from-flag", &bytes.Buffer{})
		require.NoError(t, err)
		assert.Equal(t, "from-flag", s)
		assert.Zero(t, *calls)
	})

	t.Run("env before prompt", func(t *testing.T) {
		t.Setenv(common.AdminSecretEnv, "from-env")
		calls := stubReadPassword(t, []byte("typed"), nil)

		s, err := resolveSecret("", &bytes.Buffer{})
		require.NoError(t, err)
		assert.Equal(t, "from-env", s)
		assert.Zero(t, *calls)
	})

	t.Run("prompt", func(t *testing.T) {
		t.Setenv(common.AdminSecretEnv, "")
		calls := stubReadPassword(t, []byte(" typed \n"), nil)
		var out bytes.Buffer

		s, err := resolveSecret("", &out)
		require.NoError(t, err)
		assert.Equal(t, "typed", s)
		assert.Equal(t, 1, *calls)
		assert.Equal(t, "Admin secret: \n", out.String())
	})

	t.Run("empty prompt", func(t *testing.T) {
		t.Setenv(common.AdminSecretEnv, "")
		stubReadPassword(t, nil, nil)

		_, err := resolveSecret("", &bytes.Buffer{})
		assert.ErrorIs(t, err, errEmptySecret)
	})

	t.Run("terminal error", func(t *testing.T) {
		t.Setenv(common.AdminSecretEnv, "")
		boom := errors.New("not a terminal")
		stubReadPassword(t, nil, boom)

		_, err := resolveSecret("", &bytes.Buffer{})
		assert.ErrorIs(t, err, boom)
	})
}
