package flagx

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

var serverFlags = []string{"-h", "-p", "-d", "-s", "-activation"}

func TestFilterArgs(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"separate values", []string{"-p", "3001", "-d", "postgres://relay"}, []string{"-p", "3001", "-d", "postgres://relay"}},
		{"equals form", []string{"-activation=false", "-s=hunter2"}, []string{"-activation=false", "-s=hunter2"}},
		{"config file flag is dropped", []string{"-c", "relay.json", "-p", "3001"}, []string{"-p", "3001"}},
		{"unknown equals flag is dropped", []string{"-config=relay.json", "-h", "127.0.0.1"}, []string{"-h", "127.0.0.1"}},
		{"bool flag followed by flag", []string{"-activation", "-p", "80"}, []string{"-activation", "-p", "80"}},
		{"trailing flag without value", []string{"-s"}, []string{"-s"}},
		{"positional args ignored", []string{"serve", "now"}, []string{}},
		{"empty", nil, []string{}},
		{"repeated flag keeps order", []string{"-p", "1", "-p", "2"}, []string{"-p", "1", "-p", "2"}},
		{"dash value not consumed", []string{"-d", "-p", "9"}, []string{"-d", "-p", "9"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterArgs(tt.args, serverFlags))
		})
	}
}

func TestConfigFileFlag(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	t.Run("short -c with value", func(t *testing.T) {
		os.Args = []string{"testbin", "-c", "/etc/relay/short.json"}
		assert.Equal(t, "/etc/relay/short.json", ConfigFileFlag())
	})

	t.Run("long -config with value", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", "/etc/relay/long.json"}
		assert.Equal(t, "/etc/relay/long.json", ConfigFileFlag())
	})

	t.Run("unknown flags are ignored", func(t *testing.T) {
		os.Args = []string{"testbin", "-x", "1", "-y", "2"}
		assert.Empty(t, ConfigFileFlag())
	})

	t.Run("multiple flags, last wins", func(t *testing.T) {
		os.Args = []string{"testbin", "-c", "/path/1.json", "-config", "/path/2.json"}
		assert.Equal(t, "/path/2.json", ConfigFileFlag())
	})
}
