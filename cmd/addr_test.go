package cmd

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAddr(t *testing.T) {
	tests := []struct {
		name    string
		addr    string
		wantErr bool
	}{
		{name: "loopback with port", addr: "127.0.0.1:8123"},
		{name: "port only", addr: ":8123"},
		{name: "localhost", addr: "localhost:8080"},
		{name: "auto-assign port", addr: ":0"},
		{name: "ipv6", addr: "[::1]:8123"},
		{name: "missing port", addr: "127.0.0.1", wantErr: true},
		{name: "non-numeric port", addr: ":http", wantErr: true},
		{name: "port too large", addr: ":70000", wantErr: true},
		{name: "whitespace host", addr: "bad host:80", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateAddr(tt.addr)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseServeAddr(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	t.Run("default", func(t *testing.T) {
		os.Args = []string{"kb-engine", "serve"}
		addr, err := parseServeAddr()
		require.NoError(t, err)
		assert.Equal(t, defaultServeAddr, addr)
	})

	t.Run("positional", func(t *testing.T) {
		os.Args = []string{"kb-engine", "serve", ":9000"}
		addr, err := parseServeAddr()
		require.NoError(t, err)
		assert.Equal(t, ":9000", addr)
	})

	t.Run("flag", func(t *testing.T) {
		os.Args = []string{"kb-engine", "serve", "--addr", "0.0.0.0:8123"}
		addr, err := parseServeAddr()
		require.NoError(t, err)
		assert.Equal(t, "0.0.0.0:8123", addr)
	})

	t.Run("invalid", func(t *testing.T) {
		os.Args = []string{"kb-engine", "serve", "not-an-addr"}
		_, err := parseServeAddr()
		assert.Error(t, err)
	})
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abc...", truncate("abcdef", 3))
	// Rune-aware: multibyte text never splits mid-character.
	assert.Equal(t, "世界...", truncate("世界你好", 2))
}

func TestIndent(t *testing.T) {
	assert.Equal(t, "  a\n  b", indent("a\nb", "  "))
}
