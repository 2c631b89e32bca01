package client

import (
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serverPort extracts the listen port of an httptest server so probe
// functions that build their own 127.0.0.1 URLs can hit it.
func serverPort(t *testing.T, server *httptest.Server) int {
	t.Helper()

	u, err := url.Parse(server.URL)
	require.NoError(t, err)
	_, portStr, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return port
}

func TestGetPort(t *testing.T) {
	// Default port
	t.Setenv("AURA_PORT", "")
	assert.Equal(t, DefaultPort, GetPort())

	// Environment override
	t.Setenv("AURA_PORT", "12345")
	assert.Equal(t, 12345, GetPort())

	// Invalid value falls back to the default
	t.Setenv("AURA_PORT", "invalid")
	assert.Equal(t, DefaultPort, GetPort())

	t.Setenv("AURA_PORT", "-3")
	assert.Equal(t, DefaultPort, GetPort())
}

func TestIsRunning(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/health" {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status":"ready","version":"1.0.0"}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	assert.True(t, IsRunning(serverPort(t, server)))
	assert.False(t, IsRunning(65031)) // nothing listening
}

func TestIsPortInUse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	assert.True(t, IsPortInUse(serverPort(t, server)))
	assert.False(t, IsPortInUse(65031))
}

func TestDaemonVersion(t *testing.T) {
	tests := []struct {
		name           string
		serverResponse func(w http.ResponseWriter, r *http.Request)
		expected       string
	}{
		{
			name: "returns version from daemon",
			serverResponse: func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/api/version" {
					w.Write([]byte(`{"version":"1.2.3"}`))
				}
			},
			expected: "1.2.3",
		},
		{
			name: "empty on 404",
			serverResponse: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			},
			expected: "",
		},
		{
			name: "empty on invalid JSON",
			serverResponse: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("not json"))
			},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(tt.serverResponse))
			defer server.Close()

			assert.Equal(t, tt.expected, DaemonVersion(serverPort(t, server)))
		})
	}

	assert.Equal(t, "", DaemonVersion(65031))
}

func TestNeedsRestart(t *testing.T) {
	tests := []struct {
		name    string
		running string
		want    string
		restart bool
	}{
		{name: "matching versions", running: "1.0.0", want: "1.0.0", restart: false},
		{name: "mismatched versions", running: "1.0.0", want: "2.0.0", restart: true},
		{name: "dirty vs clean", running: "1.0.0", want: "1.0.0-dirty", restart: true},
		{name: "unknown running version", running: "", want: "1.0.0", restart: false},
		{name: "caller accepts any version", running: "1.0.0", want: "", restart: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.restart, needsRestart(tt.running, tt.want))
		})
	}
}

func TestKillProcessOnPort_NoProcess(t *testing.T) {
	// No listener on the port: lsof matches nothing and that is not an error.
	require.NoError(t, KillProcessOnPort(65031))
}

func TestFindDaemonBinary_NoPanic(t *testing.T) {
	// Result depends on the host; just exercise the lookup chain.
	t.Setenv("AURA_DATA_DIR", t.TempDir())
	result := findDaemonBinary()
	t.Logf("findDaemonBinary returned: %q", result)
}

func TestDataDir(t *testing.T) {
	t.Setenv("AURA_DATA_DIR", "/tmp/aura-test")
	assert.Equal(t, "/tmp/aura-test", dataDir())

	t.Setenv("AURA_DATA_DIR", "")
	assert.Contains(t, dataDir(), ".aura")
}
