package client

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultPort is the daemon's default listen port. Kept in sync with the
// daemon's own settings default.
const DefaultPort = 41717

const (
	probeTimeout = 2 * time.Second
	readyTimeout = 10 * time.Second
	readyPoll    = 100 * time.Millisecond
)

// GetPort returns the daemon port from AURA_PORT, or the default when the
// variable is unset or not a valid port.
func GetPort() int {
	if v := os.Getenv("AURA_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			return port
		}
	}
	return DefaultPort
}

// IsRunning reports whether an aura daemon answers health checks on the port.
func IsRunning(port int) bool {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	health, err := New(port).Health(ctx)
	return err == nil && health.Status != ""
}

// IsPortInUse reports whether anything at all listens on the port.
func IsPortInUse(port int) bool {
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", port), 500*time.Millisecond)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// DaemonVersion returns the running daemon's version, or "" when the daemon
// is unreachable or does not answer.
func DaemonVersion(port int) string {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	version, err := New(port).Version(ctx)
	if err != nil {
		return ""
	}
	return version
}

// KillProcessOnPort terminates whatever listens on the port. A port with no
// listener is not an error.
func KillProcessOnPort(port int) error {
	out, err := exec.Command("lsof", "-ti", fmt.Sprintf(":%d", port)).Output()
	if err != nil {
		// lsof exits nonzero when nothing matches.
		return nil
	}
	for _, field := range strings.Fields(string(out)) {
		pid, err := strconv.Atoi(field)
		if err != nil {
			continue
		}
		if err := terminate(pid); err != nil {
			return fmt.Errorf("stop pid %d on port %d: %w", pid, port, err)
		}
	}
	return nil
}

// terminate sends SIGTERM so the daemon can flush state, escalating to
// SIGKILL when it lingers.
func terminate(pid int) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return nil
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		// Already gone.
		return nil
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if err := proc.Signal(syscall.Signal(0)); err != nil {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return proc.Kill()
}

// needsRestart decides whether a running daemon must be replaced. An empty
// running version means the check is inconclusive, so leave it alone; any
// other mismatch (including -dirty builds) forces a restart.
func needsRestart(runningVersion, wantVersion string) bool {
	if runningVersion == "" || wantVersion == "" {
		return false
	}
	return runningVersion != wantVersion
}

// findDaemonBinary locates the aurad binary: PATH first, then the data
// directory's bin/, then next to the current executable. Returns "" when
// none is found.
func findDaemonBinary() string {
	if path, err := exec.LookPath("aurad"); err == nil {
		return path
	}

	candidates := []string{filepath.Join(dataDir(), "bin", "aurad")}
	if exe, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(exe), "aurad"))
	}
	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}
	return ""
}

// dataDir mirrors the daemon's data directory resolution so the client and
// daemon always agree on where state lives.
func dataDir() string {
	if dir := os.Getenv("AURA_DATA_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".aura"
	}
	return filepath.Join(home, ".aura")
}

// EnsureRunning makes sure an aura daemon is up on the configured port and
// returns that port. A running daemon with a mismatched version is replaced;
// wantVersion "" accepts whatever is running.
func EnsureRunning(wantVersion string) (int, error) {
	port := GetPort()

	if IsRunning(port) {
		running := DaemonVersion(port)
		if !needsRestart(running, wantVersion) {
			return port, nil
		}
		log.Info().
			Str("running", running).
			Str("want", wantVersion).
			Msg("daemon version mismatch, restarting")
		if err := KillProcessOnPort(port); err != nil {
			return 0, fmt.Errorf("stop stale daemon: %w", err)
		}
		// Give the OS a moment to release the port.
		time.Sleep(200 * time.Millisecond)
	} else if IsPortInUse(port) {
		return 0, fmt.Errorf("port %d is in use by something that is not an aura daemon", port)
	}

	if err := spawnDaemon(); err != nil {
		return 0, err
	}
	if err := waitReady(port, readyTimeout); err != nil {
		return 0, err
	}
	return port, nil
}

// spawnDaemon starts aurad detached, with output appended to daemon.log in
// the data directory.
func spawnDaemon() error {
	bin := findDaemonBinary()
	if bin == "" {
		return fmt.Errorf("aurad binary not found in PATH, %s, or next to this executable", filepath.Join(dataDir(), "bin"))
	}

	if err := os.MkdirAll(dataDir(), 0o750); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	logFile, err := os.OpenFile(filepath.Join(dataDir(), "daemon.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return fmt.Errorf("open daemon log: %w", err)
	}
	defer logFile.Close()

	cmd := exec.Command(bin)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", bin, err)
	}

	log.Debug().Str("binary", bin).Int("pid", cmd.Process.Pid).Msg("daemon spawned")
	return cmd.Process.Release()
}

// waitReady polls the daemon until it reports ready or the deadline passes.
func waitReady(port int, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	c := New(port)
	for time.Now().Before(deadline) {
		ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
		health, err := c.Health(ctx)
		cancel()
		if err == nil && health.Status == "ready" {
			return nil
		}
		time.Sleep(readyPoll)
	}
	return fmt.Errorf("daemon did not become ready within %s", timeout)
}
