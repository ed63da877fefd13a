package device

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	commandTimeout = 20 * time.Second
	devicesTimeout = 8 * time.Second
	androidShell   = "/system/bin/sh"
)

// Runner runs a local program and returns its stdout.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs programs with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return out, fmt.Errorf("%w: %s", err, msg)
		}
		return out, err
	}
	return out, nil
}

// ShellBackend drives the device through the adb client.
type ShellBackend struct {
	*core
	runner Runner
	prefix []string
	serial string
}

// ShellOptions configure a ShellBackend.
type ShellOptions struct {
	Options
	ADBPath string
	Serial  string
	Runner  Runner
}

// NewShellBackend creates an adb backend.
func NewShellBackend(opts ShellOptions) *ShellBackend {
	if opts.Runner == nil {
		opts.Runner = ExecRunner{}
	}
	b := &ShellBackend{
		runner: opts.Runner,
		prefix: adbPrefix(opts.ADBPath, opts.Serial),
		serial: opts.Serial,
	}
	b.core = newCore("adb", b, opts.Options)
	return b
}

// adbPrefix builds the argv prefix. A non-ELF adb (a wrapper script on a
// noexec mount) is started through the Android shell.
func adbPrefix(path, serial string) []string {
	if path == "" {
		path = "adb"
	}
	prefix := []string{path}
	if isScript(path) {
		prefix = []string{androidShell, path}
	}
	if serial != "" {
		prefix = append(prefix, "-s", serial)
	}
	return prefix
}

func isScript(path string) bool {
	if !strings.Contains(path, "/") {
		return false
	}
	if _, err := os.Stat(androidShell); err != nil {
		return false
	}
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	magic := make([]byte, 4)
	if _, err := io.ReadFull(f, magic); err != nil {
		return true
	}
	return !bytes.Equal(magic, []byte{0x7f, 'E', 'L', 'F'})
}

func (b *ShellBackend) adb(ctx context.Context, timeout time.Duration, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	argv := append(append([]string(nil), b.prefix[1:]...), args...)
	return b.runner.Run(ctx, b.prefix[0], argv...)
}

func (b *ShellBackend) run(ctx context.Context, cmd string) (string, error) {
	out, err := b.adb(ctx, commandTimeout, "shell", cmd)
	return string(out), err
}

func (b *ShellBackend) capture(ctx context.Context, cmd string) ([]byte, error) {
	return b.adb(ctx, commandTimeout, "exec-out", cmd)
}

// LaunchApp starts the app's launcher activity, on the configured display
// when there is one.
func (b *ShellBackend) LaunchApp(ctx context.Context, app string) error {
	pkg, err := b.launchTarget(ctx, app)
	if err != nil {
		return err
	}

	var cmds []string
	if b.display != "" {
		cmds = append(cmds, fmt.Sprintf("am start --display %s -a %s -c %s -p %s", b.display, launcherAction, launcherCategory, quote(pkg)))
	}
	cmds = append(cmds, fmt.Sprintf("monkey -p %s -c %s 1", quote(pkg), launcherCategory))

	if _, ok := b.tryCandidates(ctx, cmds); !ok {
		return fmt.Errorf("failed to launch %s", pkg)
	}
	log.Debug().Str("app", app).Str("package", pkg).Msg("app launched")
	return Sleep(ctx, b.timing.Launch)
}

// DeviceState is one line of `adb devices`.
type DeviceState struct {
	Serial string
	State  string
}

// ParseDevices parses `adb devices` output.
func ParseDevices(out string) []DeviceState {
	var states []DeviceState
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "List of devices") || strings.HasPrefix(line, "*") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		states = append(states, DeviceState{Serial: fields[0], State: fields[1]})
	}
	return states
}

// Ping checks `adb devices` for a usable device.
func (b *ShellBackend) Ping(ctx context.Context) error {
	out, err := b.adb(ctx, devicesTimeout, "devices")
	if err != nil {
		return fmt.Errorf("%w: adb devices failed: %v", ErrNotConnected, err)
	}
	return checkDevices(ParseDevices(string(out)), b.serial)
}

func checkDevices(states []DeviceState, serial string) error {
	var offline, unauthorized bool
	for _, s := range states {
		if serial != "" && s.Serial != serial {
			continue
		}
		switch s.State {
		case "device":
			return nil
		case "offline":
			offline = true
		case "unauthorized":
			unauthorized = true
		}
	}
	switch {
	case unauthorized:
		return fmt.Errorf("%w: device unauthorized, accept the USB debugging prompt on the phone", ErrNotConnected)
	case offline:
		return fmt.Errorf("%w: device offline, reconnect it or restart adb", ErrNotConnected)
	case serial != "":
		return fmt.Errorf("%w: device %s not found", ErrNotConnected, serial)
	default:
		return fmt.Errorf("%w: no device attached", ErrNotConnected)
	}
}
