package device

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
)

// Executor runs a command line on the device with elevated rights.
type Executor interface {
	Exec(ctx context.Context, cmd string) ([]byte, error)
	Ping(ctx context.Context) error
}

// BrokerBackend drives the device through the privileged command broker.
type BrokerBackend struct {
	*core
	broker Executor
}

// NewBrokerBackend creates a backend on top of a broker connection.
func NewBrokerBackend(broker Executor, opts Options) *BrokerBackend {
	b := &BrokerBackend{broker: broker}
	b.core = newCore("broker", b, opts)
	return b
}

func (b *BrokerBackend) run(ctx context.Context, cmd string) (string, error) {
	out, err := b.broker.Exec(ctx, cmd)
	return string(out), err
}

func (b *BrokerBackend) capture(ctx context.Context, cmd string) ([]byte, error) {
	return b.broker.Exec(ctx, cmd)
}

func (b *BrokerBackend) Ping(ctx context.Context) error {
	if err := b.broker.Ping(ctx); err != nil {
		return fmt.Errorf("%w: broker unreachable: %v", ErrNotConnected, err)
	}
	return nil
}

// LaunchApp brings the app forward. With a target display it first tries to
// move an existing task there, then falls back to fresh launches.
func (b *BrokerBackend) LaunchApp(ctx context.Context, app string) error {
	pkg, err := b.launchTarget(ctx, app)
	if err != nil {
		return err
	}

	if b.display != "" && b.moveExistingTask(ctx, pkg) {
		b.focusDisplay(ctx)
		log.Debug().Str("package", pkg).Str("display", b.display).Msg("moved existing task")
		return Sleep(ctx, b.timing.Launch)
	}

	component := b.launcherComponent(ctx, pkg)
	if _, ok := b.tryCandidates(ctx, launchCandidates(pkg, component, b.display)); !ok {
		return fmt.Errorf("failed to launch %s", pkg)
	}
	if b.display != "" {
		b.focusDisplay(ctx)
	}
	return Sleep(ctx, b.timing.Launch)
}

func launchCandidates(pkg, component, display string) []string {
	pkg = quote(pkg)
	if component != "" {
		component = quote(component)
	}
	var cmds []string
	if display != "" {
		if component != "" {
			cmds = append(cmds,
				fmt.Sprintf("cmd activity start-activity --user 0 --display %s --windowingMode 1 --activity-reorder-to-front -n %s -f 0x10000000", display, component),
				fmt.Sprintf("cmd activity start-activity --user 0 --display %s -n %s -f 0x10000000", display, component),
				fmt.Sprintf("am start --display %s -n %s -f 0x10000000", display, component),
			)
		}
		return append(cmds,
			fmt.Sprintf("am start --display %s -a %s -c %s -p %s", display, launcherAction, launcherCategory, pkg),
			fmt.Sprintf("monkey --display %s -p %s -c %s 1", display, pkg, launcherCategory),
		)
	}
	if component != "" {
		cmds = append(cmds, fmt.Sprintf("am start --activity-reorder-to-front -n %s", component))
	}
	return append(cmds,
		fmt.Sprintf("am start -a %s -c %s -p %s", launcherAction, launcherCategory, pkg),
		fmt.Sprintf("monkey -p %s -c %s 1", pkg, launcherCategory),
	)
}

// launcherComponent resolves pkg's launcher activity as "pkg/.Activity".
func (b *BrokerBackend) launcherComponent(ctx context.Context, pkg string) string {
	out, err := b.run(ctx, fmt.Sprintf("cmd package resolve-activity --brief -a %s -c %s %s", launcherAction, launcherCategory, quote(pkg)))
	if err != nil {
		return ""
	}
	return parseComponent(out, pkg)
}

func parseComponent(out, pkg string) string {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if strings.HasPrefix(line, pkg+"/") && !strings.Contains(line, " ") {
			return line
		}
	}
	return ""
}

var (
	taskIDPattern     = regexp.MustCompile(`taskId=(\d+)`)
	taskHeaderPattern = regexp.MustCompile(`Task\{[^}]*#(\d+)`)
)

// FindTaskIDs returns ids of tasks in a `dumpsys activity activities` dump
// whose block mentions pkg.
func FindTaskIDs(dump, pkg string) []string {
	var (
		ids     []string
		seen    = make(map[string]bool)
		current string
	)
	for _, line := range strings.Split(dump, "\n") {
		if m := taskHeaderPattern.FindStringSubmatch(line); m != nil {
			current = m[1]
		} else if m := taskIDPattern.FindStringSubmatch(line); m != nil {
			current = m[1]
		}
		if current != "" && strings.Contains(line, pkg+"/") && !seen[current] {
			seen[current] = true
			ids = append(ids, current)
		}
	}
	return ids
}

func (b *BrokerBackend) moveExistingTask(ctx context.Context, pkg string) bool {
	dump, err := b.run(ctx, "dumpsys activity activities")
	if err != nil {
		return false
	}
	for _, id := range FindTaskIDs(dump, pkg) {
		cmds := []string{
			fmt.Sprintf("cmd activity task move-to-display %s %s", id, b.display),
			fmt.Sprintf("cmd activity move-task-to-display %s %s", id, b.display),
			fmt.Sprintf("cmd activity move-task %s %s", id, b.display),
			fmt.Sprintf("am task move-to-display %s %s", id, b.display),
		}
		if _, ok := b.tryCandidates(ctx, cmds); ok {
			return true
		}
	}
	return false
}

func (b *BrokerBackend) focusDisplay(ctx context.Context) {
	cmds := []string{
		"cmd input set-focused-display " + b.display,
		"wm set-focused-display " + b.display,
	}
	if _, ok := b.tryCandidates(ctx, cmds); !ok {
		log.Debug().Str("display", b.display).Msg("could not focus display")
	}
}
