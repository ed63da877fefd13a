package device

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"mvdan.cc/sh/v3/syntax"

	imagepkg "phone-agent/internal/image"
	"phone-agent/internal/packages"
	"phone-agent/internal/screenshot"
)

const (
	adbKeyboardIME = "com.android.adbkeyboard/.AdbIME"
	homeName       = "System Home"

	launcherAction   = "android.intent.action.MAIN"
	launcherCategory = "android.intent.category.LAUNCHER"
)

// commander delivers one shell command line to the device.
type commander interface {
	run(ctx context.Context, cmd string) (string, error)
	capture(ctx context.Context, cmd string) ([]byte, error)
}

// core implements the primitives shared by every backend.
type core struct {
	name      string
	cmd       commander
	display   string
	timing    Timing
	resolver  *packages.Resolver
	imageOpts imagepkg.Options

	fallbackOnce sync.Once
	fallback     *screenshot.Screenshot
}

// Options configure a backend.
type Options struct {
	DisplayID string
	Timing    Timing
	Image     imagepkg.Options
	Apps      []packages.App
}

func newCore(name string, cmd commander, opts Options) *core {
	c := &core{
		name:      name,
		cmd:       cmd,
		display:   opts.DisplayID,
		timing:    opts.Timing,
		imageOpts: opts.Image,
	}
	c.resolver = packages.NewResolver(opts.Apps, func(ctx context.Context) (string, error) {
		return c.cmd.run(ctx, "pm list packages")
	})
	return c
}

// quote renders s as a single POSIX shell word.
func quote(s string) string {
	q, err := syntax.Quote(s, syntax.LangPOSIX)
	if err != nil {
		return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
	}
	return q
}

func (c *core) input(args string) string {
	if c.display != "" {
		return "input -d " + c.display + " " + args
	}
	return "input " + args
}

func (c *core) exec(ctx context.Context, cmd string) error {
	out, err := c.cmd.run(ctx, cmd)
	if err != nil {
		log.Debug().Err(err).Str("backend", c.name).Str("cmd", cmd).Str("out", strings.TrimSpace(out)).Msg("device command failed")
		return fmt.Errorf("%s: %w", cmd, err)
	}
	return nil
}

func (c *core) Name() string {
	return c.name
}

func (c *core) Resolver() *packages.Resolver {
	return c.resolver
}

func (c *core) Tap(ctx context.Context, x, y int) error {
	if err := c.exec(ctx, c.input(fmt.Sprintf("tap %d %d", x, y))); err != nil {
		return err
	}
	return Sleep(ctx, c.timing.Tap)
}

func (c *core) DoubleTap(ctx context.Context, x, y int) error {
	tap := c.input(fmt.Sprintf("tap %d %d", x, y))
	if err := c.exec(ctx, tap); err != nil {
		return err
	}
	if err := Sleep(ctx, c.timing.DoubleInterval); err != nil {
		return err
	}
	if err := c.exec(ctx, tap); err != nil {
		return err
	}
	return Sleep(ctx, c.timing.DoubleTap)
}

func (c *core) LongPress(ctx context.Context, x, y, durationMs int) error {
	if durationMs <= 0 {
		durationMs = DefaultLongPressMs
	}
	if err := c.exec(ctx, c.input(fmt.Sprintf("swipe %d %d %d %d %d", x, y, x, y, durationMs))); err != nil {
		return err
	}
	return Sleep(ctx, c.timing.LongPress)
}

func (c *core) Swipe(ctx context.Context, x0, y0, x1, y1, durationMs int) error {
	if durationMs <= 0 {
		durationMs = swipeDuration(x0, y0, x1, y1)
	}
	if err := c.exec(ctx, c.input(fmt.Sprintf("swipe %d %d %d %d %d", x0, y0, x1, y1, durationMs))); err != nil {
		return err
	}
	return Sleep(ctx, c.timing.swipeSettle(x0, y0, x1, y1))
}

func (c *core) Back(ctx context.Context) error {
	if err := c.exec(ctx, c.input("keyevent 4")); err != nil {
		return err
	}
	return Sleep(ctx, c.timing.Back)
}

func (c *core) Home(ctx context.Context) error {
	if err := c.exec(ctx, c.input("keyevent 3")); err != nil {
		return err
	}
	return Sleep(ctx, c.timing.Home)
}

// TypeText switches to the ADB keyboard when needed, clears the focused
// field, sends text as a base64 broadcast and restores the previous IME.
// Without the ADB keyboard it falls back to `input text`.
func (c *core) TypeText(ctx context.Context, text string) error {
	restore := c.ensureADBKeyboard(ctx)
	defer restore()

	c.clearText(ctx)

	msg := base64.StdEncoding.EncodeToString([]byte(text))
	out, err := c.cmd.run(ctx, "am broadcast -a ADB_INPUT_B64 --es msg "+msg)
	if err != nil || !strings.Contains(out, "Broadcast completed") {
		escaped := strings.ReplaceAll(text, " ", "%s")
		if err := c.exec(ctx, c.input("text "+quote(escaped))); err != nil {
			return err
		}
	}
	return Sleep(ctx, c.timing.Type)
}

func (c *core) clearText(ctx context.Context) {
	out, err := c.cmd.run(ctx, "am broadcast -a ADB_CLEAR_TEXT")
	if err == nil && strings.Contains(out, "Broadcast completed") {
		return
	}
	// Deletes one character at a time while held.
	c.cmd.run(ctx, c.input("keyevent --longpress 67"))
}

func (c *core) ensureADBKeyboard(ctx context.Context) func() {
	current, err := c.cmd.run(ctx, "settings get secure default_input_method")
	current = strings.TrimSpace(current)
	if err != nil || current == "" || strings.Contains(current, adbKeyboardIME) {
		return func() {}
	}
	if _, err := c.cmd.run(ctx, "ime set "+adbKeyboardIME); err != nil {
		return func() {}
	}
	return func() {
		if _, err := c.cmd.run(context.WithoutCancel(ctx), "ime set "+quote(current)); err != nil {
			log.Warn().Err(err).Str("ime", current).Msg("failed to restore input method")
		}
	}
}

// CurrentApp scans the window focus lines for a known package.
func (c *core) CurrentApp(ctx context.Context) string {
	out, err := c.cmd.run(ctx, "dumpsys window")
	if err != nil {
		log.Debug().Err(err).Str("backend", c.name).Msg("dumpsys window failed")
		return homeName
	}
	for _, line := range strings.Split(out, "\n") {
		if !strings.Contains(line, "mCurrentFocus") && !strings.Contains(line, "mFocusedApp") {
			continue
		}
		if name, ok := c.resolver.AppName(line); ok {
			return name
		}
	}
	return homeName
}

func (c *core) Screenshot(ctx context.Context) *screenshot.Screenshot {
	cmd := "screencap -p"
	if c.display != "" {
		cmd = "screencap -d " + c.display + " -p"
	}
	data, err := c.cmd.capture(ctx, cmd)
	if err == nil {
		var shot *screenshot.Screenshot
		if shot, err = screenshot.FromPNG(data, c.imageOpts); err == nil {
			if !shot.Sensitive {
				return shot
			}
			// Secure windows capture as black; send the placeholder instead.
			log.Debug().Str("backend", c.name).Msg("black capture, using placeholder")
			return c.placeholder()
		}
	}
	log.Warn().Err(err).Str("backend", c.name).Msg("screenshot failed, using placeholder")
	return c.placeholder()
}

func (c *core) placeholder() *screenshot.Screenshot {
	c.fallbackOnce.Do(func() {
		c.fallback = screenshot.Fallback(c.imageOpts)
	})
	shot := *c.fallback
	return &shot
}

// launchTarget resolves app and rejects packages known to be missing.
func (c *core) launchTarget(ctx context.Context, app string) (string, error) {
	pkg := c.resolver.Resolve(ctx, app)
	if pkg == "" || !packages.IsPackageName(pkg) {
		return "", fmt.Errorf("%w: %s", ErrAppNotFound, app)
	}
	if installed, known := c.resolver.Installed(ctx, pkg); known && !installed {
		return "", fmt.Errorf("%w: %s (%s is not installed)", ErrAppNotFound, app, pkg)
	}
	return pkg, nil
}

// tryCandidates runs cmds in order and stops at the first success. Output
// mentioning an error counts as a failure since am exits 0 on many of them.
func (c *core) tryCandidates(ctx context.Context, cmds []string) (string, bool) {
	for _, cmd := range cmds {
		out, err := c.cmd.run(ctx, cmd)
		if err == nil && !looksFailed(out) {
			return cmd, true
		}
		log.Debug().Err(err).Str("backend", c.name).Str("cmd", cmd).Str("out", strings.TrimSpace(out)).Msg("candidate failed")
	}
	return "", false
}

func looksFailed(out string) bool {
	return strings.Contains(out, "Error") || strings.Contains(out, "Exception") ||
		strings.Contains(out, "No activities found") || strings.Contains(out, "not found")
}
