package device

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"math/rand"
	"strings"
	"sync"
	"testing"

	imagepkg "phone-agent/internal/image"
	"phone-agent/internal/packages"
)

var testApps = []packages.App{
	{Name: "Settings", Package: "com.android.settings"},
	{Name: "WeChat", Package: "com.tencent.mm"},
}

// fakeRunner records adb invocations and answers from a responder.
type fakeRunner struct {
	mu      sync.Mutex
	calls   [][]string
	respond func(args []string) ([]byte, error)
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string{name}, args...))
	f.mu.Unlock()
	if f.respond == nil {
		return nil, nil
	}
	return f.respond(args)
}

// shellCommands returns the command strings passed to `adb shell`.
func (f *fakeRunner) shellCommands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var cmds []string
	for _, c := range f.calls {
		for i, a := range c {
			if (a == "shell" || a == "exec-out") && i+1 < len(c) {
				cmds = append(cmds, c[i+1])
			}
		}
	}
	return cmds
}

func newTestShell(display string, respond func(cmd string) (string, error)) (*ShellBackend, *fakeRunner) {
	runner := &fakeRunner{}
	if respond != nil {
		runner.respond = func(args []string) ([]byte, error) {
			out, err := respond(args[len(args)-1])
			return []byte(out), err
		}
	}
	b := NewShellBackend(ShellOptions{
		Options: Options{DisplayID: display, Apps: testApps, Image: imagepkg.DefaultOptions()},
		Serial:  "emulator-5554",
		Runner:  runner,
	})
	return b, runner
}

func TestShellPrimitives(t *testing.T) {
	tests := []struct {
		name    string
		display string
		do      func(b Backend) error
		want    []string
	}{
		{"tap", "", func(b Backend) error { return b.Tap(context.Background(), 540, 1200) },
			[]string{"input tap 540 1200"}},
		{"tap on display", "2", func(b Backend) error { return b.Tap(context.Background(), 1, 2) },
			[]string{"input -d 2 tap 1 2"}},
		{"double tap", "", func(b Backend) error { return b.DoubleTap(context.Background(), 5, 6) },
			[]string{"input tap 5 6", "input tap 5 6"}},
		{"long press default", "", func(b Backend) error { return b.LongPress(context.Background(), 5, 6, 0) },
			[]string{"input swipe 5 6 5 6 3000"}},
		{"short swipe clamps to minimum", "", func(b Backend) error { return b.Swipe(context.Background(), 0, 0, 100, 0, 0) },
			[]string{"input swipe 0 0 100 0 1000"}},
		{"long swipe clamps to maximum", "", func(b Backend) error { return b.Swipe(context.Background(), 0, 0, 0, 2000, 0) },
			[]string{"input swipe 0 0 0 2000 2000"}},
		{"explicit swipe duration", "", func(b Backend) error { return b.Swipe(context.Background(), 0, 0, 0, 10, 300) },
			[]string{"input swipe 0 0 0 10 300"}},
		{"back", "", func(b Backend) error { return b.Back(context.Background()) },
			[]string{"input keyevent 4"}},
		{"home on display", "3", func(b Backend) error { return b.Home(context.Background()) },
			[]string{"input -d 3 keyevent 3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, runner := newTestShell(tt.display, nil)
			if err := tt.do(b); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got := runner.shellCommands()
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("commands = %q, want %q", got, tt.want)
			}
			if c := runner.calls[0]; c[0] != "adb" || c[1] != "-s" || c[2] != "emulator-5554" {
				t.Errorf("adb prefix = %q", c[:3])
			}
		})
	}
}

func TestTypeTextSwitchesKeyboard(t *testing.T) {
	b, runner := newTestShell("", func(cmd string) (string, error) {
		switch {
		case strings.HasPrefix(cmd, "settings get"):
			return "com.google.android.inputmethod.latin/com.android.inputmethod.latin.LatinIME\n", nil
		case strings.HasPrefix(cmd, "am broadcast"):
			return "Broadcasting: Intent { act=ADB_INPUT_B64 }\nBroadcast completed: result=0\n", nil
		}
		return "", nil
	})

	if err := b.TypeText(context.Background(), "hello world"); err != nil {
		t.Fatalf("TypeText() error = %v", err)
	}

	got := runner.shellCommands()
	want := []string{
		"settings get secure default_input_method",
		"ime set com.android.adbkeyboard/.AdbIME",
		"am broadcast -a ADB_CLEAR_TEXT",
		"am broadcast -a ADB_INPUT_B64 --es msg aGVsbG8gd29ybGQ=",
	}
	if len(got) != len(want)+1 || strings.Join(got[:len(want)], "|") != strings.Join(want, "|") {
		t.Fatalf("commands =\n%q\nwant prefix\n%q", got, want)
	}
	if restore := got[len(want)]; !strings.HasPrefix(restore, "ime set ") || !strings.Contains(restore, "LatinIME") {
		t.Errorf("restore command = %q", restore)
	}
}

func TestTypeTextFallsBackToInputText(t *testing.T) {
	b, runner := newTestShell("", func(cmd string) (string, error) {
		if strings.HasPrefix(cmd, "settings get") {
			return adbKeyboardIME, nil
		}
		return "", nil
	})

	if err := b.TypeText(context.Background(), "a b"); err != nil {
		t.Fatalf("TypeText() error = %v", err)
	}
	got := runner.shellCommands()
	last := got[len(got)-1]
	if !strings.HasPrefix(last, "input text ") || !strings.Contains(last, "a%sb") {
		t.Errorf("fallback command = %q", last)
	}
	for _, c := range got {
		if strings.HasPrefix(c, "ime set") {
			t.Errorf("keyboard already active, unexpected %q", c)
		}
	}
}

func TestShellLaunchApp(t *testing.T) {
	t.Run("resolved", func(t *testing.T) {
		b, runner := newTestShell("", func(cmd string) (string, error) {
			if cmd == "pm list packages" {
				return "package:com.android.settings\n", nil
			}
			return "Events injected: 1\n", nil
		})
		if err := b.LaunchApp(context.Background(), "settings"); err != nil {
			t.Fatalf("LaunchApp() error = %v", err)
		}
		got := runner.shellCommands()
		if last := got[len(got)-1]; last != "monkey -p com.android.settings -c android.intent.category.LAUNCHER 1" {
			t.Errorf("launch command = %q", last)
		}
	})

	t.Run("unknown app issues no launch", func(t *testing.T) {
		b, runner := newTestShell("", func(cmd string) (string, error) {
			if cmd == "pm list packages" {
				return "package:com.android.settings\n", nil
			}
			return "", nil
		})
		err := b.LaunchApp(context.Background(), "Nonexistent")
		if !errors.Is(err, ErrAppNotFound) {
			t.Fatalf("LaunchApp() error = %v, want ErrAppNotFound", err)
		}
		for _, c := range runner.shellCommands() {
			if strings.HasPrefix(c, "monkey") || strings.HasPrefix(c, "am start") {
				t.Errorf("unexpected launch command %q", c)
			}
		}
	})

	t.Run("shell text never reaches the device", func(t *testing.T) {
		b, runner := newTestShell("", func(cmd string) (string, error) {
			if cmd == "pm list packages" {
				return "", errors.New("pm: broken")
			}
			return "Events injected: 1\n", nil
		})
		if err := b.LaunchApp(context.Background(), "com.x;reboot"); !errors.Is(err, ErrAppNotFound) {
			t.Fatalf("LaunchApp() error = %v, want ErrAppNotFound", err)
		}
		for _, c := range runner.shellCommands() {
			if strings.Contains(c, "reboot") {
				t.Errorf("unexpected command %q", c)
			}
		}
	})

	t.Run("not installed", func(t *testing.T) {
		b, _ := newTestShell("", func(cmd string) (string, error) {
			return "package:com.android.settings\n", nil
		})
		if err := b.LaunchApp(context.Background(), "WeChat"); !errors.Is(err, ErrAppNotFound) {
			t.Fatalf("LaunchApp() error = %v, want ErrAppNotFound", err)
		}
	})

	t.Run("display", func(t *testing.T) {
		b, runner := newTestShell("4", func(cmd string) (string, error) {
			return "Starting: Intent { act=android.intent.action.MAIN }\n", nil
		})
		if err := b.LaunchApp(context.Background(), "com.example.app"); err != nil {
			t.Fatalf("LaunchApp() error = %v", err)
		}
		got := runner.shellCommands()
		want := "am start --display 4 -a android.intent.action.MAIN -c android.intent.category.LAUNCHER -p com.example.app"
		if got[len(got)-1] != want {
			t.Errorf("launch command = %q", got[len(got)-1])
		}
	})
}

func TestCurrentApp(t *testing.T) {
	dump := "  mFocusedApp=ActivityRecord{8d1 u0 com.tencent.mm/.ui.LauncherUI t31}\n  mCurrentFocus=Window{2c u0 com.tencent.mm/com.tencent.mm.ui.LauncherUI}\n"
	b, _ := newTestShell("", func(cmd string) (string, error) { return dump, nil })
	if got := b.CurrentApp(context.Background()); got != "WeChat" {
		t.Errorf("CurrentApp() = %q", got)
	}

	home, _ := newTestShell("", func(cmd string) (string, error) {
		return "  mCurrentFocus=Window{1 u0 com.android.launcher3/.Launcher}\n", nil
	})
	if got := home.CurrentApp(context.Background()); got != "System Home" {
		t.Errorf("CurrentApp() = %q, want System Home", got)
	}
}

func TestScreenshot(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	img := image.NewRGBA(image.Rect(0, 0, 72, 160))
	for i := range img.Pix {
		img.Pix[i] = uint8(rng.Intn(256))
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}

	b, runner := newTestShell("", func(cmd string) (string, error) { return buf.String(), nil })
	shot := b.Screenshot(context.Background())
	if shot.Width != 72 || shot.Height != 160 || shot.Sensitive {
		t.Errorf("unexpected screenshot %dx%d sensitive=%v", shot.Width, shot.Height, shot.Sensitive)
	}
	if c := runner.calls[0]; c[3] != "exec-out" || c[4] != "screencap -p" {
		t.Errorf("capture call = %q", c)
	}

	// Near-black noise keeps the PNG above the minimum capture size.
	dark := image.NewRGBA(image.Rect(0, 0, 72, 160))
	for i := range dark.Pix {
		dark.Pix[i] = uint8(rng.Intn(11))
		if i%4 == 3 {
			dark.Pix[i] = 0xff
		}
	}
	var darkBuf bytes.Buffer
	if err := png.Encode(&darkBuf, dark); err != nil {
		t.Fatal(err)
	}
	secure, _ := newTestShell("", func(cmd string) (string, error) { return darkBuf.String(), nil })
	shot = secure.Screenshot(context.Background())
	if !shot.Sensitive || shot.Width != 1080 || shot.Height != 2400 {
		t.Errorf("black capture = %dx%d sensitive=%v, want 1080x2400 placeholder", shot.Width, shot.Height, shot.Sensitive)
	}

	failing, _ := newTestShell("", func(cmd string) (string, error) { return "", errors.New("closed") })
	shot = failing.Screenshot(context.Background())
	if !shot.Sensitive || shot.Width != 1080 || shot.Height != 2400 {
		t.Errorf("fallback = %dx%d sensitive=%v", shot.Width, shot.Height, shot.Sensitive)
	}
}

func TestParseDevices(t *testing.T) {
	out := "* daemon started successfully\nList of devices attached\nemulator-5554\tdevice\nR58M\toffline\nZX1\tunauthorized\n\n"
	states := ParseDevices(out)
	if len(states) != 3 {
		t.Fatalf("ParseDevices() = %+v", states)
	}

	tests := []struct {
		name   string
		serial string
		states []DeviceState
		want   string
	}{
		{"any device", "", states, ""},
		{"offline serial", "R58M", states, "offline"},
		{"unauthorized serial", "ZX1", states, "unauthorized"},
		{"missing serial", "nope", states, "not found"},
		{"empty", "", nil, "no device"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkDevices(tt.states, tt.serial)
			if tt.want == "" {
				if err != nil {
					t.Errorf("checkDevices() = %v", err)
				}
				return
			}
			if !errors.Is(err, ErrNotConnected) || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("checkDevices() = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestShellPing(t *testing.T) {
	b, runner := newTestShell("", func(cmd string) (string, error) {
		return "List of devices attached\nemulator-5554\tdevice\n", nil
	})
	if err := b.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	if c := runner.calls[0]; c[len(c)-1] != "devices" {
		t.Errorf("ping call = %q", c)
	}
}

func TestMonitor(t *testing.T) {
	b, _ := newTestShell("", func(cmd string) (string, error) { return "", errors.New("adb: not found") })
	err := NewMonitor(b).Check(context.Background())
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("Check() = %v, want ErrNotConnected", err)
	}
}

func TestAdbPrefix(t *testing.T) {
	if got := adbPrefix("", ""); len(got) != 1 || got[0] != "adb" {
		t.Errorf("adbPrefix() = %q", got)
	}
	if got := adbPrefix("adb", "X"); strings.Join(got, " ") != "adb -s X" {
		t.Errorf("adbPrefix() = %q", got)
	}
}
