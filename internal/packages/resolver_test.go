package packages

import (
	"context"
	"errors"
	"testing"
	"time"
)

var testApps = []App{
	{"Settings", "com.android.settings"},
	{"WeChat", "com.tencent.mm"},
	{"微信", "com.tencent.mm"},
	{"Google Maps", "com.google.android.apps.maps"},
	{"Maps Lite", "com.example.mapslite"},
}

func staticLister(out string, calls *int) Lister {
	return func(ctx context.Context) (string, error) {
		*calls++
		return out, nil
	}
}

func TestResolve(t *testing.T) {
	listing := "package:com.example.notes\npackage:com.example.notepad.pro\npackage:org.notes\nnot a package line\npackage:bad/entry\n"

	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"exact", "Settings", "com.android.settings"},
		{"case insensitive", "settings", "com.android.settings"},
		{"trimmed", "  WeChat ", "com.tencent.mm"},
		{"chinese alias", "微信", "com.tencent.mm"},
		{"substring first in table order", "maps", "com.google.android.apps.maps"},
		{"package passthrough", "com.foo.bar", "com.foo.bar"},
		{"shell text is not a package", "com.x;reboot", ""},
		{"shortest installed match", "notes", "org.notes"},
		{"no match", "Nonexistent", ""},
		{"empty", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			r := NewResolver(testApps, staticLister(listing, &calls))
			if got := r.Resolve(context.Background(), tt.query); got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.query, got, tt.want)
			}
		})
	}
}

func TestIsPackageName(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"com.android.settings", true},
		{"com.tencent.mm", true},
		{"a.b_c.D9", true},
		{"settings", false},
		{"com.x;reboot", false},
		{"com.x reboot", false},
		{"com.x$(id)", false},
		{"1com.x", false},
		{"com..x", false},
		{"com.x.", false},
	}
	for _, tt := range tests {
		if got := IsPackageName(tt.in); got != tt.want {
			t.Errorf("IsPackageName(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestResolveTieBreaksLexicographically(t *testing.T) {
	calls := 0
	r := NewResolver(testApps, staticLister("package:b.zz\npackage:a.zz\npackage:c.zzz\n", &calls))
	if got := r.Resolve(context.Background(), "zz"); got != "a.zz" {
		t.Errorf("Resolve() = %q, want a.zz", got)
	}
}

func TestIndexTTL(t *testing.T) {
	calls := 0
	r := NewResolver(testApps, staticLister("package:com.a\n", &calls))
	now := time.Unix(1000, 0)
	r.now = func() time.Time { return now }

	r.Index(context.Background(), false)
	r.Index(context.Background(), false)
	if calls != 1 {
		t.Fatalf("expected cached listing, got %d calls", calls)
	}

	now = now.Add(DefaultTTL + time.Second)
	r.Index(context.Background(), false)
	if calls != 2 {
		t.Fatalf("expected refresh after TTL, got %d calls", calls)
	}

	r.Index(context.Background(), true)
	if calls != 3 {
		t.Fatalf("expected forced refresh, got %d calls", calls)
	}
}

func TestIndexKeepsSnapshotOnFailure(t *testing.T) {
	fail := false
	r := NewResolver(testApps, func(ctx context.Context) (string, error) {
		if fail {
			return "", errors.New("device gone")
		}
		return "package:com.a\n", nil
	})

	r.Index(context.Background(), true)
	fail = true
	ix := r.Index(context.Background(), true)
	if !ix.Has("com.a") {
		t.Error("snapshot dropped after failed refresh")
	}
}

func TestInstalled(t *testing.T) {
	calls := 0
	r := NewResolver(testApps, staticLister("package:com.a\n", &calls))
	if installed, ok := r.Installed(context.Background(), "com.a"); !installed || !ok {
		t.Errorf("Installed(com.a) = %v, %v", installed, ok)
	}
	if installed, ok := r.Installed(context.Background(), "com.b"); installed || !ok {
		t.Errorf("Installed(com.b) = %v, %v", installed, ok)
	}

	unknown := NewResolver(testApps, nil)
	if _, ok := unknown.Installed(context.Background(), "com.a"); ok {
		t.Error("expected unknown result without a lister")
	}
}

func TestFresh(t *testing.T) {
	now := time.Unix(5000, 0)
	ix := Index{Packages: map[string]struct{}{"a": {}}, RefreshedAt: now, TTL: DefaultTTL}
	if !ix.Fresh(now.Add(DefaultTTL)) {
		t.Error("index should be fresh at exactly TTL")
	}
	if ix.Fresh(now.Add(DefaultTTL + time.Millisecond)) {
		t.Error("index should be stale after TTL")
	}
	empty := Index{RefreshedAt: now, TTL: DefaultTTL}
	if empty.Fresh(now) {
		t.Error("empty index is never fresh")
	}
}

func TestAppName(t *testing.T) {
	r := NewResolver(testApps, nil)
	line := "  mCurrentFocus=Window{1f2 u0 com.tencent.mm/com.tencent.mm.ui.LauncherUI}"
	if name, ok := r.AppName(line); !ok || name != "WeChat" {
		t.Errorf("AppName() = %q, %v", name, ok)
	}
	if _, ok := r.AppName("mCurrentFocus=Window{launcher}"); ok {
		t.Error("expected no match")
	}
}
