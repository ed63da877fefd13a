package packages

import (
	"strings"
	"time"
)

// DefaultTTL is how long a package listing stays fresh.
const DefaultTTL = 8 * time.Second

// Index is a snapshot of the packages installed on the device.
type Index struct {
	Packages    map[string]struct{}
	RefreshedAt time.Time
	TTL         time.Duration
}

// Fresh reports whether the snapshot can be served at now without a refresh.
func (ix *Index) Fresh(now time.Time) bool {
	if ix == nil || len(ix.Packages) == 0 {
		return false
	}
	return now.Sub(ix.RefreshedAt) <= ix.TTL
}

// Has reports whether pkg is in the snapshot.
func (ix *Index) Has(pkg string) bool {
	if ix == nil {
		return false
	}
	_, ok := ix.Packages[pkg]
	return ok
}

// ParseList extracts package names from `pm list packages` output. Lines
// that still contain a space or a slash after the prefix are ignored.
func ParseList(out string) map[string]struct{} {
	pkgs := make(map[string]struct{})
	for _, raw := range strings.Split(out, "\n") {
		line := strings.TrimSpace(raw)
		line = strings.TrimPrefix(line, "package:")
		line = strings.TrimSpace(line)
		if line == "" || strings.ContainsAny(line, " /") {
			continue
		}
		pkgs[line] = struct{}{}
	}
	return pkgs
}
