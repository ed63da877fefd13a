package packages

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Lister returns raw `pm list packages` output from the device.
type Lister func(ctx context.Context) (string, error)

// Resolver maps app names to package names using the static table first and
// the device's installed packages second.
type Resolver struct {
	apps   []App
	lister Lister
	now    func() time.Time

	mu    sync.Mutex
	index Index
}

// NewResolver creates a resolver. A nil apps slice selects DefaultApps.
func NewResolver(apps []App, lister Lister) *Resolver {
	if apps == nil {
		apps = DefaultApps
	}
	return &Resolver{
		apps:   apps,
		lister: lister,
		now:    time.Now,
		index:  Index{TTL: DefaultTTL},
	}
}

var packagePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*(\.[A-Za-z][A-Za-z0-9_]*)+$`)

// IsPackageName reports whether s is a syntactically valid Android package
// name such as "com.android.settings".
func IsPackageName(s string) bool {
	return packagePattern.MatchString(s)
}

// Resolve returns the package for query, or "" when nothing matches.
func (r *Resolver) Resolve(ctx context.Context, query string) string {
	q := strings.TrimSpace(query)
	if q == "" {
		return ""
	}

	if pkg := r.lookupTable(q); pkg != "" {
		return pkg
	}

	if IsPackageName(q) {
		return q
	}

	ix := r.Index(ctx, false)
	ql := strings.ToLower(q)
	var candidates []string
	for pkg := range ix.Packages {
		if strings.Contains(strings.ToLower(pkg), ql) {
			candidates = append(candidates, pkg)
		}
	}
	if len(candidates) == 0 {
		return ""
	}
	sort.Slice(candidates, func(i, j int) bool {
		if len(candidates[i]) != len(candidates[j]) {
			return len(candidates[i]) < len(candidates[j])
		}
		return candidates[i] < candidates[j]
	})
	return candidates[0]
}

func (r *Resolver) lookupTable(q string) string {
	for _, app := range r.apps {
		if app.Name == q {
			return app.Package
		}
	}

	ql := strings.ToLower(q)
	for _, app := range r.apps {
		if strings.ToLower(strings.TrimSpace(app.Name)) == ql {
			return app.Package
		}
	}

	for _, app := range r.apps {
		if app.Package != "" && strings.Contains(strings.ToLower(app.Name), ql) {
			return app.Package
		}
	}
	return ""
}

// Index returns the installed package snapshot, refreshing it when stale or
// when force is set. A failed or empty listing keeps the previous snapshot.
func (r *Resolver) Index(ctx context.Context, force bool) Index {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if !force && r.index.Fresh(now) {
		return r.index
	}
	if r.lister == nil {
		return r.index
	}

	out, err := r.lister(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("package listing failed")
		return r.index
	}
	pkgs := ParseList(out)
	if len(pkgs) > 0 {
		r.index = Index{Packages: pkgs, RefreshedAt: now, TTL: r.index.TTL}
	}
	return r.index
}

// Installed reports whether pkg is installed. ok is false when the device
// listing is unavailable and the answer is unknown.
func (r *Resolver) Installed(ctx context.Context, pkg string) (installed, ok bool) {
	ix := r.Index(ctx, false)
	if len(ix.Packages) == 0 {
		return false, false
	}
	return ix.Has(pkg), true
}

// AppName maps text containing a known package (such as a window focus line)
// to the first table name for that package.
func (r *Resolver) AppName(text string) (string, bool) {
	for _, app := range r.apps {
		if app.Package != "" && strings.Contains(text, app.Package) {
			return app.Name, true
		}
	}
	return "", false
}
