package manifest

import (
	"embed"
	"io/fs"
	"path"
	"sort"
	"sync"

	"github.com/Masterminds/semver/v3"

	"github.com/wippyai/wasm-virt/errors"
)

//go:embed manifests/*.yaml
var embedded embed.FS

// Registry is a read-only set of families keyed by name and version. It is
// safe for concurrent use.
type Registry struct {
	families map[string][]*Family // versions ascending
}

var defaultRegistry = sync.OnceValue(func() *Registry {
	r, err := LoadFS(embedded, "manifests/*.yaml")
	if err != nil {
		panic("manifest: embedded manifests are invalid: " + err.Error())
	}
	return r
})

// Default returns the registry of manifests shipped with the module.
func Default() *Registry {
	return defaultRegistry()
}

// NewRegistry builds a registry from decoded families. Two families with the
// same name and semver-equal versions are an error.
func NewRegistry(families ...*Family) (*Registry, error) {
	r := &Registry{families: make(map[string][]*Family)}
	for _, f := range families {
		if err := Validate(f); err != nil {
			return nil, err
		}
		version := semver.MustParse(f.Version)
		for _, existing := range r.families[f.Name] {
			if semver.MustParse(existing.Version).Equal(version) {
				return nil, errors.InvalidData(errors.PhaseManifest, []string{f.Key()}, "duplicate family version")
			}
		}
		r.families[f.Name] = append(r.families[f.Name], f.Clone())
	}
	for _, versions := range r.families {
		sort.Slice(versions, func(i, j int) bool {
			return semver.MustParse(versions[i].Version).LessThan(semver.MustParse(versions[j].Version))
		})
	}
	return r, nil
}

// LoadFS decodes every file matching pattern in fsys.
func LoadFS(fsys fs.FS, pattern string) (*Registry, error) {
	names, err := fs.Glob(fsys, pattern)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseManifest, errors.KindInvalidInput, err, "bad manifest pattern")
	}
	families := make([]*Family, 0, len(names))
	for _, name := range names {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, errors.Load("read manifest "+name, err)
		}
		f, err := DecodeBytes(data)
		if err != nil {
			return nil, errors.New(errors.PhaseManifest, errors.KindInvalidData).
				Path(path.Base(name)).Cause(err).Build()
		}
		families = append(families, f)
	}
	return NewRegistry(families...)
}

// With returns a registry that holds the families of r plus extra.
func (r *Registry) With(extra ...*Family) (*Registry, error) {
	return NewRegistry(append(r.All(), extra...)...)
}

// Lookup returns a copy of the family with exactly the given version.
func (r *Registry) Lookup(family, version string) (*Family, error) {
	versions, ok := r.families[family]
	if !ok {
		return nil, errors.NotFound(errors.PhaseManifest, "family", family)
	}
	for _, f := range versions {
		if f.Version == version {
			return f.Clone(), nil
		}
	}
	return nil, errors.NotFound(errors.PhaseManifest, "family version", family+"@"+version)
}

// Latest returns a copy of the highest version of a family by semver
// precedence. Release candidates sort before the release.
func (r *Registry) Latest(family string) (*Family, error) {
	versions, ok := r.families[family]
	if !ok || len(versions) == 0 {
		return nil, errors.NotFound(errors.PhaseManifest, "family", family)
	}
	return versions[len(versions)-1].Clone(), nil
}

// Resolve returns Latest when version is empty and Lookup otherwise.
func (r *Registry) Resolve(family, version string) (*Family, error) {
	if version == "" {
		return r.Latest(family)
	}
	return r.Lookup(family, version)
}

// Families returns the family names in sorted order.
func (r *Registry) Families() []string {
	names := make([]string, 0, len(r.families))
	for name := range r.families {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Versions returns the versions of a family in ascending order.
func (r *Registry) Versions(family string) []string {
	versions := r.families[family]
	out := make([]string, len(versions))
	for i, f := range versions {
		out[i] = f.Version
	}
	return out
}

// All returns copies of every family, ordered by name then version.
func (r *Registry) All() []*Family {
	var out []*Family
	for _, name := range r.Families() {
		for _, f := range r.families[name] {
			out = append(out, f.Clone())
		}
	}
	return out
}
