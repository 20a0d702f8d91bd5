package manifest

import (
	"fmt"
	"slices"
	"strings"
)

// Requirement states whether a capability function must be imported by a
// module for the family to be stripped.
type Requirement int

const (
	// Required entries must be present; a missing one aborts stubbing.
	Required Requirement = iota + 1
	// Optional entries are stubbed when present and skipped when absent.
	Optional
)

func (r Requirement) String() string {
	switch r {
	case Required:
		return "required"
	case Optional:
		return "optional"
	default:
		return fmt.Sprintf("requirement(%d)", int(r))
	}
}

// MarshalText encodes the requirement as its lower-case name.
func (r Requirement) MarshalText() ([]byte, error) {
	switch r {
	case Required, Optional:
		return []byte(r.String()), nil
	}
	return nil, fmt.Errorf("unknown requirement %d", int(r))
}

// UnmarshalText decodes "required" or "optional". An empty value means
// Required.
func (r *Requirement) UnmarshalText(text []byte) error {
	switch string(text) {
	case "", "required":
		*r = Required
	case "optional":
		*r = Optional
	default:
		return fmt.Errorf("unknown requirement %q", text)
	}
	return nil
}

// FuncRef identifies one import slot. Matching is exact on both fields.
type FuncRef struct {
	Interface string
	Function  string
}

func (f FuncRef) String() string {
	return f.Interface + "#" + f.Function
}

// ImportEntry is one row of an import table.
type ImportEntry struct {
	FuncRef
	Requirement Requirement
}

const (
	importDropPrefix = "[resource-drop]"
	exportDropPrefix = "[dtor]"
)

// Descriptor is the canonical description of one capability function. Both
// the import key and the export name are derived from it.
type Descriptor struct {
	Interface   string
	Function    string
	Requirement Requirement
}

// ImportRef returns the key under which a guest imports the function.
func (d Descriptor) ImportRef() FuncRef {
	return FuncRef{Interface: d.Interface, Function: d.Function}
}

// ExportName returns the fully-qualified name under which a component
// exports the function. Resource destructors are imported as
// "[resource-drop]X" and exported as "[dtor]X".
func (d Descriptor) ExportName() string {
	fn := d.Function
	if rest, ok := strings.CutPrefix(fn, importDropPrefix); ok {
		fn = exportDropPrefix + rest
	}
	return d.Interface + "#" + fn
}

// Family is a versioned set of capability functions that are disabled
// together.
type Family struct {
	Name        string
	Version     string
	Description string
	Functions   []Descriptor
}

// Imports returns the import table in manifest order.
func (f *Family) Imports() []ImportEntry {
	out := make([]ImportEntry, len(f.Functions))
	for i, d := range f.Functions {
		out[i] = ImportEntry{FuncRef: d.ImportRef(), Requirement: d.Requirement}
	}
	return out
}

// Exports returns the export names in manifest order.
func (f *Family) Exports() []string {
	out := make([]string, len(f.Functions))
	for i, d := range f.Functions {
		out[i] = d.ExportName()
	}
	return out
}

// Interfaces returns the distinct interface names in first-seen order.
func (f *Family) Interfaces() []string {
	var out []string
	for _, d := range f.Functions {
		if !slices.Contains(out, d.Interface) {
			out = append(out, d.Interface)
		}
	}
	return out
}

// Key returns "name@version".
func (f *Family) Key() string {
	return f.Name + "@" + f.Version
}

// Clone returns a deep copy.
func (f *Family) Clone() *Family {
	c := *f
	c.Functions = slices.Clone(f.Functions)
	return &c
}
