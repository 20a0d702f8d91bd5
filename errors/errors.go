package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseParse    Phase = "parse"    // module decoding
	PhaseEncode   Phase = "encode"   // module re-serialization
	PhaseStub     Phase = "stub"     // import stubbing
	PhasePrune    Phase = "prune"    // export removal
	PhaseManifest Phase = "manifest" // manifest loading and validation
	PhaseVerify   Phase = "verify"   // post-strip verification
	PhaseLoad     Phase = "load"     // reading inputs
)

// Kind categorizes the error
type Kind string

const (
	KindMissingImport          Kind = "missing_import"
	KindMissingExport          Kind = "missing_export"
	KindUnsupportedRequirement Kind = "unsupported_requirement"
	KindCollaborator           Kind = "collaborator"
	KindCapabilityPresent      Kind = "capability_present"
	KindInvalidData            Kind = "invalid_data"
	KindInvalidInput           Kind = "invalid_input"
	KindNotFound               Kind = "not_found"
)

// Sentinels for errors.Is. Matching compares Phase and Kind only.
var (
	ErrMissingRequiredImport       = &Error{Phase: PhaseStub, Kind: KindMissingImport}
	ErrMissingExpectedExport       = &Error{Phase: PhasePrune, Kind: KindMissingExport}
	ErrUnsupportedRequirementLevel = &Error{Phase: PhaseStub, Kind: KindUnsupportedRequirement}
)

// Error is the structured error type used throughout wasm-virt
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Detail string
	// Path names the manifest entry involved: [interface, function] for
	// imports, [qualified name] for exports.
	Path []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "#"))
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the manifest entry path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Capability errors

// MissingRequiredImport reports a required manifest entry with no matching
// function import.
func MissingRequiredImport(iface, function string) *Error {
	return &Error{
		Phase:  PhaseStub,
		Kind:   KindMissingImport,
		Path:   []string{iface, function},
		Detail: "required import not found",
	}
}

// MissingExpectedExport reports an export name absent from the module.
func MissingExpectedExport(name string) *Error {
	return &Error{
		Phase:  PhasePrune,
		Kind:   KindMissingExport,
		Path:   []string{name},
		Detail: "expected export not found",
	}
}

// UnsupportedRequirementLevel reports a requirement value outside the
// known set.
func UnsupportedRequirementLevel(iface, function string, level any) *Error {
	return &Error{
		Phase:  PhaseStub,
		Kind:   KindUnsupportedRequirement,
		Path:   []string{iface, function},
		Detail: fmt.Sprintf("unsupported requirement level %v", level),
		Value:  level,
	}
}

// Collaborator annotates an error returned by the module implementation with
// the manifest entry that triggered it. The cause is kept unchanged.
func Collaborator(phase Phase, cause error, path ...string) *Error {
	return &Error{
		Phase: phase,
		Kind:  KindCollaborator,
		Path:  path,
		Cause: cause,
	}
}

// CapabilityPresent reports an import or export of a stripped family that
// survived in the output.
func CapabilityPresent(what, name string) *Error {
	return &Error{
		Phase:  PhaseVerify,
		Kind:   KindCapabilityPresent,
		Path:   []string{name},
		Detail: fmt.Sprintf("%s still present", what),
	}
}

// General constructors

// InvalidData creates an invalid data error
func InvalidData(phase Phase, path []string, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Path:   path,
		Detail: detail,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// Load creates an input loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidData,
		Detail: detail,
		Cause:  cause,
	}
}

// ParseFailed creates a parsing error
func ParseFailed(what string, cause error) *Error {
	return &Error{
		Phase:  PhaseParse,
		Kind:   KindInvalidData,
		Detail: fmt.Sprintf("parse %s", what),
		Cause:  cause,
	}
}

// EncodeFailed reports a module that could not be serialized after editing.
func EncodeFailed(what string, cause error) *Error {
	return &Error{
		Phase:  PhaseEncode,
		Kind:   KindInvalidData,
		Detail: fmt.Sprintf("encode %s", what),
		Cause:  cause,
	}
}

// MissingImport represents a single unresolved import
type MissingImport struct {
	Namespace string // e.g., "wasi:sockets/tcp@0.2.0"
	Function  string // e.g., "[method]tcp-socket.start-bind"
}

// MissingImportsError aggregates every required import a module lacks. It
// is produced by audits; stripping itself stops at the first miss.
type MissingImportsError struct {
	Imports []MissingImport
}

// NewMissingImportsError creates an error from a list of "namespace#function" strings
func NewMissingImportsError(imports []string) *MissingImportsError {
	result := &MissingImportsError{
		Imports: make([]MissingImport, 0, len(imports)),
	}
	for _, imp := range imports {
		ns, fn := parseImportKey(imp)
		result.Imports = append(result.Imports, MissingImport{
			Namespace: ns,
			Function:  fn,
		})
	}
	return result
}

func parseImportKey(key string) (namespace, function string) {
	ns, fn, found := strings.Cut(key, "#")
	if found {
		return ns, fn
	}
	return key, ""
}

func (e *MissingImportsError) Error() string {
	if len(e.Imports) == 0 {
		return "[stub] missing_import: no imports specified"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "missing %d required import(s):\n", len(e.Imports))

	// Group by namespace for cleaner output
	byNS := make(map[string][]string)
	var nsOrder []string
	for _, imp := range e.Imports {
		if _, exists := byNS[imp.Namespace]; !exists {
			nsOrder = append(nsOrder, imp.Namespace)
		}
		byNS[imp.Namespace] = append(byNS[imp.Namespace], imp.Function)
	}

	for _, ns := range nsOrder {
		b.WriteString("\n  ")
		b.WriteString(ns)
		b.WriteString(":\n")
		for _, fn := range byNS[ns] {
			b.WriteString("    - ")
			b.WriteString(fn)
			b.WriteByte('\n')
		}
	}

	return strings.TrimSuffix(b.String(), "\n")
}

// Is reports whether target matches this error type. It also matches
// ErrMissingRequiredImport.
func (e *MissingImportsError) Is(target error) bool {
	switch t := target.(type) {
	case *MissingImportsError:
		return true
	case *Error:
		return t.Phase == PhaseStub && t.Kind == KindMissingImport
	}
	return false
}
