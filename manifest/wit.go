package manifest

import (
	"fmt"
	"io"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/wasm-virt/errors"
)

// FromWIT derives a family from a WIT package in JSON form, as produced by
// "wasm-tools component wit --json". Every interface of the package named
// pkg (for example "wasi:sockets") contributes its functions in declaration
// order followed by one "[resource-drop]" entry per resource it defines. All
// entries are Required.
func FromWIT(r io.Reader, family, pkg string) (*Family, error) {
	res, err := wit.DecodeJSON(r)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseManifest, errors.KindInvalidData, err, "decode WIT JSON")
	}
	return FromResolve(res, family, pkg)
}

// FromResolve is FromWIT for an already decoded WIT resolve.
func FromResolve(res *wit.Resolve, family, pkg string) (*Family, error) {
	fam := &Family{Name: family}
	for _, iface := range res.Interfaces {
		if iface.Name == nil || iface.Package == nil {
			continue
		}
		id := iface.Package.Name
		if id.Namespace+":"+id.Package != pkg {
			continue
		}
		if id.Version == nil {
			return nil, errors.InvalidData(errors.PhaseManifest, []string{pkg}, "WIT package has no version")
		}
		version := id.Version.String()
		if fam.Version == "" {
			fam.Version = version
		}
		name := fmt.Sprintf("%s/%s@%s", pkg, *iface.Name, version)

		for fnName := range iface.Functions.All() {
			fam.Functions = append(fam.Functions, Descriptor{
				Interface:   name,
				Function:    fnName,
				Requirement: Required,
			})
		}
		for tdName, td := range iface.TypeDefs.All() {
			if _, ok := td.Kind.(*wit.Resource); !ok {
				continue
			}
			fam.Functions = append(fam.Functions, Descriptor{
				Interface:   name,
				Function:    importDropPrefix + tdName,
				Requirement: Required,
			})
		}
	}
	if len(fam.Functions) == 0 {
		return nil, errors.NotFound(errors.PhaseManifest, "WIT package", pkg)
	}
	fam.Description = "Derived from WIT package " + pkg + "@" + fam.Version + "."
	if err := Validate(fam); err != nil {
		return nil, err
	}
	return fam, nil
}
