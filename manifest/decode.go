package manifest

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/goccy/go-yaml"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/wippyai/wasm-virt/errors"
)

//go:embed schema.json
var schemaJSON []byte

var compileSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource("schema.json", bytes.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("failed to add manifest schema: %w", err)
	}
	return compiler.Compile("schema.json")
})

type file struct {
	Family      string          `yaml:"family"`
	Version     string          `yaml:"version"`
	Description string          `yaml:"description,omitempty"`
	Interfaces  []fileInterface `yaml:"interfaces"`
}

type fileInterface struct {
	Name      string         `yaml:"name"`
	Functions []fileFunction `yaml:"functions"`
}

type fileFunction struct {
	Name        string `yaml:"name"`
	Requirement string `yaml:"requirement,omitempty"`
}

// Decode reads a YAML manifest, validates it against the manifest schema
// and checks that every interface carries the family version.
func Decode(r io.Reader) (*Family, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Load("read manifest", err)
	}
	return DecodeBytes(data)
}

// DecodeBytes is Decode for an in-memory document.
func DecodeBytes(data []byte) (*Family, error) {
	if err := validateSchema(data); err != nil {
		return nil, err
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(errors.PhaseManifest, errors.KindInvalidData, err, "failed to decode manifest YAML")
	}

	fam := &Family{
		Name:        f.Family,
		Version:     f.Version,
		Description: f.Description,
	}
	for _, iface := range f.Interfaces {
		for _, fn := range iface.Functions {
			var req Requirement
			if err := req.UnmarshalText([]byte(fn.Requirement)); err != nil {
				return nil, errors.New(errors.PhaseManifest, errors.KindInvalidData).
					Path(iface.Name, fn.Name).Cause(err).Build()
			}
			fam.Functions = append(fam.Functions, Descriptor{
				Interface:   iface.Name,
				Function:    fn.Name,
				Requirement: req,
			})
		}
	}
	if err := Validate(fam); err != nil {
		return nil, err
	}
	return fam, nil
}

func validateSchema(data []byte) error {
	schema, err := compileSchema()
	if err != nil {
		return errors.Wrap(errors.PhaseManifest, errors.KindInvalidData, err, "compile manifest schema")
	}
	jsonData, err := yaml.YAMLToJSON(data)
	if err != nil {
		return errors.Wrap(errors.PhaseManifest, errors.KindInvalidData, err, "failed to parse manifest YAML")
	}
	var doc any
	if err := json.Unmarshal(jsonData, &doc); err != nil {
		return errors.Wrap(errors.PhaseManifest, errors.KindInvalidData, err, "failed to parse manifest YAML")
	}
	if err := schema.Validate(doc); err != nil {
		if validationErr, ok := err.(*jsonschema.ValidationError); ok {
			return formatSchemaValidationError(validationErr)
		}
		return errors.Wrap(errors.PhaseManifest, errors.KindInvalidData, err, "manifest schema validation failed")
	}
	return nil
}

// formatSchemaValidationError flattens the cause tree of a schema error.
func formatSchemaValidationError(err *jsonschema.ValidationError) error {
	var messages []string

	var collect func(*jsonschema.ValidationError)
	collect = func(e *jsonschema.ValidationError) {
		if e.Message != "" && len(e.Causes) == 0 {
			location := e.InstanceLocation
			if location == "" {
				location = "(root)"
			}
			messages = append(messages, fmt.Sprintf("%s: %s", location, e.Message))
		}
		for _, cause := range e.Causes {
			collect(cause)
		}
	}
	collect(err)

	if len(messages) == 0 {
		messages = append(messages, err.Error())
	}
	return errors.InvalidData(errors.PhaseManifest, nil,
		"manifest schema validation failed:\n    - "+strings.Join(messages, "\n    - "))
}

// Validate checks a family that did not come through Decode: the family
// version must be semver without build metadata, every interface must carry
// exactly that version, and functions must be unique.
func Validate(f *Family) error {
	if f.Name == "" {
		return errors.InvalidData(errors.PhaseManifest, nil, "family name is required")
	}
	version, err := semver.StrictNewVersion(f.Version)
	if err != nil {
		return errors.New(errors.PhaseManifest, errors.KindInvalidData).
			Path(f.Name).Cause(err).
			Detail("family version %q is not a semantic version", f.Version).Build()
	}
	if version.Metadata() != "" {
		return errors.InvalidData(errors.PhaseManifest, []string{f.Key()}, "family version must not carry build metadata")
	}
	if len(f.Functions) == 0 {
		return errors.InvalidData(errors.PhaseManifest, []string{f.Key()}, "family declares no functions")
	}

	seen := make(map[FuncRef]struct{}, len(f.Functions))
	for _, d := range f.Functions {
		ifaceVersion, err := InterfaceVersion(d.Interface)
		if err != nil {
			return errors.New(errors.PhaseManifest, errors.KindInvalidData).
				Path(d.Interface, d.Function).Cause(err).Build()
		}
		if !ifaceVersion.Equal(version) {
			return errors.New(errors.PhaseManifest, errors.KindInvalidData).
				Path(d.Interface, d.Function).
				Detail("interface version %s does not match family version %s", ifaceVersion, version).Build()
		}
		if d.Function == "" || strings.Contains(d.Function, "#") {
			return errors.InvalidData(errors.PhaseManifest, []string{d.Interface, d.Function}, "invalid function name")
		}
		ref := d.ImportRef()
		if _, dup := seen[ref]; dup {
			return errors.InvalidData(errors.PhaseManifest, []string{d.Interface, d.Function}, "duplicate function")
		}
		seen[ref] = struct{}{}
	}
	return nil
}

// InterfaceVersion extracts the semantic version from an interface string
// such as "wasi:sockets/tcp@0.2.0".
func InterfaceVersion(iface string) (*semver.Version, error) {
	_, v, ok := strings.Cut(iface, "@")
	if !ok {
		return nil, fmt.Errorf("interface %q has no version", iface)
	}
	return semver.StrictNewVersion(v)
}

// Encode writes the family as a YAML manifest accepted by Decode.
func Encode(w io.Writer, f *Family) error {
	out := file{
		Family:      f.Name,
		Version:     f.Version,
		Description: f.Description,
	}
	for _, d := range f.Functions {
		if n := len(out.Interfaces); n == 0 || out.Interfaces[n-1].Name != d.Interface {
			out.Interfaces = append(out.Interfaces, fileInterface{Name: d.Interface})
		}
		fn := fileFunction{Name: d.Function}
		if d.Requirement != Required {
			text, err := d.Requirement.MarshalText()
			if err != nil {
				return errors.New(errors.PhaseManifest, errors.KindInvalidData).
					Path(d.Interface, d.Function).Cause(err).Build()
			}
			fn.Requirement = string(text)
		}
		last := &out.Interfaces[len(out.Interfaces)-1]
		last.Functions = append(last.Functions, fn)
	}
	data, err := yaml.Marshal(out)
	if err != nil {
		return errors.Wrap(errors.PhaseManifest, errors.KindInvalidData, err, "encode manifest")
	}
	_, err = w.Write(data)
	return err
}
