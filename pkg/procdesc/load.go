package procdesc

import (
	"bytes"
	"embed"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"golang.org/x/sys/cpu"
	"gopkg.in/yaml.v3"
)

//go:embed profiles/*.yaml
var profileFS embed.FS

// LoadYAML decodes and validates a YAML processor description.
// Unknown fields are rejected so typos in hand-written profiles surface early.
func LoadYAML(r io.Reader) (*Descr, error) {
	var d Descr
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&d); err != nil {
		return nil, fmt.Errorf("failed to parse processor YAML: %w", err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// LoadCUE compiles, validates and decodes a CUE processor description.
// The CUE value must be concrete and have the same shape as the YAML form.
func LoadCUE(src []byte, filename string) (*Descr, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}
	var d Descr
	if err := v.Decode(&d); err != nil {
		return nil, fmt.Errorf("failed to decode processor CUE: %w", err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// formatCUEError flattens CUE's multi-error into one message with positions
func formatCUEError(err error) error {
	return fmt.Errorf("invalid processor CUE: %s", strings.TrimSpace(cueerrors.Details(err, nil)))
}

// LoadFile loads a processor description, picking the format by extension
func LoadFile(path string) (*Descr, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read processor description: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadYAML(bytes.NewReader(data))
	case ".cue":
		return LoadCUE(data, path)
	}
	return nil, fmt.Errorf("%s: unsupported processor description format (want .yaml or .cue)", path)
}

// Profile returns an embedded processor profile by name
func Profile(name string) (*Descr, error) {
	data, err := profileFS.ReadFile("profiles/" + name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("unknown processor profile %q (have %s)", name, strings.Join(Profiles(), ", "))
	}
	return LoadYAML(bytes.NewReader(data))
}

// Profiles lists the embedded profile names
func Profiles() []string {
	entries, _ := profileFS.ReadDir("profiles")
	var names []string
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(names)
	return names
}

// Host returns the name of the embedded profile that best matches the
// machine we are running on.
func Host() string {
	switch runtime.GOARCH {
	case "amd64":
		if cpu.X86.HasAVX2 && cpu.X86.HasFMA {
			return "x86-avx2"
		}
	case "arm64":
		if cpu.ARM64.HasASIMD {
			return "arm64-neon"
		}
	}
	return "generic"
}
