// Package presets ships the built-in pattern definitions.
package presets

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/chunkmine/chunkmine-go/pkg/chunkmine/pattern"
)

//go:embed defs/*.yaml
var defs embed.FS

// Names returns the names of the built-in presets, sorted.
func Names() []string {
	entries, err := fs.ReadDir(defs, "defs")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), path.Ext(e.Name())))
	}
	sort.Strings(names)
	return names
}

// File returns the parsed definition file of a preset.
func File(name string) (*pattern.PatternFile, error) {
	data, err := defs.ReadFile("defs/" + name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("unknown preset %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	return pattern.LoadBytes(data)
}

// Load builds the pattern of a preset.
func Load(name string) (*pattern.Pattern, error) {
	pf, err := File(name)
	if err != nil {
		return nil, err
	}
	return pf.Select(name)
}

// Source returns the raw YAML of a preset.
func Source(name string) ([]byte, error) {
	data, err := defs.ReadFile("defs/" + name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("unknown preset %q", name)
	}
	return data, nil
}
