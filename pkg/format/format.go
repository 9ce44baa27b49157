// Package format defines module content formats and the registry of loading
// strategies keyed by format.
package format

import (
	"fmt"
	"strings"
)

// Format selects the loading strategy for a resolved module location.
type Format int

const (
	// Unknown is the zero value and never a valid resolution result.
	Unknown Format = iota
	// Standard is a statically analyzable Starlark module.
	Standard
	// Legacy is a script executed by the synchronous legacy loader.
	Legacy
	// Data is a structured data document (json, yaml, toml, cue).
	Data
	// Addon is a native addon (a WebAssembly binary).
	Addon
	// Builtin is a module provided by the host.
	Builtin
	// Dynamic is a module instantiated by a custom instantiation hook.
	Dynamic
)

var names = [...]string{
	Unknown:  "unknown",
	Standard: "standard",
	Legacy:   "legacy",
	Data:     "data",
	Addon:    "addon",
	Builtin:  "builtin",
	Dynamic:  "dynamic",
}

func (f Format) String() string {
	if f < 0 || int(f) >= len(names) {
		return fmt.Sprintf("format(%d)", int(f))
	}
	return names[f]
}

// Parse returns the format with the given name.  "native-addon" is accepted
// as an alias of "addon".
func Parse(name string) (Format, error) {
	switch n := strings.ToLower(strings.TrimSpace(name)); n {
	case "native-addon":
		return Addon, nil
	default:
		for i, s := range names {
			if i != int(Unknown) && s == n {
				return Format(i), nil
			}
		}
	}
	return Unknown, fmt.Errorf("unknown format %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (f Format) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Format) UnmarshalText(text []byte) error {
	v, err := Parse(string(text))
	if err != nil {
		return err
	}
	*f = v
	return nil
}
