package resolver

import (
	"fmt"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/stackb/modload/pkg/format"
)

// FormatOverride forces the format of files matching a doublestar glob.
type FormatOverride struct {
	Pattern string
	Format  format.Format
}

// FormatOverrides is an ordered list of overrides; the first match wins.
type FormatOverrides []FormatOverride

// Validate checks the patterns and formats.
func (o FormatOverrides) Validate() error {
	for _, fo := range o {
		if !doublestar.ValidatePattern(fo.Pattern) {
			return fmt.Errorf("invalid format override pattern %q", fo.Pattern)
		}
		switch fo.Format {
		case format.Standard, format.Legacy, format.Data, format.Addon:
		default:
			return fmt.Errorf("format override %q: format %s cannot be forced on files", fo.Pattern, fo.Format)
		}
	}
	return nil
}

// Match returns the format of the first override whose pattern matches
// filename.
func (o FormatOverrides) Match(filename string) (format.Format, bool) {
	for _, fo := range o {
		if ok, _ := doublestar.Match(fo.Pattern, filename); ok {
			return fo.Format, true
		}
	}
	return format.Unknown, false
}
