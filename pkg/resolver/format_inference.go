package resolver

import (
	"net/url"
	"path/filepath"
	"strings"

	"github.com/stackb/modload/pkg/format"
	"github.com/stackb/modload/pkg/location"
)

// ExtensionFormats maps file extensions to formats.  ".sky" is ambiguous
// and handled separately.
var ExtensionFormats = map[string]format.Format{
	".star": format.Standard,
	".json": format.Data,
	".yaml": format.Data,
	".yml":  format.Data,
	".toml": format.Data,
	".cue":  format.Data,
	".wasm": format.Addon,
}

// AmbiguousExtension is the extension shared by standard and legacy
// modules.
const AmbiguousExtension = ".sky"

// Format infers the format of the module at u.  isEntry selects the entry
// point rules for ambiguous and unknown extensions.
func (r *Resolver) Format(u *url.URL, isEntry bool) (format.Format, error) {
	var filename string
	if location.IsFile(u) {
		filename, _ = location.ToPath(u)
	}
	if filename != "" {
		if f, ok := r.overrides.Match(filepath.ToSlash(filename)); ok {
			return f, nil
		}
	}

	ext := strings.ToLower(location.Ext(u))
	if f, ok := ExtensionFormats[ext]; ok {
		return f, nil
	}

	if ext == AmbiguousExtension {
		if filename != "" {
			if m := r.manifests.nearest(filepath.Dir(filename)); m != nil {
				switch m.Mode {
				case "standard":
					return format.Standard, nil
				case "legacy":
					return format.Legacy, nil
				}
			}
		}
		if isEntry && r.entryMode == format.Legacy {
			return format.Legacy, nil
		}
		return format.Standard, nil
	}

	if isEntry && r.entryMode == format.Legacy {
		return format.Legacy, nil
	}
	return format.Unknown, &UnknownFormatError{URL: u.String(), Ext: ext}
}
