package resolver

import "errors"

// Sentinels matched by the typed errors of this package with errors.Is.
var (
	ErrResolution                = errors.New("resolution error")
	ErrModuleNotFound            = errors.New("module not found")
	ErrUnknownFormat             = errors.New("unknown module format")
	ErrUnknownLoader             = errors.New("unknown module loader")
	ErrInvalidProtocol           = errors.New("invalid protocol")
	ErrLegacyResolutionAvailable = errors.New("legacy resolution available")
)
