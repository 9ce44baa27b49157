package starlarkmod

import (
	"context"

	"github.com/rs/zerolog"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/stackb/modload/pkg/module"
)

// FileOptions are the dialect options used for every standard module.
var FileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	Recursion:       true,
}

// Names bound in every standard module besides the interpreter's
// predeclared ones.
const (
	// URLName holds the module's own location.
	URLName = "__url__"
	// ImportName is the builtin that imports a module while the body runs.
	ImportName = "import_module"
)

// LoadFunc answers a load() statement for the module being evaluated.
type LoadFunc func(thread *starlark.Thread, module string) (starlark.StringDict, error)

// ImportFunc loads the module specifier resolves to, as requested by the
// module at referrer, and returns its namespace.
type ImportFunc func(ctx context.Context, specifier, referrer string) (*module.Namespace, error)

// Interpreter creates the Starlark threads that module bodies run on.
type Interpreter struct {
	predeclared starlark.StringDict
	logger      zerolog.Logger
	importer    ImportFunc
}

// NewInterpreter creates an interpreter exposing predeclared to every module
// in addition to the Starlark universe.  print() output goes to logger.
func NewInterpreter(predeclared starlark.StringDict, logger zerolog.Logger) *Interpreter {
	if predeclared == nil {
		predeclared = starlark.StringDict{}
	}
	return &Interpreter{predeclared: predeclared, logger: logger}
}

// Predeclared returns the names visible to every module besides the universe.
func (i *Interpreter) Predeclared() starlark.StringDict {
	return i.predeclared
}

// IsPredeclared reports whether name is predeclared.
func (i *Interpreter) IsPredeclared(name string) bool {
	_, ok := i.predeclared[name]
	return ok
}

// With returns an interpreter whose predeclared names are extended by extra.
func (i *Interpreter) With(extra starlark.StringDict) *Interpreter {
	predeclared := make(starlark.StringDict, len(i.predeclared)+len(extra))
	for k, v := range i.predeclared {
		predeclared[k] = v
	}
	for k, v := range extra {
		predeclared[k] = v
	}
	return &Interpreter{predeclared: predeclared, logger: i.logger, importer: i.importer}
}

// SetImporter sets the function behind import_module.  It must be called
// before the first module is evaluated.
func (i *Interpreter) SetImporter(fn ImportFunc) {
	i.importer = fn
}

// NewThread creates a thread named after the module location.
func (i *Interpreter) NewThread(ctx context.Context, name string, load LoadFunc) *starlark.Thread {
	logger := i.logger.With().Str("module", name).Logger()
	thread := &starlark.Thread{
		Name: name,
		Print: func(_ *starlark.Thread, msg string) {
			logger.Info().Msg(msg)
		},
		Load: load,
	}
	module.WithContext(thread, ctx)
	return thread
}

// StripShebang replaces a leading "#!" line with an empty line so that
// positions in the remaining source are unchanged.
func StripShebang(src []byte) []byte {
	if len(src) < 2 || src[0] != '#' || src[1] != '!' {
		return src
	}
	for i, c := range src {
		if c == '\n' {
			return src[i:]
		}
	}
	return []byte{}
}
