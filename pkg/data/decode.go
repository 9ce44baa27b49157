package data

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/pelletier/go-toml/v2"
	"go.starlark.net/lib/json"
	"go.starlark.net/starlark"
	"gopkg.in/yaml.v3"
)

// Decoder decodes a document into a Starlark value.
type Decoder func(filename string, src []byte) (starlark.Value, error)

var decoders = map[string]Decoder{
	".json": DecodeJSON,
	".yaml": DecodeYAML,
	".yml":  DecodeYAML,
	".toml": DecodeTOML,
	".cue":  DecodeCUE,
}

// Extensions returns the file extensions that have a decoder.
func Extensions() []string {
	return []string{".cue", ".json", ".toml", ".yaml", ".yml"}
}

// DecoderFor returns the decoder registered for ext (".json", ...).
func DecoderFor(ext string) (Decoder, bool) {
	d, ok := decoders[strings.ToLower(ext)]
	return d, ok
}

// DecodeJSON decodes with the Starlark json module so numbers keep their
// Starlark int/float distinction.
func DecodeJSON(filename string, src []byte) (starlark.Value, error) {
	thread := &starlark.Thread{Name: filename}
	decode := json.Module.Members["decode"]
	v, err := starlark.Call(thread, decode, starlark.Tuple{starlark.String(src)}, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return v, nil
}

// DecodeYAML decodes a single YAML document.
func DecodeYAML(filename string, src []byte) (starlark.Value, error) {
	var v any
	if err := yaml.NewDecoder(bytes.NewReader(src)).Decode(&v); err != nil {
		if errors.Is(err, io.EOF) {
			return starlark.None, nil
		}
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return convert(filename, v)
}

// DecodeTOML decodes a TOML document; the result is always a dict.
func DecodeTOML(filename string, src []byte) (starlark.Value, error) {
	v := map[string]any{}
	if err := toml.Unmarshal(src, &v); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return convert(filename, v)
}

// DecodeCUE evaluates a CUE file.  The value must be concrete.
func DecodeCUE(filename string, src []byte) (starlark.Value, error) {
	cv := cuecontext.New().CompileBytes(src, cue.Filename(filename))
	if err := cv.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	var v any
	if err := cv.Decode(&v); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return convert(filename, v)
}

func convert(filename string, v any) (starlark.Value, error) {
	sv, err := ToStarlark(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return sv, nil
}
