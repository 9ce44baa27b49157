package module_test

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"

	"github.com/stackb/modload/pkg/module"
)

func mustParse(t *testing.T, s string) *url.URL {
	t.Helper()
	u, err := url.Parse(s)
	require.NoError(t, err)
	return u
}

func TestNamespacePartial(t *testing.T) {
	bindings := module.NewBindings([]string{"b", "a"})
	ns := module.NewNamespace("file:///a.star", bindings)

	if diff := cmp.Diff([]string{"a", "b"}, ns.Names()); diff != "" {
		t.Errorf("names (-want +got):\n%s", diff)
	}

	_, ok := ns.Get("a")
	assert.False(t, ok, "unset binding")
	assert.True(t, ns.Has("a"))
	assert.False(t, ns.Has("c"))

	dict := ns.StringDict()
	assert.Equal(t, starlark.None, dict["a"])

	bindings["a"].Set(starlark.MakeInt(1))
	v, ok := ns.Get("a")
	require.True(t, ok)
	assert.Equal(t, starlark.MakeInt(1), v)

	attr, err := ns.Attr("b")
	require.NoError(t, err)
	assert.Equal(t, starlark.None, attr)

	attr, err = ns.Attr("missing")
	require.NoError(t, err)
	assert.Nil(t, attr)

	assert.Equal(t, "<namespace file:///a.star {a, b}>", ns.String())
}

func TestSyntheticExecutesOnce(t *testing.T) {
	calls := 0
	rec := module.NewDefault(mustParse(t, "file:///x.json"), func(ctx context.Context) (starlark.Value, error) {
		calls++
		return starlark.String("hello"), nil
	})

	assert.Empty(t, rec.Requests())
	require.NoError(t, rec.Evaluate(context.Background(), nil))
	require.NoError(t, rec.Evaluate(context.Background(), nil))
	assert.Equal(t, 1, calls)

	v, ok := rec.Namespace().Default()
	require.True(t, ok)
	assert.Equal(t, starlark.String("hello"), v)
}

func TestSyntheticErrorIsReplayed(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	rec := module.NewSynthetic(mustParse(t, "file:///x.star"), []string{"x"}, func(ctx context.Context, slots map[string]*module.Binding) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, rec.Evaluate(context.Background(), nil), boom)
	assert.ErrorIs(t, rec.Evaluate(context.Background(), nil), boom)
	assert.Equal(t, 1, calls)
}

func TestFromDynamic(t *testing.T) {
	for name, tc := range map[string]struct {
		dyn     *module.Dynamic
		wantErr string
	}{
		"nil": {
			wantErr: "instantiate hook returned nil",
		},
		"nil execute": {
			dyn:     &module.Dynamic{Exports: []string{"default"}},
			wantErr: "instantiate hook returned nil execute function",
		},
		"duplicate": {
			dyn: &module.Dynamic{
				Exports: []string{"a", "a"},
				Execute: func(context.Context, map[string]*module.Binding) error { return nil },
			},
			wantErr: `instantiate hook returned duplicate export "a"`,
		},
		"ok": {
			dyn: &module.Dynamic{
				Exports: []string{"default", "extra"},
				Execute: func(ctx context.Context, slots map[string]*module.Binding) error {
					slots["default"].Set(starlark.MakeInt(42))
					slots["extra"].Set(starlark.True)
					return nil
				},
			},
		},
	} {
		t.Run(name, func(t *testing.T) {
			rec, err := module.FromDynamic(mustParse(t, "virtual:thing"), tc.dyn)
			if tc.wantErr != "" {
				require.EqualError(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.NoError(t, rec.Evaluate(context.Background(), nil))
			v, ok := rec.Namespace().Default()
			require.True(t, ok)
			assert.Equal(t, starlark.MakeInt(42), v)
			assert.Equal(t, "virtual:thing", rec.Namespace().URL())
		})
	}
}
