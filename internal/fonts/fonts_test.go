package fonts

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
)

// fontDir writes the Go fonts plus a broken file into a temp directory.
func fontDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string][]byte{
		"Go-Regular.ttf":   goregular.TTF,
		"mono/Go-Mono.ttf": gomono.TTF,
		"broken.ttf":       []byte("not a font"),
		"broken.ttc":       []byte("ttcf but not really"),
	}
	for name, data := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, data, 0644))
	}
	return dir
}

// recordingRegistrar stores every Use call.
type recordingRegistrar struct {
	calls map[string][]string
	fail  string
}

func (r *recordingRegistrar) Use(alias string, paths []string) error {
	if alias == r.fail {
		return errors.New("rejected by font library")
	}
	if r.calls == nil {
		r.calls = make(map[string][]string)
	}
	r.calls[alias] = paths
	return nil
}

func TestRegistry_Resolve(t *testing.T) {
	dir := fontDir(t)
	reg := NewRegistry(dir, map[string][]string{
		"Sans": {"Go-Regular.ttf"},
		"Code": {"mono/Go-Mono.ttf", "Go-Regular.ttf"},
	}, nil)

	faces, err := reg.Resolve(context.Background())
	require.NoError(t, err)

	require.Len(t, faces["Sans"], 1)
	assert.Equal(t, "Go", faces["Sans"][0].Family)
	assert.Equal(t, filepath.Join(dir, "Go-Regular.ttf"), faces["Sans"][0].Path)
	assert.Equal(t, 1, faces["Sans"][0].Fonts)

	require.Len(t, faces["Code"], 2)
	assert.Equal(t, "Go Mono", faces["Code"][0].Family, "order within an alias is preserved")
	assert.Equal(t, "Go", faces["Code"][1].Family)
}

func TestRegistry_Resolve_SkipsBadFiles(t *testing.T) {
	dir := fontDir(t)
	reg := NewRegistry(dir, map[string][]string{
		"Sans":    {"broken.ttf", "Go-Regular.ttf", "missing.ttf"},
		"Collect": {"broken.ttc"},
	}, nil)

	faces, err := reg.Resolve(context.Background())
	require.Error(t, err)

	require.Len(t, faces["Sans"], 1)
	assert.Equal(t, "Go", faces["Sans"][0].Family)
	assert.Empty(t, faces["Collect"])

	var fontErr *FontError
	require.ErrorAs(t, err, &fontErr)
	assert.Contains(t, err.Error(), "broken.ttf")
	assert.Contains(t, err.Error(), "missing.ttf")
	assert.Contains(t, err.Error(), "broken.ttc")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRegistry_Register(t *testing.T) {
	dir := fontDir(t)
	reg := NewRegistry(dir, map[string][]string{
		"Sans":   {"Go-Regular.ttf"},
		"Code":   {"mono/Go-Mono.ttf", "broken.ttf"},
		"Ghost":  {"missing.ttf"},
		"Reject": {"Go-Regular.ttf"},
	}, nil)

	registrar := &recordingRegistrar{fail: "Reject"}
	err := reg.Register(context.Background(), registrar)
	require.Error(t, err)

	assert.Equal(t, map[string][]string{
		"Sans": {filepath.Join(dir, "Go-Regular.ttf")},
		"Code": {filepath.Join(dir, "mono", "Go-Mono.ttf")},
	}, registrar.calls)

	assert.Contains(t, err.Error(), "broken.ttf")
	assert.Contains(t, err.Error(), "missing.ttf")
	assert.Contains(t, err.Error(), `register alias "Reject"`)
}

func TestRegistry_Register_AllValid(t *testing.T) {
	dir := fontDir(t)
	reg := NewRegistry(dir, map[string][]string{"Sans": {"Go-Regular.ttf"}}, nil)

	var got []string
	err := reg.Register(context.Background(), RegistrarFunc(func(alias string, paths []string) error {
		got = append(got, alias)
		return nil
	}))
	require.NoError(t, err)
	assert.Equal(t, []string{"Sans"}, got)
}

func TestRegistry_Resolve_Canceled(t *testing.T) {
	reg := NewRegistry(fontDir(t), map[string][]string{"Sans": {"Go-Regular.ttf"}}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	faces, err := reg.Resolve(ctx)
	assert.Nil(t, faces)
	assert.ErrorIs(t, err, context.Canceled)

	called := false
	err = reg.Register(ctx, RegistrarFunc(func(string, []string) error {
		called = true
		return nil
	}))
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestRegistry_AbsolutePathsAndEmptyDir(t *testing.T) {
	dir := fontDir(t)
	abs := filepath.Join(dir, "Go-Regular.ttf")

	faces, err := NewRegistry("", map[string][]string{"Sans": {abs}}, nil).Resolve(context.Background())
	require.NoError(t, err)
	require.Len(t, faces["Sans"], 1)
	assert.Equal(t, abs, faces["Sans"][0].Path)
}

func TestRegistry_Aliases(t *testing.T) {
	reg := NewRegistry("", map[string][]string{"b": nil, "a": nil, "c": nil}, nil)
	assert.Equal(t, []string{"a", "b", "c"}, reg.Aliases())
}

func TestFontError(t *testing.T) {
	err := &FontError{Alias: "Sans", Path: "/fonts/x.ttf", Cause: os.ErrNotExist}
	assert.Equal(t, `font "/fonts/x.ttf" for alias "Sans": file does not exist`, err.Error())
	assert.ErrorIs(t, err, os.ErrNotExist)
}
