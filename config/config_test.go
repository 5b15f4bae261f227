package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// limitSection mirrors the shape a component would decode its section into.
type limitSection struct {
	Mode            string `mapstructure:"mode"`
	ReadBytesPerSec int64  `mapstructure:"readBytesPerSec"`
}

// mockReloader records applied sections and optionally rejects them.
type mockReloader struct {
	applied []limitSection
	reject  error
}

func (r *mockReloader) SectionType() any {
	return &limitSection{}
}

func (r *mockReloader) Reload(section any) error {
	if r.reject != nil {
		return r.reject
	}
	r.applied = append(r.applied, *section.(*limitSection))
	return nil
}

func TestApplyDecodesAndDispatches(t *testing.T) {
	m := NewManager()
	r := &mockReloader{}
	require.NoError(t, m.Register("iolimit", r))

	err := m.Apply(map[string]any{
		"iolimit": map[string]any{
			"mode":            "static",
			"readBytesPerSec": int64(1048576),
		},
		"unregistered": map[string]any{"x": 1},
	})
	require.NoError(t, err)
	require.Len(t, r.applied, 1)
	assert.Equal(t, "static", r.applied[0].Mode)
	assert.Equal(t, int64(1048576), r.applied[0].ReadBytesPerSec)
}

func TestApplyRejectionKeepsOtherSections(t *testing.T) {
	m := NewManager()
	bad := &mockReloader{reject: errors.New("invalid ceiling")}
	good := &mockReloader{}
	require.NoError(t, m.Register("bad", bad))
	require.NoError(t, m.Register("good", good))

	err := m.Apply(map[string]any{
		"bad":  map[string]any{"mode": "static"},
		"good": map[string]any{"mode": "disabled"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid ceiling")
	// The healthy section must still have been applied.
	require.Len(t, good.applied, 1)
	assert.Equal(t, "disabled", good.applied[0].Mode)
}

func TestApplyRejectsNonMapSection(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Register("iolimit", &mockReloader{}))

	err := m.Apply(map[string]any{"iolimit": "not a map"})
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestDuplicateRegistration(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Register("iolimit", &mockReloader{}))
	assert.ErrorIs(t, m.Register("iolimit", &mockReloader{}), ErrDuplicateReloader)
}

func TestApplyThrottled(t *testing.T) {
	m := NewManager()
	m.SetApplyLimit(0, 1) // one update ever, then throttled
	require.NoError(t, m.Register("iolimit", &mockReloader{}))

	require.NoError(t, m.Apply(map[string]any{}))
	assert.ErrorIs(t, m.Apply(map[string]any{}), ErrReloadThrottled)
}

func TestLoadAndApplyYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kvutil.yaml")
	content := []byte(`
iolimit:
  mode: static
  readBytesPerSec: 2097152
log:
  level: 3
`)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	m := NewManager()
	r := &mockReloader{}
	require.NoError(t, m.Register("iolimit", r))

	require.NoError(t, m.LoadAndApply(path))
	require.Len(t, r.applied, 1)
	assert.Equal(t, "static", r.applied[0].Mode)
	assert.Equal(t, int64(2097152), r.applied[0].ReadBytesPerSec)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/kvutil.yaml")
	assert.Error(t, err)
}
