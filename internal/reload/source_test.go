package reload

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStatSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bin")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o755))

	s, err := NewStatSource(path)
	require.NoError(t, err)

	ch, err := s.Changed()
	require.NoError(t, err)
	require.False(t, ch)

	require.NoError(t, os.WriteFile(path, []byte("v2-longer"), 0o755))
	ch, err = s.Changed()
	require.NoError(t, err)
	require.True(t, ch)

	// baseline moved forward
	ch, err = s.Changed()
	require.NoError(t, err)
	require.False(t, ch)

	require.NoError(t, os.Remove(path))
	_, err = s.Changed()
	require.Error(t, err)
}

type fakeDrifter struct {
	changed  bool
	sections []string
	err      error
}

func (f fakeDrifter) Path() string                     { return "config.yaml" }
func (f fakeDrifter) Drifted() (bool, []string, error) { return f.changed, f.sections, f.err }

func TestConfigSource(t *testing.T) {
	s := NewConfigSource(fakeDrifter{})
	ch, err := s.Changed()
	require.NoError(t, err)
	require.False(t, ch)
	require.Equal(t, "config:config.yaml", s.Name())

	s = NewConfigSource(fakeDrifter{err: errors.New("yaml: bad")})
	_, err = s.Changed()
	require.Error(t, err)

	s = NewConfigSource(fakeDrifter{changed: true, sections: []string{"plugins"}})
	ch, err = s.Changed()
	require.NoError(t, err)
	require.True(t, ch)
	require.Equal(t, []string{"plugins"}, s.Sections())
}

func TestNotifySource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "watched")
	other := filepath.Join(dir, "other")
	require.NoError(t, os.WriteFile(path, []byte("a"), 0o644))

	s, err := NewNotifySource(path)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, os.WriteFile(other, []byte("x"), 0o644))
	time.Sleep(50 * time.Millisecond)
	ch, err := s.Changed()
	require.NoError(t, err)
	require.False(t, ch)

	require.NoError(t, os.WriteFile(path, []byte("b"), 0o644))
	require.Eventually(t, func() bool {
		ch, err := s.Changed()
		return err == nil && ch
	}, 2*time.Second, 10*time.Millisecond)
}
