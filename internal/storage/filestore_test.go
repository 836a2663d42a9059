package storage

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemStore() *FileStore {
	s := New(afero.NewMemMapFs(), "")
	s.now = func() time.Time { return time.Date(2026, 3, 7, 12, 0, 0, 0, time.UTC) }
	return s
}

func TestSave_WritesDatedPath(t *testing.T) {
	s := newMemStore()

	rel, n, err := s.Save("My Holiday!.MP4", strings.NewReader("payload"), 1024)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	assert.True(t, strings.HasPrefix(rel, "2026/03/07/"))
	assert.True(t, strings.HasSuffix(rel, "_My_Holiday_.mp4"))

	data, err := afero.ReadFile(s.Fs(), rel)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	size, err := s.Size(rel)
	require.NoError(t, err)
	assert.Equal(t, int64(7), size)
}

func TestSave_ExactLimitAccepted(t *testing.T) {
	s := newMemStore()
	_, n, err := s.Save("a.mp4", bytes.NewReader(make([]byte, 10)), 10)
	require.NoError(t, err)
	assert.Equal(t, int64(10), n)
}

func TestSave_TooLargeRollsBack(t *testing.T) {
	s := newMemStore()

	_, _, err := s.Save("a.mp4", bytes.NewReader(make([]byte, 11)), 10)
	assert.ErrorIs(t, err, ErrTooLarge)

	entries, err := afero.ReadDir(s.Fs(), "2026/03/07")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

type failingReader struct{ n int }

func (f *failingReader) Read(p []byte) (int, error) {
	if f.n == 0 {
		return 0, errors.New("connection reset")
	}
	f.n--
	p[0] = 'x'
	return 1, nil
}

func TestSave_ReadErrorRollsBack(t *testing.T) {
	s := newMemStore()

	_, _, err := s.Save("a.mp4", &failingReader{n: 3}, 100)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")

	entries, err := afero.ReadDir(s.Fs(), "2026/03/07")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRemove_MissingIsNotAnError(t *testing.T) {
	s := newMemStore()
	assert.NoError(t, s.Remove("2026/01/01/missing.mp4"))
	assert.NoError(t, s.Remove(""))

	rel, _, err := s.Save("a.mp4", strings.NewReader("x"), 10)
	require.NoError(t, err)
	require.NoError(t, s.Remove(rel))

	ok, err := s.Exists(rel)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Size(rel)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "file", sanitizeName(".mp4"))
	assert.Equal(t, "a-b_c", sanitizeName("../a-b c.mov"))
	assert.Len(t, sanitizeName(strings.Repeat("x", 80)+".mp4"), 40)
}

var _ io.Reader = (*failingReader)(nil)
