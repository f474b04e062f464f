package storage

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageSaveOpenDelete(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	n, err := store.Save("reports/r-1/v1/chapter.txt", strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
	assert.True(t, store.Exists("reports/r-1/v1/chapter.txt"))

	f, err := store.Open("reports/r-1/v1/chapter.txt")
	require.NoError(t, err)
	data, err := io.ReadAll(f)
	require.NoError(t, f.Close())
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	info, err := store.Stat("reports/r-1/v1/chapter.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size)

	require.NoError(t, store.Delete("reports/r-1/v1/chapter.txt"))
	assert.False(t, store.Exists("reports/r-1/v1/chapter.txt"))
	require.NoError(t, store.Delete("reports/r-1/v1/chapter.txt"))
}

func TestLocalStorageKeepsVersionsApart(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save("reports/r-1/v1/a.txt", bytes.NewBufferString("one"))
	require.NoError(t, err)
	_, err = store.Save("reports/r-1/v2/a.txt", bytes.NewBufferString("two"))
	require.NoError(t, err)

	f, err := store.Open("reports/r-1/v1/a.txt")
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck
	data, _ := io.ReadAll(f)
	assert.Equal(t, "one", string(data))
}

func TestLocalStorageRejectsEscapingKeys(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"../secret", "/etc/passwd", "", "reports/../../x"} {
		_, err := store.Save(key, strings.NewReader("x"))
		assert.ErrorIs(t, err, ErrInvalidKey, key)
	}
}
