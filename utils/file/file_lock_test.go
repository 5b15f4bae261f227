package file

import (
	"os"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirLockExcludesSecondHolder(t *testing.T) {
	dir := t.TempDir()

	l1 := NewDirLock(dir)
	require.NoError(t, l1.TryLock())
	defer l1.Unlock()

	l2 := NewDirLock(dir)
	err := l2.TryLock()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAlreadyLocked)
}

func TestDirLockReleasedOnUnlock(t *testing.T) {
	dir := t.TempDir()

	l1 := NewDirLock(dir)
	require.NoError(t, l1.TryLock())
	require.NoError(t, l1.Unlock())

	l2 := NewDirLock(dir)
	require.NoError(t, l2.TryLock())
	assert.NoError(t, l2.Unlock())
}

func TestDirLockWritesOwnerPID(t *testing.T) {
	dir := t.TempDir()

	l := NewDirLock(dir)
	require.NoError(t, l.TryLock())
	defer l.Unlock()

	data, err := os.ReadFile(l.Path())
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(data))
}

func TestDirLockUnlockIdempotent(t *testing.T) {
	l := NewDirLock(t.TempDir())
	assert.NoError(t, l.Unlock(), "unlocked handle tolerates Unlock")
	require.NoError(t, l.TryLock())
	require.NoError(t, l.TryLock(), "TryLock on held lock is a no-op")
	assert.NoError(t, l.Unlock())
}

func TestIsLocked(t *testing.T) {
	dir := t.TempDir()
	assert.False(t, IsLocked(dir))

	l := NewDirLock(dir)
	require.NoError(t, l.TryLock())
	defer l.Unlock()
	assert.True(t, IsLocked(dir))
}
