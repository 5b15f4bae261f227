package sysutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMemoryMax(t *testing.T) {
	v, err := parseMemoryMax("1073741824\n")
	require.NoError(t, err)
	assert.Equal(t, uint64(1073741824), v)

	_, err = parseMemoryMax("max\n")
	assert.ErrorIs(t, err, ErrNoLimit)

	_, err = parseMemoryMax("garbage")
	assert.Error(t, err)
}

func TestParseV1MemoryLimit(t *testing.T) {
	v, err := parseV1MemoryLimit("536870912\n")
	require.NoError(t, err)
	assert.Equal(t, uint64(536870912), v)

	// The kernel's "unlimited" sentinel is a near-max value.
	_, err = parseV1MemoryLimit("9223372036854771712\n")
	assert.ErrorIs(t, err, ErrNoLimit)
}

func TestParseCPUMax(t *testing.T) {
	v, err := parseCPUMax("200000 100000\n")
	require.NoError(t, err)
	assert.Equal(t, 2.0, v)

	_, err = parseCPUMax("max 100000\n")
	assert.ErrorIs(t, err, ErrNoLimit)

	_, err = parseCPUMax("100000\n")
	assert.Error(t, err)

	_, err = parseCPUMax("100000 0\n")
	assert.Error(t, err)
}

func TestParseV1CPUQuota(t *testing.T) {
	v, err := parseV1CPUQuota("50000\n", "100000\n")
	require.NoError(t, err)
	assert.Equal(t, 0.5, v)

	_, err = parseV1CPUQuota("-1\n", "100000\n")
	assert.ErrorIs(t, err, ErrNoLimit)
}

func TestProcessMemory(t *testing.T) {
	resident, virtual, err := ProcessMemory()
	if err != nil {
		t.Skipf("procfs not available: %v", err)
	}
	assert.Greater(t, resident, uint64(0))
	assert.Greater(t, virtual, uint64(0))
}

func TestNumCPUsWithQuota(t *testing.T) {
	assert.GreaterOrEqual(t, NumCPUsWithQuota(), 1)
}
