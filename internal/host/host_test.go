package host

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultBuiltinsCoversEveryName(t *testing.T) {
	tab := DefaultBuiltins()
	require.Len(t, tab, len(BuiltinNames))
	for _, name := range BuiltinNames {
		addr, ok := tab.Lookup(name)
		require.True(t, ok, "missing builtin %s", name)
		assert.GreaterOrEqual(t, addr, uint32(BuiltinBase))
	}
}

func TestDefaultBuiltinsAddressesAreDistinctAndStrided(t *testing.T) {
	tab := DefaultBuiltins()
	seen := make(map[uint32]string)
	for _, name := range BuiltinNames {
		addr, _ := tab.Lookup(name)
		if other, dup := seen[addr]; dup {
			t.Fatalf("address %#x shared by %s and %s", addr, name, other)
		}
		seen[addr] = name
	}

	first, _ := tab.Lookup(BuiltinNames[0])
	second, _ := tab.Lookup(BuiltinNames[1])
	assert.Equal(t, uint32(BuiltinStride), second-first)
}

func TestLookupMissingBuiltin(t *testing.T) {
	tab := BuiltinTable{}
	_, ok := tab.Lookup("not_a_builtin")
	assert.False(t, ok)
}

func TestOSReadWriteFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.bin")

	var svc Services = OS{}
	require.NoError(t, svc.WriteFile(path, []byte("hello")))

	data, err := svc.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&0o100, "written files must be executable")
}

func TestOSYieldDoesNotPanic(t *testing.T) {
	var svc Services = OS{}
	assert.NotPanics(t, func() { svc.Yield() })
}
