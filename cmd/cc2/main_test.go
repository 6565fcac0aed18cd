package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPickSourceArgPrefersCCSuffixed(t *testing.T) {
	assert.Equal(t, "prog.cc", pickSourceArg([]string{"prog.cc"}))
	assert.Equal(t, "b.cc", pickSourceArg([]string{"a.txt", "b.cc"}))
}

func TestPickSourceArgToleratesOwnArgvZero(t *testing.T) {
	// Mirrors the original argv scanner tolerating its own program path
	// reappearing among the positional arguments.
	got := pickSourceArg([]string{"/usr/bin/cc2", "main.cc"})
	assert.Equal(t, "main.cc", got)
}

func TestPickSourceArgFallsBackToLastPositional(t *testing.T) {
	assert.Equal(t, "last", pickSourceArg([]string{"first", "last"}))
	assert.Equal(t, "", pickSourceArg(nil))
}

func TestDeriveOutputPathReplacesCCSuffix(t *testing.T) {
	assert.Equal(t, "prog.elf", deriveOutputPath("prog.cc"))
	assert.Equal(t, "dir/prog.elf", deriveOutputPath("dir/prog.cc"))
}

func TestDeriveOutputPathAppendsWhenNoCCSuffix(t *testing.T) {
	assert.Equal(t, "prog.elf", deriveOutputPath("prog"))
}

func TestIncludeReaderReadsRelativeToSourceDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "header.cc"), []byte("int x;"), 0o644))

	read := includeReader(dir)
	data, err := read("header.cc")
	require.NoError(t, err)
	assert.Equal(t, "int x;", string(data))
}

func TestRunCompilesSourceFileToELF(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "prog.cc")
	require.NoError(t, os.WriteFile(src, []byte("int main() { return 0; }"), 0o644))

	code := run([]string{src})
	assert.Equal(t, 0, code)

	out := filepath.Join(dir, "prog.elf")
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x7f, 'E', 'L', 'F'}, data[0:4])

	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&0o100)
}

func TestRunHonoursOutputFlag(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "prog.cc")
	require.NoError(t, os.WriteFile(src, []byte("int main() { return 0; }"), 0o644))
	outPath := filepath.Join(dir, "custom.bin")

	code := run([]string{"-o", outPath, src})
	assert.Equal(t, 0, code)

	_, err := os.Stat(outPath)
	require.NoError(t, err)
}

func TestRunFailsOnMissingMain(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "prog.cc")
	require.NoError(t, os.WriteFile(src, []byte("int helper() { return 1; }"), 0o644))

	code := run([]string{src})
	assert.Equal(t, 1, code)
}

func TestRunFailsOnMissingSourceFile(t *testing.T) {
	code := run([]string{filepath.Join(t.TempDir(), "nope.cc")})
	assert.Equal(t, 1, code)
}
