package preproc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLitePreprocessorExpandsObjectLikeMacro(t *testing.T) {
	pp := New(Lite)
	out, err := pp.Run([]byte("#define SIZE 16\nint a[SIZE];\n"))
	require.NoError(t, err)
	assert.Contains(t, string(out), "int a[16];")
	assert.Equal(t, 0, pp.Failures)
}

func TestZeroDirectiveSourceIsPreprocessingIdentity(t *testing.T) {
	pp := New(Lite)
	src := "int main() {\n    return 0;\n}\n"
	out, err := pp.Run([]byte(src))
	require.NoError(t, err)
	assert.Equal(t, src, string(out))
}

func TestLiteModePassesIncludeThroughWithoutReader(t *testing.T) {
	pp := New(Lite)
	out, err := pp.Run([]byte("#include \"x.h\"\nint y;\n"))
	require.NoError(t, err)
	// Lite mode passes unknown directives through untouched, no reader needed.
	assert.Contains(t, string(out), "int y;")
}

func TestFullModeFunctionLikeMacroOneParam(t *testing.T) {
	pp := New(Full)
	out, err := pp.Run([]byte("#define SQ(x) x*x\nint r = SQ(5);\n"))
	require.NoError(t, err)
	assert.Contains(t, string(out), "5*5")
}

func TestFullModeFunctionLikeMacroTwoParams(t *testing.T) {
	pp := New(Full)
	out, err := pp.Run([]byte("#define ADD(a,b) a+b\nint r = ADD(1,2);\n"))
	require.NoError(t, err)
	assert.Contains(t, string(out), "1+2")
}

func TestFullModeIfndefElseEndif(t *testing.T) {
	pp := New(Full)
	src := "#ifndef FOO\nint a;\n#else\nint b;\n#endif\n"
	out, err := pp.Run([]byte(src))
	require.NoError(t, err)
	assert.Contains(t, string(out), "int a;")
	assert.NotContains(t, string(out), "int b;")
}

func TestFullModeIncludeDepthOneAllowed(t *testing.T) {
	pp := New(Full)
	pp.Include = func(path string) ([]byte, error) {
		if path == "a.h" {
			return []byte("int from_a;\n"), nil
		}
		return nil, assertNotReached(path)
	}
	out, err := pp.Run([]byte("#include \"a.h\"\nint main;\n"))
	require.NoError(t, err)
	assert.Contains(t, string(out), "int from_a;")
	assert.Contains(t, string(out), "int main;")
}

func TestFullModeIncludeDepthTwoFails(t *testing.T) {
	pp := New(Full)
	pp.Include = func(path string) ([]byte, error) {
		switch path {
		case "a.h":
			return []byte("#include \"b.h\"\n"), nil
		case "b.h":
			return []byte("int nested;\n"), nil
		}
		return nil, assertNotReached(path)
	}
	_, err := pp.Run([]byte("#include \"a.h\"\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, pp.Failures, "include depth > 1 must be rejected")
}

func TestUndefRemovesMacroDuringRun(t *testing.T) {
	pp := New(Lite)
	out, err := pp.Run([]byte("#define X 1\n#undef X\nint X;\n"))
	require.NoError(t, err)
	assert.Contains(t, string(out), "int X;")
}

func TestSourceAtMaxSourceBytesIsAccepted(t *testing.T) {
	pp := New(Lite)
	src := make([]byte, MaxSourceBytes)
	for i := range src {
		src[i] = ' '
	}
	src[len(src)-1] = '\n'
	_, err := pp.Run(src)
	require.NoError(t, err)
	assert.Equal(t, 0, pp.Failures)
}

func TestSourceOverMaxSourceBytesIsRejected(t *testing.T) {
	pp := New(Lite)
	src := make([]byte, MaxSourceBytes+1)
	for i := range src {
		src[i] = ' '
	}
	_, err := pp.Run(src)
	require.Error(t, err)
	assert.Equal(t, 1, pp.Failures)
}

type stubErr string

func (e stubErr) Error() string { return string(e) }

func assertNotReached(path string) error { return stubErr("unexpected include: " + path) }
