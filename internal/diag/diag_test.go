package diag

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewWithNilWriterDefaultsToStderr(t *testing.T) {
	r := New(nil)
	assert.True(t, r.OK())
	assert.Equal(t, 0, r.Failures())
}

func TestFAILIncrementsFailuresAndWritesMessage(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf)
	r.FAIL("parse", "unexpected token %s", "foo")

	assert.Equal(t, 1, r.Failures())
	assert.False(t, r.OK())
	assert.Contains(t, buf.String(), "[cc2_parse] FAIL")
	assert.Contains(t, buf.String(), "unexpected token foo")
}

func TestInfoDoesNotAffectFailureCount(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf)
	r.Info("link", "resolved %d calls", 3)
	assert.Equal(t, 0, r.Failures())
	assert.True(t, r.OK())
	assert.Contains(t, buf.String(), "resolved 3 calls")
}

func TestStatusReportsPassThenFail(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf)
	r.Status()
	assert.Contains(t, buf.String(), "status PASS")

	buf.Reset()
	r.FAIL("emit", "overflow")
	r.Status()
	assert.Contains(t, buf.String(), "status FAIL")
}
