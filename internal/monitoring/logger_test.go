package monitoring

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func capture(t *testing.T) *[]string {
	t.Helper()
	original := Logf
	t.Cleanup(func() { Logf = original })
	var lines []string
	SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})
	return &lines
}

func TestSetLogger(t *testing.T) {
	lines := capture(t)
	Logf("sample %s", "s1")
	assert.Equal(t, []string{"sample s1"}, *lines)

	SetLogger(nil)
	assert.NotPanics(t, func() { Logf("dropped") })
	assert.Len(t, *lines, 1, "no-op logger must not reach the previous one")
}

func TestPrefixed(t *testing.T) {
	lines := capture(t)
	batchf := Prefixed("batch")
	batchf("skipped %d of %d", 2, 5)
	assert.Equal(t, []string{"[batch] skipped 2 of 5"}, *lines)

	// The prefix logger follows later SetLogger calls.
	var later []string
	SetLogger(func(format string, v ...interface{}) { later = append(later, fmt.Sprintf(format, v...)) })
	batchf("done")
	assert.Equal(t, []string{"[batch] done"}, later)
}

func TestLogf_Default(t *testing.T) {
	assert.NotNil(t, Logf)
}
