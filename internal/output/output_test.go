package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriter_Status_PrintsIconAndMessage(t *testing.T) {
	// Given: a writer with a buffer
	buf := &bytes.Buffer{}
	w := New(buf)

	// When: printing a status message
	w.Status("🔍", "Scanning notes...")

	// Then: output contains icon and message
	output := buf.String()
	assert.Contains(t, output, "🔍")
	assert.Contains(t, output, "Scanning notes...")
}

func TestWriter_Status_NoIconIndents(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Status("", "continuation line")

	assert.Equal(t, "   continuation line\n", buf.String())
}

func TestWriter_Success_PrintsCheckmark(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Success("Index complete!")

	output := buf.String()
	assert.Contains(t, output, "✅")
	assert.Contains(t, output, "Index complete!")
}

func TestWriter_Warning_PrintsWarningIcon(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Warning("Embedder not available")

	output := buf.String()
	assert.Contains(t, output, "⚠️")
	assert.Contains(t, output, "Embedder not available")
}

func TestWriter_Errorf_FormatsMessage(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Errorf("failed after %d retries", 3)

	output := buf.String()
	assert.Contains(t, output, "❌")
	assert.Contains(t, output, "failed after 3 retries")
}

func TestWriter_BoldDim_PlainWhenNotTerminal(t *testing.T) {
	// Given: a writer over a plain buffer (not a terminal)
	buf := &bytes.Buffer{}
	w := New(buf)

	// Then: styling is a no-op, no escape codes leak into piped output
	assert.Equal(t, "title", w.Bold("title"))
	assert.Equal(t, "hint", w.Dim("hint"))
}

func TestWriter_Code_IndentsEveryLine(t *testing.T) {
	// Given: a two-line block
	buf := &bytes.Buffer{}
	w := New(buf)

	// When: printing it as code
	w.Code("line one\nline two")

	// Then: each line is indented and padded with blank lines
	lines := strings.Split(buf.String(), "\n")
	assert.Contains(t, lines, "  line one")
	assert.Contains(t, lines, "  line two")
	assert.Equal(t, "", lines[0])
}
