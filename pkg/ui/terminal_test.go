package ui

import (
	"bytes"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureStdout runs fn and returns everything it wrote to stdout
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()

	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	fn()

	require.NoError(t, w.Close())
	os.Stdout = old

	var buf bytes.Buffer
	_, err = io.Copy(&buf, r)
	require.NoError(t, err)
	return buf.String()
}

func TestPrintErrorFormatsArgs(t *testing.T) {
	out := captureStdout(t, func() {
		PrintError("Cannot open record store: %v", errors.New("disk gone"))
	})

	assert.Contains(t, out, "Cannot open record store: disk gone")
	assert.NotContains(t, out, "%v")
}

func TestPrintErrorWithoutArgs(t *testing.T) {
	out := captureStdout(t, func() {
		PrintError("No search terms given")
	})

	assert.Contains(t, out, "No search terms given")
}

func TestPrintWarningFormatsArgs(t *testing.T) {
	SetQuietMode(false)

	out := captureStdout(t, func() {
		PrintWarning("Skipping %s after %d attempts", "bottle", 3)
	})

	assert.Contains(t, out, "Skipping bottle after 3 attempts")
	assert.NotContains(t, out, "%s")
	assert.NotContains(t, out, "%d")
}

func TestQuietModeSuppressesWarnings(t *testing.T) {
	SetQuietMode(true)
	defer SetQuietMode(false)

	out := captureStdout(t, func() {
		PrintWarning("should not appear")
	})

	assert.Empty(t, out)
}

func TestLogoLinesAligned(t *testing.T) {
	lines := strings.Split(strings.Trim(ASCIILogo, "\n"), "\n")
	require.NotEmpty(t, lines)

	width := utf8.RuneCountInString(lines[0])
	for _, line := range lines {
		assert.Equal(t, width, utf8.RuneCountInString(line), "line %q", line)
	}
}
