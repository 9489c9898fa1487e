package cmd

import (
	"bytes"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/netmonitor/semantic-index/internal/indexing"
)

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	return buf.String()
}

func TestPrintIndexResult_KeyValue(t *testing.T) {
	outputJSON = false
	result := &indexing.Result{
		Success:     false,
		Message:     "indexing completed with failed items",
		IndexedIDs:  []string{"a", "b"},
		FailedIDs:   []string{"c"},
		Diagnostics: []string{"c: embed failed"},
	}

	output := captureStdout(t, func() {
		err := printIndexResult(result)
		assert.NoError(t, err)
	})

	assert.Contains(t, output, "Success:")
	assert.Contains(t, output, "false")
	assert.Contains(t, output, "Indexed:")
	assert.Contains(t, output, "2")
	assert.Contains(t, output, "Failed:")
	assert.Contains(t, output, "1")
	assert.Contains(t, output, "c: embed failed")
}

func TestPrintIndexResult_JSON(t *testing.T) {
	outputJSON = true
	defer func() { outputJSON = false }()

	result := &indexing.Result{Success: true, Message: "ok"}

	output := captureStdout(t, func() {
		err := printIndexResult(result)
		assert.NoError(t, err)
	})

	assert.Contains(t, output, "\"Success\": true")
}
