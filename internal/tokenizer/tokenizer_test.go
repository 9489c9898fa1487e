package tokenizer

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_MissingManifest(t *testing.T) {
	dir := t.TempDir()

	_, err := New(dir)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidModel))
}

func TestNew_MissingTokenizerConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "tokenizer.json", `{}`)

	_, err := New(dir)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidModel))
}

func TestNew_MissingVocab(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "tokenizer.json", `{}`)
	writeFile(t, dir, "tokenizer_config.json", `{"pad_token": "[PAD]"}`)

	_, err := New(dir)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidModel))
}

func TestNew_PadSymbolMissingFromVocab(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "tokenizer.json", `{}`)
	writeFile(t, dir, "tokenizer_config.json", `{"pad_token": "[PAD]"}`)
	writeFile(t, dir, "vocab.json", `{"[CLS]": 0, "[SEP]": 1}`)

	_, err := New(dir)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidModel))
	assert.Contains(t, err.Error(), "[PAD]")
}

func TestLoadVocab_JSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "vocab.json", `{"[PAD]": 0, "hello": 7592}`)

	vocab, err := loadVocab(dir)
	require.NoError(t, err)
	assert.Equal(t, 0, vocab["[PAD]"])
	assert.Equal(t, 7592, vocab["hello"])
}

func TestLoadVocab_LineIndexedTxt(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "vocab.txt", "[PAD]\n[UNK]\nhello\nworld\n")

	vocab, err := loadVocab(dir)
	require.NoError(t, err)
	assert.Equal(t, 0, vocab["[PAD]"])
	assert.Equal(t, 1, vocab["[UNK]"])
	assert.Equal(t, 2, vocab["hello"])
	assert.Equal(t, 3, vocab["world"])
}

func TestLoadTokenizerConfig_DefaultsPadToken(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "tokenizer_config.json", `{}`)

	cfg, err := loadTokenizerConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "[PAD]", cfg.PadToken)
}

func TestParseLineIndexedVocab_HandlesCRLF(t *testing.T) {
	vocab := parseLineIndexedVocab([]byte("a\r\nb\r\nc"))
	assert.Equal(t, 0, vocab["a"])
	assert.Equal(t, 1, vocab["b"])
	assert.Equal(t, 2, vocab["c"])
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}
