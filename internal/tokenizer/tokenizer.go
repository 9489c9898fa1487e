// Package tokenizer loads a fast-tokenizer model directory and turns text
// into the id sequences the embedding providers run inference over.
package tokenizer

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	hftok "github.com/daulet/tokenizers"
)

// ErrInvalidModel is returned when the model directory is missing required
// files or the pad symbol is absent from the vocabulary.
var ErrInvalidModel = errors.New("invalid model: tokenizer files or pad symbol missing")

// Input holds the three equal-length sequences a model consumes.
type Input struct {
	InputIDs      []int64
	AttentionMask []int64
	TokenTypeIDs  []int64
}

// Tokenizer wraps a HuggingFace fast-tokenizer runtime, resolving the pad
// token id at construction time so every downstream call can pad cheaply.
type Tokenizer struct {
	rt       *hftok.Tokenizer
	padID    uint32
	padToken string
}

type tokenizerConfig struct {
	PadToken       string `json:"pad_token"`
	ModelMaxLength *int   `json:"model_max_length"`
}

// New loads tokenizer.json, tokenizer_config.json, and a vocab.json or
// vocab.txt from modelDir. Construction fails with ErrInvalidModel if any
// required file is missing or the pad symbol is not in the vocabulary.
func New(modelDir string) (*Tokenizer, error) {
	manifestPath := filepath.Join(modelDir, "tokenizer.json")
	if _, err := os.Stat(manifestPath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidModel, err)
	}

	cfg, err := loadTokenizerConfig(modelDir)
	if err != nil {
		return nil, err
	}

	vocab, err := loadVocab(modelDir)
	if err != nil {
		return nil, err
	}

	padID, ok := vocab[cfg.PadToken]
	if !ok {
		return nil, fmt.Errorf("%w: pad symbol %q not found in vocabulary", ErrInvalidModel, cfg.PadToken)
	}

	rt, err := hftok.FromFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidModel, err)
	}

	return &Tokenizer{rt: rt, padID: uint32(padID), padToken: cfg.PadToken}, nil
}

func loadTokenizerConfig(modelDir string) (tokenizerConfig, error) {
	cfg := tokenizerConfig{PadToken: "[PAD]"}

	raw, err := os.ReadFile(filepath.Join(modelDir, "tokenizer_config.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, fmt.Errorf("%w: tokenizer_config.json missing", ErrInvalidModel)
		}
		return cfg, fmt.Errorf("%w: %s", ErrInvalidModel, err)
	}

	if err := json.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: malformed tokenizer_config.json: %s", ErrInvalidModel, err)
	}
	if cfg.PadToken == "" {
		cfg.PadToken = "[PAD]"
	}
	return cfg, nil
}

func loadVocab(modelDir string) (map[string]int, error) {
	if raw, err := os.ReadFile(filepath.Join(modelDir, "vocab.json")); err == nil {
		var vocab map[string]int
		if err := json.Unmarshal(raw, &vocab); err != nil {
			return nil, fmt.Errorf("%w: malformed vocab.json: %s", ErrInvalidModel, err)
		}
		return vocab, nil
	}

	raw, err := os.ReadFile(filepath.Join(modelDir, "vocab.txt"))
	if err != nil {
		return nil, fmt.Errorf("%w: neither vocab.json nor vocab.txt present", ErrInvalidModel)
	}
	return parseLineIndexedVocab(raw), nil
}

func parseLineIndexedVocab(raw []byte) map[string]int {
	vocab := make(map[string]int)
	start := 0
	id := 0
	for i, b := range raw {
		if b == '\n' {
			line := string(raw[start:i])
			line = trimCR(line)
			if line != "" {
				vocab[line] = id
			}
			id++
			start = i + 1
		}
	}
	if start < len(raw) {
		line := trimCR(string(raw[start:]))
		if line != "" {
			vocab[line] = id
		}
	}
	return vocab
}

func trimCR(s string) string {
	if n := len(s); n > 0 && s[n-1] == '\r' {
		return s[:n-1]
	}
	return s
}

// Encode returns the natural id sequence for text with no padding, including
// the model's implicit special tokens (e.g. [CLS]/[SEP] for BERT-style
// models), per the tokenizer manifest's post-processor.
func (t *Tokenizer) Encode(text string) []int64 {
	enc := t.rt.EncodeWithOptions(text, true)
	ids := make([]int64, len(enc.IDs))
	for i, id := range enc.IDs {
		ids[i] = int64(id)
	}
	return ids
}

// Count returns the natural token count, including implicit special tokens,
// without allocating downstream tensors.
func (t *Tokenizer) Count(text string) int {
	enc := t.rt.EncodeWithOptions(text, true)
	return len(enc.IDs)
}

// Tokenize encodes text and pads/truncates to exactly length tokens.
func (t *Tokenizer) Tokenize(text string, length int) *Input {
	ids := t.Encode(text)
	n := len(ids)
	if n > length {
		n = length
	}

	input := &Input{
		InputIDs:      make([]int64, length),
		AttentionMask: make([]int64, length),
		TokenTypeIDs:  make([]int64, length),
	}
	copy(input.InputIDs, ids[:n])
	for i := 0; i < n; i++ {
		input.AttentionMask[i] = 1
	}
	for i := n; i < length; i++ {
		input.InputIDs[i] = int64(t.padID)
	}
	return input
}

// TokenizeNoPad encodes text with no padding; attention mask is all 1s.
func (t *Tokenizer) TokenizeNoPad(text string) *Input {
	ids := t.Encode(text)
	input := &Input{
		InputIDs:      ids,
		AttentionMask: make([]int64, len(ids)),
		TokenTypeIDs:  make([]int64, len(ids)),
	}
	for i := range input.AttentionMask {
		input.AttentionMask[i] = 1
	}
	return input
}

// Decode converts ids back to text, used by the remote provider's
// context-length truncation retry.
func (t *Tokenizer) Decode(ids []int64) string {
	u32 := make([]uint32, len(ids))
	for i, id := range ids {
		u32[i] = uint32(id)
	}
	return t.rt.Decode(u32, true)
}

// Close releases the underlying Rust-backed tokenizer resources.
func (t *Tokenizer) Close() error {
	return t.rt.Close()
}
