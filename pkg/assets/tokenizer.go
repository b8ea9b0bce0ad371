package assets

import (
	"fmt"
	"strings"

	"github.com/clipperhouse/uax29/v2/words"

	"github.com/koharu-go/koharu/pkg/kerr"
)

// ggufTokenizer implements llm.Tokenizer directly from the vocabulary a
// GGUF file embeds as metadata (tokenizer.ggml.tokens), rather than
// shelling out to a separate tokenizer file. Matching is greedy
// longest-prefix over UAX #29 word boundaries, with a byte-fallback token
// (llama.cpp's "<0xXX>" convention) for anything the vocabulary doesn't
// cover directly.
type ggufTokenizer struct {
	tokenToID map[string]uint32
	idToToken []string
	spaceMark string
}

// newGGUFTokenizer builds a tokenizer from a GGUF file's metadata. Returns
// kerr.BadInput if the file has no tokenizer.ggml.tokens array.
func newGGUFTokenizer(gg *File) (*ggufTokenizer, error) {
	raw, ok := gg.Metadata["tokenizer.ggml.tokens"]
	if !ok {
		return nil, kerr.New(kerr.BadInput, "gguf: missing tokenizer.ggml.tokens metadata")
	}
	arr, ok := raw.([]any)
	if !ok {
		return nil, kerr.New(kerr.BadInput, "gguf: tokenizer.ggml.tokens is not an array")
	}

	tok := &ggufTokenizer{
		tokenToID: make(map[string]uint32, len(arr)),
		idToToken: make([]string, len(arr)),
		spaceMark: "▁", // SentencePiece's "▁" word-boundary marker
	}
	for i, v := range arr {
		s, _ := v.(string)
		tok.idToToken[i] = s
		tok.tokenToID[s] = uint32(i)
	}
	return tok, nil
}

// Encode segments text into words via UAX #29, then greedily matches each
// word (and its leading space marker) against the vocabulary, falling
// back to byte tokens for anything unmatched.
func (t *ggufTokenizer) Encode(text string) []uint32 {
	var ids []uint32
	seg := words.NewSegmenter([]byte(text))
	first := true
	for seg.Next() {
		word := string(seg.Bytes())
		if strings.TrimSpace(word) == "" {
			continue
		}
		candidate := word
		if !first {
			candidate = t.spaceMark + word
		}
		first = false
		ids = append(ids, t.encodeWord(candidate)...)
	}
	return ids
}

func (t *ggufTokenizer) encodeWord(word string) []uint32 {
	var ids []uint32
	for len(word) > 0 {
		matched := false
		for l := len(word); l > 0; l-- {
			if id, ok := t.tokenToID[word[:l]]; ok {
				ids = append(ids, id)
				word = word[l:]
				matched = true
				break
			}
		}
		if !matched {
			// byte fallback, llama.cpp convention: one token per raw byte
			b := word[0]
			if id, ok := t.tokenToID[fmt.Sprintf("<0x%02X>", b)]; ok {
				ids = append(ids, id)
			}
			word = word[1:]
		}
	}
	return ids
}

// Decode joins tokens back into text, translating the SentencePiece space
// marker back into a literal space.
func (t *ggufTokenizer) Decode(ids []uint32) string {
	var b strings.Builder
	for _, id := range ids {
		if int(id) >= len(t.idToToken) {
			continue
		}
		b.WriteString(t.idToToken[id])
	}
	return strings.ReplaceAll(b.String(), t.spaceMark, " ")
}
