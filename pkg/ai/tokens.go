package ai

import (
	"github.com/pkoukk/tiktoken-go"
)

// DefaultTokenEncoder is the encoding used when none is configured.
const DefaultTokenEncoder = "o200k_base"

// CapTokens truncates text to at most maxTokens tokens under the given
// encoding. Extraction prompts have a finite input budget, so raw search
// text is capped before it is handed to the model.
func CapTokens(text string, encoder string, maxTokens int) (string, error) {
	if text == "" || maxTokens <= 0 {
		return "", nil
	}
	if encoder == "" {
		encoder = DefaultTokenEncoder
	}

	enc, err := tiktoken.GetEncoding(encoder)
	if err != nil {
		return "", err
	}

	tokens := enc.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text, nil
	}

	return enc.Decode(tokens[:maxTokens]), nil
}
