package textloom

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// NormalizeText collapses runs of whitespace to single spaces and trims the
// ends, so that incidental formatting differences produce identical keys.
func NormalizeText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// HashText computes the SHA-256 hash of the normalized text.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(NormalizeText(text)))
	return hex.EncodeToString(sum[:])
}

// CacheKey derives a stable cache key for one span's completion. Two
// semantically identical requests hash identically regardless of whitespace
// differences in the text.
func CacheKey(text string, opts ProcessingOptions) string {
	h := sha256.New()
	for _, part := range []string{
		NormalizeText(text),
		opts.Model,
		string(opts.Task),
		opts.SourceLang,
		opts.TargetLang,
		opts.ExtraPrompt,
	} {
		h.Write([]byte(part))
		h.Write([]byte{0x1f})
	}
	return hex.EncodeToString(h.Sum(nil))
}
