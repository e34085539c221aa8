package embed

import (
	"context"
	"hash/fnv"
	"regexp"
	"strings"
	"sync"

	qerrors "github.com/quadfuse/quadfuse/internal/errors"
)

// Feature weights for vector generation. Whole tokens dominate, character
// trigrams provide partial-match signal for typos and morphology.
const (
	tokenWeight = 0.7
	ngramWeight = 0.3
	ngramSize   = 3
)

// stopWords are filtered before hashing. They carry no retrieval signal and
// would otherwise dominate short queries.
var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true,
	"at": true, "be": true, "by": true, "for": true, "from": true,
	"in": true, "is": true, "it": true, "of": true, "on": true,
	"or": true, "that": true, "the": true, "to": true, "with": true,
}

var tokenRegex = regexp.MustCompile(`[a-zA-Z0-9]+`)

// StaticEmbedder generates embeddings by hashing tokens and character
// n-grams into a fixed-size vector. Deterministic, dependency-free, and
// fast, at the cost of semantic quality.
type StaticEmbedder struct {
	mu     sync.RWMutex
	closed bool
}

// NewStaticEmbedder creates a new static embedder.
func NewStaticEmbedder() *StaticEmbedder {
	return &StaticEmbedder{}
}

// Embed generates an embedding for a single text. Empty or whitespace-only
// input maps to the zero vector.
func (e *StaticEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, qerrors.New(qerrors.ErrCodeEmbeddingFailed, "embedder is closed", nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, qerrors.New(qerrors.ErrCodeEmbeddingFailed, "embedding cancelled", err)
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return make([]float32, DefaultDimensions), nil
	}

	vector := make([]float32, DefaultDimensions)
	for _, token := range tokenize(trimmed) {
		vector[hashToIndex(token, DefaultDimensions)] += tokenWeight
	}
	joined := strings.ToLower(tokenRegex.ReplaceAllString(trimmed, " "))
	for _, gram := range extractNgrams(joined, ngramSize) {
		vector[hashToIndex(gram, DefaultDimensions)] += ngramWeight
	}

	return normalizeVector(vector), nil
}

// EmbedBatch generates embeddings for multiple texts sequentially.
func (e *StaticEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		results[i] = vec
	}
	return results, nil
}

// Dimensions returns the embedding dimension.
func (e *StaticEmbedder) Dimensions() int {
	return DefaultDimensions
}

// ModelName returns the model identifier.
func (e *StaticEmbedder) ModelName() string {
	return "static-hash-256"
}

// Available always reports true unless closed.
func (e *StaticEmbedder) Available(ctx context.Context) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return !e.closed
}

// Close marks the embedder closed. Subsequent Embed calls fail.
func (e *StaticEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

// tokenize lowercases, splits identifiers, and drops stop words.
func tokenize(text string) []string {
	var tokens []string
	for _, word := range tokenRegex.FindAllString(text, -1) {
		for _, sub := range splitIdentifier(word) {
			lower := strings.ToLower(sub)
			if lower != "" && !stopWords[lower] {
				tokens = append(tokens, lower)
			}
		}
	}
	return tokens
}

// splitIdentifier breaks camelCase and digit boundaries so code-like query
// terms match their parts.
func splitIdentifier(word string) []string {
	var parts []string
	start := 0
	for i := 1; i < len(word); i++ {
		prev, cur := word[i-1], word[i]
		boundary := (isLower(prev) && isUpper(cur)) ||
			(isDigit(prev) != isDigit(cur))
		if boundary {
			parts = append(parts, word[start:i])
			start = i
		}
	}
	parts = append(parts, word[start:])
	return parts
}

func isLower(b byte) bool { return b >= 'a' && b <= 'z' }
func isUpper(b byte) bool { return b >= 'A' && b <= 'Z' }
func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// extractNgrams returns all character n-grams of the given size, skipping
// grams that span spaces.
func extractNgrams(text string, size int) []string {
	if len(text) < size {
		return nil
	}
	grams := make([]string, 0, len(text)-size+1)
	for i := 0; i+size <= len(text); i++ {
		gram := text[i : i+size]
		if strings.ContainsRune(gram, ' ') {
			continue
		}
		grams = append(grams, gram)
	}
	return grams
}

// hashToIndex maps a feature to a vector index via FNV-1a.
func hashToIndex(s string, dims int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return int(h.Sum32() % uint32(dims))
}
