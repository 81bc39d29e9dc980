// Package hashing provides a deterministic feature-hashing embedder. It needs
// no external service, which makes it the offline/test default; dimensionality
// is fixed at construction so every vector in an index generation agrees.
package hashing

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

const DefaultDimension = 256

type Embedder struct {
	dim int
}

func New(dim int) *Embedder {
	if dim <= 0 {
		dim = DefaultDimension
	}
	return &Embedder{dim: dim}
}

func (e *Embedder) Dimension() int { return e.dim }

func (e *Embedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		out = append(out, e.vector(text))
	}
	return out, nil
}

func (e *Embedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return e.vector(text), nil
}

// vector hashes tokens into a signed bucket accumulator, applies sublinear
// term-frequency damping and L2-normalizes the result.
func (e *Embedder) vector(text string) []float32 {
	counts := make(map[uint32]float64, 32)
	for _, token := range tokenizeAlphaNum(text) {
		counts[hashToken(token)]++
	}

	accum := make([]float64, e.dim)
	for h, tf := range counts {
		idx := int(h) % e.dim
		sign := 1.0
		if (h>>31)&1 == 1 {
			sign = -1.0
		}
		accum[idx] += sign * (1.0 + math.Log(tf))
	}

	var norm float64
	for _, v := range accum {
		norm += v * v
	}
	vec := make([]float32, e.dim)
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i, v := range accum {
		vec[i] = float32(v / norm)
	}
	return vec
}

func hashToken(token string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(token))
	return h.Sum32()
}

func tokenizeAlphaNum(s string) []string {
	if s == "" {
		return nil
	}
	tokens := make([]string, 0, 16)
	var b strings.Builder
	for _, r := range s {
		r = unicode.ToLower(r)
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		tokens = append(tokens, b.String())
	}
	return tokens
}
