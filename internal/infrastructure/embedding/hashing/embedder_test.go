package hashing

import (
	"context"
	"math"
	"testing"
)

func TestEmbedDeterministic(t *testing.T) {
	e := New(64)
	a, err := e.EmbedQuery(context.Background(), "rainfall in punjab 2020")
	if err != nil {
		t.Fatalf("EmbedQuery() error = %v", err)
	}
	b, err := e.EmbedQuery(context.Background(), "rainfall in punjab 2020")
	if err != nil {
		t.Fatalf("EmbedQuery() error = %v", err)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("vectors differ at %d: %f vs %f", i, a[i], b[i])
		}
	}
}

func TestEmbedUnitNorm(t *testing.T) {
	e := New(128)
	vec, err := e.EmbedQuery(context.Background(), "wheat yield in haryana")
	if err != nil {
		t.Fatalf("EmbedQuery() error = %v", err)
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if math.Abs(math.Sqrt(norm)-1) > 1e-5 {
		t.Fatalf("norm = %f, want 1", math.Sqrt(norm))
	}
}

func TestEmbedSimilarTextsScoreHigher(t *testing.T) {
	e := New(256)
	base, _ := e.EmbedQuery(context.Background(), "rainfall trend in punjab")
	similar, _ := e.EmbedQuery(context.Background(), "punjab rainfall trends")
	unrelated, _ := e.EmbedQuery(context.Background(), "football league schedule berlin")

	if dot(base, similar) <= dot(base, unrelated) {
		t.Fatalf("similar text must score above unrelated: %f vs %f",
			dot(base, similar), dot(base, unrelated))
	}
}

func TestEmbedBatchMatchesSingle(t *testing.T) {
	e := New(64)
	batch, err := e.Embed(context.Background(), []string{"rice production", "cotton area"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(batch) != 2 {
		t.Fatalf("batch size = %d, want 2", len(batch))
	}
	single, _ := e.EmbedQuery(context.Background(), "rice production")
	for i := range single {
		if batch[0][i] != single[i] {
			t.Fatalf("batch and single embeddings differ at %d", i)
		}
	}
}

func TestEmbedEmptyText(t *testing.T) {
	e := New(32)
	vec, err := e.EmbedQuery(context.Background(), "")
	if err != nil {
		t.Fatalf("EmbedQuery() error = %v", err)
	}
	if len(vec) != 32 {
		t.Fatalf("dimension = %d, want 32", len(vec))
	}
	for _, v := range vec {
		if v != 0 {
			t.Fatalf("empty text must embed to the zero vector")
		}
	}
}

func TestDefaultDimension(t *testing.T) {
	if e := New(0); e.Dimension() != DefaultDimension {
		t.Fatalf("dimension = %d, want default %d", e.Dimension(), DefaultDimension)
	}
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
