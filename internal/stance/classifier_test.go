package stance_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"debatelens/internal/services"
	"debatelens/internal/stance"
)

type fakeEmbedder struct {
	vectors map[string][]float64
	calls   int
	err     error
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float64, 0, len(texts))
	for _, text := range texts {
		vector, ok := f.vectors[text]
		if !ok {
			return nil, fmt.Errorf("no vector for %q", text)
		}
		out = append(out, vector)
	}
	return out, nil
}

func newFixture() (*fakeEmbedder, map[string][]string) {
	embedder := &fakeEmbedder{vectors: map[string][]float64{
		"tax the rich":        {1, 0, 0},
		"expand healthcare":   {0.8, 0.2, 0},
		"cut taxes":           {0, 1, 0},
		"secure the border":   {0, 0.9, 0.1},
		"find common ground":  {0, 0, 1},
		"healthcare for all":  {1, 0, 0},
		"lower the rates":     {-0.2, 1, 0},
		"opposite of all":     {-1, -1, -1},
		"both sides have one": {0.5, 0.5, 0},
	}}
	refs := map[string][]string{
		"liberal":      {"tax the rich", "expand healthcare"},
		"conservative": {"cut taxes", "secure the border"},
		"moderate":     {"find common ground"},
	}
	return embedder, refs
}

func sum(scores map[string]float64) float64 {
	total := 0.0
	for _, v := range scores {
		total += v
	}
	return total
}

func TestClassifyFavoursNearestCentroid(t *testing.T) {
	embedder, refs := newFixture()
	classifier, err := stance.NewClassifier(embedder, refs)
	if err != nil {
		t.Fatalf("NewClassifier: %v", err)
	}

	score, err := classifier.Classify(context.Background(), "healthcare for all")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if score.Dominant != "liberal" {
		t.Fatalf("expected liberal, got %q (%v)", score.Dominant, score.Scores)
	}
	if math.Abs(sum(score.Scores)-1) > 1e-9 {
		t.Fatalf("scores must sum to 1, got %v", sum(score.Scores))
	}
	if score.Confidence != score.Scores["liberal"] {
		t.Fatalf("confidence should equal dominant probability")
	}
	if score.Scores["moderate"] != 0 {
		t.Fatalf("orthogonal category should score 0, got %v", score.Scores["moderate"])
	}
}

func TestClassifyClampsNegativeSimilarity(t *testing.T) {
	embedder, refs := newFixture()
	classifier, err := stance.NewClassifier(embedder, refs)
	if err != nil {
		t.Fatal(err)
	}
	score, err := classifier.Classify(context.Background(), "lower the rates")
	if err != nil {
		t.Fatal(err)
	}
	if score.Dominant != "conservative" {
		t.Fatalf("expected conservative, got %q", score.Dominant)
	}
	for category, value := range score.Scores {
		if value < 0 {
			t.Fatalf("category %s has negative probability %v", category, value)
		}
	}
}

func TestClassifyAllNegativeIsUniform(t *testing.T) {
	embedder, refs := newFixture()
	classifier, err := stance.NewClassifier(embedder, refs)
	if err != nil {
		t.Fatal(err)
	}
	score, err := classifier.Classify(context.Background(), "opposite of all")
	if err != nil {
		t.Fatal(err)
	}
	for category, value := range score.Scores {
		if math.Abs(value-1.0/3) > 1e-9 {
			t.Fatalf("expected uniform, %s = %v", category, value)
		}
	}
}

func TestClassifyBlankTextIsUniformWithoutEmbedding(t *testing.T) {
	embedder, refs := newFixture()
	classifier, err := stance.NewClassifier(embedder, refs)
	if err != nil {
		t.Fatal(err)
	}
	score, err := classifier.Classify(context.Background(), "   ")
	if err != nil {
		t.Fatal(err)
	}
	if embedder.calls != 0 {
		t.Fatalf("expected no embedding calls, got %d", embedder.calls)
	}
	if math.Abs(sum(score.Scores)-1) > 1e-9 || len(score.Scores) != 3 {
		t.Fatalf("unexpected blank distribution %v", score.Scores)
	}
	if score.Dominant != "conservative" {
		t.Fatalf("ties should resolve to the first category, got %q", score.Dominant)
	}
}

func TestCentroidsComputedOnce(t *testing.T) {
	embedder, refs := newFixture()
	classifier, err := stance.NewClassifier(embedder, refs)
	if err != nil {
		t.Fatal(err)
	}
	for _, text := range []string{"healthcare for all", "lower the rates", "both sides have one"} {
		if _, err := classifier.Classify(context.Background(), text); err != nil {
			t.Fatal(err)
		}
	}
	if embedder.calls != 4 {
		t.Fatalf("expected 1 reference call + 3 text calls, got %d", embedder.calls)
	}
}

func TestClassifyEmbedderFailureIsExternalTool(t *testing.T) {
	embedder, refs := newFixture()
	embedder.err = errors.New("connection refused")
	classifier, err := stance.NewClassifier(embedder, refs)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := classifier.Classify(context.Background(), "cut taxes"); !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}

func TestNewClassifierValidatesReferences(t *testing.T) {
	embedder, _ := newFixture()
	if _, err := stance.NewClassifier(embedder, map[string][]string{"only": {"x"}}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if _, err := stance.NewClassifier(embedder, map[string][]string{"a": {"x"}, "b": {" "}}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error for empty category, got %v", err)
	}
	if _, err := stance.NewClassifier(nil, map[string][]string{"a": {"x"}, "b": {"y"}}); err == nil {
		t.Fatal("expected error for nil embedder")
	}
}

func TestDistributionSumsToOne(t *testing.T) {
	categories := []string{"a", "b", "c", "d"}
	cases := [][]float64{
		{0.1, 0.2, 0.3, 0.4},
		{0.9, -0.3, 0, 0.05},
		{0, 0, 0, 0},
		{math.NaN(), 0.5, 0.5, 0},
		{1e-12, 0, 0, 0},
	}
	for _, sims := range cases {
		score := stance.Distribution(categories, sims)
		if math.Abs(sum(score.Scores)-1) > 1e-9 {
			t.Fatalf("Distribution(%v) sums to %v", sims, sum(score.Scores))
		}
		if score.Scores[score.Dominant] != score.Confidence {
			t.Fatalf("confidence mismatch for %v", sims)
		}
	}
}

func TestCosine(t *testing.T) {
	sim, err := stance.Cosine([]float64{1, 0}, []float64{1, 0})
	if err != nil || math.Abs(sim-1) > 1e-12 {
		t.Fatalf("expected 1, got %v (%v)", sim, err)
	}
	sim, err = stance.Cosine([]float64{0, 0}, []float64{1, 0})
	if err != nil || sim != 0 {
		t.Fatalf("expected 0 for zero vector, got %v (%v)", sim, err)
	}
	if _, err := stance.Cosine([]float64{1}, []float64{1, 2}); err == nil {
		t.Fatal("expected dimension error")
	}
}
