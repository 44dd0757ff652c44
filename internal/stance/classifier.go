package stance

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"debatelens/internal/debate"
	"debatelens/internal/services"
)

// Embedder turns texts into vectors of equal dimension, one per input, in order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// Classifier scores texts against category centroids. Centroids are computed
// on first use and reused for the lifetime of the Classifier.
type Classifier struct {
	embedder   Embedder
	categories []string
	references map[string][]string

	mu        sync.Mutex
	centroids [][]float64
}

// NewClassifier validates references and returns a Classifier. No embedding
// calls are made until the first Classify or Prepare.
func NewClassifier(embedder Embedder, references map[string][]string) (*Classifier, error) {
	if embedder == nil {
		return nil, services.Wrap(services.ErrConfiguration, "stance", "classifier", "embedder required", nil)
	}
	cleaned := make(map[string][]string, len(references))
	for category, statements := range references {
		name := strings.TrimSpace(category)
		if name == "" {
			continue
		}
		for _, statement := range statements {
			if s := strings.TrimSpace(statement); s != "" {
				cleaned[name] = append(cleaned[name], s)
			}
		}
		if len(cleaned[name]) == 0 {
			return nil, services.Wrap(services.ErrConfiguration, "stance", "classifier", fmt.Sprintf("category %q has no reference statements", name), nil)
		}
	}
	if len(cleaned) < 2 {
		return nil, services.Wrap(services.ErrConfiguration, "stance", "classifier", "at least two categories required", nil)
	}
	categories := make([]string, 0, len(cleaned))
	for category := range cleaned {
		categories = append(categories, category)
	}
	sort.Strings(categories)
	return &Classifier{embedder: embedder, categories: categories, references: cleaned}, nil
}

// Categories returns the category names in scoring order.
func (c *Classifier) Categories() []string {
	return append([]string(nil), c.categories...)
}

// Prepare embeds the reference statements and computes centroids.
func (c *Classifier) Prepare(ctx context.Context) error {
	_, err := c.ensureCentroids(ctx)
	return err
}

func (c *Classifier) ensureCentroids(ctx context.Context) ([][]float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.centroids != nil {
		return c.centroids, nil
	}

	var statements []string
	owners := make([]int, 0)
	for idx, category := range c.categories {
		for _, statement := range c.references[category] {
			statements = append(statements, statement)
			owners = append(owners, idx)
		}
	}
	vectors, err := c.embedder.Embed(ctx, statements)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "stance", "embed references", "", err)
	}
	if len(vectors) != len(statements) {
		return nil, services.Wrap(services.ErrMalformed, "stance", "embed references", fmt.Sprintf("expected %d embeddings, got %d", len(statements), len(vectors)), nil)
	}

	grouped := make([][][]float64, len(c.categories))
	for i, vector := range vectors {
		grouped[owners[i]] = append(grouped[owners[i]], vector)
	}
	centroids := make([][]float64, len(c.categories))
	for idx, group := range grouped {
		centroid, err := Mean(group)
		if err != nil {
			return nil, services.Wrap(services.ErrMalformed, "stance", "embed references", c.categories[idx], err)
		}
		centroids[idx] = centroid
	}
	c.centroids = centroids
	return centroids, nil
}

// Classify returns the stance distribution for text. Blank text yields a
// uniform distribution without calling the embedder.
func (c *Classifier) Classify(ctx context.Context, text string) (debate.StanceScore, error) {
	if strings.TrimSpace(text) == "" {
		return Distribution(c.categories, make([]float64, len(c.categories))), nil
	}
	centroids, err := c.ensureCentroids(ctx)
	if err != nil {
		return debate.StanceScore{}, err
	}
	vectors, err := c.embedder.Embed(ctx, []string{text})
	if err != nil {
		return debate.StanceScore{}, services.Wrap(services.ErrExternalTool, "stance", "embed text", "", err)
	}
	if len(vectors) != 1 {
		return debate.StanceScore{}, services.Wrap(services.ErrMalformed, "stance", "embed text", fmt.Sprintf("expected 1 embedding, got %d", len(vectors)), nil)
	}
	similarities := make([]float64, len(centroids))
	for i, centroid := range centroids {
		sim, err := Cosine(vectors[0], centroid)
		if err != nil {
			return debate.StanceScore{}, services.Wrap(services.ErrMalformed, "stance", "similarity", c.categories[i], err)
		}
		similarities[i] = sim
	}
	return Distribution(c.categories, similarities), nil
}

// Distribution clamps negative similarities to zero and normalizes them to sum
// to 1. When every clamped similarity is zero the distribution is uniform.
// Ties for the dominant category resolve to the earliest category.
func Distribution(categories []string, similarities []float64) debate.StanceScore {
	clamped := make([]float64, len(categories))
	total := 0.0
	for i := range categories {
		value := 0.0
		if i < len(similarities) && similarities[i] > 0 && !math.IsNaN(similarities[i]) {
			value = similarities[i]
		}
		clamped[i] = value
		total += value
	}

	scores := make(map[string]float64, len(categories))
	for i, category := range categories {
		if total > 0 {
			scores[category] = clamped[i] / total
		} else {
			scores[category] = 1 / float64(len(categories))
		}
	}

	dominant := ""
	best := -1.0
	for _, category := range categories {
		if scores[category] > best {
			best = scores[category]
			dominant = category
		}
	}
	return debate.StanceScore{Scores: scores, Dominant: dominant, Confidence: best}
}

var errDimension = errors.New("embedding dimensions differ")

// Cosine returns the cosine similarity of a and b, or 0 when either has zero norm.
func Cosine(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", errDimension, len(a), len(b))
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// Mean returns the element-wise mean of equally sized vectors.
func Mean(vectors [][]float64) ([]float64, error) {
	if len(vectors) == 0 {
		return nil, errors.New("no vectors")
	}
	dim := len(vectors[0])
	if dim == 0 {
		return nil, errors.New("empty embedding")
	}
	mean := make([]float64, dim)
	for _, vector := range vectors {
		if len(vector) != dim {
			return nil, fmt.Errorf("%w: %d vs %d", errDimension, len(vector), dim)
		}
		for i, value := range vector {
			mean[i] += value
		}
	}
	for i := range mean {
		mean[i] /= float64(len(vectors))
	}
	return mean, nil
}
