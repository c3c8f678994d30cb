package cache

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"strings"
	"unicode"

	"github.com/sashabaranov/go-openai"
	"gonum.org/v1/gonum/floats"
)

// Embedder turns text into a vector.
type Embedder interface {
	// Embed generates an embedding for text.
	Embed(ctx context.Context, text string) ([]float64, error)

	// Dimension returns the embedding dimension.
	Dimension() int
}

// DefaultHashDimension is the HashEmbedder dimension when none is given.
const DefaultHashDimension = 256

// HashEmbedder is a deterministic, offline embedder based on feature
// hashing of lower-cased word unigrams and bigrams. Vectors are L2
// normalized.
type HashEmbedder struct {
	dim int
}

// NewHashEmbedder creates a hashing embedder. A non-positive dim selects
// DefaultHashDimension.
func NewHashEmbedder(dim int) *HashEmbedder {
	if dim <= 0 {
		dim = DefaultHashDimension
	}
	return &HashEmbedder{dim: dim}
}

// Dimension returns the embedding dimension.
func (h *HashEmbedder) Dimension() int {
	return h.dim
}

// Embed hashes the tokens of text into a fixed-size vector.
func (h *HashEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vec := make([]float64, h.dim)
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for i, tok := range tokens {
		h.add(vec, tok)
		if i > 0 {
			h.add(vec, tokens[i-1]+" "+tok)
		}
	}
	if norm := floats.Norm(vec, 2); norm > 0 {
		floats.Scale(1/norm, vec)
	}
	return vec, nil
}

func (h *HashEmbedder) add(vec []float64, feature string) {
	hasher := fnv.New64a()
	_, _ = hasher.Write([]byte(feature))
	sum := hasher.Sum64()
	idx := int(sum % uint64(h.dim))
	// The top bit picks the sign so collisions tend to cancel.
	if sum>>63 == 1 {
		vec[idx]--
	} else {
		vec[idx]++
	}
}

// OpenAIEmbedder calls the OpenAI embeddings endpoint.
type OpenAIEmbedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
	dim    int
}

// NewOpenAIEmbedder creates an OpenAI embedder. An empty apiKey falls back
// to OPENAI_API_KEY; an empty model selects text-embedding-3-small.
func NewOpenAIEmbedder(apiKey string, model string) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, errors.New("openai embedder: no API key")
	}
	m := openai.SmallEmbedding3
	if model != "" {
		m = openai.EmbeddingModel(model)
	}
	dim := 1536
	if m == openai.LargeEmbedding3 {
		dim = 3072
	}
	return &OpenAIEmbedder{client: openai.NewClient(apiKey), model: m, dim: dim}, nil
}

// Dimension returns the embedding dimension.
func (o *OpenAIEmbedder) Dimension() int {
	return o.dim
}

// Embed requests an embedding for text.
func (o *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: o.model,
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("openai embeddings: empty response")
	}
	raw := resp.Data[0].Embedding
	out := make([]float64, len(raw))
	for i, v := range raw {
		out[i] = float64(v)
	}
	return out, nil
}

// CosineSimilarity returns the cosine of the angle between a and b, or 0
// when the lengths differ or either vector is zero.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	na, nb := floats.Norm(a, 2), floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	return floats.Dot(a, b) / (na * nb)
}
