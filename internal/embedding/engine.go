// Package embedding prepares text for vector encoding and implements the
// vector math the similarity features are built on: L2 normalization,
// binary (de)serialization, cosine similarity and brute-force top-K search.
package embedding

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"regexp"
	"sort"
	"strings"
)

const (
	// DefaultDim is the reference model dimensionality. Stored vectors are
	// DefaultDim float32 values, little-endian, no header.
	DefaultDim = 384

	// DefaultMaxTokens caps encoder input; the token count is approximated
	// as words / 0.75.
	DefaultMaxTokens = 512

	DefaultChunkSize    = 3000
	DefaultChunkOverlap = 300
)

var ErrEmptyText = errors.New("empty text")

// Encoder is the injected encoding capability. Implementations are expected
// to be blocking and are called off the polling path.
type Encoder interface {
	EncodeBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Engine owns the clean→truncate→encode path so ingestion and query
// embeddings stay comparable.
type Engine struct {
	enc       Encoder
	maxTokens int
}

func NewEngine(enc Encoder) *Engine {
	return &Engine{enc: enc, maxTokens: DefaultMaxTokens}
}

// Keep alphanumerics, whitespace and basic punctuation; everything else
// carries no semantic weight for the encoder.
var nonSemanticRe = regexp.MustCompile(`[^a-zA-Z0-9_\s.,!?;:()\-]`)

// Clean collapses whitespace runs to single spaces and strips characters
// outside a conservative alphanumeric + basic punctuation set.
func Clean(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	text = nonSemanticRe.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// Truncate cuts text to approximately maxTokens tokens on a word boundary.
// The word budget is maxTokens * 0.75 (1 token ≈ 0.75 words).
func Truncate(text string, maxTokens int) string {
	maxWords := int(float64(maxTokens) * 0.75)
	words := strings.Fields(text)
	if len(words) <= maxWords {
		return text
	}
	return strings.Join(words[:maxWords], " ")
}

// ChunkText splits long text into overlapping windows of at most
// chunkSize characters, backing off to the nearest preceding space so words
// are never split. The window start always moves forward, even for inputs
// with no spaces at all.
func ChunkText(text string, chunkSize, overlap int) []string {
	if text == "" {
		return nil
	}
	if len(text) <= chunkSize {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(text) {
		end := start + chunkSize
		if end < len(text) {
			if lastSpace := strings.LastIndex(text[start:end], " "); lastSpace > 0 {
				end = start + lastSpace
			}
		} else {
			end = len(text)
		}

		chunks = append(chunks, strings.TrimSpace(text[start:end]))

		next := end - overlap
		if next <= start {
			// Pathological input (no spaces, or overlap >= window): step to
			// the window end instead of stalling.
			next = end
		}
		start = next
	}
	return chunks
}

// EncodeOne runs text through clean→truncate→encode and returns the
// L2-normalized vector.
func (e *Engine) EncodeOne(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EncodeBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EncodeBatch encodes several texts in one encoder call and normalizes each
// result. Result order matches input order.
func (e *Engine) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	prepared := make([]string, len(texts))
	for i, t := range texts {
		cleaned := Truncate(Clean(t), e.maxTokens)
		if cleaned == "" {
			return nil, ErrEmptyText
		}
		prepared[i] = cleaned
	}

	vecs, err := e.enc.EncodeBatch(ctx, prepared)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(texts) {
		return nil, errors.New("encoder returned wrong number of vectors")
	}

	for i := range vecs {
		vecs[i] = Normalize(vecs[i])
	}
	return vecs, nil
}

// Normalize scales v to unit L2 norm. A zero vector is returned unchanged;
// it is a degenerate input, not an error.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// ToBytes serializes v as a raw little-endian float32 array, len(v)*4 bytes.
func ToBytes(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(x))
	}
	return buf
}

// FromBytes is the inverse of ToBytes.
func FromBytes(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, errors.New("embedding bytes not a multiple of 4")
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}

// CosineSimilarity recomputes both norms rather than assuming unit vectors,
// so it stays correct for arbitrary inputs.
func CosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

type Candidate struct {
	ID     string
	Vector []float32
}

type Scored struct {
	ID    string
	Score float64
}

// TopK scores every candidate against query and returns the k best,
// descending. Ties keep input order (stable sort). Deliberately O(n) per
// query: the corpus is small enough that an index would be overhead.
func TopK(query []float32, candidates []Candidate, k int) []Scored {
	if len(candidates) == 0 || k <= 0 {
		return nil
	}

	scored := make([]Scored, len(candidates))
	for i, c := range candidates {
		scored[i] = Scored{ID: c.ID, Score: CosineSimilarity(query, c.Vector)}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if k > len(scored) {
		k = len(scored)
	}
	return scored[:k]
}
