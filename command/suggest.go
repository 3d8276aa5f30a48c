package command

import (
	"cmp"
	"hash/fnv"
	"math"
	"slices"
	"strings"

	"github.com/coder/hnsw"
)

const (
	gramDims = 128
	// Cosine distance above which a name is too different to suggest.
	maxSuggestDistance = 0.65
	suggestCandidates  = 4
)

// suggester finds the known name nearest to a mistyped one. Names are
// embedded as hashed character n-gram counts and indexed in an HNSW graph.
type suggester struct {
	graph *hnsw.Graph[string]
}

func newSuggester(names []string) *suggester {
	g := hnsw.NewGraph[string]()
	nodes := make([]hnsw.Node[string], 0, len(names))
	for _, name := range names {
		nodes = append(nodes, hnsw.MakeNode(name, gramVector(name)))
	}
	if len(nodes) > 0 {
		g.Add(nodes...)
	}
	return &suggester{graph: g}
}

func (s *suggester) nearest(name string) (string, bool) {
	if s == nil || s.graph.Len() == 0 || name == "" {
		return "", false
	}
	query := gramVector(name)
	neighbors := s.graph.Search(query, min(suggestCandidates, s.graph.Len()))

	type scored struct {
		key  string
		dist float32
	}
	ranked := make([]scored, 0, len(neighbors))
	for _, n := range neighbors {
		ranked = append(ranked, scored{n.Key, hnsw.CosineDistance(query, n.Value)})
	}
	if len(ranked) == 0 {
		return "", false
	}
	best := slices.MinFunc(ranked, func(a, b scored) int {
		if c := cmp.Compare(a.dist, b.dist); c != 0 {
			return c
		}
		return strings.Compare(a.key, b.key)
	})
	if best.dist > maxSuggestDistance {
		return "", false
	}
	return best.key, true
}

// gramVector counts the unigrams, bigrams and trigrams of the padded,
// lower-cased name into a fixed number of hashed buckets, L2-normalized.
func gramVector(name string) []float32 {
	vec := make([]float32, gramDims)
	runes := []rune("^" + strings.ToLower(name) + "$")
	for n := 1; n <= 3; n++ {
		for i := 0; i+n <= len(runes); i++ {
			gram := string(runes[i : i+n])
			if gram == "^" || gram == "$" {
				continue
			}
			h := fnv.New32a()
			h.Write([]byte(gram))
			vec[h.Sum32()%gramDims]++
		}
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v * v)
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}
