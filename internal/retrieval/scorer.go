package retrieval

import (
	"math"
	"regexp"
	"strings"
)

// Scorer assigns a relevance score to a (query, passage) pair. It stands in
// for a cross-encoder: more precise than the first-pass similarity search,
// applied only to the bounded candidate set.
type Scorer interface {
	Score(query, passage string) float32
}

// LexicalScorer scores by the Ochiai coefficient over unique word tokens:
// |Q∩P| / sqrt(|Q||P|).
type LexicalScorer struct {
	tokenPattern *regexp.Regexp
}

// NewLexicalScorer creates the default token-overlap scorer.
func NewLexicalScorer() *LexicalScorer {
	return &LexicalScorer{
		tokenPattern: regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`),
	}
}

// Score returns the Ochiai overlap between query and passage tokens.
func (s *LexicalScorer) Score(query, passage string) float32 {
	qset := s.tokenSet(query)
	pset := s.tokenSet(passage)
	if len(qset) == 0 || len(pset) == 0 {
		return 0
	}
	inter := 0
	for tok := range pset {
		if _, ok := qset[tok]; ok {
			inter++
		}
	}
	return float32(float64(inter) / math.Sqrt(float64(len(qset))*float64(len(pset))))
}

func (s *LexicalScorer) tokenSet(text string) map[string]struct{} {
	tokens := s.tokenPattern.FindAllString(strings.ToLower(text), -1)
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}
