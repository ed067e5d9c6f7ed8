// Package tagging implements the keyword-based tag scoring engine. It
// scores free-form text against a fixed catalog of topic definitions and
// returns confidence-weighted matches.
package tagging

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/tmnance/insightarium/internal/models"
)

// MinConfidence is the process-wide floor below which matches are discarded.
const MinConfidence = 0.3

// minTokenLen drops noise words when tokenizing content for the unordered
// multi-word keyword rule.
const minTokenLen = 3

var tokenSplitRe = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// Match is one scored tag for a piece of content.
type Match struct {
	Slug            string   `json:"slug"`
	Name            string   `json:"name"`
	Confidence      float64  `json:"confidence"`
	MatchedKeywords []string `json:"matched_keywords"`
}

// Scorer scores content against an injected, read-only tag catalog.
type Scorer struct {
	catalog []models.TagDefinition
}

// NewScorer creates a Scorer over the given catalog. The catalog is not
// copied; callers must not mutate it afterwards.
func NewScorer(catalog []models.TagDefinition) *Scorer {
	return &Scorer{catalog: catalog}
}

// Catalog returns the catalog the scorer was built with.
func (s *Scorer) Catalog() []models.TagDefinition {
	return s.catalog
}

// Score ranks catalog tags against content, highest confidence first. Ties
// keep catalog order (stable sort), so output is deterministic for a given
// input. Empty or whitespace-only content yields no matches.
func (s *Scorer) Score(content string) []Match {
	normalized := strings.ToLower(strings.TrimSpace(content))
	if normalized == "" {
		return nil
	}
	tokens := tokenize(normalized)

	var out []Match
	for _, def := range s.catalog {
		matched := matchKeywords(def.Keywords, normalized, tokens)
		if len(matched) == 0 {
			continue
		}
		conf := confidence(len(matched), len(def.Keywords), len(normalized))
		if conf < MinConfidence {
			continue
		}
		out = append(out, Match{
			Slug:            def.Slug,
			Name:            def.Name,
			Confidence:      conf,
			MatchedKeywords: matched,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Confidence > out[j].Confidence
	})
	return out
}

// tokenize splits normalized content on runs of characters that are
// neither letters nor digits (any script) and drops tokens shorter than
// minTokenLen runes.
func tokenize(normalized string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, tok := range tokenSplitRe.Split(normalized, -1) {
		if utf8.RuneCountInString(tok) >= minTokenLen {
			out[tok] = struct{}{}
		}
	}
	return out
}

// matchKeywords returns the deduplicated set of keywords found in content.
// A keyword matches as a literal substring, or, for multi-word keywords,
// when every constituent word appears among the content tokens regardless
// of order. The unordered rule deliberately trades false positives on
// co-occurring words for recall on reordered phrases.
func matchKeywords(keywords []string, normalized string, tokens map[string]struct{}) []string {
	seen := make(map[string]struct{}, len(keywords))
	var matched []string
	for _, kw := range keywords {
		k := strings.ToLower(strings.TrimSpace(kw))
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		if !keywordMatches(k, normalized, tokens) {
			continue
		}
		seen[k] = struct{}{}
		matched = append(matched, k)
	}
	return matched
}

func keywordMatches(kw, normalized string, tokens map[string]struct{}) bool {
	if strings.Contains(normalized, kw) {
		return true
	}
	words := strings.Fields(kw)
	if len(words) < 2 {
		return false
	}
	for _, w := range words {
		if _, ok := tokens[w]; !ok {
			return false
		}
	}
	return true
}

// confidence combines keyword density, absolute match count, and a length
// normalizer that penalizes very short content: snippets under ~500
// characters need proportionally stronger keyword presence to be trusted.
func confidence(matchedCount, totalKeywords, contentLength int) float64 {
	if totalKeywords == 0 {
		return 0
	}
	keywordRatio := float64(matchedCount) / float64(totalKeywords)
	matchBoost := math.Min(float64(matchedCount)*0.1, 0.3)
	lengthNorm := math.Min(float64(contentLength)/500, 1)

	c := (keywordRatio*0.7 + matchBoost*0.3) * (0.5 + lengthNorm*0.5)
	return math.Max(0, math.Min(1, c))
}
