package match

import (
	"html"
	"regexp"
	"strings"
	"unicode"

	"github.com/shaw465/wnacg-downloader/internal/ranking"
)

// SimilarityFloor is the minimum similarity for a ranked entry to count as
// a match at all. Below it, "no match" beats a wrong match.
const SimilarityFloor = 0.45

const (
	rankWeight       = 0.75
	similarityWeight = 0.25
)

var (
	reHTMLTag = regexp.MustCompile(`(?s)<[^>]+>`)

	// Scanlator and convention tags wrap titles in several bracket styles,
	// ASCII and fullwidth alike.
	reLeadingBracket  = regexp.MustCompile(`^\s*[\[(（【〔{][^\]\)）】〕}]*[\]\)）】〕}]\s*`)
	reTrailingBracket = regexp.MustCompile(`\s*[\[(（【〔{][^\]\)）】〕}]*[\]\)）】〕}]\s*$`)
)

// Normalize reduces a title to bare lowercase letters and digits: HTML and
// entities stripped, leading/trailing bracketed tags removed, punctuation
// and whitespace dropped.
func Normalize(title string) string {
	s := reHTMLTag.ReplaceAllString(title, " ")
	s = html.UnescapeString(s)
	s = strings.ToLower(strings.TrimSpace(s))

	for {
		stripped := reLeadingBracket.ReplaceAllString(s, "")
		stripped = reTrailingBracket.ReplaceAllString(stripped, "")
		if stripped == s {
			break
		}
		s = stripped
	}

	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}

	return b.String()
}

// Similarity scores two titles in [0,1]: 1 for equal normalized forms, 0.9
// when one contains the other, otherwise the Jaccard index of their bigram
// sets. Empty normalizations score 0.
func Similarity(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}
	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		return 0.9
	}

	ba, bb := bigrams(na), bigrams(nb)

	intersection := 0
	for g := range ba {
		if bb[g] {
			intersection++
		}
	}

	union := len(ba) + len(bb) - intersection
	if union == 0 {
		return 0
	}

	return float64(intersection) / float64(union)
}

// bigrams builds the set of adjacent rune pairs. A single-rune string is
// its own lone "bigram" so short titles still compare.
func bigrams(s string) map[string]bool {
	runes := []rune(s)
	set := make(map[string]bool)

	if len(runes) == 1 {
		set[string(runes)] = true
		return set
	}

	for i := 0; i+1 < len(runes); i++ {
		set[string(runes[i:i+2])] = true
	}

	return set
}

// RankedTitle is one entry of an externally sourced ranking list.
type RankedTitle struct {
	Rank  int
	Title string
}

// Result is the best ranked entry for a set of candidate title variants.
type Result struct {
	Rank       int
	Title      string
	Similarity float64
	// Score blends the rank percentile with the text similarity. Rank
	// dominates so a loose match far down a list cannot outscore a tight
	// match near the top.
	Score float64
}

// FindInRankedList matches candidate title variants against a ranked list.
// Entries below the similarity floor are discarded; among the rest the
// highest similarity wins, ties broken by better rank. Returns nil when
// nothing clears the floor.
func FindInRankedList(candidates []string, entries []RankedTitle, listSize int) *Result {
	var best *Result

	for _, entry := range entries {
		sim := 0.0
		for _, candidate := range candidates {
			if s := Similarity(candidate, entry.Title); s > sim {
				sim = s
			}
		}

		if sim < SimilarityFloor {
			continue
		}

		if best == nil || sim > best.Similarity ||
			(sim == best.Similarity && entry.Rank < best.Rank) {
			best = &Result{Rank: entry.Rank, Title: entry.Title, Similarity: sim}
		}
	}

	if best == nil {
		return nil
	}

	rankScore := ranking.Score(best.Rank, listSize)
	if rankScore == nil {
		best.Score = best.Similarity
		return best
	}

	best.Score = rankWeight**rankScore + similarityWeight*best.Similarity
	return best
}
