package mapping

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/agnivade/levenshtein"
	"github.com/relayline/relayline/internal/domain"
)

// Fixed signal weights for suggestion confidence.
const (
	weightName     = 0.40
	weightEditDist = 0.30
	weightKeywords = 0.20
	weightLearned  = 0.10

	// translatedNameScore is the name signal for a dictionary-translated
	// match, versus 1.0 for an identical normalized name.
	translatedNameScore = 0.8

	// learnedHalfLifeDays is the half-life of the historical use signal.
	learnedHalfLifeDays = 30.0
)

// Candidate is one destination channel considered for a suggestion.
type Candidate struct {
	DestKey string
	Name    string
}

// Suggest ranks candidates for a source channel name. Candidates scoring
// below floor are omitted. The engine only suggests; applying a suggestion
// is a separate explicit action.
func (e *Engine) Suggest(sourceChannel, sourceName string, candidates []Candidate, floor float64) ([]domain.Suggestion, error) {
	pairs, err := e.store.LearnedPairs()
	if err != nil {
		return nil, fmt.Errorf("loading learned pairs: %w", err)
	}

	var maxUse float64
	learned := make(map[string]store2learned, len(pairs))
	for _, p := range pairs {
		if p.UseCount > maxUse {
			maxUse = p.UseCount
		}
		if p.SourceChannel == sourceChannel {
			learned[p.DestKey] = store2learned{use: p.UseCount, lastUsed: p.LastUsed}
		}
	}

	now := time.Now()
	var out []domain.Suggestion
	for _, c := range candidates {
		var lw float64
		if l, ok := learned[c.DestKey]; ok {
			lw = decayedWeight(l.use, maxUse, now.Sub(l.lastUsed).Hours()/24)
		}
		conf, reason := calculateConfidence(sourceName, c.Name, lw)
		if conf < floor {
			continue
		}
		out = append(out, domain.Suggestion{Candidate: c.DestKey, Confidence: conf, Reason: reason})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	return out, nil
}

type store2learned struct {
	use      float64
	lastUsed time.Time
}

// calculateConfidence combines the four fixed-weight signals. The result is
// always in [0,1]; identical normalized names score exactly 1.0.
func calculateConfidence(sourceName, candidateName string, learnedWeight float64) (float64, string) {
	src := normalizeName(sourceName)
	cand := normalizeName(candidateName)

	if src != "" && src == cand {
		return 1.0, "exact name match"
	}

	srcTokens := tokenize(src)
	candTokens := tokenize(cand)

	nameScore := 0.0
	reason := "name similarity"
	if translatedEquals(srcTokens, cand) || translatedEquals(candTokens, src) {
		nameScore = translatedNameScore
		reason = "translated name match"
	}

	sim := similarity(src, cand)
	jac := jaccard(srcTokens, candTokens)

	if nameScore == 0 && jac > sim {
		reason = "keyword overlap"
	}
	if learnedWeight > sim && learnedWeight > jac && nameScore == 0 {
		reason = "historical use"
	}

	conf := weightName*nameScore + weightEditDist*sim + weightKeywords*jac + weightLearned*clamp01(learnedWeight)
	return clamp01(conf), reason
}

// decayedWeight computes the historical signal: use count normalized
// against the maximum across all learned pairs, decayed with a 30-day
// half-life since last use.
func decayedWeight(useCount, maxUse, daysSinceUse float64) float64 {
	if maxUse <= 0 || useCount <= 0 {
		return 0
	}
	if daysSinceUse < 0 {
		daysSinceUse = 0
	}
	decay := math.Exp(-math.Ln2 / learnedHalfLifeDays * daysSinceUse)
	return clamp01(useCount / maxUse * decay)
}

// normalizeName lowercases a channel name and strips decoration, keeping
// letters, digits and CJK, with runs of separators collapsed to one space.
func normalizeName(s string) string {
	var b strings.Builder
	lastSpace := true
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		default:
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// tokenize splits a normalized name into comparable tokens. Latin/digit
// runs are one token each; every CJK rune run is kept whole so dictionary
// terms like 公告 survive.
func tokenize(normalized string) []string {
	var tokens []string
	var latin, cjk strings.Builder
	flush := func() {
		if latin.Len() > 0 {
			tokens = append(tokens, latin.String())
			latin.Reset()
		}
		if cjk.Len() > 0 {
			tokens = append(tokens, cjk.String())
			cjk.Reset()
		}
	}
	for _, r := range normalized {
		switch {
		case r == ' ':
			flush()
		case unicode.Is(unicode.Han, r):
			if latin.Len() > 0 {
				tokens = append(tokens, latin.String())
				latin.Reset()
			}
			cjk.WriteRune(r)
		default:
			if cjk.Len() > 0 {
				tokens = append(tokens, cjk.String())
				cjk.Reset()
			}
			latin.WriteRune(r)
		}
	}
	flush()
	return tokens
}

// translatedEquals reports whether translating tokens through the term
// table reproduces the other side's normalized name.
func translatedEquals(tokens []string, other string) bool {
	if len(tokens) == 0 || other == "" {
		return false
	}
	translatedAny := false
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if tr := translateToken(tok); tr != "" {
			out = append(out, tr)
			translatedAny = true
		} else {
			out = append(out, tok)
		}
	}
	if !translatedAny {
		return false
	}
	return strings.Join(out, " ") == other
}

// similarity is an edit-distance score in [0,1].
func similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	dist := levenshtein.ComputeDistance(a, b)
	maxLen := len([]rune(a))
	if l := len([]rune(b)); l > maxLen {
		maxLen = l
	}
	if maxLen == 0 {
		return 0
	}
	return clamp01(1 - float64(dist)/float64(maxLen))
}

// jaccard is keyword-set overlap including dictionary-translated terms.
func jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	setA := expandTerms(a)
	setB := expandTerms(b)

	inter := 0
	for tok := range setA {
		if setB[tok] {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// expandTerms builds a token set including translations, so 公告 and
// announcements overlap.
func expandTerms(tokens []string) map[string]bool {
	set := make(map[string]bool, len(tokens)*2)
	for _, tok := range tokens {
		set[tok] = true
		if tr := translateToken(tok); tr != "" {
			set[tr] = true
		}
	}
	return set
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
