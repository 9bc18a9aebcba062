package arabic

import "strings"

// Common Arabic stopwords, stored in already-normalized form.
var stopwords = map[string]struct{}{}

func init() {
	for _, w := range []string{
		// pronouns and particles
		"من", "الى", "على", "في", "عن", "مع", "هذا", "هذه", "ذلك", "تلك",
		"الذي", "التي", "الذين", "اللاتي", "اللواتي",
		// conjunctions
		"و", "او", "ام", "ثم", "لكن", "بل", "حتى", "اذا", "اذ", "لو", "كي",
		// prepositions
		"ب", "ك", "ل", "ف", "س",
		// common verbs and pronouns
		"كان", "يكون", "هو", "هي", "هم", "هن", "انا", "نحن", "انت", "انتم",
		// articles and quantifiers
		"ال", "ان", "ما", "لا", "قد", "كل", "بعض", "غير",
		// interrogatives
		"ماذا", "كيف", "لماذا", "متى", "اين", "هل",
	} {
		stopwords[NormalizeForMatching(w)] = struct{}{}
	}
}

// Prefix particles stripped from match keys only. Order matters: longer
// prefixes are tried first so وال strips before و.
var prefixParticles = []string{"وال", "فال", "بال", "كال", "لل", "ال", "و", "ف", "ب", "ك", "ل"}

// IsStopword reports whether the normalized token is an Arabic stopword.
func IsStopword(token string) bool {
	_, ok := stopwords[NormalizeForMatching(token)]
	return ok
}

// StripPrefixParticle removes one leading particle (و، ف، ال، ب، ك، ل and
// their fused forms) from a normalized token. Used only for building match
// keys; the original token is kept for display.
func StripPrefixParticle(token string) string {
	for _, p := range prefixParticles {
		if strings.HasPrefix(token, p) && len(token) > len(p)+2 {
			return strings.TrimPrefix(token, p)
		}
	}
	return token
}

// Keywords extracts normalized Arabic keywords from text: Arabic letter runs
// with stopwords removed and single-letter tokens dropped. Order is the
// order of first appearance; duplicates are removed.
func Keywords(text string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, w := range Words(text) {
		if len([]rune(w)) < 2 {
			continue
		}
		if _, ok := stopwords[w]; ok {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

// MatchTokens returns the keys used for lexical relevance checks: keywords
// with prefix particles stripped and teh marbuta folded.
func MatchTokens(text string) []string {
	kws := Keywords(text)
	out := make([]string, 0, len(kws))
	for _, k := range kws {
		out = append(out, TehMarbutaToHeh(StripPrefixParticle(k)))
	}
	return out
}
