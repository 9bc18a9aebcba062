// Package arabic provides deterministic Arabic text normalization used for
// entity matching, keyword extraction, and claim-to-evidence checking.
//
// The same normalization runs at ingestion time and at query time so the two
// sides always compare equal.
package arabic

import (
	"regexp"
	"strings"
)

const tatweel = "ـ"

var (
	// Tashkeel and the superscript alef.
	reDiacritics = regexp.MustCompile("[ً-ٰٟ]")
	reArabicWord = regexp.MustCompile("[؀-ۿ]+")
	reArabicChar = regexp.MustCompile("[؀-ۿ]")

	alefVariants = strings.NewReplacer(
		"آ", "ا", // alef madda
		"أ", "ا", // alef hamza above
		"إ", "ا", // alef hamza below
		"ٱ", "ا", // alef wasla
	)

	hamzaVariants = strings.NewReplacer(
		"ؤ", "ء", // waw hamza
		"ئ", "ء", // yeh hamza
	)

	yehVariants = strings.NewReplacer(
		"ى", "ي", // alef maksura
		"ی", "ي", // farsi yeh
	)

	digitVariants = strings.NewReplacer(
		"٠", "0", "١", "1", "٢", "2", "٣", "3", "٤", "4",
		"٥", "5", "٦", "6", "٧", "7", "٨", "8", "٩", "9",
		"۰", "0", "۱", "1", "۲", "2", "۳", "3", "۴", "4",
		"۵", "5", "۶", "6", "۷", "7", "۸", "8", "۹", "9",
	)

	punctVariants = strings.NewReplacer(
		"،", ",", // arabic comma
		"؛", ";", // arabic semicolon
		"؟", "?", // arabic question mark
		"۔", ".", // arabic full stop
	)
)

// NormalizeForMatching applies the aggressive normalization chain used for
// entity-name matching and lexical relevance checks, in fixed order: strip
// diacritics and tatweel, unify alef and hamza carriers, unify yeh, map
// digits and punctuation, collapse whitespace. Teh marbuta is preserved here;
// matching treats it as equivalent to heh separately (see TehMarbutaToHeh).
func NormalizeForMatching(text string) string {
	if text == "" {
		return ""
	}
	text = reDiacritics.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, tatweel, "")
	text = alefVariants.Replace(text)
	text = hamzaVariants.Replace(text)
	text = yehVariants.Replace(text)
	text = digitVariants.Replace(text)
	text = punctVariants.Replace(text)
	return collapseWhitespace(text)
}

// NormalizeForEmbedding applies the lighter normalization used before
// embedding: diacritics, tatweel, alef and yeh unification, digits. Hamza
// carriers and punctuation stay intact to keep semantics for the embedder.
func NormalizeForEmbedding(text string) string {
	if text == "" {
		return ""
	}
	text = reDiacritics.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, tatweel, "")
	text = alefVariants.Replace(text)
	text = yehVariants.Replace(text)
	text = digitVariants.Replace(text)
	return collapseWhitespace(text)
}

// TehMarbutaToHeh folds teh marbuta into heh. Applied to both sides of a
// comparison it makes ة and ه equivalent without losing the distinction in
// stored or displayed text.
func TehMarbutaToHeh(text string) string {
	return strings.ReplaceAll(text, "ة", "ه")
}

// MatchKey produces the canonical key used for equality between a query
// fragment and an entity name.
func MatchKey(text string) string {
	return TehMarbutaToHeh(NormalizeForMatching(text))
}

// ContainsArabic reports whether text has at least one Arabic letter.
func ContainsArabic(text string) bool {
	return reArabicChar.MatchString(text)
}

// Words splits text into normalized Arabic letter runs, keeping order and
// duplicates. No stopword filtering.
func Words(text string) []string {
	return reArabicWord.FindAllString(NormalizeForMatching(text), -1)
}

func collapseWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
