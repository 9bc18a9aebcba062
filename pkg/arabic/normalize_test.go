package arabic

import (
	"strings"
	"testing"
)

func TestNormalizeForMatching_StripsDiacriticsAndTatweel(t *testing.T) {
	got := NormalizeForMatching("التَّزْكِيَةُ ـــ مُهِمَّةٌ")
	if strings.ContainsAny(got, "ًٌٍَُِّْـ") {
		t.Fatalf("NormalizeForMatching() should strip diacritics and tatweel, got %q", got)
	}
	if !strings.Contains(got, "التزكية") {
		t.Fatalf("NormalizeForMatching() mangled the base letters, got %q", got)
	}
}

func TestNormalizeForMatching_UnifiesAlefAndYeh(t *testing.T) {
	cases := map[string]string{
		"أحسان":   "احسان",
		"إحسان":   "احسان",
		"آمال":    "امال",
		"الهدى":   "الهدي",
		"مؤمن":    "مءمن",
		"٥ ركائز": "5 ركاءز",
	}
	for input, want := range cases {
		if got := NormalizeForMatching(input); got != want {
			t.Fatalf("NormalizeForMatching(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestNormalizeForMatching_CollapsesWhitespace(t *testing.T) {
	got := NormalizeForMatching("  ما   هي \n\t الركائز  ")
	if got != "ما هي الركاءز" {
		t.Fatalf("NormalizeForMatching() whitespace collapse failed, got %q", got)
	}
}

func TestMatchKey_TreatsTehMarbutaAsHeh(t *testing.T) {
	if MatchKey("التزكية") != MatchKey("التزكيه") {
		t.Fatalf("MatchKey() should treat ة and ه as equivalent")
	}
}

func TestKeywords_RemovesStopwordsAndDuplicates(t *testing.T) {
	got := Keywords("ما هي ركائز الحياة الطيبة الخمس؟ الحياة الطيبة")

	for _, kw := range got {
		if kw == "ما" || kw == "هي" {
			t.Fatalf("Keywords() should drop stopwords, got %v", got)
		}
	}

	seen := map[string]int{}
	for _, kw := range got {
		seen[kw]++
		if seen[kw] > 1 {
			t.Fatalf("Keywords() should deduplicate, got %v", got)
		}
	}

	joined := strings.Join(got, " ")
	if !strings.Contains(joined, "ركاءز") {
		t.Fatalf("Keywords() lost a content word, got %v", got)
	}
}

func TestStripPrefixParticle(t *testing.T) {
	cases := map[string]string{
		"والتزكية": "تزكية",
		"بالصبر":   "صبر",
		"الحياة":   "حياة",
		"صبر":      "صبر",
		// Too short after stripping: keep the original token.
		"ال": "ال",
	}
	for input, want := range cases {
		if got := StripPrefixParticle(input); got != want {
			t.Fatalf("StripPrefixParticle(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestContainsArabic(t *testing.T) {
	if !ContainsArabic("سؤال") {
		t.Fatalf("ContainsArabic() should detect Arabic text")
	}
	if ContainsArabic("plain english 123") {
		t.Fatalf("ContainsArabic() should reject non-Arabic text")
	}
}
