// Package guardrails implements the post-generation verification pass:
// citation presence, evidence-ID validity, and claim-to-evidence coverage.
// The interpreter's output never reaches the caller without passing here.
package guardrails

import (
	"fmt"
	"regexp"
	"strings"

	"muhasibi/pkg/arabic"
	"muhasibi/pkg/common"
)

// RefusalMessageAr is the canonical Arabic refusal answer.
const RefusalMessageAr = "لا يوجد في البيانات الحالية ما يدعم الإجابة على هذا السؤال."

// Result of a guardrail check.
type Result struct {
	Passed       bool
	Issues       []string
	ShouldRefuse bool
}

// Guardrails bundles the deterministic answer validators.
type Guardrails struct {
	// MinCoverageRatio is the fraction of answer terms that must appear in
	// cited evidence for the claim check to pass.
	MinCoverageRatio float64
	// MinTermLength filters short tokens out of the claim check.
	MinTermLength int
}

// New returns guardrails with the given coverage ratio (0 uses 0.5).
func New(minCoverageRatio float64) *Guardrails {
	if minCoverageRatio <= 0 {
		minCoverageRatio = 0.5
	}
	return &Guardrails{MinCoverageRatio: minCoverageRatio, MinTermLength: 3}
}

// CheckCitations hard-fails an answer that claims success with no
// citations. Abstentions need none.
func (g *Guardrails) CheckCitations(citations []common.Citation, notFound bool) Result {
	if notFound {
		return Result{Passed: true}
	}
	if len(citations) == 0 {
		return Result{
			Passed:       false,
			Issues:       []string{"الإجابة لا تحتوي على استشهادات مع أن البيانات متوفرة"},
			ShouldRefuse: true,
		}
	}
	var issues []string
	for i, c := range citations {
		if c.ChunkID == "" {
			issues = append(issues, fmt.Sprintf("الاستشهاد %d لا يحتوي على معرف صالح", i+1))
		}
	}
	if len(issues) > 0 {
		return Result{Passed: false, Issues: issues}
	}
	return Result{Passed: true}
}

// VerifyEvidenceIDs drops citations whose chunk ID is not in the retrieved
// bundle and reports each drop. The surviving citations are returned.
func (g *Guardrails) VerifyEvidenceIDs(citations []common.Citation, packets []common.EvidencePacket) ([]common.Citation, Result) {
	valid := make(map[string]struct{}, len(packets))
	for _, p := range packets {
		valid[p.ID] = struct{}{}
	}

	var kept []common.Citation
	var issues []string
	for _, c := range citations {
		if _, ok := valid[c.ChunkID]; !ok {
			issues = append(issues, fmt.Sprintf("الاستشهاد '%s' غير موجود في الأدلة المتاحة", c.ChunkID))
			continue
		}
		kept = append(kept, c)
	}
	return kept, Result{Passed: len(issues) == 0, Issues: issues}
}

// CheckClaims verifies that the answer's meaningful terms appear in the
// cited evidence. Zero coverage escalates to a refusal.
func (g *Guardrails) CheckClaims(answerAr string, citations []common.Citation, packets []common.EvidencePacket) Result {
	terms := make([]string, 0)
	for _, t := range arabic.MatchTokens(answerAr) {
		if len([]rune(t)) >= g.MinTermLength {
			terms = append(terms, t)
		}
	}
	if len(terms) == 0 {
		return Result{Passed: true}
	}

	cited := make(map[string]struct{}, len(citations))
	for _, c := range citations {
		cited[c.ChunkID] = struct{}{}
	}
	var citedText strings.Builder
	for _, p := range packets {
		if _, ok := cited[p.ID]; ok {
			citedText.WriteString(" ")
			citedText.WriteString(p.TextAr)
		}
	}
	citedNorm := arabic.TehMarbutaToHeh(arabic.NormalizeForMatching(citedText.String()))

	covered := 0
	var uncovered []string
	for _, t := range terms {
		if strings.Contains(citedNorm, t) {
			covered++
		} else {
			uncovered = append(uncovered, t)
		}
	}

	ratio := float64(covered) / float64(len(terms))
	if ratio < g.MinCoverageRatio {
		if len(uncovered) > 5 {
			uncovered = uncovered[:5]
		}
		return Result{
			Passed:       false,
			Issues:       []string{fmt.Sprintf("تغطية المصطلحات غير كافية (%.0f%%). مصطلحات غير مدعومة: %s", ratio*100, strings.Join(uncovered, "، "))},
			ShouldRefuse: covered == 0,
		}
	}
	return Result{Passed: true}
}

// Validate runs all checks in order and merges their outcomes.
func (g *Guardrails) Validate(answerAr string, citations []common.Citation, packets []common.EvidencePacket, notFound bool) Result {
	var issues []string

	cr := g.CheckCitations(citations, notFound)
	issues = append(issues, cr.Issues...)
	if cr.ShouldRefuse {
		return Result{Passed: false, Issues: issues, ShouldRefuse: true}
	}

	if len(citations) > 0 {
		_, vr := g.VerifyEvidenceIDs(citations, packets)
		issues = append(issues, vr.Issues...)
	}

	if !notFound {
		clr := g.CheckClaims(answerAr, citations, packets)
		issues = append(issues, clr.Issues...)
		if clr.ShouldRefuse {
			return Result{Passed: false, Issues: issues, ShouldRefuse: true}
		}
	}

	return Result{Passed: len(issues) == 0, Issues: issues}
}

var (
	reSentenceSplit = regexp.MustCompile(`[.!؟?\n]+`)
	reQuantifier    = regexp.MustCompile(`[0-9٠-٩]`)
)

// Definition verbs, quantifier words, and scriptural markers that make a
// sentence a must-cite sentence.
var (
	definitionVerbs = []string{"هي", "هو", "تعني", "يعني", "يعرف", "تعرف", "يقصد", "التعريف"}
	quantifierWords = []string{"خمس", "خمسة", "اربع", "اربعة", "ثلاث", "ثلاثة", "اثنان", "اثنتان", "ست", "ستة", "سبع", "سبعة", "كل", "جميع"}
	scriptureTerms  = []string{"قال تعالى", "قوله تعالى", "الايه", "الآية", "سورة", "الحديث", "رسول الله", "صلى الله عليه وسلم", "القران", "القرآن", "رواه"}
)

// Sentences splits Arabic answer text into sentences.
func Sentences(text string) []string {
	parts := reSentenceSplit.Split(text, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// IsMustCite reports whether the sentence carries a factual-claim marker:
// a definition verb, a quantifier, or a scriptural term.
func IsMustCite(sentence string) bool {
	norm := arabic.NormalizeForMatching(sentence)
	if reQuantifier.MatchString(norm) {
		return true
	}
	tokens := strings.Fields(norm)
	tokenSet := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		tokenSet[t] = struct{}{}
	}
	for _, v := range definitionVerbs {
		if _, ok := tokenSet[arabic.NormalizeForMatching(v)]; ok {
			return true
		}
	}
	for _, q := range quantifierWords {
		if _, ok := tokenSet[arabic.NormalizeForMatching(q)]; ok {
			return true
		}
	}
	for _, s := range scriptureTerms {
		if strings.Contains(norm, arabic.NormalizeForMatching(s)) {
			return true
		}
	}
	return false
}
