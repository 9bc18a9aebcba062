package engine

import (
	"strings"

	"muhasibi/pkg/arabic"
	"muhasibi/pkg/common"
)

// spanResolution is the outcome of anchoring one answer sentence in one
// chunk. Offsets are byte offsets into the raw chunk text and are only set
// for exact matches; approximate matches carry a quote without offsets.
type spanResolution struct {
	Status    common.ResolutionStatus
	Method    common.ResolutionMethod
	Quote     string
	SpanStart int
	SpanEnd   int
}

// resolveCitationSpans anchors each citation to the answer: for every
// citation, the best answer sentence is located inside the cited chunk by
// exact substring first, then token overlap. Citations that resolve
// neither way stay unresolved; the must-cite check that follows in
// INTERPRET decides what that means for the contract outcome.
func (e *Engine) resolveCitationSpans(rctx *requestContext) {
	sentences := sentencesForResolution(rctx.answerAr)

	for i := range rctx.citations {
		c := &rctx.citations[i]
		if c.Status == common.ResolutionResolved && c.Quote != "" {
			// Deterministic fallback citations arrive pre-resolved.
			continue
		}
		chunk, ok := packetByID(rctx.retrieval.Packets, c.ChunkID)
		if !ok {
			c.Status = common.ResolutionUnresolved
			continue
		}

		best := spanResolution{Status: common.ResolutionUnresolved}
		for _, sentence := range sentences {
			res := resolveSpan(sentence, chunk.TextAr, e.config.SpanOverlapThreshold, e.config.MaxQuoteWords)
			if better(res, best) {
				best = res
			}
			if best.Status == common.ResolutionResolved {
				break
			}
		}

		c.Status = best.Status
		c.Method = best.Method
		c.Quote = best.Quote
		if best.Status == common.ResolutionResolved && best.Method == common.MethodExactSubstring {
			start, end := best.SpanStart, best.SpanEnd
			c.SpanStart = &start
			c.SpanEnd = &end
		}
	}
}

func better(a, b spanResolution) bool {
	rank := func(s common.ResolutionStatus) int {
		switch s {
		case common.ResolutionResolved:
			return 2
		case common.ResolutionApproximate:
			return 1
		default:
			return 0
		}
	}
	return rank(a.Status) > rank(b.Status)
}

// resolveSpan anchors one sentence inside one chunk.
//
// Exact path: the raw sentence (or its whitespace-collapsed form) is a
// substring of the chunk; offsets are the substring position. Approximate
// path: normalized token overlap between sentence and the best chunk
// sentence reaches the threshold; no offsets are claimed because
// normalization shifts them. Otherwise unresolved. Never guesses offsets.
func resolveSpan(sentence, chunkText string, overlapThreshold float64, maxQuoteWords int) spanResolution {
	sentence = strings.TrimSpace(sentence)
	if sentence == "" || chunkText == "" {
		return spanResolution{Status: common.ResolutionUnresolved, Method: common.MethodFallback}
	}

	idx := strings.Index(chunkText, sentence)
	if idx < 0 {
		if collapsed := strings.Join(strings.Fields(sentence), " "); collapsed != sentence {
			sentence = collapsed
			idx = strings.Index(chunkText, sentence)
		}
	}
	if idx >= 0 {
		quote := clipQuote(sentence, maxQuoteWords)
		end := idx + len(quote)
		if !strings.HasPrefix(chunkText[idx:], quote) {
			end = idx + len(sentence)
			quote = sentence
		}
		return spanResolution{
			Status:    common.ResolutionResolved,
			Method:    common.MethodExactSubstring,
			Quote:     quote,
			SpanStart: idx,
			SpanEnd:   end,
		}
	}

	sTokens := tokenSet(sentence)
	if len(sTokens) == 0 {
		return spanResolution{Status: common.ResolutionUnresolved, Method: common.MethodFallback}
	}

	// Best chunk sentence by overlap ratio; ties break to the earlier,
	// shorter sentence so resolution is reproducible.
	bestRatio := 0.0
	bestSentence := ""
	for _, cs := range sentencesForResolution(chunkText) {
		cTokens := tokenSet(cs)
		if len(cTokens) == 0 {
			continue
		}
		shared := 0
		for t := range sTokens {
			if _, ok := cTokens[t]; ok {
				shared++
			}
		}
		ratio := float64(shared) / float64(len(sTokens))
		if ratio > bestRatio || (ratio == bestRatio && len(cs) < len(bestSentence)) {
			bestRatio = ratio
			bestSentence = cs
		}
	}

	if bestRatio >= overlapThreshold && bestSentence != "" {
		return spanResolution{
			Status: common.ResolutionApproximate,
			Method: common.MethodTokenOverlap,
			Quote:  clipQuote(bestSentence, maxQuoteWords),
		}
	}

	return spanResolution{Status: common.ResolutionUnresolved, Method: common.MethodFallback}
}

var sentenceSeparators = []string{".", "؟", "!", "?", "\n", "؛"}

func sentencesForResolution(text string) []string {
	parts := []string{text}
	for _, sep := range sentenceSeparators {
		var next []string
		for _, p := range parts {
			next = append(next, strings.Split(p, sep)...)
		}
		parts = next
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// tokenSet builds the normalized token set (length >= 3) of a sentence.
func tokenSet(text string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, t := range arabic.MatchTokens(text) {
		if len([]rune(t)) >= 3 {
			out[t] = struct{}{}
		}
	}
	return out
}

// clipQuote bounds a quote to maxWords words for UI highlighting.
func clipQuote(text string, maxWords int) string {
	if maxWords <= 0 {
		maxWords = 25
	}
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) <= maxWords {
		return strings.Join(fields, " ")
	}
	return strings.Join(fields[:maxWords], " ")
}

func normalizedAnswer(text string) string {
	return arabic.TehMarbutaToHeh(arabic.NormalizeForMatching(text))
}
