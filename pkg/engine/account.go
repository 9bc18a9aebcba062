package engine

import (
	"context"
	"strings"

	"muhasibi/pkg/arabic"
	"muhasibi/pkg/common"
)

// Refusal wording for the two abstention families.
const (
	abstainFiqhAr         = "السؤال فقهي/حُكمي (فتوى) وهو خارج نطاق هذا النظام."
	abstainOutOfScopeAr   = "السؤال خارج نطاق الإطار المعرفي المعتمد."
	abstainNoEvidenceAr   = "لا توجد أدلة كافية في المصدر المعتمد للإجابة على هذا السؤال."
	abstainNoRelevanceAr  = "الأدلة المسترجعة لا تتصل بالسؤال اتصالًا كافيًا."
	suggestFastingReframe = "بديل داخل النطاق: ما أثر الصيام كعبادة على تزكية النفس ضمن إطار الحياة الطيبة؟"
	suggestGenericReframe = "بديل داخل النطاق: كيف يرتبط هذا الموضوع بقيم العبادة والتزكية كإطار للحياة الطيبة؟"
)

// stateAccount is the contract gate: existence, relevance, and scope. It
// is fully deterministic and decides between proceeding to INTERPRET and
// refusing with a structured abstention.
func (e *Engine) stateAccount(_ context.Context, rctx *requestContext) {
	// Malformed input refuses regardless of what retrieval found.
	if hasReason(rctx, ReasonInputMalformed) {
		rctx.outcome = accountInsufficient
		e.forceRefusal(rctx, "السؤال فارغ أو غير صالح.")
		return
	}

	// Scope: fiqh rulings refuse with an in-scope reframing suggestion.
	if rctx.intent.Type == IntentFiqhRuling || e.isFiqhRulingQuestion(rctx.normalizedQuestion) {
		rctx.outcome = accountOutOfScopeRefusal
		rctx.addReason(ReasonOutOfScope)
		rctx.addReason(ReasonFiqhRuling)
		e.forceRefusal(rctx, abstainFiqhAr)
		if strings.Contains(rctx.normalizedQuestion, "صيام") || strings.Contains(rctx.normalizedQuestion, "صوم") {
			rctx.refusalSuggestionAr = suggestFastingReframe
		} else {
			rctx.refusalSuggestionAr = suggestGenericReframe
		}
		return
	}

	// Scope: biography and general trivia refuse without reframing.
	if rctx.intent.Type == IntentBiography || rctx.intent.Type == IntentGeneralKnowledge ||
		(!rctx.intent.InScope && rctx.intent.Type != IntentAmbiguous) {
		rctx.outcome = accountOutOfScopeRefusal
		rctx.addReason(ReasonOutOfScope)
		e.forceRefusal(rctx, abstainOutOfScopeAr)
		return
	}

	// Existence: no evidence means refusal, never a model call.
	if len(rctx.retrieval.Packets) == 0 {
		rctx.outcome = accountInsufficient
		rctx.addReason(ReasonInsufficientEvidence)
		e.forceRefusal(rctx, abstainNoEvidenceAr)
		return
	}

	// Relevance is lexical and skipped for structural intents: heading
	// chunks rarely share surface tokens with the question but are still
	// correct and citeable.
	if !rctx.intent.IsStructural() {
		if !e.relevanceHolds(rctx) {
			rctx.outcome = accountInsufficient
			rctx.addReason(ReasonInsufficientEvidence)
			e.forceRefusal(rctx, abstainNoRelevanceAr)
			return
		}
	}

	rctx.outcome = accountSufficient
}

// relevanceHolds checks that enough question keywords appear in the
// retrieved evidence, and for multi-entity questions that each detected
// entity with confidence >= 0.75 has a definition or entity-exact packet.
func (e *Engine) relevanceHolds(rctx *requestContext) bool {
	// High-confidence entity anchors make lexical gating redundant:
	// retrieval was keyed to in-corpus entities already.
	highConfidence := 0
	for _, conf := range rctx.entityConfidence {
		if conf >= 0.75 {
			highConfidence++
		}
	}

	if highConfidence == 0 {
		terms := rctx.matchableKeywords()
		if len(terms) > 0 {
			combined := combinedPacketText(rctx.retrieval.Packets)
			matched := 0
			for _, t := range terms {
				if strings.Contains(combined, t) {
					matched++
				}
			}
			if matched < e.config.MinKeywordMatch {
				return false
			}
		}
	}

	// Multi-entity coverage: every detected entity with confidence >= 0.75
	// needs a definition or entity-exact packet of its own; lower-confidence
	// entities are not checked.
	if len(rctx.entities) >= 2 {
		covered := make(map[string]bool, len(rctx.entities))
		for _, p := range rctx.retrieval.Packets {
			if p.Kind == common.ChunkDefinition || p.HasSource(common.HitEntityExact) {
				covered[p.EntityID] = true
			}
		}
		for _, en := range rctx.entities {
			if conf := rctx.entityConfidence[en.ID]; conf < 0.75 {
				continue
			}
			if !covered[en.ID] {
				return false
			}
		}
	}

	return true
}

// matchableKeywords are the question keywords of length >= 3 in match-key
// form.
func (rctx *requestContext) matchableKeywords() []string {
	var out []string
	for _, t := range arabic.MatchTokens(rctx.question) {
		if len([]rune(t)) >= 3 {
			out = append(out, t)
		}
	}
	if len(out) > 12 {
		out = out[:12]
	}
	return out
}

func combinedPacketText(packets []common.EvidencePacket) string {
	var b strings.Builder
	for i, p := range packets {
		if i >= 12 {
			break
		}
		b.WriteString(" ")
		b.WriteString(p.TextAr)
	}
	return arabic.TehMarbutaToHeh(arabic.NormalizeForMatching(b.String()))
}

func hasReason(rctx *requestContext, reason string) bool {
	for _, r := range rctx.contractReasons {
		if r == reason {
			return true
		}
	}
	return false
}
