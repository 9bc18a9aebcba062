package engine

import (
	"context"
	"strings"

	"muhasibi/pkg/arabic"
	"muhasibi/pkg/common"
	"muhasibi/pkg/logger"
)

// stateListen normalizes the question, extracts keywords, resolves
// entities, and classifies intent. Entirely deterministic except for the
// optional model fallback of the intent classifier; malformed input never
// raises, it produces empty outputs and an ambiguous intent.
func (e *Engine) stateListen(ctx context.Context, rctx *requestContext) {
	if isBlankQuestion(rctx.question) || !arabic.ContainsArabic(rctx.question) {
		rctx.addReason(ReasonInputMalformed)
		rctx.intent = Intent{Type: IntentAmbiguous, InScope: false}
		rctx.listenSummaryAr = "سؤال غير صالح"
		return
	}

	rctx.normalizedQuestion = arabic.NormalizeForMatching(rctx.question)
	rctx.keywords = arabic.Keywords(rctx.question)

	if e.resolver != nil {
		matches := e.resolver.Resolve(rctx.question)
		rctx.entityConfidence = make(map[string]float64, len(matches))
		for _, m := range matches {
			rctx.entities = append(rctx.entities, common.EntityRef{
				Kind:   m.Entity.Kind,
				ID:     m.Entity.ID,
				NameAr: m.Entity.NameAr,
			})
			rctx.entityConfidence[m.Entity.ID] = m.Confidence
		}

		// Explicit "list the five pillars" questions resolve to the pillar
		// set even when no pillar is named.
		if len(rctx.entities) == 0 && isPillarListQuestion(rctx.normalizedQuestion) {
			for _, p := range e.resolver.Pillars() {
				rctx.entities = append(rctx.entities, common.EntityRef{
					Kind:   p.Kind,
					ID:     p.ID,
					NameAr: p.NameAr,
				})
				rctx.entityConfidence[p.ID] = 0.8
			}
		}
	}

	rctx.intent = e.classifyIntent(ctx, rctx)

	if len(rctx.entities) > 0 {
		names := make([]string, 0, 3)
		for _, en := range rctx.entities {
			names = append(names, en.NameAr)
			if len(names) == 3 {
				break
			}
		}
		rctx.listenSummaryAr = "السؤال عن: " + strings.Join(names, "، ")
	} else {
		q := []rune(rctx.question)
		if len(q) > 100 {
			q = q[:100]
		}
		rctx.listenSummaryAr = "سؤال عام: " + string(q)
	}
}

func isPillarListQuestion(normalized string) bool {
	hasPillarWord := strings.Contains(normalized, arabic.NormalizeForMatching("ركائز")) || strings.Contains(normalized, "اركان")
	hasCount := strings.Contains(normalized, "الخمس") || strings.Contains(normalized, "خمسه") ||
		strings.Contains(normalized, "خمسة") || strings.Contains(normalized, "5")
	return hasPillarWord && hasCount
}

// classifyIntent applies the deterministic literal rules first and only
// consults the model when no rule fires.
func (e *Engine) classifyIntent(ctx context.Context, rctx *requestContext) Intent {
	q := rctx.normalizedQuestion

	if isPillarListQuestion(q) {
		return Intent{Type: IntentListPillars, InScope: true, Confidence: 0.9}
	}

	hasPillar := hasEntityKind(rctx.entities, common.EntityPillar)
	hasCoreValue := hasEntityKind(rctx.entities, common.EntityCoreValue)

	if strings.Contains(q, "القيم") && strings.Contains(q, "الكلية") && hasPillar {
		return Intent{
			Type:         IntentListCoreValuesInPillar,
			InScope:      true,
			Confidence:   0.8,
			TargetEntity: firstEntityName(rctx.entities, common.EntityPillar),
		}
	}

	if strings.Contains(q, "القيم") && strings.Contains(q, "الفرعية") && hasCoreValue {
		return Intent{
			Type:         IntentListSubValuesInCoreValue,
			InScope:      true,
			Confidence:   0.8,
			TargetEntity: firstEntityName(rctx.entities, common.EntityCoreValue),
		}
	}

	if e.isFiqhRulingQuestion(q) {
		return Intent{Type: IntentFiqhRuling, InScope: false, Confidence: 0.9}
	}

	if strings.Contains(q, "من هو") || strings.Contains(q, "من هي") || strings.Contains(q, "مولف") || strings.Contains(q, "مؤلف") {
		if len(rctx.entities) == 0 {
			return Intent{Type: IntentBiography, InScope: false, Confidence: 0.8}
		}
	}

	if strings.Contains(q, "قارن") || strings.Contains(q, "مقارنة") || strings.Contains(q, "الفرق بين") {
		if len(rctx.entities) >= 2 {
			if crossesPillars(rctx.entities) {
				return Intent{Type: IntentConnectAcrossPillars, InScope: true, Confidence: 0.8}
			}
			return Intent{Type: IntentComparison, InScope: true, Confidence: 0.8}
		}
	}

	if len(rctx.entities) > 0 && (strings.Contains(q, "عرف") || strings.Contains(q, "تعريف") ||
		strings.Contains(q, "ما هي") || strings.Contains(q, "ما هو")) {
		intentType := IntentDefinition
		if strings.Contains(q, "دليل") || strings.Contains(q, "نص") || strings.Contains(q, "استشهاد") || strings.Contains(q, "مستشهد") {
			intentType = IntentDefinitionWithEvidence
		}
		return Intent{
			Type:         intentType,
			InScope:      true,
			Confidence:   0.85,
			TargetEntity: rctx.entities[0].NameAr,
		}
	}

	if len(rctx.entities) > 0 && strings.Contains(q, "كيف") {
		return Intent{Type: IntentPracticalGuidance, InScope: true, Confidence: 0.7}
	}

	// No rule fired: ask the classifier if it is available, fall back to
	// ambiguous otherwise. The classifier never answers the question.
	if e.model != nil {
		mctx, cancel := context.WithTimeout(ctx, e.config.ModelTimeout)
		defer cancel()
		result, err := e.model.ClassifyIntent(mctx, rctx.question, rctx.entities, rctx.keywords)
		if err != nil {
			logger.Debug("Intent classifier unavailable", "err", err)
		} else if result != nil && result.IntentType != "" {
			return Intent{
				Type:               result.IntentType,
				InScope:            result.InScope,
				Confidence:         result.Confidence,
				TargetEntity:       result.TargetEntity,
				SuggestedQueriesAr: result.SuggestedQueriesAr,
				ClarificationAr:    result.ClarificationAr,
			}
		}
	}

	if len(rctx.entities) > 0 {
		return Intent{Type: IntentPracticalGuidance, InScope: true, Confidence: 0.5}
	}
	return Intent{Type: IntentAmbiguous, InScope: true, Confidence: 0.3}
}

func (e *Engine) isFiqhRulingQuestion(normalized string) bool {
	return containsAnyNormalized(normalized, e.config.FiqhMarkers) &&
		containsAnyNormalized(normalized, e.config.WorshipTerms)
}

func containsAnyNormalized(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, arabic.NormalizeForMatching(n)) {
			return true
		}
	}
	return false
}

func hasEntityKind(entities []common.EntityRef, kind common.EntityKind) bool {
	for _, e := range entities {
		if e.Kind == kind {
			return true
		}
	}
	return false
}

func firstEntityName(entities []common.EntityRef, kind common.EntityKind) string {
	for _, e := range entities {
		if e.Kind == kind {
			return e.NameAr
		}
	}
	return ""
}

// crossesPillars reports whether the detected entities include two or more
// pillars, or a pillar together with a core value or sub-value. It counts
// entity kinds only; parent links of the values are not checked.
func crossesPillars(entities []common.EntityRef) bool {
	pillars := 0
	values := 0
	for _, e := range entities {
		switch e.Kind {
		case common.EntityPillar:
			pillars++
		case common.EntityCoreValue, common.EntitySubValue:
			values++
		}
	}
	if pillars >= 2 {
		return true
	}
	return pillars >= 1 && values >= 1
}
