package engine

import (
	"context"
	"strings"

	"muhasibi/pkg/common"
	"muhasibi/pkg/guardrails"
	"muhasibi/pkg/logger"
)

// stateInterpret binds evidence to an answer. Structural list intents are
// answered deterministically from the catalog; everything else goes through
// the schema-constrained model call with a deterministic fallback. All
// output passes span resolution and the guardrail cascade before leaving
// the stage.
func (e *Engine) stateInterpret(ctx context.Context, rctx *requestContext) {
	if rctx.notFound {
		// ACCOUNT refused; the abstention shape is already in place.
		return
	}

	if rctx.intent.IsStructural() {
		if e.structuralAnswer(ctx, rctx) {
			rctx.confidence = common.ConfidenceHigh
			e.buildArgumentChains(rctx)
			return
		}
	}

	interpreted := e.modelInterpret(ctx, rctx)
	if !interpreted {
		e.deterministicFallback(rctx)
	}
	if rctx.notFound {
		return
	}

	// Post-generation pipeline: unknown-ID pruning, hydration, span
	// resolution, must-cite guardrails, argument chains.
	e.pruneUnknownCitations(rctx)
	e.hydrateCitations(rctx)
	e.resolveCitationSpans(rctx)
	e.enforceMustCite(rctx)
	if rctx.notFound {
		return
	}
	e.runGuardrails(rctx)
	if rctx.notFound {
		return
	}
	e.buildArgumentChains(rctx)
}

// modelInterpret runs the mode-specific interpreter call. Returns false
// when the call failed and the deterministic fallback should take over.
func (e *Engine) modelInterpret(ctx context.Context, rctx *requestContext) bool {
	if e.model == nil {
		return false
	}

	mctx, cancel := context.WithTimeout(ctx, e.config.ModelTimeout)
	defer cancel()

	result, err := e.model.Interpret(mctx, rctx.question, rctx.retrieval.Packets, rctx.entities, rctx.mode)
	if err != nil || result == nil {
		logger.Warn("Interpreter call failed, using deterministic fallback", "request_id", rctx.requestID, "err", err)
		rctx.addReason(ReasonModelUnavailable)
		return false
	}

	if result.NotFound {
		rctx.addReason(ReasonInsufficientEvidence)
		e.forceRefusal(rctx, abstainNoEvidenceAr)
		return true
	}

	rctx.answerAr = strings.TrimSpace(result.AnswerAr)
	if rctx.answerAr == "" {
		rctx.addReason(ReasonModelUnavailable)
		return false
	}

	for _, c := range result.Citations {
		if c.ChunkID == "" {
			continue
		}
		citation := common.Citation{
			ChunkID:      c.ChunkID,
			SourceAnchor: c.SourceAnchor,
			Status:       common.ResolutionUnresolved,
		}
		if c.Ref != "" {
			citation.Ref = &common.ScriptureRef{Kind: "book", Ref: c.Ref}
		}
		rctx.citations = append(rctx.citations, citation)
	}

	switch common.Confidence(result.Confidence) {
	case common.ConfidenceHigh, common.ConfidenceMedium, common.ConfidenceLow:
		rctx.confidence = common.Confidence(result.Confidence)
	default:
		rctx.confidence = common.ConfidenceMedium
	}
	return true
}

// deterministicFallback synthesizes the two-section answer (التعريف then
// الدليل/التأصيل) from the top definition and evidence chunks, verbatim.
// With no definition packet available it refuses.
func (e *Engine) deterministicFallback(rctx *requestContext) {
	var definitions, evidence []common.EvidencePacket
	for _, p := range rctx.retrieval.Packets {
		switch p.Kind {
		case common.ChunkDefinition:
			definitions = append(definitions, p)
		case common.ChunkEvidence:
			evidence = append(evidence, p)
		}
	}

	if len(definitions) == 0 {
		e.forceRefusal(rctx, abstainNoEvidenceAr)
		return
	}

	var sections []string
	var cited []common.EvidencePacket

	sections = append(sections, "التعريف:\n"+strings.TrimSpace(definitions[0].TextAr))
	cited = append(cited, definitions[0])

	if len(evidence) > 0 {
		lines := []string{"الدليل/التأصيل:"}
		for i, ev := range evidence {
			if i >= 2 {
				break
			}
			lines = append(lines, strings.TrimSpace(ev.TextAr))
			cited = append(cited, ev)
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}

	rctx.answerAr = strings.Join(sections, "\n\n")
	rctx.citations = nil
	for _, p := range cited {
		citation := common.Citation{
			ChunkID:      p.ID,
			SourceAnchor: p.SourceAnchor,
			Quote:        clipQuote(p.TextAr, e.config.MaxQuoteWords),
			Status:       common.ResolutionResolved,
			Method:       common.MethodExactSubstring,
		}
		if len(p.Refs) > 0 {
			ref := p.Refs[0]
			citation.Ref = &ref
		}
		rctx.citations = append(rctx.citations, citation)
	}
	rctx.confidence = common.ConfidenceMedium
}

// pruneUnknownCitations drops citations whose chunk is not in the
// retrieved bundle.
func (e *Engine) pruneUnknownCitations(rctx *requestContext) {
	kept, result := e.guards.VerifyEvidenceIDs(rctx.citations, rctx.retrieval.Packets)
	if !result.Passed {
		rctx.addReason(ReasonUnknownChunkCitation)
		rctx.passPartial = true
	}
	rctx.citations = kept
}

// hydrateCitations fills in citations from the top-ranked packets when the
// model answered without any: one per distinct entity the answer touches.
// Hydration is stable: packets already cited are never duplicated, so
// re-running it changes nothing.
func (e *Engine) hydrateCitations(rctx *requestContext) {
	if len(rctx.citations) > 0 || rctx.notFound {
		return
	}
	rctx.addReason(ReasonMissingCitations)

	answerNorm := normalizedAnswer(rctx.answerAr)

	namesAny := false
	for _, p := range rctx.retrieval.Packets {
		if entityTouchesAnswer(rctx, p.EntityID, answerNorm) {
			namesAny = true
			break
		}
	}

	seenEntity := make(map[string]bool)
	for _, p := range rctx.retrieval.Packets {
		if seenEntity[p.EntityID] {
			continue
		}
		// Only hydrate from packets about entities the answer mentions, or
		// from entity-exact hits when the answer names nothing detectable.
		if !entityTouchesAnswer(rctx, p.EntityID, answerNorm) && (namesAny || !p.HasSource(common.HitEntityExact)) {
			continue
		}
		seenEntity[p.EntityID] = true
		citation := common.Citation{
			ChunkID:      p.ID,
			SourceAnchor: p.SourceAnchor,
			Status:       common.ResolutionUnresolved,
			Method:       common.MethodFallback,
		}
		if len(p.Refs) > 0 {
			ref := p.Refs[0]
			citation.Ref = &ref
		}
		rctx.citations = append(rctx.citations, citation)
	}
}

// runGuardrails applies the citation/claims cascade and fails closed on a
// refusal verdict.
func (e *Engine) runGuardrails(rctx *requestContext) {
	result := e.guards.Validate(rctx.answerAr, rctx.citations, rctx.retrieval.Packets, rctx.notFound)
	if result.ShouldRefuse {
		rctx.addReason(ReasonGuardrailFailure)
		e.forceRefusal(rctx, abstainNoEvidenceAr)
		return
	}
	if !result.Passed {
		rctx.addReason(ReasonGuardrailFailure)
		rctx.passPartial = true
	}
}

// enforceMustCite checks that every must-cite sentence has a resolved or
// approximate citation. Failures degrade the contract; on definitional
// intents an unresolved must-cite sentence fails closed.
func (e *Engine) enforceMustCite(rctx *requestContext) {
	supported := false
	for _, c := range rctx.citations {
		if c.Status == common.ResolutionResolved || c.Status == common.ResolutionApproximate {
			supported = true
			break
		}
	}

	unresolvedMustCite := 0
	for _, sentence := range guardrails.Sentences(rctx.answerAr) {
		// Section headers and other fragments are not claims.
		if len(strings.Fields(sentence)) < 3 {
			continue
		}
		if !guardrails.IsMustCite(sentence) {
			continue
		}
		if !e.sentenceIsCovered(rctx, sentence) {
			unresolvedMustCite++
		}
	}

	if unresolvedMustCite == 0 {
		return
	}

	if rctx.intent.IsDefinitional() && (!supported || unresolvedMustCite > 0) {
		rctx.addReason(ReasonGuardrailFailure)
		e.forceRefusal(rctx, abstainNoEvidenceAr)
		return
	}

	rctx.addReason(ReasonGuardrailFailure)
	rctx.passPartial = true
}

// sentenceIsCovered reports whether a sentence resolves (exactly or
// approximately) against any cited chunk.
func (e *Engine) sentenceIsCovered(rctx *requestContext, sentence string) bool {
	for _, c := range rctx.citations {
		if c.Status == common.ResolutionUnresolved {
			continue
		}
		chunk, ok := packetByID(rctx.retrieval.Packets, c.ChunkID)
		if !ok {
			continue
		}
		res := resolveSpan(sentence, chunk.TextAr, e.config.SpanOverlapThreshold, e.config.MaxQuoteWords)
		if res.Status != common.ResolutionUnresolved {
			return true
		}
	}
	return false
}

func packetByID(packets []common.EvidencePacket, chunkID string) (common.EvidencePacket, bool) {
	for _, p := range packets {
		if p.ID == chunkID {
			return p, true
		}
	}
	return common.EvidencePacket{}, false
}

func entityTouchesAnswer(rctx *requestContext, entityID, answerNorm string) bool {
	for _, en := range rctx.entities {
		if en.ID != entityID {
			continue
		}
		name := normalizedAnswer(en.NameAr)
		if name != "" && strings.Contains(answerNorm, name) {
			return true
		}
	}
	return false
}
