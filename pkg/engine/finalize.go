package engine

import (
	"context"

	"muhasibi/pkg/common"
	"muhasibi/pkg/guardrails"
)

// stateFinalize enforces the response invariants. Violations never raise:
// each converts into a safe refusal or a repaired field, and the applied
// repairs land in the contract reasons.
func (e *Engine) stateFinalize(_ context.Context, rctx *requestContext) {
	retrieved := make(map[string]struct{}, len(rctx.retrieval.Packets))
	for _, p := range rctx.retrieval.Packets {
		retrieved[p.ID] = struct{}{}
	}

	// Unknown chunk IDs are dropped before the emptiness check so one bad
	// citation cannot smuggle an uncited answer through.
	var kept []common.Citation
	for _, c := range rctx.citations {
		if _, ok := retrieved[c.ChunkID]; !ok {
			rctx.addReason(ReasonUnknownChunkCitation)
			rctx.passPartial = true
			continue
		}
		kept = append(kept, c)
	}
	rctx.citations = kept

	if !rctx.notFound && len(rctx.citations) == 0 {
		rctx.addReason(ReasonMissingCitations)
		e.forceRefusal(rctx, abstainNoEvidenceAr)
	}

	// Abstentions carry no citations and always explain themselves.
	if rctx.notFound {
		rctx.citations = nil
		rctx.argumentChains = nil
		if rctx.abstainReason == "" {
			rctx.abstainReason = abstainNoEvidenceAr
		}
		if rctx.answerAr == "" {
			rctx.answerAr = guardrails.RefusalMessageAr
		}
	}

	rctx.purpose.Constraints = ensureRequiredConstraints(rctx.purpose.Constraints)

	if rctx.difficulty == "" {
		rctx.difficulty = common.DifficultyMedium
	}
	if rctx.confidence == "" {
		rctx.confidence = common.ConfidenceLow
	}
}

// ensureRequiredConstraints injects any missing mandatory constraint while
// preserving the existing order.
func ensureRequiredConstraints(constraints []string) []string {
	have := make(map[string]bool, len(constraints))
	for _, c := range constraints {
		have[c] = true
	}
	missing := make([]string, 0, 3)
	for _, required := range common.RequiredConstraints() {
		if !have[required] {
			missing = append(missing, required)
		}
	}
	if len(missing) == 0 {
		return constraints
	}
	return append(missing, constraints...)
}

// FinalizeResponse applies the FINALIZE invariants to an already-built
// response against the set of retrieved chunk IDs. It is pure and
// idempotent: running a finalized response through it again returns an
// identical record.
func FinalizeResponse(resp common.FinalResponse, retrievedIDs map[string]struct{}) common.FinalResponse {
	var kept []common.Citation
	dropped := false
	for _, c := range resp.Citations {
		if _, ok := retrievedIDs[c.ChunkID]; !ok {
			dropped = true
			continue
		}
		kept = append(kept, c)
	}
	resp.Citations = kept
	if dropped {
		resp.ContractReasons = appendUnique(resp.ContractReasons, ReasonUnknownChunkCitation)
		if resp.ContractOutcome == common.ContractPassFull {
			resp.ContractOutcome = common.ContractPassPartial
		}
	}

	if !resp.NotFound && len(resp.Citations) == 0 {
		resp.NotFound = true
		resp.AnswerAr = guardrails.RefusalMessageAr
		resp.Confidence = common.ConfidenceLow
		resp.ContractReasons = appendUnique(resp.ContractReasons, ReasonMissingCitations)
		if resp.ContractOutcome == common.ContractPassFull {
			resp.ContractOutcome = common.ContractPassPartial
		}
	}

	if resp.NotFound {
		resp.Citations = nil
		resp.ArgumentChains = nil
		if resp.AbstainReason == "" {
			resp.AbstainReason = abstainNoEvidenceAr
		}
	}

	resp.Purpose.Constraints = ensureRequiredConstraints(resp.Purpose.Constraints)
	return resp
}

func appendUnique(reasons []string, reason string) []string {
	for _, r := range reasons {
		if r == reason {
			return reasons
		}
	}
	return append(reasons, reason)
}
