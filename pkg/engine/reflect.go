package engine

import (
	"context"
	"strings"

	"muhasibi/pkg/common"
)

// stateReflect appends one optional annotation sentence built only from
// vocabulary already present in the answer or the cited chunks. It never
// adds a claim: refusals get nothing, and if no admissible sentence can be
// formed the stage is a no-op.
//
// In natural_chat mode REFLECT reformats the bulleted answer into flowing
// prose. The cited chunk-ID set never changes and no factual sentence is
// added or removed.
func (e *Engine) stateReflect(_ context.Context, rctx *requestContext) {
	if rctx.notFound || rctx.answerAr == "" {
		return
	}

	if rctx.mode == common.ModeNaturalChat {
		rctx.answerAr = flowingProse(rctx.answerAr)
	}

	annotation := e.annotationSentence(rctx)
	if annotation == "" {
		return
	}
	rctx.answerAr = rctx.answerAr + "\n\n" + annotation
	rctx.reflectionAdded = true
}

// annotationSentence builds the closing sentence from the answer's own
// vocabulary: the entity names the answer already mentions. Any candidate
// token not present in the answer or a cited chunk disqualifies the
// sentence.
func (e *Engine) annotationSentence(rctx *requestContext) string {
	if len(rctx.entities) == 0 {
		return ""
	}

	allowed := vocabulary(rctx)

	var mentioned []string
	answerNorm := normalizedAnswer(rctx.answerAr)
	for _, en := range rctx.entities {
		nameNorm := normalizedAnswer(en.NameAr)
		if nameNorm == "" || !strings.Contains(answerNorm, nameNorm) {
			continue
		}
		ok := true
		for _, tok := range strings.Fields(nameNorm) {
			if _, in := allowed[tok]; !in {
				ok = false
				break
			}
		}
		if ok {
			mentioned = append(mentioned, en.NameAr)
		}
		if len(mentioned) == 2 {
			break
		}
	}
	if len(mentioned) == 0 {
		return ""
	}

	// Connective words must themselves exist in the answer vocabulary,
	// otherwise the annotation would introduce new tokens.
	for _, w := range []string{"هذا", "ما", "ورد", "عن"} {
		if _, ok := allowed[normalizedAnswer(w)]; !ok {
			return ""
		}
	}

	return "هذا ما ورد عن " + strings.Join(mentioned, " و") + "."
}

// vocabulary is the union of normalized tokens from the answer and the
// cited chunks.
func vocabulary(rctx *requestContext) map[string]struct{} {
	out := make(map[string]struct{})
	add := func(text string) {
		for _, t := range strings.Fields(normalizedAnswer(text)) {
			out[t] = struct{}{}
		}
	}
	add(rctx.answerAr)
	cited := make(map[string]bool, len(rctx.citations))
	for _, c := range rctx.citations {
		cited[c.ChunkID] = true
	}
	for _, p := range rctx.retrieval.Packets {
		if cited[p.ID] {
			add(p.TextAr)
		}
	}
	return out
}

// flowingProse turns a bulleted answer into a single line of prose: bullet
// markers and line breaks are dropped, the lines are joined with spaces,
// and the sentences themselves are left untouched.
func flowingProse(answer string) string {
	lines := strings.Split(answer, "\n")
	var parts []string
	for _, line := range lines {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "- "))
		if line == "" {
			continue
		}
		parts = append(parts, line)
	}
	prose := strings.Join(parts, " ")
	return strings.TrimSpace(prose)
}
