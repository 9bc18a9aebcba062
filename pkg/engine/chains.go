package engine

import (
	"sort"

	"muhasibi/pkg/common"
)

// buildArgumentChains emits one chain per graph edge whose expanded chunk
// participated in the final answer. The edge's relation label becomes the
// inference type and its first justification quote the claim. Every edge
// here carries at least one span; spanless edges never leave the
// retriever.
func (e *Engine) buildArgumentChains(rctx *requestContext) {
	if rctx.notFound || len(rctx.citations) == 0 {
		return
	}

	cited := make(map[string]bool, len(rctx.citations))
	for _, c := range rctx.citations {
		cited[c.ChunkID] = true
	}

	byEdge := make(map[string]common.ArgumentChain)
	for _, p := range rctx.retrieval.Packets {
		if p.Edge == nil || !p.HasSource(common.HitGraphExpand) {
			continue
		}
		if !cited[p.ID] {
			continue
		}
		if _, ok := byEdge[p.Edge.EdgeID]; ok {
			continue
		}
		if len(p.Edge.Spans) == 0 {
			continue
		}

		chain := common.ArgumentChain{
			EdgeID:        p.Edge.EdgeID,
			ClaimAr:       p.Edge.Spans[0].Quote,
			InferenceType: p.Edge.Relation,
		}
		// Conditional and tension edges carry their qualifier as a
		// boundary clause so the chain does not overstate the relation.
		switch p.Edge.Relation {
		case common.RelationConditionalOn:
			chain.BoundaryClause = "العلاقة مشروطة وليست مطلقة"
		case common.RelationTensionWith:
			chain.BoundaryClause = "العلاقة علاقة توتر لا تلازم"
		}
		byEdge[p.Edge.EdgeID] = chain
	}

	if len(byEdge) == 0 {
		return
	}

	chains := make([]common.ArgumentChain, 0, len(byEdge))
	for _, chain := range byEdge {
		chains = append(chains, chain)
	}
	sort.Slice(chains, func(i, j int) bool { return chains[i].EdgeID < chains[j].EdgeID })
	rctx.argumentChains = chains
}
