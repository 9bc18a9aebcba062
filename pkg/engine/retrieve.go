package engine

import (
	"context"

	"muhasibi/pkg/common"
	"muhasibi/pkg/logger"
	"muhasibi/pkg/retrieve"
)

// stateRetrieve runs hybrid retrieval under its own deadline. Retrieval
// never surfaces errors: a failed or timed-out retriever leaves an empty
// bundle for ACCOUNT to refuse on.
func (e *Engine) stateRetrieve(ctx context.Context, rctx *requestContext) {
	if e.retriever == nil {
		return
	}

	rtCtx, cancel := context.WithTimeout(ctx, e.config.RetrievalTimeout)
	defer cancel()

	rctx.retrieval = e.retriever.Retrieve(rtCtx, retrieve.Inputs{
		NormalizedQuestion: rctx.normalizedQuestion,
		Keywords:           rctx.keywords,
		Entities:           rctx.entities,
		Intent:             rctx.intent.Type,
	})

	e.supplementStructuralPackets(rtCtx, rctx)
}

// supplementStructuralPackets fetches the heading chunks of the listed
// children for structural intents, so the deterministic list answer can
// cite them without reaching outside the retrieved bundle.
func (e *Engine) supplementStructuralPackets(ctx context.Context, rctx *requestContext) {
	if e.catalog == nil {
		return
	}

	var parentKind, childKind common.EntityKind
	switch rctx.intent.Type {
	case IntentListCoreValuesInPillar:
		parentKind, childKind = common.EntityPillar, common.EntityCoreValue
	case IntentListSubValuesInCoreValue:
		parentKind, childKind = common.EntityCoreValue, common.EntitySubValue
	default:
		return
	}

	parentID := ""
	for _, en := range rctx.entities {
		if en.Kind == parentKind {
			parentID = en.ID
			break
		}
	}
	if parentID == "" {
		return
	}

	children, err := e.catalog.ListChildren(ctx, parentID, childKind)
	if err != nil {
		logger.Debug("Structural child listing failed", "parent", parentID, "err", err)
		return
	}

	have := make(map[string]bool, len(rctx.retrieval.Packets))
	for _, p := range rctx.retrieval.Packets {
		if p.Kind == common.ChunkDefinition {
			have[p.EntityID] = true
		}
	}

	for _, child := range children {
		if have[child.ID] {
			continue
		}
		chunks, err := e.catalog.LookupByEntity(ctx, child.ID, 1)
		if err != nil || len(chunks) == 0 || chunks[0].Kind != common.ChunkDefinition {
			continue
		}
		rctx.retrieval.Packets = append(rctx.retrieval.Packets, common.EvidencePacket{
			Chunk:   chunks[0],
			Sources: []common.HitSource{common.HitEntityExact},
		})
		if !rctx.retrieval.HasDefinition {
			rctx.retrieval.HasDefinition = true
		}
	}
}
