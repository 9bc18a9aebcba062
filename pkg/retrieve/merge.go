package retrieve

import (
	"sort"

	"muhasibi/pkg/common"
)

// mergeAndRank unions the three legs by chunk ID and ranks the result.
//
// Score = wE·(entity-exact hit) + wV·(1/vector-rank) + wG·(graph hit).
// Entity-exact hits sort strictly ahead of everything else regardless of
// score, and ties fall back to chunk ID so two runs of the same request
// produce byte-identical ordering.
func mergeAndRank(legs legResults, config Config) Result {
	type scored struct {
		packet common.EvidencePacket
		exact  bool
	}
	byID := make(map[string]*scored)

	add := func(chunk common.Chunk, source common.HitSource, score float64, edge *common.EdgeInfo) {
		if chunk.ID == "" {
			return
		}
		entry, ok := byID[chunk.ID]
		if !ok {
			entry = &scored{packet: common.EvidencePacket{Chunk: chunk}}
			byID[chunk.ID] = entry
		}
		if !entry.packet.HasSource(source) {
			entry.packet.Sources = append(entry.packet.Sources, source)
		}
		entry.packet.Score += score
		if source == common.HitEntityExact {
			entry.exact = true
		}
		if edge != nil && entry.packet.Edge == nil {
			entry.packet.Edge = edge
		}
	}

	for _, hit := range legs.entity {
		add(hit.chunk, common.HitEntityExact, config.WeightEntity, nil)
	}
	for rank, hit := range legs.vector {
		add(hit.Chunk, common.HitVector, config.WeightVector/float64(rank+1), nil)
	}
	for _, hit := range legs.graph {
		edge := hit.Edge
		add(hit.Chunk, common.HitGraphExpand, config.WeightGraph/float64(max(edge.Depth, 1)), &edge)
	}

	entries := make([]*scored, 0, len(byID))
	for _, e := range byID {
		entries = append(entries, e)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].exact != entries[j].exact {
			return entries[i].exact
		}
		if entries[i].packet.Score != entries[j].packet.Score {
			return entries[i].packet.Score > entries[j].packet.Score
		}
		return entries[i].packet.ID < entries[j].packet.ID
	})

	result := Result{TotalFound: len(entries)}
	for _, e := range entries {
		if len(result.Packets) >= config.MaxPackets {
			break
		}
		result.Packets = append(result.Packets, e.packet)
		switch e.packet.Kind {
		case common.ChunkDefinition:
			result.HasDefinition = true
		case common.ChunkEvidence:
			result.HasEvidence = true
		}
	}
	return result
}
