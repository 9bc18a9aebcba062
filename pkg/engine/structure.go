package engine

import (
	"context"
	"strings"

	"muhasibi/pkg/common"
	"muhasibi/pkg/logger"
)

// structuralAnswer builds list answers by direct projection from the
// catalog, citing the heading chunk of each listed entity. No model call.
// Citations only ever point at retrieved packets, so the citation
// invariants hold by construction. Returns false when the projection
// cannot be completed; the caller then falls back to the model path.
func (e *Engine) structuralAnswer(_ context.Context, rctx *requestContext) bool {
	switch rctx.intent.Type {
	case IntentListPillars:
		return e.answerListPillars(rctx)
	case IntentListCoreValuesInPillar:
		return e.answerListChildren(rctx, common.EntityPillar, common.EntityCoreValue, "القيم الكلية في %s هي:")
	case IntentListSubValuesInCoreValue:
		return e.answerListChildren(rctx, common.EntityCoreValue, common.EntitySubValue, "القيم الفرعية في %s هي:")
	}
	return false
}

func (e *Engine) answerListPillars(rctx *requestContext) bool {
	if e.resolver == nil {
		return false
	}
	pillars := e.resolver.Pillars()
	if len(pillars) != 5 {
		logger.Warn("Pillar catalog does not hold exactly five pillars", "count", len(pillars))
		return false
	}

	names := make([]string, 0, len(pillars))
	var citations []common.Citation
	for _, p := range pillars {
		names = append(names, p.NameAr)
		packet, ok := definitionPacketFor(rctx.retrieval.Packets, p.ID)
		if !ok {
			return false
		}
		citations = append(citations, e.headingCitation(packet, p.NameAr))
	}

	var b strings.Builder
	b.WriteString("ركائز الحياة الطيبة الخمس هي:\n")
	for _, name := range names {
		b.WriteString("- ")
		b.WriteString(name)
		b.WriteString("\n")
	}

	rctx.answerAr = strings.TrimSuffix(b.String(), "\n")
	rctx.citations = citations
	return true
}

func (e *Engine) answerListChildren(rctx *requestContext, parentKind, childKind common.EntityKind, heading string) bool {
	parentID := ""
	parentName := ""
	for _, en := range rctx.entities {
		if en.Kind == parentKind {
			parentID = en.ID
			parentName = en.NameAr
			break
		}
	}
	if parentID == "" {
		return false
	}

	// RETRIEVE supplements the bundle with child heading packets for
	// structural intents, so the children are recoverable from packets.
	var children []common.EvidencePacket
	seen := make(map[string]bool)
	for _, p := range rctx.retrieval.Packets {
		if p.Kind != common.ChunkDefinition || p.EntityKind != childKind || seen[p.EntityID] {
			continue
		}
		seen[p.EntityID] = true
		children = append(children, p)
	}
	if len(children) == 0 {
		return false
	}

	var b strings.Builder
	b.WriteString(strings.Replace(heading, "%s", parentName, 1))
	b.WriteString("\n")
	var citations []common.Citation
	for _, child := range children {
		name := childEntityName(rctx, child.EntityID)
		if name == "" {
			name = headingName(child.TextAr)
		}
		b.WriteString("- ")
		b.WriteString(name)
		b.WriteString("\n")
		citations = append(citations, e.headingCitation(child, name))
	}

	rctx.answerAr = strings.TrimSuffix(b.String(), "\n")
	rctx.citations = citations
	return true
}

// headingCitation cites a heading chunk, anchoring the listed name inside
// the chunk text when possible.
func (e *Engine) headingCitation(packet common.EvidencePacket, name string) common.Citation {
	citation := common.Citation{
		ChunkID:      packet.ID,
		SourceAnchor: packet.SourceAnchor,
		Status:       common.ResolutionApproximate,
		Method:       common.MethodTokenOverlap,
		Quote:        clipQuote(firstLine(packet.TextAr), e.config.MaxQuoteWords),
	}
	if idx := strings.Index(packet.TextAr, name); idx >= 0 {
		start, end := idx, idx+len(name)
		citation.Status = common.ResolutionResolved
		citation.Method = common.MethodExactSubstring
		citation.Quote = name
		citation.SpanStart = &start
		citation.SpanEnd = &end
	}
	if len(packet.Refs) > 0 {
		ref := packet.Refs[0]
		citation.Ref = &ref
	}
	return citation
}

func definitionPacketFor(packets []common.EvidencePacket, entityID string) (common.EvidencePacket, bool) {
	for _, p := range packets {
		if p.EntityID == entityID && p.Kind == common.ChunkDefinition {
			return p, true
		}
	}
	return common.EvidencePacket{}, false
}

func childEntityName(rctx *requestContext, entityID string) string {
	for _, en := range rctx.entities {
		if en.ID == entityID {
			return en.NameAr
		}
	}
	return ""
}

func firstLine(text string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(text), "\n")
	return strings.TrimSpace(line)
}

// headingName extracts the entity name from a heading line of the form
// "القيمة الكلية: التزكية".
func headingName(text string) string {
	line := firstLine(text)
	if _, after, found := strings.Cut(line, ":"); found {
		return strings.TrimSpace(after)
	}
	return line
}
