package common

// EntityKind identifies a level in the wellbeing framework hierarchy.
type EntityKind string

const (
	EntityPillar    EntityKind = "pillar"
	EntityCoreValue EntityKind = "core_value"
	EntitySubValue  EntityKind = "sub_value"
	// EntityDocument covers framework-level chunks (intro, glossary,
	// methodology) that belong to no single pillar or value.
	EntityDocument EntityKind = "document"
)

// Depth returns the hierarchy depth of the entity kind. Sub-values are the
// deepest and win entity-match tie-breaks.
func (k EntityKind) Depth() int {
	switch k {
	case EntitySubValue:
		return 3
	case EntityCoreValue:
		return 2
	case EntityPillar:
		return 1
	default:
		return 0
	}
}

// ChunkKind identifies the role of a canonical text chunk.
type ChunkKind string

const (
	ChunkDefinition ChunkKind = "definition"
	ChunkEvidence   ChunkKind = "evidence"
	ChunkCommentary ChunkKind = "commentary"
)

// Confidence levels for answers.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Difficulty labels for questions, derived in the PATH stage.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// ContractOutcome is the final verdict of the answer contract.
type ContractOutcome string

const (
	ContractPassFull    ContractOutcome = "PASS_FULL"
	ContractPassPartial ContractOutcome = "PASS_PARTIAL"
	ContractFail        ContractOutcome = "FAIL"
)

// Mode selects the voice of the interpreter prompt. The answer contract is
// identical across modes.
type Mode string

const (
	ModeAnswer      Mode = "answer"
	ModeDebate      Mode = "debate"
	ModeSocratic    Mode = "socratic"
	ModeJudge       Mode = "judge"
	ModeNaturalChat Mode = "natural_chat"
)

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeAnswer, ModeDebate, ModeSocratic, ModeJudge, ModeNaturalChat:
		return true
	}
	return false
}

// RelationLabel is the semantic label of a graph edge.
type RelationLabel string

const (
	RelationEnables       RelationLabel = "ENABLES"
	RelationReinforces    RelationLabel = "REINFORCES"
	RelationConditionalOn RelationLabel = "CONDITIONAL_ON"
	RelationTensionWith   RelationLabel = "TENSION_WITH"
	RelationResolvesWith  RelationLabel = "RESOLVES_WITH"
	RelationContrastsWith RelationLabel = "CONTRASTS_WITH"
	RelationComplements   RelationLabel = "COMPLEMENTS"
	RelationContains      RelationLabel = "CONTAINS"
	RelationSupportedBy   RelationLabel = "SUPPORTED_BY"
)

// KnownRelationLabels lists every semantic relation label used by the
// edge graph, in a stable order.
var KnownRelationLabels = []RelationLabel{
	RelationEnables,
	RelationReinforces,
	RelationConditionalOn,
	RelationTensionWith,
	RelationResolvesWith,
	RelationContrastsWith,
	RelationComplements,
	RelationContains,
	RelationSupportedBy,
}

// Entity is a node in the framework hierarchy: a pillar, a core value, or a
// sub-value. Entities are created by ingestion and read-only here.
type Entity struct {
	ID           string     `json:"id"`
	Kind         EntityKind `json:"kind"`
	NameAr       string     `json:"name_ar"`
	DefinitionAr string     `json:"definition_ar,omitempty"`
	ParentID     string     `json:"parent_id,omitempty"`
	SourceAnchor string     `json:"source_anchor,omitempty"`
}

// ScriptureRef is a scriptural reference attached to a chunk or citation.
type ScriptureRef struct {
	Kind string `json:"kind"` // quran | hadith | book
	Ref  string `json:"ref"`
}

// Chunk is a canonical text unit attached to an entity. Chunks are immutable
// after ingestion and are the only admissible evidence.
type Chunk struct {
	ID           string         `json:"id"`
	EntityID     string         `json:"entity_id"`
	EntityKind   EntityKind     `json:"entity_kind"`
	Kind         ChunkKind      `json:"kind"`
	TextAr       string         `json:"text_ar"`
	SourceDocID  string         `json:"source_doc_id"`
	SourceAnchor string         `json:"source_anchor"`
	Refs         []ScriptureRef `json:"refs,omitempty"`
}

// HitSource records which retrieval leg surfaced an evidence packet.
type HitSource string

const (
	HitEntityExact HitSource = "entity_exact"
	HitVector      HitSource = "vector"
	HitGraphExpand HitSource = "graph_expand"
)

// EvidencePacket is a request-scoped projection of a chunk annotated with
// retrieval provenance. Packets live for one request only.
type EvidencePacket struct {
	Chunk
	Sources []HitSource `json:"sources"`
	Score   float64     `json:"score"`
	// Edge is populated for packets surfaced by graph expansion.
	Edge *EdgeInfo `json:"edge,omitempty"`
}

// HasSource reports whether the packet was surfaced by the given leg.
func (p EvidencePacket) HasSource(s HitSource) bool {
	for _, h := range p.Sources {
		if h == s {
			return true
		}
	}
	return false
}

// JustificationSpan anchors a graph edge in the canonical text: chunk,
// character range, and the exact quote at that range.
type JustificationSpan struct {
	ChunkID string `json:"chunk_id"`
	Start   int    `json:"start"`
	End     int    `json:"end"`
	Quote   string `json:"quote"`
}

// EdgeInfo carries the edge provenance of a graph-expanded packet. Edges
// without at least one justification span are excluded from retrieval, so
// Spans is never empty for packets the retriever returns.
type EdgeInfo struct {
	EdgeID   string              `json:"edge_id"`
	Relation RelationLabel       `json:"relation"`
	FromID   string              `json:"from_id"`
	ToID     string              `json:"to_id"`
	Depth    int                 `json:"depth"`
	Spans    []JustificationSpan `json:"spans"`
}

// ResolutionStatus tells how well a citation was anchored to its chunk.
type ResolutionStatus string

const (
	ResolutionResolved    ResolutionStatus = "resolved"
	ResolutionApproximate ResolutionStatus = "approximate"
	ResolutionUnresolved  ResolutionStatus = "unresolved"
)

// ResolutionMethod names the technique that produced the resolution.
type ResolutionMethod string

const (
	MethodExactSubstring ResolutionMethod = "exact_substring"
	MethodTokenOverlap   ResolutionMethod = "token_overlap"
	MethodFallback       ResolutionMethod = "fallback"
)

// Citation links an answer claim back to a retrieved chunk.
type Citation struct {
	ChunkID      string           `json:"chunk_id"`
	SourceAnchor string           `json:"source_anchor"`
	Ref          *ScriptureRef    `json:"ref,omitempty"`
	Quote        string           `json:"quote,omitempty"`
	SpanStart    *int             `json:"span_start,omitempty"`
	SpanEnd      *int             `json:"span_end,omitempty"`
	Status       ResolutionStatus `json:"status"`
	Method       ResolutionMethod `json:"method,omitempty"`
}

// ArgumentChain is an edge-derived claim emitted when graph-expanded
// evidence participates in the final answer.
type ArgumentChain struct {
	EdgeID         string        `json:"edge_id"`
	ClaimAr        string        `json:"claim_ar"`
	InferenceType  RelationLabel `json:"inference_type"`
	BoundaryClause string        `json:"boundary_clause,omitempty"`
}

// EntityRef is the lightweight entity projection included in responses.
type EntityRef struct {
	Kind   EntityKind `json:"kind"`
	ID     string     `json:"id"`
	NameAr string     `json:"name_ar"`
}

// Purpose is the PURPOSE stage output: an ultimate goal plus the constraint
// set that governs the rest of the pipeline.
type Purpose struct {
	GoalAr      string   `json:"goal_ar"`
	Constraints []string `json:"constraints"`
}

// The three constraints every request carries, no matter what the model
// returns.
const (
	ConstraintEvidenceOnly    = "evidence_only"
	ConstraintCiteEveryClaim  = "cite_every_claim"
	ConstraintRefuseIfMissing = "refuse_if_missing"
)

// RequiredConstraints returns a fresh copy of the mandatory constraint set.
func RequiredConstraints() []string {
	return []string{
		ConstraintEvidenceOnly,
		ConstraintCiteEveryClaim,
		ConstraintRefuseIfMissing,
	}
}

// FinalResponse is the response schema returned to callers. Invariants are
// enforced at FINALIZE: not_found=false implies non-empty citations, every
// cited chunk appears in the retrieved packets, and abstentions carry an
// abstain reason with no citations.
type FinalResponse struct {
	ListenSummaryAr     string          `json:"listen_summary_ar"`
	Purpose             Purpose         `json:"purpose"`
	PathPlanAr          []string        `json:"path_plan_ar"`
	AnswerAr            string          `json:"answer_ar"`
	Citations           []Citation      `json:"citations"`
	Entities            []EntityRef     `json:"entities"`
	ArgumentChains      []ArgumentChain `json:"argument_chains,omitempty"`
	Difficulty          Difficulty      `json:"difficulty"`
	NotFound            bool            `json:"not_found"`
	Confidence          Confidence      `json:"confidence"`
	ContractOutcome     ContractOutcome `json:"contract_outcome"`
	ContractReasons     []string        `json:"contract_reasons,omitempty"`
	AbstainReason       string          `json:"abstain_reason,omitempty"`
	RefusalSuggestionAr string          `json:"refusal_suggestion_ar,omitempty"`
}
