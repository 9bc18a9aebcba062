package engine

import (
	"time"

	"muhasibi/pkg/common"
	"muhasibi/pkg/retrieve"
)

// Intent types produced by LISTEN.
const (
	IntentListPillars              = "list_pillars"
	IntentListCoreValuesInPillar   = "list_core_values_in_pillar"
	IntentListSubValuesInCoreValue = "list_sub_values_in_core_value"
	IntentDefinition               = "definition"
	IntentDefinitionWithEvidence   = "definition_with_evidence"
	IntentComparison               = "comparison"
	IntentConnectAcrossPillars     = "connect_across_pillars"
	IntentPracticalGuidance        = "practical_guidance"
	IntentFiqhRuling               = "fiqh_ruling"
	IntentBiography                = "biography"
	IntentGeneralKnowledge         = "general_knowledge"
	IntentAmbiguous                = "ambiguous"
)

// Intent is the LISTEN classification of the question.
type Intent struct {
	Type               string   `json:"type"`
	InScope            bool     `json:"in_scope"`
	Confidence         float64  `json:"confidence"`
	TargetEntity       string   `json:"target_entity,omitempty"`
	SuggestedQueriesAr []string `json:"suggested_queries_ar,omitempty"`
	ClarificationAr    string   `json:"clarification_ar,omitempty"`
}

// IsStructural reports whether the intent is answered by direct projection
// from the entity catalog, with no model call.
func (i Intent) IsStructural() bool {
	switch i.Type {
	case IntentListPillars, IntentListCoreValuesInPillar, IntentListSubValuesInCoreValue:
		return true
	}
	return false
}

// IsDefinitional reports whether an unresolved must-cite sentence should
// fail closed rather than degrade.
func (i Intent) IsDefinitional() bool {
	return i.Type == IntentDefinition || i.Type == IntentDefinitionWithEvidence
}

// accountOutcome is the ACCOUNT gate verdict.
type accountOutcome string

const (
	accountSufficient        accountOutcome = "sufficient"
	accountInsufficient      accountOutcome = "insufficient_refuse"
	accountOutOfScopeRefusal accountOutcome = "out_of_scope_refuse"
)

// Contract reason codes accumulated across stages.
const (
	ReasonInputMalformed       = "input_malformed"
	ReasonInsufficientEvidence = "insufficient_evidence"
	ReasonOutOfScope           = "out_of_scope"
	ReasonFiqhRuling           = "fiqh_ruling"
	ReasonModelUnavailable     = "model_unavailable"
	ReasonGuardrailFailure     = "guardrail_failure"
	ReasonUnknownChunkCitation = "unknown_chunk_citation"
	ReasonDeadlineExceeded     = "deadline_exceeded"
	ReasonMissingCitations     = "missing_citations"
)

// requestContext is the shared record the stages grow. Each field is
// written once, by the stage that owns it; later stages only read.
type requestContext struct {
	// Input
	requestID string
	question  string
	language  string
	mode      common.Mode

	// LISTEN
	normalizedQuestion string
	listenSummaryAr    string
	keywords           []string
	entities           []common.EntityRef
	entityConfidence   map[string]float64
	intent             Intent

	// PURPOSE
	purpose common.Purpose

	// PATH
	pathPlanAr []string
	difficulty common.Difficulty

	// RETRIEVE
	retrieval retrieve.Result

	// ACCOUNT
	outcome             accountOutcome
	contractReasons     []string
	abstainReason       string
	refusalSuggestionAr string
	notFound            bool

	// INTERPRET
	answerAr       string
	citations      []common.Citation
	argumentChains []common.ArgumentChain
	confidence     common.Confidence
	passPartial    bool

	// REFLECT
	reflectionAdded bool

	// Bookkeeping
	startedAt    time.Time
	stateTimings map[string]time.Duration
}

func (c *requestContext) addReason(reason string) {
	for _, r := range c.contractReasons {
		if r == reason {
			return
		}
	}
	c.contractReasons = append(c.contractReasons, reason)
}
