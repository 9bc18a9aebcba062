package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"muhasibi/pkg/arabic"
	"muhasibi/pkg/common"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// PurposePathResult is the structured output of the purpose_path call.
type PurposePathResult struct {
	GoalAr      string   `json:"goal_ar" jsonschema_description:"Ultimate goal of the question in one Arabic sentence"`
	Constraints []string `json:"constraints" jsonschema_description:"Additional Arabic constraints the answer must respect"`
	PathPlanAr  []string `json:"path_plan_ar" jsonschema_description:"Ordered Arabic plan steps, at most 5"`
	Difficulty  string   `json:"difficulty" jsonschema_description:"easy, medium, or hard"`
}

// RewriteResult is the structured output of the rewrite_query call. The
// schema deliberately has no free-form answer field.
type RewriteResult struct {
	RewritesAr       []string `json:"rewrites_ar" jsonschema_description:"Up to 5 Arabic search rewrites"`
	DisambiguationAr string   `json:"disambiguation_ar" jsonschema_description:"A single Arabic disambiguation question, or empty"`
}

// IntentResult is the structured output of the classify_intent call.
type IntentResult struct {
	IntentType         string   `json:"intent_type"`
	InScope            bool     `json:"in_scope"`
	Confidence         float64  `json:"confidence"`
	TargetEntity       string   `json:"target_entity" jsonschema_description:"Arabic name of the entity the question centres on, or empty"`
	SuggestedQueriesAr []string `json:"suggested_queries_ar"`
	ClarificationAr    string   `json:"clarification_ar"`
}

// ModelCitation is the citation shape the interpreter emits. It is hydrated
// into a full common.Citation after span resolution.
type ModelCitation struct {
	ChunkID      string `json:"chunk_id"`
	SourceAnchor string `json:"source_anchor"`
	Ref          string `json:"ref" jsonschema_description:"Optional scriptural reference, or empty"`
}

// InterpretResult is the structured output of the interpret call.
type InterpretResult struct {
	AnswerAr   string          `json:"answer_ar"`
	Citations  []ModelCitation `json:"citations"`
	Entities   []string        `json:"entities" jsonschema_description:"Arabic names of framework entities the answer touches"`
	NotFound   bool            `json:"not_found"`
	Confidence string          `json:"confidence" jsonschema_description:"high, medium, or low"`
}

// ModelClientParams configures a ModelClient.
type ModelClientParams struct {
	// RequestsPerSecond caps outbound model calls; 0 disables limiting.
	RequestsPerSecond float64
	// EmbeddingCacheTTL bounds the normalized-text embedding cache; 0 uses
	// a 30 minute default.
	EmbeddingCacheTTL time.Duration
	// ContextTokenBudget caps the serialized evidence context passed to the
	// interpreter; 0 uses 6000 tokens.
	ContextTokenBudget int
}

// ModelClient exposes the four schema-constrained calls of the model
// interface on top of a low-level backend Client. Safe for concurrent use.
type ModelClient struct {
	backend     Client
	limiter     *rate.Limiter
	embedCache  *gocache.Cache
	tokenBudget int
}

// NewModelClient wraps a backend with rate limiting and an embedding cache.
func NewModelClient(backend Client, params ModelClientParams) *ModelClient {
	var limiter *rate.Limiter
	if params.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(params.RequestsPerSecond), 1)
	}
	ttl := params.EmbeddingCacheTTL
	if ttl == 0 {
		ttl = 30 * time.Minute
	}
	budget := params.ContextTokenBudget
	if budget == 0 {
		budget = 6000
	}
	return &ModelClient{
		backend:     backend,
		limiter:     limiter,
		embedCache:  gocache.New(ttl, 2*ttl),
		tokenBudget: budget,
	}
}

func (m *ModelClient) wait(ctx context.Context) error {
	if m.limiter == nil {
		return nil
	}
	return m.limiter.Wait(ctx)
}

// PurposePath derives the goal, additional constraints, plan, and
// difficulty for a question.
func (m *ModelClient) PurposePath(
	ctx context.Context,
	question string,
	entities []common.EntityRef,
	keywords []string,
) (*PurposePathResult, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	prompt := fmt.Sprintf(PurposePathPrompt, question, entityNames(entities), strings.Join(keywords, "، "))
	var out PurposePathResult
	err := m.backend.GenerateCompletionWithFormat(ctx, "purpose_path", "Derive goal, constraints, plan, and difficulty.", prompt, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// RewriteQuery produces up to five Arabic search rewrites for a question
// whose vector retrieval came back sparse. The contract forbids answering.
func (m *ModelClient) RewriteQuery(
	ctx context.Context,
	question string,
	entities []common.EntityRef,
	keywords []string,
) (*RewriteResult, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	prompt := fmt.Sprintf(RewriteQueryPrompt, question, entityNames(entities), strings.Join(keywords, "، "))
	var out RewriteResult
	err := m.backend.GenerateCompletionWithFormat(ctx, "rewrite_query", "Produce Arabic search rewrites only.", prompt, &out)
	if err != nil {
		return nil, err
	}
	if len(out.RewritesAr) > 5 {
		out.RewritesAr = out.RewritesAr[:5]
	}
	return &out, nil
}

// ClassifyIntent classifies the question's intent and scope.
func (m *ModelClient) ClassifyIntent(
	ctx context.Context,
	question string,
	entities []common.EntityRef,
	keywords []string,
) (*IntentResult, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	prompt := fmt.Sprintf(ClassifyIntentPrompt, question, entityNames(entities), strings.Join(keywords, "، "))
	var out IntentResult
	err := m.backend.GenerateCompletionWithFormat(ctx, "classify_intent", "Classify the question intent and scope.", prompt, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Interpret binds the evidence packets to an answer under the mode's voice.
func (m *ModelClient) Interpret(
	ctx context.Context,
	question string,
	packets []common.EvidencePacket,
	entities []common.EntityRef,
	mode common.Mode,
) (*InterpretResult, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	evidence := ClipToTokenBudget(serializePackets(packets), m.tokenBudget)
	prompt := InterpretVoice(mode) + fmt.Sprintf(InterpretContract, evidence) + "\n# Question\n" + question
	var out InterpretResult
	err := m.backend.GenerateCompletionWithFormat(ctx, "interpret", "Answer from the evidence packets only.", prompt, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GenerateEmbedding embeds text, caching by its normalized form so repeated
// questions and rewrites do not re-embed.
func (m *ModelClient) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	key := arabic.NormalizeForEmbedding(text)
	if cached, ok := m.embedCache.Get(key); ok {
		return cached.([]float32), nil
	}
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	embedding, err := m.backend.GenerateEmbedding(ctx, []byte(key))
	if err != nil {
		return nil, err
	}
	m.embedCache.Set(key, embedding, gocache.DefaultExpiration)
	return embedding, nil
}

// Metrics reports accumulated backend metrics.
func (m *ModelClient) Metrics() ModelMetrics {
	return m.backend.GetMetrics()
}

func entityNames(entities []common.EntityRef) string {
	if len(entities) == 0 {
		return "(none)"
	}
	names := make([]string, 0, len(entities))
	for _, e := range entities {
		names = append(names, fmt.Sprintf("%s (%s)", e.NameAr, e.Kind))
	}
	return strings.Join(names, "، ")
}

// serializePackets renders the evidence bundle the interpreter sees. Only
// packet fields appear; no resolver or retriever internals leak through.
func serializePackets(packets []common.EvidencePacket) string {
	type packetView struct {
		ChunkID      string                `json:"chunk_id"`
		EntityID     string                `json:"entity_id"`
		Kind         string                `json:"kind"`
		TextAr       string                `json:"text_ar"`
		SourceAnchor string                `json:"source_anchor"`
		Refs         []common.ScriptureRef `json:"refs,omitempty"`
	}
	views := make([]packetView, 0, len(packets))
	for _, p := range packets {
		views = append(views, packetView{
			ChunkID:      p.ID,
			EntityID:     p.EntityID,
			Kind:         string(p.Kind),
			TextAr:       p.TextAr,
			SourceAnchor: p.SourceAnchor,
			Refs:         p.Refs,
		})
	}
	data, err := json.MarshalIndent(views, "", "  ")
	if err != nil {
		return "[]"
	}
	return string(data)
}
