// Package engine implements the Muḥāsibī reasoning pipeline: an 8-stage
// deterministic state machine that turns an Arabic question into an
// evidence-bound answer or a structured abstention.
//
// Stage order is strict: LISTEN, PURPOSE, PATH, RETRIEVE, ACCOUNT,
// INTERPRET, REFLECT, FINALIZE. Each stage writes only its own fields of
// the request context; refusals flow through the remaining stages as
// no-ops so a run that stays within its deadline traces the full sequence.
// A deadline breach finalizes at once and the trace ends at the last stage
// that ran; a cancelled run returns no trace.
package engine

import (
	"context"
	"errors"
	"strings"
	"time"

	"muhasibi/internal/util"
	"muhasibi/pkg/ai"
	"muhasibi/pkg/common"
	"muhasibi/pkg/guardrails"
	"muhasibi/pkg/logger"
	"muhasibi/pkg/resolve"
	"muhasibi/pkg/retrieve"
	"muhasibi/pkg/store"
)

// Model is the schema-constrained model surface the engine consumes.
// *ai.ModelClient satisfies it; tests substitute fakes.
type Model interface {
	PurposePath(ctx context.Context, question string, entities []common.EntityRef, keywords []string) (*ai.PurposePathResult, error)
	ClassifyIntent(ctx context.Context, question string, entities []common.EntityRef, keywords []string) (*ai.IntentResult, error)
	Interpret(ctx context.Context, question string, packets []common.EvidencePacket, entities []common.EntityRef, mode common.Mode) (*ai.InterpretResult, error)
}

// Retriever produces the merged evidence bundle for a request.
type Retriever interface {
	Retrieve(ctx context.Context, inputs retrieve.Inputs) retrieve.Result
}

// Catalog is the structural read surface used for deterministic list
// answers. store.RetrievalStore satisfies it.
type Catalog interface {
	ListChildren(ctx context.Context, parentID string, kind common.EntityKind) ([]common.Entity, error)
	LookupByEntity(ctx context.Context, entityID string, limit int) ([]common.Chunk, error)
}

// RunPublisher hands the finished run record to the append-only
// persistence path. Publishing happens once per request, after FINALIZE;
// cancelled requests publish nothing.
type RunPublisher interface {
	PublishRun(ctx context.Context, run store.RunRecord) error
}

// Request is one ask invocation.
type Request struct {
	RequestID string
	Question  string
	Language  string
	Mode      common.Mode
}

// Result is the finished pipeline output.
type Result struct {
	RequestID string
	Response  common.FinalResponse
	Trace     []TraceEntry
	TimingsMs map[string]int64
}

// Engine orchestrates the pipeline. Engines hold no per-request state and
// are safe for concurrent use; every request gets its own context record.
type Engine struct {
	resolver  *resolve.Resolver
	retriever Retriever
	model     Model
	catalog   Catalog
	guards    *guardrails.Guardrails
	publisher RunPublisher
	config    Config
}

// Params wires an Engine.
type Params struct {
	Resolver  *resolve.Resolver
	Retriever Retriever
	Model     Model
	Catalog   Catalog
	Publisher RunPublisher
	Config    Config
}

// New creates an Engine.
func New(params Params) *Engine {
	config := params.Config
	if config.TotalTimeout == 0 {
		config = DefaultConfig()
	}
	return &Engine{
		resolver:  params.Resolver,
		retriever: params.Retriever,
		model:     params.Model,
		catalog:   params.Catalog,
		guards:    guardrails.New(0),
		publisher: params.Publisher,
		config:    config,
	}
}

type stageFunc struct {
	name string
	run  func(context.Context, *requestContext)
}

// Process runs the full pipeline for one request. It returns an error only
// on cancellation; every other failure becomes a structured refusal inside
// the response.
func (e *Engine) Process(ctx context.Context, req Request) (*Result, error) {
	rctx := &requestContext{
		requestID:    req.RequestID,
		question:     req.Question,
		language:     req.Language,
		mode:         req.Mode,
		startedAt:    time.Now(),
		stateTimings: make(map[string]time.Duration),
		confidence:   common.ConfidenceLow,
	}
	if rctx.requestID == "" {
		rctx.requestID = util.NewRequestID()
	}
	if rctx.language == "" {
		rctx.language = "ar"
	}
	if !rctx.mode.Valid() {
		rctx.mode = e.config.DefaultMode
	}

	ctx, cancel := context.WithTimeout(ctx, e.config.TotalTimeout)
	defer cancel()

	tracer := NewTracer()
	stages := []stageFunc{
		{StateListen, e.stateListen},
		{StatePurpose, e.statePurpose},
		{StatePath, e.statePath},
		{StateRetrieve, e.stateRetrieve},
		{StateAccount, e.stateAccount},
		{StateInterpret, e.stateInterpret},
		{StateReflect, e.stateReflect},
		{StateFinalize, e.stateFinalize},
	}

	for _, stage := range stages {
		if err := ctx.Err(); err != nil {
			if errors.Is(err, context.Canceled) {
				// Clean abort: no partial response, no trace.
				return nil, err
			}
			// Total deadline breached mid-pipeline: refuse with cause and
			// finalize so the caller still gets a schema-valid response.
			rctx.addReason(ReasonDeadlineExceeded)
			e.forceRefusal(rctx, "تجاوز الطلب المهلة الزمنية المحددة.")
			e.stateFinalize(context.WithoutCancel(ctx), rctx)
			break
		}

		start := time.Now()
		stage.run(ctx, rctx)
		elapsed := time.Since(start)
		rctx.stateTimings[stage.name] = elapsed
		tracer.Record(e.traceEntry(stage.name, rctx, elapsed))
	}

	response := e.buildResponse(rctx)
	result := &Result{
		RequestID: rctx.requestID,
		Response:  response,
		Trace:     tracer.Entries(),
		TimingsMs: timingsMs(rctx.stateTimings),
	}

	e.publish(ctx, rctx, tracer, response)

	return result, nil
}

func (e *Engine) traceEntry(state string, rctx *requestContext, elapsed time.Duration) TraceEntry {
	entry := TraceEntry{
		State:    state,
		Mode:     string(rctx.mode),
		Language: rctx.language,
		ElapsedS: elapsed.Seconds(),
		Counts:   snapshotCounts(state, rctx),
	}
	if state == StateAccount || state == StateFinalize {
		entry.Issues = append([]string(nil), rctx.contractReasons...)
	}
	return entry
}

// forceRefusal converts the context into the canonical abstention shape.
func (e *Engine) forceRefusal(rctx *requestContext, abstainReason string) {
	rctx.notFound = true
	rctx.answerAr = guardrails.RefusalMessageAr
	rctx.citations = nil
	rctx.argumentChains = nil
	rctx.confidence = common.ConfidenceLow
	if abstainReason != "" {
		rctx.abstainReason = abstainReason
	}
}

func (e *Engine) publish(ctx context.Context, rctx *requestContext, tracer *Tracer, response common.FinalResponse) {
	if e.publisher == nil {
		return
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return
	}

	retrievalTrace := make([]string, 0, len(rctx.retrieval.Packets))
	for _, p := range rctx.retrieval.Packets {
		retrievalTrace = append(retrievalTrace, p.ID)
	}

	run := store.RunRecord{
		RequestID:      rctx.requestID,
		Question:       rctx.question,
		Language:       rctx.language,
		Mode:           rctx.mode,
		Response:       response,
		RetrievalTrace: retrievalTrace,
		StateTrace:     tracer.Render(),
		TimingsMs:      timingsMs(rctx.stateTimings),
		CreatedAt:      time.Now().UTC(),
	}
	if err := e.publisher.PublishRun(context.WithoutCancel(ctx), run); err != nil {
		logger.Error("Failed to publish run trace", "request_id", rctx.requestID, "err", err)
	}
}

func (e *Engine) buildResponse(rctx *requestContext) common.FinalResponse {
	purpose := rctx.purpose
	if purpose.GoalAr == "" {
		purpose = common.Purpose{
			GoalAr:      "الإجابة على السؤال من الأدلة المعتمدة فقط",
			Constraints: common.RequiredConstraints(),
		}
	}

	return common.FinalResponse{
		ListenSummaryAr:     rctx.listenSummaryAr,
		Purpose:             purpose,
		PathPlanAr:          rctx.pathPlanAr,
		AnswerAr:            rctx.answerAr,
		Citations:           rctx.citations,
		Entities:            rctx.entities,
		ArgumentChains:      rctx.argumentChains,
		Difficulty:          rctx.difficulty,
		NotFound:            rctx.notFound,
		Confidence:          rctx.confidence,
		ContractOutcome:     rctx.contractOutcome(),
		ContractReasons:     rctx.contractReasons,
		AbstainReason:       rctx.abstainReason,
		RefusalSuggestionAr: rctx.refusalSuggestionAr,
	}
}

func (rctx *requestContext) contractOutcome() common.ContractOutcome {
	for _, r := range rctx.contractReasons {
		switch r {
		case ReasonInputMalformed, ReasonDeadlineExceeded:
			return common.ContractFail
		}
	}
	if rctx.notFound {
		return common.ContractPassPartial
	}
	if rctx.passPartial {
		return common.ContractPassPartial
	}
	return common.ContractPassFull
}

func timingsMs(timings map[string]time.Duration) map[string]int64 {
	out := make(map[string]int64, len(timings))
	for k, v := range timings {
		out[k] = v.Milliseconds()
	}
	return out
}

func isBlankQuestion(q string) bool {
	return strings.TrimSpace(q) == ""
}
