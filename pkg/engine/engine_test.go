package engine

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"muhasibi/pkg/ai"
	"muhasibi/pkg/common"
	"muhasibi/pkg/resolve"
	"muhasibi/pkg/retrieve"
	"muhasibi/pkg/store"
)

// --- fakes ---

type fakeRetriever struct {
	result retrieve.Result
}

func (f *fakeRetriever) Retrieve(_ context.Context, _ retrieve.Inputs) retrieve.Result {
	return f.result
}

type fakeModel struct {
	mu sync.Mutex

	purposeResult   *ai.PurposePathResult
	purposeErr      error
	intentResult    *ai.IntentResult
	intentErr       error
	interpretResult *ai.InterpretResult
	interpretErr    error

	interpretCalls int
}

func (f *fakeModel) PurposePath(_ context.Context, _ string, _ []common.EntityRef, _ []string) (*ai.PurposePathResult, error) {
	if f.purposeErr != nil {
		return nil, f.purposeErr
	}
	return f.purposeResult, nil
}

func (f *fakeModel) ClassifyIntent(_ context.Context, _ string, _ []common.EntityRef, _ []string) (*ai.IntentResult, error) {
	if f.intentErr != nil {
		return nil, f.intentErr
	}
	return f.intentResult, nil
}

func (f *fakeModel) Interpret(_ context.Context, _ string, _ []common.EvidencePacket, _ []common.EntityRef, _ common.Mode) (*ai.InterpretResult, error) {
	f.mu.Lock()
	f.interpretCalls++
	f.mu.Unlock()
	if f.interpretErr != nil {
		return nil, f.interpretErr
	}
	return f.interpretResult, nil
}

func (f *fakeModel) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.interpretCalls
}

type fakeCatalog struct {
	children map[string][]common.Entity
	chunks   map[string][]common.Chunk
}

func (f *fakeCatalog) ListChildren(_ context.Context, parentID string, _ common.EntityKind) ([]common.Entity, error) {
	return f.children[parentID], nil
}

func (f *fakeCatalog) LookupByEntity(_ context.Context, entityID string, limit int) ([]common.Chunk, error) {
	chunks := f.chunks[entityID]
	if limit > 0 && len(chunks) > limit {
		chunks = chunks[:limit]
	}
	return chunks, nil
}

type fakePublisher struct {
	mu   sync.Mutex
	runs []store.RunRecord
}

func (f *fakePublisher) PublishRun(_ context.Context, run store.RunRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, run)
	return nil
}

func (f *fakePublisher) published() []store.RunRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]store.RunRecord, len(f.runs))
	copy(out, f.runs)
	return out
}

// --- helpers ---

func testCatalogEntities() []common.Entity {
	return []common.Entity{
		{ID: "p1", Kind: common.EntityPillar, NameAr: "الروحية"},
		{ID: "p2", Kind: common.EntityPillar, NameAr: "العاطفية"},
		{ID: "p3", Kind: common.EntityPillar, NameAr: "الفكرية"},
		{ID: "p4", Kind: common.EntityPillar, NameAr: "الجسدية"},
		{ID: "p5", Kind: common.EntityPillar, NameAr: "الاجتماعية"},
		{ID: "cv1", Kind: common.EntityCoreValue, NameAr: "التزكية", ParentID: "p1"},
		{ID: "cv2", Kind: common.EntityCoreValue, NameAr: "المراقبة", ParentID: "p1"},
	}
}

func defPacket(chunkID, entityID string, entityKind common.EntityKind, text string) common.EvidencePacket {
	return common.EvidencePacket{
		Chunk: common.Chunk{
			ID:           chunkID,
			EntityID:     entityID,
			EntityKind:   entityKind,
			Kind:         common.ChunkDefinition,
			TextAr:       text,
			SourceDocID:  "doc1",
			SourceAnchor: "anchor-" + chunkID,
		},
		Sources: []common.HitSource{common.HitEntityExact},
	}
}

func evPacket(chunkID, entityID string, text string) common.EvidencePacket {
	p := defPacket(chunkID, entityID, common.EntityCoreValue, text)
	p.Kind = common.ChunkEvidence
	return p
}

func newTestEngine(t *testing.T, retriever Retriever, model Model, publisher RunPublisher) *Engine {
	t.Helper()
	return New(Params{
		Resolver:  resolve.NewResolver(testCatalogEntities()),
		Retriever: retriever,
		Model:     model,
		Catalog:   &fakeCatalog{},
		Publisher: publisher,
		Config:    DefaultConfig(),
	})
}

func pillarPackets() []common.EvidencePacket {
	return []common.EvidencePacket{
		defPacket("h1", "p1", common.EntityPillar, "الركيزة: الروحية"),
		defPacket("h2", "p2", common.EntityPillar, "الركيزة: العاطفية"),
		defPacket("h3", "p3", common.EntityPillar, "الركيزة: الفكرية"),
		defPacket("h4", "p4", common.EntityPillar, "الركيزة: الجسدية"),
		defPacket("h5", "p5", common.EntityPillar, "الركيزة: الاجتماعية"),
	}
}

const (
	tazkiyaDefinition = "التزكية هي تطهير النفس وتنميتها بالطاعات"
	tazkiyaEvidence   = "قال تعالى قد افلح من زكاها"
)

// --- scenarios ---

func TestProcess_ListPillarsStructuralAnswer(t *testing.T) {
	model := &fakeModel{}
	eng := newTestEngine(t, &fakeRetriever{result: retrieve.Result{
		Packets:       pillarPackets(),
		HasDefinition: true,
	}}, model, nil)

	result, err := eng.Process(context.Background(), Request{
		Question: "ما هي ركائز الحياة الطيبة الخمس؟",
	})
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}

	resp := result.Response
	if resp.NotFound {
		t.Fatalf("Process() list-pillars should answer, got refusal: %+v", resp)
	}
	if len(resp.Citations) != 5 {
		t.Fatalf("Process() list-pillars citations = %d, want 5", len(resp.Citations))
	}
	if resp.Confidence != common.ConfidenceHigh {
		t.Fatalf("Process() structural confidence = %q, want high", resp.Confidence)
	}
	if resp.ContractOutcome != common.ContractPassFull {
		t.Fatalf("Process() outcome = %q, want PASS_FULL (reasons: %v)", resp.ContractOutcome, resp.ContractReasons)
	}
	for _, name := range []string{"الروحية", "العاطفية", "الفكرية", "الجسدية", "الاجتماعية"} {
		if !strings.Contains(resp.AnswerAr, name) {
			t.Fatalf("Process() answer missing pillar %q: %q", name, resp.AnswerAr)
		}
	}
	if model.calls() != 0 {
		t.Fatalf("Process() structural intent should never call the interpreter")
	}
}

func TestProcess_DefinitionWithEvidence(t *testing.T) {
	model := &fakeModel{
		interpretResult: &ai.InterpretResult{
			AnswerAr: tazkiyaDefinition + ". " + tazkiyaEvidence + ".",
			Citations: []ai.ModelCitation{
				{ChunkID: "c-def", SourceAnchor: "anchor-c-def"},
				{ChunkID: "c-ev", SourceAnchor: "anchor-c-ev"},
			},
			Confidence: "high",
		},
	}
	eng := newTestEngine(t, &fakeRetriever{result: retrieve.Result{
		Packets: []common.EvidencePacket{
			defPacket("c-def", "cv1", common.EntityCoreValue, tazkiyaDefinition),
			evPacket("c-ev", "cv1", tazkiyaEvidence),
		},
		HasDefinition: true,
		HasEvidence:   true,
	}}, model, nil)

	result, err := eng.Process(context.Background(), Request{
		Question: "عرّف التزكية كما ورد في الإطار، واذكر نصًا مستشهدًا من المصدر.",
	})
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}

	resp := result.Response
	if resp.NotFound {
		t.Fatalf("Process() definition should answer, got refusal: %v", resp.ContractReasons)
	}
	if len(resp.Citations) < 2 {
		t.Fatalf("Process() citations = %d, want >= 2", len(resp.Citations))
	}
	for _, c := range resp.Citations {
		if c.Status == common.ResolutionUnresolved {
			t.Fatalf("Process() citation %q unresolved, want resolved or approximate", c.ChunkID)
		}
	}
	if resp.ContractOutcome != common.ContractPassFull {
		t.Fatalf("Process() outcome = %q, want PASS_FULL (reasons: %v)", resp.ContractOutcome, resp.ContractReasons)
	}
}

func TestProcess_FiqhRulingRefusal(t *testing.T) {
	model := &fakeModel{}
	eng := newTestEngine(t, &fakeRetriever{result: retrieve.Result{
		Packets: []common.EvidencePacket{
			defPacket("c-def", "cv1", common.EntityCoreValue, tazkiyaDefinition),
		},
	}}, model, nil)

	result, err := eng.Process(context.Background(), Request{
		Question: "ما حكم صيام يوم الجمعة؟",
	})
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}

	resp := result.Response
	if !resp.NotFound {
		t.Fatalf("Process() fiqh question must refuse")
	}
	if len(resp.Citations) != 0 {
		t.Fatalf("Process() refusal must carry no citations, got %d", len(resp.Citations))
	}
	if !strings.Contains(resp.AbstainReason, "فقهي") {
		t.Fatalf("Process() abstain reason should mention fiqh, got %q", resp.AbstainReason)
	}
	if !strings.Contains(resp.RefusalSuggestionAr, "الصيام") {
		t.Fatalf("Process() fasting question should get the fasting reframe, got %q", resp.RefusalSuggestionAr)
	}
	if resp.ContractOutcome == common.ContractPassFull {
		t.Fatalf("Process() refusal outcome must not be PASS_FULL")
	}
	if model.calls() != 0 {
		t.Fatalf("Process() fiqh refusal should never call the interpreter")
	}
}

func TestProcess_BiographyRefusalWithoutReframe(t *testing.T) {
	eng := newTestEngine(t, &fakeRetriever{result: retrieve.Result{}}, &fakeModel{}, nil)

	result, err := eng.Process(context.Background(), Request{
		Question: "من هو مؤلف الإطار؟",
	})
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}

	resp := result.Response
	if !resp.NotFound {
		t.Fatalf("Process() biography question must refuse")
	}
	if resp.RefusalSuggestionAr != "" {
		t.Fatalf("Process() biography refusal takes no reframe, got %q", resp.RefusalSuggestionAr)
	}
}

func TestProcess_NoEvidenceRefusesWithoutModelCall(t *testing.T) {
	model := &fakeModel{
		intentResult: &ai.IntentResult{IntentType: IntentAmbiguous, InScope: true, Confidence: 0.3},
	}
	eng := newTestEngine(t, &fakeRetriever{result: retrieve.Result{}}, model, nil)

	result, err := eng.Process(context.Background(), Request{
		Question: "اكتب قصيدة عن البحر الواسع.",
	})
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}

	resp := result.Response
	if !resp.NotFound {
		t.Fatalf("Process() zero packets must refuse")
	}
	if resp.AbstainReason == "" {
		t.Fatalf("Process() refusal must populate the abstain reason")
	}
	if model.calls() != 0 {
		t.Fatalf("Process() must never call the interpreter with zero packets")
	}
	found := false
	for _, r := range resp.ContractReasons {
		if r == ReasonInsufficientEvidence {
			found = true
		}
	}
	if !found {
		t.Fatalf("Process() reasons = %v, want %s", resp.ContractReasons, ReasonInsufficientEvidence)
	}
}

func TestProcess_ConnectAcrossPillarsBuildsArgumentChains(t *testing.T) {
	muraqabaText := "المراقبة استشعار اطلاع الله على العبد في كل حال"
	bridgeText := "التزكية تقوي المراقبة لان تطهير النفس يثمر استشعار الاطلاع"

	graphPacket := evPacket("c-bridge", "cv2", bridgeText)
	graphPacket.Sources = []common.HitSource{common.HitGraphExpand}
	graphPacket.Edge = &common.EdgeInfo{
		EdgeID:   "edge-1",
		Relation: common.RelationReinforces,
		FromID:   "cv1",
		ToID:     "cv2",
		Depth:    1,
		Spans: []common.JustificationSpan{
			{ChunkID: "c-bridge", Start: 0, End: 20, Quote: "التزكية تقوي المراقبة"},
		},
	}

	answer := tazkiyaDefinition + ". " + muraqabaText + ". " + bridgeText + "."
	model := &fakeModel{
		interpretResult: &ai.InterpretResult{
			AnswerAr: answer,
			Citations: []ai.ModelCitation{
				{ChunkID: "c-def", SourceAnchor: "anchor-c-def"},
				{ChunkID: "c-mur", SourceAnchor: "anchor-c-mur"},
				{ChunkID: "c-bridge", SourceAnchor: "anchor-c-bridge"},
			},
			Confidence: "high",
		},
	}

	eng := newTestEngine(t, &fakeRetriever{result: retrieve.Result{
		Packets: []common.EvidencePacket{
			defPacket("c-p1", "p1", common.EntityPillar, "الركيزة: الروحية"),
			defPacket("c-def", "cv1", common.EntityCoreValue, tazkiyaDefinition),
			defPacket("c-mur", "cv2", common.EntityCoreValue, muraqabaText),
			graphPacket,
		},
		HasDefinition: true,
		HasEvidence:   true,
	}}, model, nil)

	result, err := eng.Process(context.Background(), Request{
		Question: "قارن بين التزكية والمراقبة من حيث الأثر على الحياة الروحية.",
	})
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}

	resp := result.Response
	if resp.NotFound {
		t.Fatalf("Process() cross-pillar question should answer, got refusal: %v", resp.ContractReasons)
	}
	if len(resp.ArgumentChains) == 0 {
		t.Fatalf("Process() graph-expanded citation should produce an argument chain")
	}
	chain := resp.ArgumentChains[0]
	if chain.EdgeID != "edge-1" || chain.InferenceType != common.RelationReinforces {
		t.Fatalf("Process() chain = %+v, want edge-1 / REINFORCES", chain)
	}
	if chain.ClaimAr == "" {
		t.Fatalf("Process() chain must carry the justification quote")
	}
	if resp.ContractOutcome != common.ContractPassFull {
		t.Fatalf("Process() outcome = %q, want PASS_FULL (reasons: %v)", resp.ContractOutcome, resp.ContractReasons)
	}
}

func TestProcess_UnknownCitationsDroppedAndHydrated(t *testing.T) {
	model := &fakeModel{
		interpretResult: &ai.InterpretResult{
			AnswerAr: tazkiyaDefinition + ".",
			Citations: []ai.ModelCitation{
				{ChunkID: "ghost", SourceAnchor: "anchor-ghost"},
			},
			Confidence: "medium",
		},
	}
	eng := newTestEngine(t, &fakeRetriever{result: retrieve.Result{
		Packets: []common.EvidencePacket{
			defPacket("c-def", "cv1", common.EntityCoreValue, tazkiyaDefinition),
		},
		HasDefinition: true,
	}}, model, nil)

	result, err := eng.Process(context.Background(), Request{
		Question: "كيف أمارس التزكية في حياتي اليومية؟",
	})
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}

	resp := result.Response
	if resp.NotFound {
		t.Fatalf("Process() should hydrate citations instead of refusing, reasons: %v", resp.ContractReasons)
	}
	for _, c := range resp.Citations {
		if c.ChunkID == "ghost" {
			t.Fatalf("Process() unknown citation survived: %+v", resp.Citations)
		}
	}
	if len(resp.Citations) == 0 {
		t.Fatalf("Process() hydration should produce at least one citation")
	}
	if resp.ContractOutcome != common.ContractPassPartial {
		t.Fatalf("Process() outcome = %q, want PASS_PARTIAL (reasons: %v)", resp.ContractOutcome, resp.ContractReasons)
	}
}

func TestProcess_MalformedInputFails(t *testing.T) {
	eng := newTestEngine(t, &fakeRetriever{result: retrieve.Result{}}, &fakeModel{}, nil)

	result, err := eng.Process(context.Background(), Request{Question: "   "})
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}

	resp := result.Response
	if !resp.NotFound {
		t.Fatalf("Process() malformed input must refuse")
	}
	if resp.ContractOutcome != common.ContractFail {
		t.Fatalf("Process() malformed outcome = %q, want FAIL", resp.ContractOutcome)
	}
}

func TestProcess_DeterministicFallbackOnModelFailure(t *testing.T) {
	model := &fakeModel{interpretErr: errors.New("model unavailable")}
	eng := newTestEngine(t, &fakeRetriever{result: retrieve.Result{
		Packets: []common.EvidencePacket{
			defPacket("c-def", "cv1", common.EntityCoreValue, tazkiyaDefinition),
			evPacket("c-ev", "cv1", tazkiyaEvidence),
		},
		HasDefinition: true,
		HasEvidence:   true,
	}}, model, nil)

	result, err := eng.Process(context.Background(), Request{
		Question: "عرّف التزكية كما وردت في الإطار.",
	})
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}

	resp := result.Response
	if resp.NotFound {
		t.Fatalf("Process() fallback should answer from the definition packet, reasons: %v", resp.ContractReasons)
	}
	if !strings.Contains(resp.AnswerAr, "التعريف") {
		t.Fatalf("Process() fallback answer missing definition section: %q", resp.AnswerAr)
	}
	if len(resp.Citations) == 0 {
		t.Fatalf("Process() fallback must cite its chunks")
	}
	found := false
	for _, r := range resp.ContractReasons {
		if r == ReasonModelUnavailable {
			found = true
		}
	}
	if !found {
		t.Fatalf("Process() reasons = %v, want %s", resp.ContractReasons, ReasonModelUnavailable)
	}
}

func TestProcess_DeterministicCitations(t *testing.T) {
	build := func() *Engine {
		model := &fakeModel{
			interpretResult: &ai.InterpretResult{
				AnswerAr: tazkiyaDefinition + ". " + tazkiyaEvidence + ".",
				Citations: []ai.ModelCitation{
					{ChunkID: "c-def", SourceAnchor: "anchor-c-def"},
					{ChunkID: "c-ev", SourceAnchor: "anchor-c-ev"},
				},
				Confidence: "high",
			},
		}
		return newTestEngine(t, &fakeRetriever{result: retrieve.Result{
			Packets: []common.EvidencePacket{
				defPacket("c-def", "cv1", common.EntityCoreValue, tazkiyaDefinition),
				evPacket("c-ev", "cv1", tazkiyaEvidence),
			},
			HasDefinition: true,
			HasEvidence:   true,
		}}, model, nil)
	}

	req := Request{Question: "عرّف التزكية كما ورد في الإطار."}

	first, err := build().Process(context.Background(), req)
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	second, err := build().Process(context.Background(), req)
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}

	a, _ := json.Marshal(first.Response.Citations)
	b, _ := json.Marshal(second.Response.Citations)
	if string(a) != string(b) {
		t.Fatalf("Process() citations not deterministic:\n%s\n%s", a, b)
	}
}

func TestProcess_CancelledRequestPublishesNothing(t *testing.T) {
	publisher := &fakePublisher{}
	eng := newTestEngine(t, &fakeRetriever{result: retrieve.Result{}}, &fakeModel{}, publisher)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := eng.Process(ctx, Request{Question: "عرّف التزكية"}); err == nil {
		t.Fatalf("Process() cancelled context should return an error")
	}
	if len(publisher.published()) != 0 {
		t.Fatalf("Process() cancelled request must not publish a trace")
	}
}

func TestProcess_DeadlineExceededFailsClosed(t *testing.T) {
	eng := newTestEngine(t, &fakeRetriever{result: retrieve.Result{}}, &fakeModel{}, nil)

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	result, err := eng.Process(ctx, Request{Question: "عرّف التزكية"})
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}

	resp := result.Response
	if !resp.NotFound || resp.ContractOutcome != common.ContractFail {
		t.Fatalf("Process() deadline breach should fail closed, got %q", resp.ContractOutcome)
	}
	found := false
	for _, r := range resp.ContractReasons {
		if r == ReasonDeadlineExceeded {
			found = true
		}
	}
	if !found {
		t.Fatalf("Process() reasons = %v, want %s", resp.ContractReasons, ReasonDeadlineExceeded)
	}
}

func TestProcess_PublishesRunRecord(t *testing.T) {
	publisher := &fakePublisher{}
	eng := newTestEngine(t, &fakeRetriever{result: retrieve.Result{
		Packets:       pillarPackets(),
		HasDefinition: true,
	}}, &fakeModel{}, publisher)

	result, err := eng.Process(context.Background(), Request{
		Question: "ما هي ركائز الحياة الطيبة الخمس؟",
	})
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}

	runs := publisher.published()
	if len(runs) != 1 {
		t.Fatalf("Process() should publish exactly one run, got %d", len(runs))
	}
	if runs[0].RequestID != result.RequestID {
		t.Fatalf("Process() published request id %q, want %q", runs[0].RequestID, result.RequestID)
	}
	if len(runs[0].StateTrace) != len(StateOrder) {
		t.Fatalf("Process() state trace has %d entries, want %d", len(runs[0].StateTrace), len(StateOrder))
	}
}
