package engine

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"muhasibi/pkg/ai"
	"muhasibi/pkg/common"
	"muhasibi/pkg/retrieve"
)

func TestTracer_RenderIsPure(t *testing.T) {
	tr := NewTracer()
	tr.Record(TraceEntry{State: StateListen, Mode: "answer", Language: "ar", Counts: map[string]any{"entity_count": 2}})
	tr.Record(TraceEntry{State: StateAccount, Mode: "answer", Language: "ar", Issues: []string{ReasonOutOfScope}})

	a, _ := json.Marshal(tr.Render())
	b, _ := json.Marshal(tr.Render())
	if string(a) != string(b) {
		t.Fatalf("Render() not pure:\n%s\n%s", a, b)
	}
}

func TestProcess_TraceFollowsStateOrder(t *testing.T) {
	eng := newTestEngine(t, &fakeRetriever{result: retrieve.Result{
		Packets:       pillarPackets(),
		HasDefinition: true,
	}}, &fakeModel{}, nil)

	result, err := eng.Process(context.Background(), Request{
		Question: "ما هي ركائز الحياة الطيبة الخمس؟",
	})
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}

	if len(result.Trace) != len(StateOrder) {
		t.Fatalf("Process() trace has %d states, want %d", len(result.Trace), len(StateOrder))
	}
	for i, entry := range result.Trace {
		if entry.State != StateOrder[i] {
			t.Fatalf("Process() trace[%d] = %q, want %q", i, entry.State, StateOrder[i])
		}
	}
}

func TestProcess_TraceNeverLeaksChunkText(t *testing.T) {
	chunkText := "التزكية هي تطهير النفس وتنميتها بالطاعات والقربات المخصوصة"
	model := &fakeModel{
		interpretResult: &ai.InterpretResult{
			AnswerAr:   chunkText + ".",
			Citations:  []ai.ModelCitation{{ChunkID: "c-def", SourceAnchor: "anchor-c-def"}},
			Confidence: "high",
		},
	}
	eng := newTestEngine(t, &fakeRetriever{result: retrieve.Result{
		Packets: []common.EvidencePacket{
			defPacket("c-def", "cv1", common.EntityCoreValue, chunkText),
		},
		HasDefinition: true,
	}}, model, nil)

	result, err := eng.Process(context.Background(), Request{
		Question: "عرّف التزكية كما ورد في الإطار.",
	})
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}

	traceJSON, err := json.Marshal(result.Trace)
	if err != nil {
		t.Fatalf("marshal trace: %v", err)
	}
	if strings.Contains(string(traceJSON), "تطهير النفس") {
		t.Fatalf("trace must never contain chunk text: %s", traceJSON)
	}
	if strings.Contains(string(traceJSON), "Task Context") {
		t.Fatalf("trace must never contain prompt text")
	}
}

func TestSnapshotCounts_OnlyCountsAndFlags(t *testing.T) {
	rctx := &requestContext{
		keywords: []string{"تزكية"},
		entities: []common.EntityRef{{ID: "cv1", NameAr: "التزكية", Kind: common.EntityCoreValue}},
	}
	counts := snapshotCounts(StateListen, rctx)
	if counts["entity_count"] != 1 || counts["keyword_count"] != 1 {
		t.Fatalf("snapshotCounts(LISTEN) = %v", counts)
	}
	if _, ok := counts["listen_summary"]; ok {
		t.Fatalf("snapshotCounts() must not carry text fields")
	}
}
