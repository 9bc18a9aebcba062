package engine

import (
	"encoding/json"
	"testing"

	"muhasibi/pkg/common"
)

func baseResponse() common.FinalResponse {
	return common.FinalResponse{
		ListenSummaryAr: "السؤال عن: التزكية",
		Purpose: common.Purpose{
			GoalAr:      "بيان التزكية",
			Constraints: common.RequiredConstraints(),
		},
		AnswerAr: "التزكية هي تطهير النفس",
		Citations: []common.Citation{
			{ChunkID: "c1", SourceAnchor: "a1", Status: common.ResolutionResolved, Method: common.MethodExactSubstring},
		},
		Difficulty:      common.DifficultyMedium,
		Confidence:      common.ConfidenceHigh,
		ContractOutcome: common.ContractPassFull,
	}
}

func idSet(ids ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}

func TestFinalizeResponse_Idempotent(t *testing.T) {
	retrieved := idSet("c1")

	once := FinalizeResponse(baseResponse(), retrieved)
	twice := FinalizeResponse(once, retrieved)

	a, _ := json.Marshal(once)
	b, _ := json.Marshal(twice)
	if string(a) != string(b) {
		t.Fatalf("FinalizeResponse() not idempotent:\n%s\n%s", a, b)
	}
}

func TestFinalizeResponse_DropsUnknownCitations(t *testing.T) {
	resp := baseResponse()
	resp.Citations = append(resp.Citations, common.Citation{ChunkID: "ghost", SourceAnchor: "ax"})

	out := FinalizeResponse(resp, idSet("c1"))
	if len(out.Citations) != 1 || out.Citations[0].ChunkID != "c1" {
		t.Fatalf("FinalizeResponse() citations = %+v, want only c1", out.Citations)
	}
	if out.ContractOutcome != common.ContractPassPartial {
		t.Fatalf("FinalizeResponse() dropping a citation should degrade the outcome, got %q", out.ContractOutcome)
	}
}

func TestFinalizeResponse_ForcesRefusalWhenCitationsEmpty(t *testing.T) {
	resp := baseResponse()

	// Every citation is unknown: the answer can no longer claim support.
	out := FinalizeResponse(resp, idSet("other"))
	if !out.NotFound {
		t.Fatalf("FinalizeResponse() should force not_found when citations empty")
	}
	if len(out.Citations) != 0 {
		t.Fatalf("FinalizeResponse() refusal must carry no citations")
	}
	if out.AbstainReason == "" {
		t.Fatalf("FinalizeResponse() refusal must populate abstain reason")
	}
}

func TestFinalizeResponse_InjectsMandatoryConstraints(t *testing.T) {
	resp := baseResponse()
	resp.Purpose.Constraints = []string{"قيد إضافي"}

	out := FinalizeResponse(resp, idSet("c1"))
	have := map[string]bool{}
	for _, c := range out.Purpose.Constraints {
		have[c] = true
	}
	for _, required := range common.RequiredConstraints() {
		if !have[required] {
			t.Fatalf("FinalizeResponse() missing mandatory constraint %q: %v", required, out.Purpose.Constraints)
		}
	}
	if !have["قيد إضافي"] {
		t.Fatalf("FinalizeResponse() should keep extra constraints")
	}
}
