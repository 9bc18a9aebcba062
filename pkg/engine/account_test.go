package engine

import (
	"context"
	"testing"

	"muhasibi/pkg/common"
	"muhasibi/pkg/retrieve"
)

func accountContext(question string, intent Intent, packets []common.EvidencePacket) *requestContext {
	rctx := &requestContext{
		question: question,
		language: "ar",
		mode:     common.ModeAnswer,
		intent:   intent,
		retrieval: retrieve.Result{
			Packets: packets,
		},
	}
	rctx.normalizedQuestion = normalizedQuestionOf(question)
	return rctx
}

func normalizedQuestionOf(q string) string {
	rctx := listenContext(q)
	eng := New(Params{Config: DefaultConfig()})
	eng.stateListen(context.Background(), rctx)
	return rctx.normalizedQuestion
}

func TestStateAccount_SufficientWithMatchingKeyword(t *testing.T) {
	eng := newTestEngine(t, &fakeRetriever{}, &fakeModel{}, nil)
	rctx := accountContext(
		"ما أثر تطهير النفس على القلب؟",
		Intent{Type: IntentPracticalGuidance, InScope: true},
		[]common.EvidencePacket{defPacket("c1", "cv1", common.EntityCoreValue, tazkiyaDefinition)},
	)

	eng.stateAccount(context.Background(), rctx)

	if rctx.outcome != accountSufficient {
		t.Fatalf("stateAccount() outcome = %q, want sufficient (reasons %v)", rctx.outcome, rctx.contractReasons)
	}
	if rctx.notFound {
		t.Fatalf("stateAccount() sufficient evidence must not refuse")
	}
}

func TestStateAccount_RefusesIrrelevantEvidence(t *testing.T) {
	eng := newTestEngine(t, &fakeRetriever{}, &fakeModel{}, nil)
	rctx := accountContext(
		"حدثني عن الاقتصاد الكلي والتضخم النقدي",
		Intent{Type: IntentAmbiguous, InScope: true},
		[]common.EvidencePacket{defPacket("c1", "cv1", common.EntityCoreValue, tazkiyaDefinition)},
	)

	eng.stateAccount(context.Background(), rctx)

	if rctx.outcome != accountInsufficient {
		t.Fatalf("stateAccount() outcome = %q, want insufficient_refuse", rctx.outcome)
	}
	if !rctx.notFound {
		t.Fatalf("stateAccount() irrelevant evidence must refuse")
	}
}

func TestStateAccount_RefusesEmptyBundle(t *testing.T) {
	eng := newTestEngine(t, &fakeRetriever{}, &fakeModel{}, nil)
	rctx := accountContext("عرّف الصبر", Intent{Type: IntentDefinition, InScope: true}, nil)

	eng.stateAccount(context.Background(), rctx)

	if rctx.outcome != accountInsufficient || !rctx.notFound {
		t.Fatalf("stateAccount() empty bundle must refuse, got %q", rctx.outcome)
	}
}

func TestStateAccount_FiqhGateFiresOnMarkersPlusWorshipTerm(t *testing.T) {
	eng := newTestEngine(t, &fakeRetriever{}, &fakeModel{}, nil)

	// Marker without a worship term: not a fiqh ruling.
	rctx := accountContext(
		"هل يجوز تقديم الراحة على العمل في الإطار؟",
		Intent{Type: IntentPracticalGuidance, InScope: true},
		[]common.EvidencePacket{defPacket("c1", "cv1", common.EntityCoreValue, "الراحة والعمل والتوازن في الإطار")},
	)
	eng.stateAccount(context.Background(), rctx)
	if rctx.outcome == accountOutOfScopeRefusal {
		t.Fatalf("stateAccount() marker without worship term should not trigger the fiqh gate")
	}

	// Marker plus worship term: refuse with a reframing suggestion.
	rctx = accountContext(
		"هل يجوز صيام يوم الجمعة منفردًا؟",
		Intent{Type: IntentPracticalGuidance, InScope: true},
		[]common.EvidencePacket{defPacket("c1", "cv1", common.EntityCoreValue, tazkiyaDefinition)},
	)
	eng.stateAccount(context.Background(), rctx)
	if rctx.outcome != accountOutOfScopeRefusal {
		t.Fatalf("stateAccount() fiqh question must refuse, got %q", rctx.outcome)
	}
	if rctx.refusalSuggestionAr == "" {
		t.Fatalf("stateAccount() fiqh refusal must carry a reframing suggestion")
	}
}

func TestStateAccount_MultiEntityCoverage(t *testing.T) {
	eng := newTestEngine(t, &fakeRetriever{}, &fakeModel{}, nil)

	rctx := accountContext(
		"قارن بين التزكية والمراقبة",
		Intent{Type: IntentComparison, InScope: true},
		[]common.EvidencePacket{defPacket("c1", "cv1", common.EntityCoreValue, tazkiyaDefinition)},
	)
	rctx.entities = []common.EntityRef{
		{ID: "cv1", NameAr: "التزكية", Kind: common.EntityCoreValue},
		{ID: "cv2", NameAr: "المراقبة", Kind: common.EntityCoreValue},
	}
	rctx.entityConfidence = map[string]float64{"cv1": 1.0, "cv2": 1.0}

	eng.stateAccount(context.Background(), rctx)

	// cv2 has no covering packet: the comparison cannot be answered.
	if rctx.outcome != accountInsufficient {
		t.Fatalf("stateAccount() uncovered entity should refuse, got %q", rctx.outcome)
	}
}
