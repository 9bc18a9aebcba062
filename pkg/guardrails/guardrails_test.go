package guardrails

import (
	"strings"
	"testing"

	"muhasibi/pkg/common"
)

func packet(id, text string) common.EvidencePacket {
	return common.EvidencePacket{
		Chunk: common.Chunk{
			ID:           id,
			EntityID:     "e1",
			Kind:         common.ChunkDefinition,
			TextAr:       text,
			SourceAnchor: "anchor-" + id,
		},
	}
}

func TestCheckCitations_RefusesUncitedAnswer(t *testing.T) {
	g := New(0)

	result := g.CheckCitations(nil, false)
	if result.Passed {
		t.Fatalf("CheckCitations() should fail with no citations and not_found=false")
	}
	if !result.ShouldRefuse {
		t.Fatalf("CheckCitations() should demand a refusal")
	}
}

func TestCheckCitations_AbstentionNeedsNone(t *testing.T) {
	g := New(0)
	if result := g.CheckCitations(nil, true); !result.Passed {
		t.Fatalf("CheckCitations() should pass for abstentions, got %+v", result)
	}
}

func TestVerifyEvidenceIDs_DropsUnknownChunks(t *testing.T) {
	g := New(0)
	packets := []common.EvidencePacket{packet("c1", "التزكية تطهير النفس")}
	citations := []common.Citation{
		{ChunkID: "c1", SourceAnchor: "anchor-c1"},
		{ChunkID: "ghost", SourceAnchor: "anchor-ghost"},
	}

	kept, result := g.VerifyEvidenceIDs(citations, packets)
	if len(kept) != 1 || kept[0].ChunkID != "c1" {
		t.Fatalf("VerifyEvidenceIDs() kept = %+v, want only c1", kept)
	}
	if result.Passed {
		t.Fatalf("VerifyEvidenceIDs() should report the dropped citation")
	}
}

func TestCheckClaims_PassesWhenTermsCovered(t *testing.T) {
	g := New(0)
	packets := []common.EvidencePacket{packet("c1", "التزكية هي تطهير النفس وتنميتها بالطاعات")}
	citations := []common.Citation{{ChunkID: "c1"}}

	result := g.CheckClaims("التزكية تطهير النفس", citations, packets)
	if !result.Passed {
		t.Fatalf("CheckClaims() should pass on covered terms, got %+v", result)
	}
}

func TestCheckClaims_RefusesZeroCoverage(t *testing.T) {
	g := New(0)
	packets := []common.EvidencePacket{packet("c1", "التزكية تطهير النفس")}
	citations := []common.Citation{{ChunkID: "c1"}}

	result := g.CheckClaims("الاقتصاد الكلي والتضخم النقدي والفائدة", citations, packets)
	if result.Passed {
		t.Fatalf("CheckClaims() should fail on uncovered answer")
	}
	if !result.ShouldRefuse {
		t.Fatalf("CheckClaims() zero coverage should escalate to refusal")
	}
}

func TestValidate_RefusalPathProducesIssues(t *testing.T) {
	g := New(0)
	result := g.Validate("إجابة بلا استشهاد", nil, nil, false)
	if result.Passed || !result.ShouldRefuse {
		t.Fatalf("Validate() uncited answer should refuse, got %+v", result)
	}
	if len(result.Issues) == 0 {
		t.Fatalf("Validate() should carry issues for the contract reasons")
	}
}

func TestIsMustCite(t *testing.T) {
	mustCite := []string{
		"التزكية هي تطهير النفس",
		"ركائز الحياة الطيبة خمس ركائز",
		"قال تعالى: قد أفلح من زكاها",
		"ورد في الحديث عن رسول الله صلى الله عليه وسلم",
		"هناك 5 ركائز",
	}
	for _, s := range mustCite {
		if !IsMustCite(s) {
			t.Fatalf("IsMustCite(%q) = false, want true", s)
		}
	}

	if IsMustCite("وتأمل في ذلك") {
		t.Fatalf("IsMustCite() should ignore sentences without claim markers")
	}
}

func TestSentences(t *testing.T) {
	got := Sentences("الجملة الأولى. الجملة الثانية؟ الثالثة\nالرابعة")
	if len(got) != 4 {
		t.Fatalf("Sentences() = %d parts, want 4: %v", len(got), got)
	}
	for _, s := range got {
		if strings.TrimSpace(s) == "" {
			t.Fatalf("Sentences() produced an empty sentence: %v", got)
		}
	}
}
