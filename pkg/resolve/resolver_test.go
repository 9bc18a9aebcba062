package resolve

import (
	"testing"

	"muhasibi/pkg/common"
)

func testCatalog() []common.Entity {
	return []common.Entity{
		{ID: "p1", Kind: common.EntityPillar, NameAr: "الروحية"},
		{ID: "p2", Kind: common.EntityPillar, NameAr: "العاطفية"},
		{ID: "p3", Kind: common.EntityPillar, NameAr: "الفكرية"},
		{ID: "p4", Kind: common.EntityPillar, NameAr: "الجسدية"},
		{ID: "p5", Kind: common.EntityPillar, NameAr: "الاجتماعية"},
		{ID: "cv1", Kind: common.EntityCoreValue, NameAr: "التزكية", ParentID: "p1"},
		{ID: "cv2", Kind: common.EntityCoreValue, NameAr: "المراقبة", ParentID: "p1"},
		{ID: "sv1", Kind: common.EntitySubValue, NameAr: "الصبر الجميل", ParentID: "cv1"},
	}
}

func TestResolve_ExactMatch(t *testing.T) {
	r := NewResolver(testCatalog())

	matches := r.Resolve("عرّف التزكية كما ورد في الإطار")
	if len(matches) == 0 {
		t.Fatalf("Resolve() found no matches")
	}
	if matches[0].Entity.ID != "cv1" {
		t.Fatalf("Resolve() top match = %q, want cv1", matches[0].Entity.ID)
	}
	if matches[0].Confidence != 1.0 {
		t.Fatalf("Resolve() exact confidence = %v, want 1.0", matches[0].Confidence)
	}
	if matches[0].MatchType != "exact" {
		t.Fatalf("Resolve() match type = %q, want exact", matches[0].MatchType)
	}
}

func TestResolve_MatchesDespiteDiacriticsAndTehMarbuta(t *testing.T) {
	r := NewResolver(testCatalog())

	matches := r.Resolve("ما أثر التَّزكيه على القلب؟")
	if len(matches) == 0 || matches[0].Entity.ID != "cv1" {
		t.Fatalf("Resolve() should match normalized forms, got %+v", matches)
	}
}

func TestResolve_MultiWordNameContainment(t *testing.T) {
	r := NewResolver(testCatalog())

	// The two name tokens appear separated by a noise token, so this is a
	// containment match with a reduced confidence.
	matches := r.Resolve("حدثني عن الصبر الطويل الجميل")
	var found *Match
	for i := range matches {
		if matches[i].Entity.ID == "sv1" {
			found = &matches[i]
			break
		}
	}
	if found == nil {
		t.Fatalf("Resolve() should find the multi-word sub-value, got %+v", matches)
	}
	if found.MatchType != "containment" {
		t.Fatalf("Resolve() match type = %q, want containment", found.MatchType)
	}
	if found.Confidence >= 0.7 {
		t.Fatalf("Resolve() noise tokens should reduce confidence below 0.7, got %v", found.Confidence)
	}
}

func TestResolve_TieBreaksByHierarchyDepth(t *testing.T) {
	catalog := append(testCatalog(), common.Entity{
		ID: "sv2", Kind: common.EntitySubValue, NameAr: "الخشوع", ParentID: "cv1",
	}, common.Entity{
		ID: "cv9", Kind: common.EntityCoreValue, NameAr: "الاخلاص", ParentID: "p1",
	})
	r := NewResolver(catalog)

	matches := r.Resolve("ما العلاقة بين الخشوع والاخلاص؟")
	if len(matches) < 2 {
		t.Fatalf("Resolve() should find both entities, got %+v", matches)
	}
	// Equal confidence: the deeper sub-value sorts first.
	if matches[0].Entity.ID != "sv2" {
		t.Fatalf("Resolve() should prefer deeper entities on ties, got %q first", matches[0].Entity.ID)
	}
}

func TestResolve_NoMatchesOnUnrelatedQuestion(t *testing.T) {
	r := NewResolver(testCatalog())
	if matches := r.Resolve("اكتب قصيدة عن البحر"); len(matches) != 0 {
		t.Fatalf("Resolve() matched unrelated text: %+v", matches)
	}
}

func TestPillars_StableOrder(t *testing.T) {
	r := NewResolver(testCatalog())
	pillars := r.Pillars()
	if len(pillars) != 5 {
		t.Fatalf("Pillars() = %d entries, want 5", len(pillars))
	}
	for i := 1; i < len(pillars); i++ {
		if pillars[i-1].ID >= pillars[i].ID {
			t.Fatalf("Pillars() not in stable ID order: %+v", pillars)
		}
	}
}

func TestLookup(t *testing.T) {
	r := NewResolver(testCatalog())
	e, ok := r.Lookup("التزكيه")
	if !ok || e.ID != "cv1" {
		t.Fatalf("Lookup() = %+v %v, want cv1", e, ok)
	}
	if _, ok := r.Lookup("غير موجود"); ok {
		t.Fatalf("Lookup() should miss unknown names")
	}
}
