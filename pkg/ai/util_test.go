package ai

import "testing"

type sample struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestUnmarshalFlexible_StandardJSON(t *testing.T) {
	var out sample
	if err := UnmarshalFlexible(`{"name": "test", "count": 3}`, &out); err != nil {
		t.Fatalf("UnmarshalFlexible() standard JSON failed: %v", err)
	}
	if out.Name != "test" || out.Count != 3 {
		t.Fatalf("UnmarshalFlexible() = %+v", out)
	}
}

func TestUnmarshalFlexible_DoubleEncoded(t *testing.T) {
	var out sample
	if err := UnmarshalFlexible(`"{\"name\": \"test\", \"count\": 1}"`, &out); err != nil {
		t.Fatalf("UnmarshalFlexible() double-encoded JSON failed: %v", err)
	}
	if out.Name != "test" {
		t.Fatalf("UnmarshalFlexible() = %+v", out)
	}
}

func TestUnmarshalFlexible_RepairsMalformedJSON(t *testing.T) {
	var out sample
	if err := UnmarshalFlexible(`{name: "test", count: 2,}`, &out); err != nil {
		t.Fatalf("UnmarshalFlexible() repair failed: %v", err)
	}
	if out.Name != "test" || out.Count != 2 {
		t.Fatalf("UnmarshalFlexible() = %+v", out)
	}
}

func TestUnmarshalFlexible_RejectsGarbage(t *testing.T) {
	var out sample
	if err := UnmarshalFlexible(`this is not json at all {{{`, &out); err == nil {
		t.Fatalf("UnmarshalFlexible() should fail on unrepairable input")
	}
}

func TestGenerateSchema_ProducesObjectSchema(t *testing.T) {
	schema := GenerateSchema(&sample{})
	if schema == nil {
		t.Fatalf("GenerateSchema() returned nil")
	}
}

func TestClipToTokenBudget(t *testing.T) {
	text := "one two three four five six seven eight nine ten"
	clipped := ClipToTokenBudget(text, 3)
	if len(clipped) >= len(text) {
		t.Fatalf("ClipToTokenBudget() should shorten the text, got %q", clipped)
	}
	if ClipToTokenBudget(text, 1000) != text {
		t.Fatalf("ClipToTokenBudget() should keep text within budget unchanged")
	}
}
