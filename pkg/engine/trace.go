package engine

import (
	"sync"
)

// State names in pipeline order.
const (
	StateListen    = "LISTEN"
	StatePurpose   = "PURPOSE"
	StatePath      = "PATH"
	StateRetrieve  = "RETRIEVE"
	StateAccount   = "ACCOUNT"
	StateInterpret = "INTERPRET"
	StateReflect   = "REFLECT"
	StateFinalize  = "FINALIZE"
)

// StateOrder is the canonical stage sequence.
var StateOrder = []string{
	StateListen, StatePurpose, StatePath, StateRetrieve,
	StateAccount, StateInterpret, StateReflect, StateFinalize,
}

// TraceEntry is one state snapshot in the run trace. Counts only: no chunk
// text, no prompts, no model internals ever appear here.
type TraceEntry struct {
	State    string         `json:"state"`
	Mode     string         `json:"mode"`
	Language string         `json:"language"`
	ElapsedS float64        `json:"elapsed_s"`
	Counts   map[string]any `json:"counts,omitempty"`
	Issues   []string       `json:"issues,omitempty"`
}

// Tracer collects state snapshots for one request. Safe for concurrent use.
type Tracer struct {
	mu      sync.Mutex
	entries []TraceEntry
}

// NewTracer returns an empty tracer.
func NewTracer() *Tracer {
	return &Tracer{}
}

// Record appends one state snapshot.
func (t *Tracer) Record(entry TraceEntry) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, entry)
}

// Entries returns a copy of the recorded snapshots in order.
func (t *Tracer) Entries() []TraceEntry {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TraceEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Render converts the trace into the generic map form persisted with the
// run. Rendering is pure: the same entries always produce the same output.
func (t *Tracer) Render() []map[string]any {
	entries := t.Entries()
	out := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		m := map[string]any{
			"state":     e.State,
			"mode":      e.Mode,
			"language":  e.Language,
			"elapsed_s": e.ElapsedS,
		}
		if len(e.Counts) > 0 {
			counts := make(map[string]any, len(e.Counts))
			for k, v := range e.Counts {
				counts[k] = v
			}
			m["counts"] = counts
		}
		if len(e.Issues) > 0 {
			m["issues"] = append([]string(nil), e.Issues...)
		}
		out = append(out, m)
	}
	return out
}

// snapshotCounts builds the per-state count payload. Only counts and flags
// are allowed; anything textual stays out except contract reason codes.
func snapshotCounts(state string, ctx *requestContext) map[string]any {
	switch state {
	case StateListen:
		return map[string]any{
			"entity_count":  len(ctx.entities),
			"keyword_count": len(ctx.keywords),
		}
	case StatePurpose:
		return map[string]any{
			"constraint_count": len(ctx.purpose.Constraints),
		}
	case StatePath:
		return map[string]any{
			"plan_steps": len(ctx.pathPlanAr),
			"difficulty": string(ctx.difficulty),
		}
	case StateRetrieve:
		return map[string]any{
			"packet_count":  len(ctx.retrieval.Packets),
			"total_found":   ctx.retrieval.TotalFound,
			"rewrite_count": len(ctx.retrieval.RewritesUsed),
		}
	case StateAccount:
		return map[string]any{
			"outcome":   string(ctx.outcome),
			"not_found": ctx.notFound,
		}
	case StateInterpret:
		return map[string]any{
			"citation_count": len(ctx.citations),
			"chain_count":    len(ctx.argumentChains),
			"not_found":      ctx.notFound,
			"confidence":     string(ctx.confidence),
		}
	case StateReflect:
		return map[string]any{
			"reflection_added": ctx.reflectionAdded,
		}
	case StateFinalize:
		return map[string]any{
			"not_found":      ctx.notFound,
			"citation_count": len(ctx.citations),
		}
	}
	return nil
}
