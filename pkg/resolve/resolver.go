// Package resolve matches Arabic question text against the canonical entity
// catalog (pillars, core values, sub-values).
package resolve

import (
	"sort"
	"strings"

	"muhasibi/pkg/arabic"
	"muhasibi/pkg/common"
)

// Match is a catalog entity detected in a question.
type Match struct {
	Entity     common.Entity
	MatchType  string // exact | containment
	Confidence float64
}

// Resolver holds an immutable snapshot of the entity catalog indexed by
// normalized name. Safe for concurrent use after construction.
type Resolver struct {
	entities []common.Entity
	byKey    map[string]int // MatchKey(name) -> index into entities
	pillars  []common.Entity
}

// NewResolver builds a resolver over a catalog snapshot. Multi-word entity
// names are kept whole as single match candidates.
func NewResolver(catalog []common.Entity) *Resolver {
	r := &Resolver{
		entities: make([]common.Entity, len(catalog)),
		byKey:    make(map[string]int, len(catalog)),
	}
	copy(r.entities, catalog)
	for i, e := range r.entities {
		key := arabic.MatchKey(e.NameAr)
		if key == "" {
			continue
		}
		if prev, ok := r.byKey[key]; !ok || e.Kind.Depth() > r.entities[prev].Kind.Depth() {
			r.byKey[key] = i
		}
		if e.Kind == common.EntityPillar {
			r.pillars = append(r.pillars, e)
		}
	}
	sort.Slice(r.pillars, func(i, j int) bool { return r.pillars[i].ID < r.pillars[j].ID })
	return r
}

// Pillars returns the pillar entities in stable ID order.
func (r *Resolver) Pillars() []common.Entity {
	out := make([]common.Entity, len(r.pillars))
	copy(out, r.pillars)
	return out
}

// Lookup returns the entity whose name matches the key exactly.
func (r *Resolver) Lookup(name string) (common.Entity, bool) {
	i, ok := r.byKey[arabic.MatchKey(name)]
	if !ok {
		return common.Entity{}, false
	}
	return r.entities[i], true
}

// Resolve detects catalog entities mentioned in the question.
//
// Two passes:
//  1. exact: the full normalized entity name appears in the normalized
//     question (confidence 1.0)
//  2. containment: every name token of length >= 3 appears among the
//     question tokens (confidence 0.7)
//
// Containment confidence drops by 0.1 per noise token between the matched
// name tokens in the question. Results are ordered by confidence, then
// hierarchy depth (sub-value > core value > pillar), then ID.
func (r *Resolver) Resolve(question string) []Match {
	qKey := arabic.MatchKey(question)
	if qKey == "" {
		return nil
	}
	qTokens := arabic.Words(qKey)
	qStripped := make([]string, len(qTokens))
	for i, t := range qTokens {
		qStripped[i] = arabic.StripPrefixParticle(t)
	}

	var matches []Match
	seen := make(map[string]struct{})

	for _, e := range r.entities {
		nameKey := arabic.MatchKey(e.NameAr)
		if nameKey == "" {
			continue
		}
		if _, dup := seen[e.ID]; dup {
			continue
		}

		if containsPhrase(qTokens, qStripped, nameKey) {
			matches = append(matches, Match{Entity: e, MatchType: "exact", Confidence: 1.0})
			seen[e.ID] = struct{}{}
			continue
		}

		if conf, ok := containmentConfidence(qStripped, nameKey); ok {
			matches = append(matches, Match{Entity: e, MatchType: "containment", Confidence: conf})
			seen[e.ID] = struct{}{}
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Confidence != matches[j].Confidence {
			return matches[i].Confidence > matches[j].Confidence
		}
		di, dj := matches[i].Entity.Kind.Depth(), matches[j].Entity.Kind.Depth()
		if di != dj {
			return di > dj
		}
		return matches[i].Entity.ID < matches[j].Entity.ID
	})
	return matches
}

// containsPhrase reports whether the name tokens appear as a contiguous run
// in the question, comparing both raw and particle-stripped forms.
func containsPhrase(qTokens, qStripped []string, nameKey string) bool {
	nTokens := strings.Fields(nameKey)
	if len(nTokens) == 0 || len(nTokens) > len(qTokens) {
		return false
	}
	for i := 0; i+len(nTokens) <= len(qTokens); i++ {
		ok := true
		for j, nt := range nTokens {
			if qTokens[i+j] != nt && qStripped[i+j] != arabic.StripPrefixParticle(nt) {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

// containmentConfidence implements the second matching pass: all name tokens
// of length >= 3 must be present among the question tokens. The base 0.7
// confidence is reduced by 0.1 for every noise token sitting between the
// first and last matched positions.
func containmentConfidence(qStripped []string, nameKey string) (float64, bool) {
	nTokens := strings.Fields(nameKey)
	first, last := -1, -1
	matched := 0
	required := 0
	for _, nt := range nTokens {
		nt = arabic.StripPrefixParticle(nt)
		if len([]rune(nt)) < 3 {
			continue
		}
		required++
		for qi, qt := range qStripped {
			if qt == nt {
				matched++
				if first == -1 || qi < first {
					first = qi
				}
				if qi > last {
					last = qi
				}
				break
			}
		}
	}
	if required == 0 || matched < required {
		return 0, false
	}
	noise := (last - first + 1) - matched
	if noise < 0 {
		noise = 0
	}
	conf := 0.7 - 0.1*float64(noise)
	if conf < 0.1 {
		conf = 0.1
	}
	return conf, true
}
