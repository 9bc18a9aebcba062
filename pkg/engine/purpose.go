package engine

import (
	"context"
	"strings"

	"muhasibi/pkg/common"
	"muhasibi/pkg/logger"
)

// statePurpose derives the goal and constraint set. The model call is
// optional; its output is merged on top of a deterministic baseline, and
// the three mandatory constraints are always present.
func (e *Engine) statePurpose(ctx context.Context, rctx *requestContext) {
	goal := e.synthesizeGoal(rctx)
	constraints := common.RequiredConstraints()

	if e.model != nil && !rctx.intent.IsStructural() && rctx.intent.InScope {
		mctx, cancel := context.WithTimeout(ctx, e.config.ModelTimeout)
		defer cancel()
		result, err := e.model.PurposePath(mctx, rctx.question, rctx.entities, rctx.keywords)
		if err != nil {
			logger.Debug("Purpose call unavailable, using deterministic goal", "err", err)
		} else if result != nil {
			if result.GoalAr != "" {
				goal = result.GoalAr
			}
			constraints = mergeConstraints(constraints, result.Constraints)
			if len(result.PathPlanAr) > 0 {
				rctx.pathPlanAr = result.PathPlanAr
			}
			switch common.Difficulty(result.Difficulty) {
			case common.DifficultyEasy, common.DifficultyMedium, common.DifficultyHard:
				rctx.difficulty = common.Difficulty(result.Difficulty)
			}
		}
	}

	rctx.purpose = common.Purpose{GoalAr: goal, Constraints: constraints}
}

// synthesizeGoal builds the deterministic goal from the detected entities.
func (e *Engine) synthesizeGoal(rctx *requestContext) string {
	if len(rctx.entities) == 0 {
		return "الإجابة على السؤال من الأدلة المعتمدة فقط"
	}

	names := make([]string, 0, len(rctx.entities))
	for _, en := range rctx.entities {
		names = append(names, en.NameAr)
		if len(names) == 3 {
			break
		}
	}
	joined := strings.Join(names, " و")

	switch rctx.intent.Type {
	case IntentComparison, IntentConnectAcrossPillars:
		return "مقارنة " + joined + " استنادًا إلى الأدلة"
	case IntentDefinition, IntentDefinitionWithEvidence:
		return "بيان " + joined + " كما ورد في الإطار"
	default:
		return "توضيح " + joined + " من الأدلة المعتمدة"
	}
}

// mergeConstraints appends model constraints after the mandatory set,
// dropping duplicates.
func mergeConstraints(required, extra []string) []string {
	out := append([]string(nil), required...)
	seen := make(map[string]struct{}, len(out))
	for _, c := range out {
		seen[c] = struct{}{}
	}
	for _, c := range extra {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
