package engine

import (
	"context"

	"muhasibi/pkg/common"
)

// defaultPlan is the deterministic four-step plan.
var defaultPlan = []string{
	"استخراج الكيانات المذكورة في السؤال",
	"استرجاع التعريفات والأدلة من المصدر المعتمد",
	"التحقق من تغطية الأدلة للسؤال",
	"صياغة الإجابة مع الاستشهادات",
}

// statePath produces the plan and the difficulty label. Difficulty keeps
// the label PURPOSE set, or else comes from the entity count, and is then
// bumped one level harder for comparison and cross-pillar intents.
func (e *Engine) statePath(_ context.Context, rctx *requestContext) {
	if rctx.difficulty == "" {
		switch {
		case len(rctx.entities) == 0:
			rctx.difficulty = common.DifficultyHard
		case len(rctx.entities) == 1:
			rctx.difficulty = common.DifficultyMedium
		default:
			rctx.difficulty = common.DifficultyEasy
		}
	}

	switch rctx.intent.Type {
	case IntentComparison, IntentConnectAcrossPillars:
		rctx.difficulty = harder(rctx.difficulty)
	}

	if len(rctx.pathPlanAr) == 0 {
		rctx.pathPlanAr = append([]string(nil), defaultPlan...)
	}
}

func harder(d common.Difficulty) common.Difficulty {
	switch d {
	case common.DifficultyEasy:
		return common.DifficultyMedium
	case common.DifficultyMedium:
		return common.DifficultyHard
	default:
		return common.DifficultyHard
	}
}
