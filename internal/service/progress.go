package service

import (
	"math"

	"github.com/questboard/questboard/internal/model"
)

// CalculateProgress averages value/target over the KPIs that have a positive
// target, clamping each ratio to [0, 1], and returns a whole percentage.
// KPIs without a usable target don't count; no counted KPIs means 0.
func CalculateProgress(kpis []*model.KPI) int {
	var sum float64
	var counted int

	for _, kpi := range kpis {
		if kpi == nil || kpi.Target == nil || *kpi.Target <= 0 {
			continue
		}
		ratio := kpi.Value / *kpi.Target
		if math.IsNaN(ratio) || ratio < 0 {
			ratio = 0
		}
		if ratio > 1 {
			ratio = 1
		}
		sum += ratio
		counted++
	}

	if counted == 0 {
		return 0
	}

	return int(math.Round(sum / float64(counted) * 100))
}

// applyProgress recomputes quest.Progress from kpis. Reaching 100 marks the
// quest completed; falling below 100 later leaves the status alone.
func applyProgress(quest *model.Quest, kpis []*model.KPI) {
	quest.Progress = CalculateProgress(kpis)
	if quest.Progress >= 100 {
		quest.Status = model.QuestStatusCompleted
	}
}
