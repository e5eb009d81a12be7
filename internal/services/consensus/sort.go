package consensus

import (
	"sort"

	"BetPulse/internal/domain/models"
)

func sortForecasts(fs []models.AgentForecast) {
	sort.SliceStable(fs, func(i, j int) bool { return fs[i].AgentID < fs[j].AgentID })
}

func sortRejected(rs []models.RejectedForecast) {
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].AgentID != rs[j].AgentID {
			return rs[i].AgentID < rs[j].AgentID
		}
		return rs[i].Market < rs[j].Market
	})
}
