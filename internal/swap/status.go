package swap

import "github.com/garnizeh/skillswap/pkg/models"

// transitions lists the statuses reachable from each state. Terminal states
// have no entry.
var transitions = map[models.SwapStatus][]models.SwapStatus{
	models.StatusPending:  {models.StatusAccepted, models.StatusRejected},
	models.StatusAccepted: {models.StatusCompleted, models.StatusCancelled},
}

// CanTransition reports whether a swap may move from one status to another.
func CanTransition(from, to models.SwapStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// AllowedTargets returns the statuses reachable from from.
func AllowedTargets(from models.SwapStatus) []models.SwapStatus {
	return append([]models.SwapStatus(nil), transitions[from]...)
}

// IsTerminal reports whether no transition leaves s.
func IsTerminal(s models.SwapStatus) bool {
	return len(transitions[s]) == 0
}
