package store

import "whatsapp-console/internal/models"

var statusRank = map[string]int{
	models.StatusPending:   0,
	models.StatusSent:      1,
	models.StatusDelivered: 2,
	models.StatusRead:      3,
}

// ApplyStatusTransition decides whether a requested status may replace the
// current one. Statuses only move forward (pending < sent < delivered < read);
// failed is terminal and reachable only from pending. Re-applying the current
// status is a no-op so duplicate webhook deliveries stay harmless.
func ApplyStatusTransition(current, requested string) (string, bool) {
	if current == requested {
		return current, false
	}
	if current == models.StatusFailed {
		return current, false
	}
	if requested == models.StatusFailed {
		if current == models.StatusPending {
			return models.StatusFailed, true
		}
		return current, false
	}
	curRank, ok := statusRank[current]
	if !ok {
		return current, false
	}
	reqRank, ok := statusRank[requested]
	if !ok {
		return current, false
	}
	if reqRank <= curRank {
		return current, false
	}
	return requested, true
}
