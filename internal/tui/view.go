package tui

import "github.com/hay-kot/parley/internal/core/cache"

// ViewType represents which tab is active.
type ViewType int

const (
	ViewDashboard ViewType = iota
	ViewHistory
	ViewAnalytics
	ViewRecord
	viewCount
)

func (v ViewType) String() string {
	switch v {
	case ViewDashboard:
		return "Dashboard"
	case ViewHistory:
		return "History"
	case ViewAnalytics:
		return "Analytics"
	case ViewRecord:
		return "Record"
	default:
		return "Unknown"
	}
}

// Next returns the tab after v, wrapping around.
func (v ViewType) Next() ViewType {
	return (v + 1) % viewCount
}

// Prev returns the tab before v, wrapping around.
func (v ViewType) Prev() ViewType {
	return (v + viewCount - 1) % viewCount
}

// Key returns the cache key the tab renders. Analytics derives from history.
func (v ViewType) Key() (cache.Key, bool) {
	switch v {
	case ViewDashboard:
		return cache.KeyDashboard, true
	case ViewHistory, ViewAnalytics:
		return cache.KeyHistory, true
	default:
		return "", false
	}
}
