package scheduler

import (
	"sort"
	"time"

	"github.com/agentdesk/queue-scheduler/internal/domain"
)

// SelectRound computes the ordered subset of items eligible to run now.
//
// An item is eligible when it is pending, not already in progress, every
// dependency resolves to a completed item within the same snapshot, and its
// scheduled time (if any) has arrived. The result is sorted by priority
// descending, then position ascending; the sort is stable so equal keys
// keep their snapshot order.
//
// The function is pure: it performs no I/O and never mutates its inputs,
// which is what makes round selection independently testable.
//
// A dependency id that does not exist in the snapshot is treated as unmet,
// not as an error; the item simply never becomes eligible. The same holds
// for circular dependencies: no cycle detection is performed, the members
// of a cycle are just never selected.
func SelectRound(items []*domain.QueueItem, inProgress map[string]struct{}, now time.Time) []*domain.QueueItem {
	byID := make(map[string]*domain.QueueItem, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}

	var eligible []*domain.QueueItem
	for _, item := range items {
		if item.Status != domain.StatusPending {
			continue
		}
		if _, busy := inProgress[item.ID]; busy {
			continue
		}
		if item.ScheduledFor != nil && item.ScheduledFor.After(now) {
			continue
		}
		if !dependenciesMet(item, byID) {
			continue
		}
		eligible = append(eligible, item)
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		if eligible[i].Priority != eligible[j].Priority {
			return eligible[i].Priority > eligible[j].Priority
		}
		return eligible[i].Position < eligible[j].Position
	})

	return eligible
}

func dependenciesMet(item *domain.QueueItem, byID map[string]*domain.QueueItem) bool {
	for _, depID := range item.DependsOn {
		dep, ok := byID[depID]
		if !ok || dep.Status != domain.StatusCompleted {
			return false
		}
	}
	return true
}

// UnmetDependencies returns the dependency ids of item that are not
// completed within the snapshot. Used by direct execution to report
// exactly what is blocking.
func UnmetDependencies(item *domain.QueueItem, items []*domain.QueueItem) []string {
	byID := make(map[string]*domain.QueueItem, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}

	var unmet []string
	for _, depID := range item.DependsOn {
		dep, ok := byID[depID]
		if !ok || dep.Status != domain.StatusCompleted {
			unmet = append(unmet, depID)
		}
	}
	return unmet
}
