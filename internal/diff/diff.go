// Package diff compares a stored project snapshot against a freshly fetched
// batch of items. It only reads its inputs.
package diff

import "github.com/h0rv/ghpsync/internal/domain"

// FindNewItems returns the remote items whose id is not in the snapshot,
// in remote order.
func FindNewItems(project *domain.Project, remote []domain.Item) []domain.Item {
	known := index(project)

	var items []domain.Item
	for _, item := range remote {
		if _, ok := known[item.ID]; ok {
			continue
		}
		items = append(items, item)
	}
	return items
}

// FindItemsWithDiff returns an entry for every stored item whose status moved
// forward in the remote batch. Only Todo -> In Progress, Todo -> Done and
// In Progress -> Done are reported; Done is terminal and backward moves are
// ignored, so Jira issues are never reopened from GitHub edits.
func FindItemsWithDiff(project *domain.Project, remote []domain.Item) []domain.ItemDiffEntry {
	known := index(project)

	var entries []domain.ItemDiffEntry
	for _, item := range remote {
		stored, ok := known[item.ID]
		if !ok {
			continue
		}

		prev := stored.Status.Value
		next := item.Status.Value
		if !IsForward(prev, next) {
			continue
		}

		entries = append(entries, domain.ItemDiffEntry{
			Item:       item,
			PrevStatus: prev,
			NewStatus:  next,
		})
	}
	return entries
}

// IsForward reports whether moving from prev to next is a transition the
// sync pushes to Jira.
func IsForward(prev, next domain.Status) bool {
	switch prev {
	case domain.StatusTodo:
		return next == domain.StatusWIP || next == domain.StatusDone
	case domain.StatusWIP:
		return next == domain.StatusDone
	default:
		return false
	}
}

// index maps item ids to stored items; later duplicates win.
func index(project *domain.Project) map[string]domain.Item {
	known := make(map[string]domain.Item, len(project.Items))
	for _, item := range project.Items {
		known[item.ID] = item
	}
	return known
}
