// Package library holds the process library state: the last successfully
// fetched list and the client-side filter over it.
package library

import (
	"log/slog"
	"strings"

	flowcanvassdk "flowcanvas/sdk/go"
)

// View is the library state. It is a value: update methods return the next
// state, so it drops into an event-loop model without shared mutation.
type View struct {
	items  []flowcanvassdk.Process
	loaded bool
	logger *slog.Logger
}

func New(logger *slog.Logger) View {
	if logger == nil {
		logger = slog.Default()
	}
	return View{logger: logger}
}

// ApplyList records a successful fetch, replacing the displayed list.
func (v View) ApplyList(items []flowcanvassdk.Process) View {
	v.items = items
	v.loaded = true
	return v
}

// KeepLast records a failed fetch: the failure is logged for diagnostics and
// the previously displayed list stays untouched.
func (v View) KeepLast(err error) View {
	v.logger.Error("refresh process library", "error", err)
	return v
}

// Items returns the last fetched list.
func (v View) Items() []flowcanvassdk.Process {
	return v.items
}

// Loaded reports whether at least one fetch has succeeded. A loaded empty
// library and a zero-match filter render different empty states.
func (v View) Loaded() bool {
	return v.loaded
}

// Filter returns the processes whose name or description contains query,
// case-insensitively. It never mutates the fetched list; an empty query
// returns everything.
func (v View) Filter(query string) []flowcanvassdk.Process {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		res := make([]flowcanvassdk.Process, len(v.items))
		copy(res, v.items)
		return res
	}
	var res []flowcanvassdk.Process
	for _, p := range v.items {
		if strings.Contains(strings.ToLower(p.Name), query) ||
			strings.Contains(strings.ToLower(p.Description), query) {
			res = append(res, p)
		}
	}
	return res
}
