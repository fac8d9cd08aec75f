package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"flowcanvas/internal/editor"
	flowcanvassdk "flowcanvas/sdk/go"
)

// Store is the slice of the process API the shell consumes.
// *flowcanvassdk.Client satisfies it.
type Store interface {
	editor.API
	ListProcesses(ctx context.Context) ([]flowcanvassdk.Process, error)
	DeleteProcess(ctx context.Context, id string) error
}

func fetchProcesses(store Store) tea.Cmd {
	return func() tea.Msg {
		items, err := store.ListProcesses(context.Background())
		if err != nil {
			return processListErrMsg{Err: err}
		}
		return processListMsg{Items: items}
	}
}

func loadSession(s *editor.Session) tea.Cmd {
	return func() tea.Msg {
		if err := s.Load(); err != nil {
			return sessionFailedMsg{Err: err}
		}
		return sessionReadyMsg{}
	}
}

func saveSession(s *editor.Session) tea.Cmd {
	return func() tea.Msg {
		p, err := s.Save(context.Background())
		if err != nil {
			return saveFailedMsg{Err: err}
		}
		return savedMsg{Process: p}
	}
}

func deleteProcess(store Store, id string) tea.Cmd {
	return func() tea.Msg {
		if err := store.DeleteProcess(context.Background(), id); err != nil {
			return deleteFailedMsg{Err: err}
		}
		return deletedMsg{ID: id}
	}
}

func importDiagram(s *editor.Session, path string) tea.Cmd {
	return func() tea.Msg {
		return importDoneMsg{Path: path, Err: s.ImportFile(path)}
	}
}

func exportDiagram(s *editor.Session, dir string) tea.Cmd {
	return func() tea.Msg {
		path, err := s.ExportFile(dir)
		return exportDoneMsg{Path: path, Err: err}
	}
}
