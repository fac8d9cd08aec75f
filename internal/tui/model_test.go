package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	flowcanvassdk "flowcanvas/sdk/go"
)

type fakeStore struct {
	items     []flowcanvassdk.Process
	listErr   error
	deleted   []string
	deleteErr error
}

func (f *fakeStore) ListProcesses(ctx context.Context) ([]flowcanvassdk.Process, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.items, nil
}

func (f *fakeStore) DeleteProcess(ctx context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeStore) CreateProcess(ctx context.Context, d flowcanvassdk.ProcessDraft) (flowcanvassdk.Process, error) {
	return flowcanvassdk.Process{ID: "stored-1", Name: d.Name, DiagramXML: d.DiagramXML}, nil
}

func (f *fakeStore) UpdateProcess(ctx context.Context, id string, d flowcanvassdk.ProcessDraft) (flowcanvassdk.Process, error) {
	return flowcanvassdk.Process{ID: id, Name: d.Name, DiagramXML: d.DiagramXML}, nil
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	model, ok := next.(Model)
	if !ok {
		t.Fatalf("unexpected model type %T", next)
	}
	return model, cmd
}

func TestInitFetchesProcesses(t *testing.T) {
	store := &fakeStore{items: []flowcanvassdk.Process{{ID: "1", Name: "alpha"}}}
	m := New(store, Options{})

	cmd := m.Init()
	if cmd == nil {
		t.Fatal("expected initial fetch command")
	}
	msg := cmd()
	listMsg, ok := msg.(processListMsg)
	if !ok {
		t.Fatalf("expected processListMsg, got %T", msg)
	}
	m, _ = update(t, m, listMsg)
	if !m.lib.Loaded() || len(m.lib.Items()) != 1 {
		t.Fatalf("library not populated: %+v", m.lib.Items())
	}
}

func TestListFailureKeepsLastView(t *testing.T) {
	store := &fakeStore{}
	m := New(store, Options{})
	m, _ = update(t, m, processListMsg{Items: []flowcanvassdk.Process{{ID: "1", Name: "alpha"}}})

	m, _ = update(t, m, processListErrMsg{Err: errors.New("api down")})
	if len(m.lib.Items()) != 1 {
		t.Fatal("list failure must keep the last known list")
	}
}

func TestFilterNarrowsVisible(t *testing.T) {
	m := New(&fakeStore{}, Options{})
	m, _ = update(t, m, processListMsg{Items: []flowcanvassdk.Process{
		{ID: "1", Name: "Order Fulfillment"},
		{ID: "2", Name: "Invoice Approval"},
	}})

	m.filter.SetValue("invoice")
	visible := m.visible()
	if len(visible) != 1 || visible[0].ID != "2" {
		t.Fatalf("unexpected filter result %+v", visible)
	}
}

func TestNewRecordOpensEditor(t *testing.T) {
	m := New(&fakeStore{}, Options{DefaultName: "Untitled Process"})
	m, _ = update(t, m, processListMsg{})

	m, cmd := update(t, m, key("n"))
	if m.session == nil {
		t.Fatal("expected an open session")
	}
	if !m.loading {
		t.Fatal("expected diagram load in progress")
	}
	if cmd == nil {
		t.Fatal("expected load command")
	}
	rec := m.session.Record()
	if rec.Name != "Untitled Process" || !rec.IsNew || rec.ID == "" {
		t.Fatalf("unexpected new record %+v", rec)
	}

	m, _ = update(t, m, sessionReadyMsg{})
	if m.loading {
		t.Fatal("loading flag should clear")
	}
}

func TestEscDiscardsAndRefreshes(t *testing.T) {
	m := New(&fakeStore{}, Options{})
	m, _ = update(t, m, processListMsg{})
	m, _ = update(t, m, key("n"))
	m, _ = update(t, m, sessionReadyMsg{})

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.session != nil {
		t.Fatal("esc must close the session")
	}
	if cmd == nil {
		t.Fatal("expected refresh after close")
	}
}

func TestSavedClosesEditorAndRefreshes(t *testing.T) {
	store := &fakeStore{}
	m := New(store, Options{})
	m, _ = update(t, m, processListMsg{})
	m, _ = update(t, m, key("n"))
	m, _ = update(t, m, sessionReadyMsg{})

	m, cmd := update(t, m, savedMsg{Process: flowcanvassdk.Process{ID: "stored-1", Name: "saved one"}})
	if m.session != nil {
		t.Fatal("save must close the editor")
	}
	if m.saving {
		t.Fatal("saving flag should clear")
	}
	if cmd == nil {
		t.Fatal("expected refresh after save")
	}
	if _, ok := cmd().(processListMsg); !ok {
		t.Fatal("refresh command should fetch the library")
	}
}

func TestSaveFailureKeepsEditorOpen(t *testing.T) {
	m := New(&fakeStore{}, Options{})
	m, _ = update(t, m, processListMsg{})
	m, _ = update(t, m, key("n"))
	m, _ = update(t, m, sessionReadyMsg{})
	m.saving = true

	m, _ = update(t, m, saveFailedMsg{Err: errors.New("store down")})
	if m.session == nil {
		t.Fatal("failed save must keep the editor open")
	}
	if m.saving {
		t.Fatal("saving flag should clear on failure")
	}
	if m.errText == "" {
		t.Fatal("failure must be surfaced")
	}
}

func TestDeleteSelected(t *testing.T) {
	store := &fakeStore{}
	m := New(store, Options{})
	m, _ = update(t, m, processListMsg{Items: []flowcanvassdk.Process{{ID: "1", Name: "alpha"}}})

	_, cmd := update(t, m, key("d"))
	if cmd == nil {
		t.Fatal("expected delete command")
	}
	msg := cmd()
	if _, ok := msg.(deletedMsg); !ok {
		t.Fatalf("expected deletedMsg, got %T", msg)
	}
	if len(store.deleted) != 1 || store.deleted[0] != "1" {
		t.Fatalf("unexpected deletions %v", store.deleted)
	}
}

func TestDeleteMissingReportedNotFatal(t *testing.T) {
	m := New(&fakeStore{}, Options{})
	m, _ = update(t, m, processListMsg{Items: []flowcanvassdk.Process{{ID: "1", Name: "alpha"}}})

	notFound := &flowcanvassdk.APIError{StatusCode: 404, Body: "gone"}
	m, cmd := update(t, m, deleteFailedMsg{Err: notFound})
	if cmd == nil {
		t.Fatal("a stale delete should trigger a refresh")
	}
	if m.status == "" {
		t.Fatal("stale delete should be reported")
	}
}
