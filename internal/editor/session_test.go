package editor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowcanvas/internal/engine"
	flowcanvassdk "flowcanvas/sdk/go"
)

type fakeAPI struct {
	createCalls int
	updateCalls int
	lastDraft   flowcanvassdk.ProcessDraft
	lastID      string
	fail        error
}

func (f *fakeAPI) CreateProcess(ctx context.Context, d flowcanvassdk.ProcessDraft) (flowcanvassdk.Process, error) {
	f.createCalls++
	f.lastDraft = d
	if f.fail != nil {
		return flowcanvassdk.Process{}, f.fail
	}
	return flowcanvassdk.Process{ID: "stored-1", Name: d.Name, Description: d.Description, DiagramXML: d.DiagramXML}, nil
}

func (f *fakeAPI) UpdateProcess(ctx context.Context, id string, d flowcanvassdk.ProcessDraft) (flowcanvassdk.Process, error) {
	f.updateCalls++
	f.lastID = id
	f.lastDraft = d
	if f.fail != nil {
		return flowcanvassdk.Process{}, f.fail
	}
	return flowcanvassdk.Process{ID: id, Name: d.Name, Description: d.Description, DiagramXML: d.DiagramXML}, nil
}

func newReadySession(t *testing.T, api API, rec Record) *Session {
	t.Helper()
	s, err := NewSession(api, rec, nil)
	require.NoError(t, err)
	require.NoError(t, s.Load())
	require.Equal(t, StateReady, s.State())
	return s
}

func TestLoadEmptyRecordUsesDefault(t *testing.T) {
	s := newReadySession(t, &fakeAPI{}, Record{ID: "p1", Name: "fresh", IsNew: true})
	defer s.Close()

	doc, err := s.eng.ExportXML()
	require.NoError(t, err)
	assert.Equal(t, engine.DefaultXML, doc)
}

func TestLoadMalformedFallsBackToDefault(t *testing.T) {
	s := newReadySession(t, &fakeAPI{}, Record{ID: "p1", Name: "broken", DiagramXML: "<bad><xml"})
	defer s.Close()

	doc, err := s.eng.ExportXML()
	require.NoError(t, err)
	assert.Equal(t, engine.DefaultXML, doc)
}

func TestSaveCreatesThenUpdates(t *testing.T) {
	api := &fakeAPI{}
	s := newReadySession(t, api, Record{ID: "local-1", Name: "draft", IsNew: true})
	defer s.Close()

	stored, err := s.Save(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, api.createCalls)
	assert.Equal(t, 0, api.updateCalls)
	assert.Equal(t, "stored-1", stored.ID)
	assert.Equal(t, engine.DefaultXML, api.lastDraft.DiagramXML)

	rec := s.Record()
	assert.Equal(t, "stored-1", rec.ID)
	assert.False(t, rec.IsNew)

	_, err = s.Save(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, api.createCalls)
	assert.Equal(t, 1, api.updateCalls)
	assert.Equal(t, "stored-1", api.lastID)
	assert.Equal(t, StateReady, s.State())
}

func TestSaveFailureKeepsEdits(t *testing.T) {
	api := &fakeAPI{fail: errors.New("store down")}
	s := newReadySession(t, api, Record{ID: "p1", Name: "original"})
	defer s.Close()

	s.SetName("edited")
	s.SetDescription("still here")
	_, err := s.Save(context.Background())
	require.Error(t, err)

	assert.Equal(t, StateReady, s.State())
	rec := s.Record()
	assert.Equal(t, "edited", rec.Name)
	assert.Equal(t, "still here", rec.Description)
	assert.Equal(t, "p1", rec.ID)
}

func TestSaveBeforeLoadRejected(t *testing.T) {
	s, err := NewSession(&fakeAPI{}, Record{ID: "p1"}, nil)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Save(context.Background())
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestImportFileAllOrNothing(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.bpmn")
	bad := filepath.Join(dir, "bad.bpmn")
	require.NoError(t, os.WriteFile(good, []byte("<doc><task/></doc>"), 0o644))
	require.NoError(t, os.WriteFile(bad, []byte("<doc><broken"), 0o644))

	s := newReadySession(t, &fakeAPI{}, Record{ID: "p1", Name: "imports"})
	defer s.Close()

	require.NoError(t, s.ImportFile(good))
	doc, err := s.eng.ExportXML()
	require.NoError(t, err)
	assert.Equal(t, "<doc><task/></doc>", doc)

	require.Error(t, s.ImportFile(bad))
	doc, err = s.eng.ExportXML()
	require.NoError(t, err)
	assert.Equal(t, "<doc><task/></doc>", doc, "rejected import must keep the current document")

	require.Error(t, s.ImportFile(filepath.Join(dir, "missing.bpmn")))
}

func TestExportFileWritesSanitizedName(t *testing.T) {
	dir := t.TempDir()
	s := newReadySession(t, &fakeAPI{}, Record{ID: "p1", Name: "Invoice/Approval"})
	defer s.Close()

	path, err := s.ExportFile(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "Invoice-Approval.bpmn"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, engine.DefaultXML, string(data))
}

func TestCloseReleasesEngineAndIsIdempotent(t *testing.T) {
	s := newReadySession(t, &fakeAPI{}, Record{ID: "p1", Name: "closing"})

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, StateClosed, s.State())

	_, err := s.Save(context.Background())
	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.ErrorIs(t, s.ImportFile("whatever"), ErrSessionClosed)
	_, err = s.ExportFile(t.TempDir())
	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.ErrorIs(t, s.Load(), ErrSessionClosed)
}

func TestFactoryFailure(t *testing.T) {
	_, err := NewSession(&fakeAPI{}, Record{}, func() (engine.Engine, error) {
		return nil, errors.New("no surface")
	})
	require.Error(t, err)
}

func TestExportFilename(t *testing.T) {
	assert.Equal(t, "process.bpmn", ExportFilename("   "))
	assert.Equal(t, "a-b.bpmn", ExportFilename(`a\b`))
	assert.Equal(t, "plain.bpmn", ExportFilename("plain"))
}
