// Package editor implements the editing session around one diagram engine
// instance: load a record into the engine, track local edits, save them back
// through the API, and guarantee the engine is released on every exit path.
package editor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/renameio/v2"

	"flowcanvas/internal/engine"
	flowcanvassdk "flowcanvas/sdk/go"
)

// State is the session lifecycle phase.
type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateReady
	StateSaving
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateSaving:
		return "saving"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

var (
	ErrSessionClosed = errors.New("editing session closed")
	ErrSaveInFlight  = errors.New("a save is already in progress")
	ErrNotReady      = errors.New("session not ready")
)

// API is the slice of the process API a session needs. *flowcanvassdk.Client
// satisfies it.
type API interface {
	CreateProcess(ctx context.Context, d flowcanvassdk.ProcessDraft) (flowcanvassdk.Process, error)
	UpdateProcess(ctx context.Context, id string, d flowcanvassdk.ProcessDraft) (flowcanvassdk.Process, error)
}

// Record is the process bound to a session. IsNew marks a record the store
// has never seen; the first successful save turns it into a persisted one.
type Record struct {
	ID          string
	Name        string
	Description string
	DiagramXML  string
	IsNew       bool
}

// Session owns exactly one engine instance from construction to Close.
type Session struct {
	mu    sync.Mutex
	api   API
	eng   engine.Engine
	state State
	rec   Record
}

// NewSession acquires an engine from factory and binds it to rec. A nil
// factory means the built-in canvas. If the factory fails there is nothing to
// release and no session.
func NewSession(api API, rec Record, factory engine.Factory) (*Session, error) {
	if factory == nil {
		factory = engine.NewEngine
	}
	eng, err := factory()
	if err != nil {
		return nil, fmt.Errorf("acquire diagram engine: %w", err)
	}
	return &Session{api: api, eng: eng, rec: rec, state: StateUninitialized}, nil
}

// Load imports the record's diagram into the engine, or the built-in default
// when the record has none. Stored content the engine rejects falls back to
// the default rather than failing the open. If even the default cannot be
// imported the session closes itself and releases the engine.
func (s *Session) Load() error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.state = StateLoading
	content := s.rec.DiagramXML
	s.mu.Unlock()

	if content == "" {
		content = engine.DefaultXML
	}
	if err := s.eng.ImportXML(content); err != nil {
		if err2 := s.eng.ImportXML(engine.DefaultXML); err2 != nil {
			s.Close()
			return fmt.Errorf("load diagram: %w", err2)
		}
	}
	s.eng.FitView()

	s.mu.Lock()
	s.state = StateReady
	s.mu.Unlock()
	return nil
}

// SetName stages a local edit of the process name.
func (s *Session) SetName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec.Name = name
}

// SetDescription stages a local edit of the description.
func (s *Session) SetDescription(desc string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec.Description = desc
}

// Record returns a snapshot of the bound record.
func (s *Session) Record() Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec
}

// State returns the current lifecycle phase.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Save exports the current diagram and persists the record: create when the
// record was never stored, full-replace update otherwise. On success the
// session adopts the stored identity and timestamps. On failure the session
// returns to ready with all local edits intact. A save while one is already
// in flight is rejected.
func (s *Session) Save(ctx context.Context) (flowcanvassdk.Process, error) {
	s.mu.Lock()
	switch s.state {
	case StateClosed:
		s.mu.Unlock()
		return flowcanvassdk.Process{}, ErrSessionClosed
	case StateSaving:
		s.mu.Unlock()
		return flowcanvassdk.Process{}, ErrSaveInFlight
	case StateReady:
	default:
		s.mu.Unlock()
		return flowcanvassdk.Process{}, ErrNotReady
	}
	s.state = StateSaving
	rec := s.rec
	s.mu.Unlock()

	xmlDoc, err := s.eng.ExportXML()
	if err != nil {
		s.setState(StateReady)
		return flowcanvassdk.Process{}, fmt.Errorf("export diagram: %w", err)
	}
	draft := flowcanvassdk.ProcessDraft{
		Name:        rec.Name,
		Description: rec.Description,
		DiagramXML:  xmlDoc,
	}
	var stored flowcanvassdk.Process
	if rec.IsNew || rec.ID == "" {
		stored, err = s.api.CreateProcess(ctx, draft)
	} else {
		stored, err = s.api.UpdateProcess(ctx, rec.ID, draft)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateSaving {
		s.state = StateReady
	}
	if err != nil {
		return flowcanvassdk.Process{}, err
	}
	s.rec.ID = stored.ID
	s.rec.IsNew = false
	s.rec.Name = stored.Name
	s.rec.DiagramXML = stored.DiagramXML
	return stored, nil
}

// ImportFile replaces the engine's document with the file's content. The
// replacement is all-or-nothing: a document the engine rejects leaves the
// current one untouched.
func (s *Session) ImportFile(path string) error {
	if st := s.State(); st != StateReady {
		if st == StateClosed {
			return ErrSessionClosed
		}
		return ErrNotReady
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read diagram file: %w", err)
	}
	if err := s.eng.ImportXML(string(data)); err != nil {
		return err
	}
	s.eng.FitView()
	return nil
}

// ExportFile writes the current diagram to <sanitized-name>.bpmn under dir.
// The write is atomic: the file appears complete or not at all. Purely local,
// the store is never involved.
func (s *Session) ExportFile(dir string) (string, error) {
	if st := s.State(); st == StateClosed {
		return "", ErrSessionClosed
	}
	xmlDoc, err := s.eng.ExportXML()
	if err != nil {
		return "", fmt.Errorf("export diagram: %w", err)
	}
	path := filepath.Join(dir, ExportFilename(s.Record().Name))
	if err := renameio.WriteFile(path, []byte(xmlDoc), 0o644); err != nil {
		return "", fmt.Errorf("write diagram file: %w", err)
	}
	return path, nil
}

// Close releases the engine and discards unsaved edits. Idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	s.state = StateClosed
	s.mu.Unlock()
	return s.eng.Close()
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// ExportFilename derives a safe .bpmn filename from a process name.
func ExportFilename(name string) string {
	name = strings.TrimSpace(name)
	replacer := strings.NewReplacer("/", "-", "\\", "-", "\"", "", "\x00", "")
	name = replacer.Replace(name)
	if name == "" {
		name = "process"
	}
	return name + ".bpmn"
}
