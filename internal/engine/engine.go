// Package engine holds the diagram-engine contract this application consumes.
// Diagram semantics (element palette, layout, schema validation) belong to the
// engine, never to the layers above it: the document travels through the rest
// of the system as an opaque blob.
package engine

import (
	_ "embed"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// DefaultXML is the built-in diagram: a single start event and nothing else.
// It is what a brand-new editing session opens with.
//
//go:embed default.bpmn
var DefaultXML string

// Engine is one diagram surface. Import replaces the whole document or none
// of it; Export returns the current serialized document. Close releases the
// surface; every method after Close fails with ErrClosed.
type Engine interface {
	ImportXML(content string) error
	ExportXML() (string, error)
	FitView()
	Close() error
}

// Factory creates a fresh Engine for an editing session.
type Factory func() (Engine, error)

var (
	ErrClosed     = errors.New("diagram engine closed")
	ErrNoDocument = errors.New("no document loaded")
)

// Canvas is the reference Engine implementation. It keeps the document
// verbatim and only checks well-formedness on import, so an export after a
// successful import returns byte-identical content.
type Canvas struct {
	mu     sync.Mutex
	doc    string
	fitted bool
	closed bool
}

func NewCanvas() *Canvas { return &Canvas{} }

// NewEngine is the default Factory.
func NewEngine() (Engine, error) { return NewCanvas(), nil }

func (c *Canvas) ImportXML(content string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if err := checkWellFormed(content); err != nil {
		return fmt.Errorf("import diagram: %w", err)
	}
	c.doc = content
	c.fitted = false
	return nil
}

func (c *Canvas) ExportXML() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return "", ErrClosed
	}
	if c.doc == "" {
		return "", ErrNoDocument
	}
	return c.doc, nil
}

func (c *Canvas) FitView() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.fitted = true
}

// Fitted reports whether the viewport was reset since the last import.
func (c *Canvas) Fitted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fitted
}

// Close releases the surface. Safe to call more than once.
func (c *Canvas) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.doc = ""
	return nil
}

func checkWellFormed(content string) error {
	if strings.TrimSpace(content) == "" {
		return errors.New("empty document")
	}
	dec := xml.NewDecoder(strings.NewReader(content))
	seen := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if _, ok := tok.(xml.StartElement); ok {
			seen = true
		}
	}
	if !seen {
		return errors.New("document has no elements")
	}
	return nil
}
