package engine

import (
	"errors"
	"strings"
	"testing"
)

func TestDefaultDiagramImports(t *testing.T) {
	c := NewCanvas()
	defer c.Close()
	if err := c.ImportXML(DefaultXML); err != nil {
		t.Fatalf("import default diagram: %v", err)
	}
	if !strings.Contains(DefaultXML, "startEvent") {
		t.Fatal("default diagram should contain a start event")
	}
}

func TestRoundTripStability(t *testing.T) {
	c := NewCanvas()
	defer c.Close()
	if err := c.ImportXML(DefaultXML); err != nil {
		t.Fatalf("import: %v", err)
	}
	first, err := c.ExportXML()
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if err := c.ImportXML(first); err != nil {
		t.Fatalf("re-import export: %v", err)
	}
	second, err := c.ExportXML()
	if err != nil {
		t.Fatalf("second export: %v", err)
	}
	if first != second {
		t.Fatal("export after importing an export must be identical")
	}
}

func TestImportRejectsMalformedKeepsDocument(t *testing.T) {
	c := NewCanvas()
	defer c.Close()
	if err := c.ImportXML("<doc><a/></doc>"); err != nil {
		t.Fatalf("import: %v", err)
	}
	if err := c.ImportXML("<doc><unclosed>"); err == nil {
		t.Fatal("expected malformed document to be rejected")
	}
	doc, err := c.ExportXML()
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if doc != "<doc><a/></doc>" {
		t.Fatalf("rejected import must not touch the document, got %q", doc)
	}
}

func TestImportRejectsEmpty(t *testing.T) {
	c := NewCanvas()
	defer c.Close()
	if err := c.ImportXML("   "); err == nil {
		t.Fatal("expected empty document to be rejected")
	}
}

func TestExportWithoutDocument(t *testing.T) {
	c := NewCanvas()
	defer c.Close()
	if _, err := c.ExportXML(); !errors.Is(err, ErrNoDocument) {
		t.Fatalf("expected ErrNoDocument, got %v", err)
	}
}

func TestFitView(t *testing.T) {
	c := NewCanvas()
	defer c.Close()
	if err := c.ImportXML(DefaultXML); err != nil {
		t.Fatalf("import: %v", err)
	}
	if c.Fitted() {
		t.Fatal("viewport should not be fit right after import")
	}
	c.FitView()
	if !c.Fitted() {
		t.Fatal("expected viewport fit")
	}
}

func TestClosedEngine(t *testing.T) {
	c := NewCanvas()
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if err := c.ImportXML(DefaultXML); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed on import, got %v", err)
	}
	if _, err := c.ExportXML(); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed on export, got %v", err)
	}
}
