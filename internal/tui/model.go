// Package tui is the application shell: the process library with its filter
// input, and the editor rendered as a modal overlay on top of it. All network
// work runs as asynchronous commands so the event loop never blocks.
package tui

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"flowcanvas/internal/editor"
	"flowcanvas/internal/engine"
	"flowcanvas/internal/library"
	flowcanvassdk "flowcanvas/sdk/go"
)

// Options configure the shell.
type Options struct {
	// DefaultName seeds new records. Empty means "Untitled Process".
	DefaultName string
	// ExportDir is where ctrl+e writes .bpmn files. Empty means the working
	// directory.
	ExportDir string
	// EngineFactory overrides the diagram engine used by editing sessions.
	EngineFactory engine.Factory
	Logger        *slog.Logger
}

// Model is the bubbletea model for the shell.
type Model struct {
	store  Store
	logger *slog.Logger

	lib    library.View
	filter textinput.Model
	cursor int

	// session is nil whenever no editor is open. At most one exists.
	session    *editor.Session
	sessionNew bool
	loading    bool
	saving     bool
	nameInput  textinput.Model
	descInput  textinput.Model
	focusIdx   int
	pathInput  textinput.Model
	prompting  bool

	spin spinner.Model

	defaultName   string
	exportDir     string
	engineFactory engine.Factory

	status  string
	errText string

	width  int
	height int
}

// New builds the shell model.
func New(store Store, opts Options) Model {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	defaultName := opts.DefaultName
	if defaultName == "" {
		defaultName = "Untitled Process"
	}
	exportDir := opts.ExportDir
	if exportDir == "" {
		exportDir = "."
	}

	filter := textinput.New()
	filter.Placeholder = "filter processes"
	filter.Prompt = "/ "
	filter.CharLimit = 128

	name := textinput.New()
	name.Placeholder = "process name"
	name.CharLimit = 200
	desc := textinput.New()
	desc.Placeholder = "description"
	desc.CharLimit = 500
	path := textinput.New()
	path.Placeholder = "path to .bpmn file"
	path.CharLimit = 512

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(colorAccent)

	return Model{
		store:         store,
		logger:        logger,
		lib:           library.New(logger),
		filter:        filter,
		nameInput:     name,
		descInput:     desc,
		pathInput:     path,
		spin:          sp,
		defaultName:   defaultName,
		exportDir:     exportDir,
		engineFactory: opts.EngineFactory,
	}
}

func (m Model) Init() tea.Cmd {
	return fetchProcesses(m.store)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case spinner.TickMsg:
		if !m.saving && !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case processListMsg:
		m.lib = m.lib.ApplyList(msg.Items)
		m.clampCursor()
		return m, nil

	case processListErrMsg:
		// Degrade silently: keep whatever was on screen.
		m.lib = m.lib.KeepLast(msg.Err)
		m.status = "refresh failed, showing last known list"
		return m, nil

	case sessionReadyMsg:
		m.loading = false
		return m, nil

	case sessionFailedMsg:
		// Load releases the engine on failure; drop the session.
		m.loading = false
		m.session = nil
		m.errText = fmt.Sprintf("open editor: %v", msg.Err)
		return m, nil

	case savedMsg:
		m.saving = false
		m.status = fmt.Sprintf("saved %q", msg.Process.Name)
		m.errText = ""
		return m, m.closeEditor()

	case saveFailedMsg:
		m.saving = false
		m.errText = fmt.Sprintf("save failed: %v", msg.Err)
		return m, nil

	case deletedMsg:
		m.status = "process deleted"
		m.errText = ""
		return m, fetchProcesses(m.store)

	case deleteFailedMsg:
		if flowcanvassdk.IsNotFound(msg.Err) {
			m.status = "process was already gone"
			return m, fetchProcesses(m.store)
		}
		m.errText = fmt.Sprintf("delete failed: %v", msg.Err)
		return m, nil

	case importDoneMsg:
		if msg.Err != nil {
			m.errText = fmt.Sprintf("import failed: %v", msg.Err)
		} else {
			m.status = fmt.Sprintf("imported %s", msg.Path)
			m.errText = ""
		}
		return m, nil

	case exportDoneMsg:
		if msg.Err != nil {
			m.errText = fmt.Sprintf("export failed: %v", msg.Err)
		} else {
			m.status = fmt.Sprintf("exported to %s", msg.Path)
			m.errText = ""
		}
		return m, nil

	case tea.KeyMsg:
		if m.session != nil {
			return m.updateEditor(msg)
		}
		return m.updateLibrary(msg)
	}
	return m, nil
}

func (m Model) updateLibrary(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.filter.Focused() {
		switch msg.String() {
		case "esc":
			m.filter.Blur()
			m.filter.SetValue("")
			m.clampCursor()
			return m, nil
		case "enter":
			m.filter.Blur()
			return m, nil
		}
		var cmd tea.Cmd
		m.filter, cmd = m.filter.Update(msg)
		m.clampCursor()
		return m, cmd
	}

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "/":
		m.filter.Focus()
		return m, textinput.Blink
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	case "down", "j":
		if m.cursor < len(m.visible())-1 {
			m.cursor++
		}
		return m, nil
	case "r":
		return m, fetchProcesses(m.store)
	case "n":
		rec := editor.Record{
			ID:    uuid.NewString(),
			Name:  m.defaultName,
			IsNew: true,
		}
		return m.openEditor(rec)
	case "enter":
		items := m.visible()
		if len(items) == 0 {
			return m, nil
		}
		p := items[m.cursor]
		rec := editor.Record{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			DiagramXML:  p.DiagramXML,
		}
		return m.openEditor(rec)
	case "d":
		items := m.visible()
		if len(items) == 0 {
			return m, nil
		}
		return m, deleteProcess(m.store, items[m.cursor].ID)
	}
	return m, nil
}

func (m Model) openEditor(rec editor.Record) (tea.Model, tea.Cmd) {
	s, err := editor.NewSession(m.store, rec, m.engineFactory)
	if err != nil {
		m.errText = fmt.Sprintf("open editor: %v", err)
		return m, nil
	}
	m.session = s
	m.sessionNew = rec.IsNew
	m.loading = true
	m.status = ""
	m.errText = ""
	m.nameInput.SetValue(rec.Name)
	m.descInput.SetValue(rec.Description)
	m.nameInput.Focus()
	m.descInput.Blur()
	m.focusIdx = 0
	m.prompting = false
	m.pathInput.SetValue("")
	return m, tea.Batch(loadSession(s), m.spin.Tick, textinput.Blink)
}

// closeEditor releases the session's engine and refreshes the library.
func (m *Model) closeEditor() tea.Cmd {
	if m.session != nil {
		if err := m.session.Close(); err != nil {
			m.logger.Error("close editing session", "error", err)
		}
		m.session = nil
	}
	m.saving = false
	m.loading = false
	m.prompting = false
	return fetchProcesses(m.store)
}

func (m Model) updateEditor(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.closeEditor()
		return m, tea.Quit
	}

	if m.prompting {
		switch msg.String() {
		case "esc":
			m.prompting = false
			return m, nil
		case "enter":
			path := strings.TrimSpace(m.pathInput.Value())
			m.prompting = false
			if path == "" {
				return m, nil
			}
			return m, importDiagram(m.session, path)
		}
		var cmd tea.Cmd
		m.pathInput, cmd = m.pathInput.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "esc":
		// Unsaved edits are discarded without confirmation.
		m.status = "closed without saving"
		return m, m.closeEditor()
	case "tab", "shift+tab", "down", "up":
		m.focusIdx = 1 - m.focusIdx
		if m.focusIdx == 0 {
			m.descInput.Blur()
			return m, m.nameInput.Focus()
		}
		m.nameInput.Blur()
		return m, m.descInput.Focus()
	case "ctrl+s":
		if m.saving || m.loading {
			return m, nil
		}
		m.session.SetName(strings.TrimSpace(m.nameInput.Value()))
		m.session.SetDescription(strings.TrimSpace(m.descInput.Value()))
		m.saving = true
		m.errText = ""
		return m, tea.Batch(saveSession(m.session), m.spin.Tick)
	case "ctrl+e":
		if m.loading {
			return m, nil
		}
		return m, exportDiagram(m.session, m.exportDir)
	case "ctrl+o":
		if m.loading || m.saving {
			return m, nil
		}
		m.prompting = true
		m.pathInput.SetValue("")
		return m, tea.Batch(m.pathInput.Focus(), textinput.Blink)
	}

	var cmd tea.Cmd
	if m.focusIdx == 0 {
		m.nameInput, cmd = m.nameInput.Update(msg)
	} else {
		m.descInput, cmd = m.descInput.Update(msg)
	}
	return m, cmd
}

func (m Model) View() string {
	if m.session != nil {
		return m.viewEditor()
	}
	return m.viewLibrary()
}

func (m Model) viewLibrary() string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("FlowCanvas"))
	b.WriteString("\n")
	b.WriteString(m.filter.View())
	b.WriteString("\n\n")

	items := m.visible()
	switch {
	case !m.lib.Loaded():
		b.WriteString(EmptyStyle.Render("loading processes..."))
	case len(m.lib.Items()) == 0:
		b.WriteString(EmptyStyle.Render("No processes yet. Press n to create one."))
	case len(items) == 0:
		b.WriteString(EmptyStyle.Render(fmt.Sprintf("No processes match %q.", m.filter.Value())))
	default:
		for i, p := range items {
			line := p.Name
			if p.Description != "" {
				line += "  " + MutedStyle.Render(p.Description)
			}
			if p.UpdatedAt != "" {
				line += "  " + MutedStyle.Render(p.UpdatedAt)
			}
			if i == m.cursor {
				b.WriteString(SelectedRowStyle.Render("> " + line))
			} else {
				b.WriteString(RowStyle.Render("  " + line))
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	if m.errText != "" {
		b.WriteString(ErrorStyle.Render(m.errText))
		b.WriteString("\n")
	} else if m.status != "" {
		b.WriteString(StatusStyle.Render(m.status))
		b.WriteString("\n")
	}
	b.WriteString(FooterStyle.Render("enter open · n new · d delete · / filter · r refresh · q quit"))
	return b.String()
}

func (m Model) viewEditor() string {
	rec := m.session.Record()
	title := rec.Name
	if m.sessionNew {
		title += " " + NewBadgeStyle.Render("[new]")
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render(title))
	b.WriteString("\n")
	b.WriteString(FieldLabelStyle.Render("Name"))
	b.WriteString(m.nameInput.View())
	b.WriteString("\n")
	b.WriteString(FieldLabelStyle.Render("Description"))
	b.WriteString(m.descInput.View())
	b.WriteString("\n\n")

	switch {
	case m.loading:
		b.WriteString(m.spin.View() + " loading diagram...")
	case m.saving:
		b.WriteString(m.spin.View() + " saving...")
	case m.prompting:
		b.WriteString("Import file: " + m.pathInput.View())
	default:
		b.WriteString(MutedStyle.Render(fmt.Sprintf("diagram: %d bytes, session %s", len(rec.DiagramXML), m.session.State())))
	}
	b.WriteString("\n")

	if m.errText != "" {
		b.WriteString(ErrorStyle.Render(m.errText))
		b.WriteString("\n")
	} else if m.status != "" {
		b.WriteString(StatusStyle.Render(m.status))
		b.WriteString("\n")
	}
	b.WriteString(FooterStyle.Render("ctrl+s save · ctrl+o import · ctrl+e export · tab switch field · esc discard"))

	modal := ModalStyle.Render(b.String())
	if m.width > 0 && m.height > 0 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal)
	}
	return modal
}

func (m Model) visible() []flowcanvassdk.Process {
	return m.lib.Filter(m.filter.Value())
}

func (m *Model) clampCursor() {
	n := len(m.visible())
	if n == 0 {
		m.cursor = 0
		return
	}
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

// Run starts the shell against the given store and blocks until quit.
func Run(store Store, opts Options) error {
	p := tea.NewProgram(New(store, opts), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
