// Package viewer is a terminal viewer for a document's folds.
package viewer

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fyrsmithlabs/foldd/internal/editor"
	"github.com/fyrsmithlabs/foldd/internal/folding"
	"github.com/fyrsmithlabs/foldd/internal/watch"
)

const tabWidth = 4

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("51")).
			Bold(true).
			Padding(0, 1)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("231")).
			Bold(true)

	markerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true)

	cursorStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("238"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)
)

// Options configure a Model.
type Options struct {
	Keys *KeyMap
	// Reloads, if set, delivers reloads made by a file watcher.
	Reloads <-chan watch.Reload
}

// Model is the bubbletea model for the viewer.
type Model struct {
	doc     *editor.Document
	keys    KeyMap
	help    help.Model
	reloads <-chan watch.Reload

	lines  []string
	folds  []editor.Fold
	rows   []row
	cursor int
	offset int

	width, height int
	status        string
	err           error
	quitting      bool
}

// NewModel creates a viewer for doc.
func NewModel(doc *editor.Document, opts Options) Model {
	keys := DefaultKeyMap()
	if opts.Keys != nil {
		keys = *opts.Keys
	}
	m := Model{
		doc:     doc,
		keys:    keys,
		help:    help.New(),
		reloads: opts.Reloads,
	}
	m.refresh()
	return m
}

// Message types
type reloadedMsg editor.Change
type watchMsg watch.Reload
type errMsg error

// Init starts listening for watcher reloads.
func (m Model) Init() tea.Cmd {
	return waitForReload(m.reloads)
}

func waitForReload(ch <-chan watch.Reload) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		r, ok := <-ch
		if !ok {
			return nil
		}
		return watchMsg(r)
	}
}

// reload reads the document's file and applies it.
func reload(doc *editor.Document) tea.Cmd {
	return func() tea.Msg {
		if doc.Path() == "" {
			return errMsg(fmt.Errorf("document has no file"))
		}
		text, err := os.ReadFile(doc.Path())
		if err != nil {
			return errMsg(fmt.Errorf("reading %s: %w", doc.Path(), err))
		}
		change, err := doc.SetText(context.Background(), text)
		if err != nil {
			return errMsg(err)
		}
		return reloadedMsg(change)
	}
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.scroll()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case reloadedMsg:
		m.err = nil
		m.status = describe(editor.Change(msg))
		m.refresh()
		return m, nil

	case watchMsg:
		if msg.Err != nil {
			m.err = msg.Err
		} else {
			m.err = nil
			m.status = "file changed: " + describe(msg.Change)
			m.refresh()
		}
		return m, waitForReload(m.reloads)

	case errMsg:
		m.err = error(msg)
		return m, nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.Up):
		m.move(-1)
	case key.Matches(msg, m.keys.Down):
		m.move(1)
	case key.Matches(msg, m.keys.PageUp):
		m.move(-m.bodyHeight())
	case key.Matches(msg, m.keys.PageDown):
		m.move(m.bodyHeight())
	case key.Matches(msg, m.keys.Top):
		m.move(-len(m.rows))
	case key.Matches(msg, m.keys.Bottom):
		m.move(len(m.rows))
	case key.Matches(msg, m.keys.NextFold):
		m.jumpFold(1)
	case key.Matches(msg, m.keys.PrevFold):
		m.jumpFold(-1)
	case key.Matches(msg, m.keys.Toggle):
		m.toggle()
	case key.Matches(msg, m.keys.Folding):
		enabled := !m.doc.FoldingEnabled()
		if _, err := m.doc.SetFoldingEnabled(context.Background(), enabled); err != nil {
			m.err = err
			break
		}
		m.status = "folding off"
		if enabled {
			m.status = "folding on"
		}
		m.refresh()
	case key.Matches(msg, m.keys.Reload):
		return m, reload(m.doc)
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}
	return m, nil
}

// refresh rebuilds the rows from the document, keeping the cursor on the
// same line where possible.
func (m *Model) refresh() {
	line := m.cursorLine()

	buf := m.doc.Buffer()
	m.lines = make([]string, 0, buf.LineCount())
	for i := 0; i < buf.LineCount(); i++ {
		text, _ := buf.Line(i)
		m.lines = append(m.lines, strings.ReplaceAll(string(text), "\t", strings.Repeat(" ", tabWidth)))
	}
	m.folds = m.doc.Folds()
	m.rows = layout(len(m.lines), m.folds)
	m.cursor = m.rowFor(line)
	m.scroll()
}

func (m *Model) cursorLine() int {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return 0
	}
	return m.rows[m.cursor].line
}

// rowFor returns the row showing line, or the row hiding it.
func (m *Model) rowFor(line int) int {
	idx := 0
	for i, r := range m.rows {
		if r.line > line {
			break
		}
		idx = i
	}
	return idx
}

func (m *Model) move(delta int) {
	m.cursor += delta
	if m.cursor >= len(m.rows) {
		m.cursor = len(m.rows) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	m.scroll()
}

func (m *Model) jumpFold(dir int) {
	for i := m.cursor + dir; i >= 0 && i < len(m.rows); i += dir {
		if m.rows[i].fold != nil {
			m.cursor = i
			m.scroll()
			return
		}
	}
}

// toggle flips the fold on the cursor line, or else the innermost fold
// around it.
func (m *Model) toggle() {
	if len(m.rows) == 0 {
		return
	}
	r := m.rows[m.cursor]
	var handle folding.Handle
	line := r.line
	if r.fold != nil {
		handle = r.fold.Handle
	} else if f, ok := innermost(m.folds, r.line); ok {
		handle, line = f.Handle, f.StartLine
	} else {
		m.status = "no fold here"
		return
	}

	collapsed, err := m.doc.Toggle(handle)
	if err != nil {
		m.err = err
		return
	}
	m.err = nil
	m.status = fmt.Sprintf("expanded line %d", line+1)
	if collapsed {
		m.status = fmt.Sprintf("collapsed line %d", line+1)
	}
	m.cursor = m.rowFor(line)
	m.refresh()
}

func (m Model) bodyHeight() int {
	if m.height == 0 {
		return len(m.rows)
	}
	h := m.height - 2 - lipgloss.Height(m.help.View(m.keys))
	if h < 1 {
		h = 1
	}
	return h
}

// scroll keeps the cursor inside the visible window.
func (m *Model) scroll() {
	h := m.bodyHeight()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+h {
		m.offset = m.cursor - h + 1
	}
	if m.offset < 0 {
		m.offset = 0
	}
}

func describe(c editor.Change) string {
	s := fmt.Sprintf("revision %d: +%d -%d ~%d folds",
		c.Revision, len(c.Batch.Insertions), len(c.Batch.Removals), len(c.Batch.Updates))
	if c.Dropped {
		s += " (dropped)"
	}
	return s
}

// View renders the viewer.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")

	gutter := len(fmt.Sprint(len(m.lines)))
	end := m.offset + m.bodyHeight()
	if end > len(m.rows) {
		end = len(m.rows)
	}
	for i := m.offset; i < end; i++ {
		line := m.renderRow(m.rows[i], gutter)
		if i == m.cursor {
			line = cursorStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	switch {
	case m.err != nil:
		b.WriteString(errorStyle.Render("error: " + m.err.Error()))
	case m.status != "":
		b.WriteString(dimStyle.Render(m.status))
	}
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model) renderHeader() string {
	name := m.doc.Path()
	if name == "" {
		name = m.doc.ID()
	}
	state := "on"
	if !m.doc.FoldingEnabled() {
		state = "off"
	}
	return fmt.Sprintf("%s %s %s %s %s %s %s",
		headerStyle.Render("foldd"),
		valueStyle.Render(name),
		dimStyle.Render(m.doc.Language().Name),
		dimStyle.Render(fmt.Sprintf("rev %d", m.doc.Revision())),
		dimStyle.Render(fmt.Sprintf("%d folds", len(m.folds))),
		dimStyle.Render("folding"),
		valueStyle.Render(state),
	)
}

func (m Model) renderRow(r row, gutter int) string {
	marker := " "
	if r.fold != nil {
		marker = "▾"
		if r.fold.Collapsed {
			marker = "▸"
		}
	}

	text := m.lines[r.line]
	if r.hidden > 0 {
		text += dimStyle.Render(fmt.Sprintf(" … %d lines", r.hidden))
	}
	line := fmt.Sprintf("%s %s %s",
		dimStyle.Render(fmt.Sprintf("%*d", gutter, r.line+1)),
		markerStyle.Render(marker),
		text,
	)
	if m.width > 0 {
		line = lipgloss.NewStyle().MaxWidth(m.width).Render(line)
	}
	return line
}
