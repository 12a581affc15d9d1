// Package tui implements the Bubble Tea terminal user interface.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sprite-ai/glim/internal/diff"
	"github.com/sprite-ai/glim/internal/engine"
	"github.com/sprite-ai/glim/internal/model"
	"github.com/sprite-ai/glim/internal/source"
	"github.com/sprite-ai/glim/internal/staging"
	"github.com/sprite-ai/glim/internal/zoom"
)

// IndexWriter stores the staged set in a git index.
type IndexWriter interface {
	WriteIndex(ctx context.Context, entries []staging.IndexEntry) error
}

// Options configure a review session.
type Options struct {
	Source  source.Source
	Engine  *engine.Engine
	Index   IndexWriter // target of `w`; nil for pull requests
	Context int         // initial Logic view context lines
	Style   string      // chroma style name
}

const contextStep = 3

// Model is the top-level Bubble Tea model for glim.
type Model struct {
	ctx     context.Context
	src     source.Source
	eng     *engine.Engine
	nav     *zoom.Navigator
	stage   *staging.Model
	hl      *diff.Highlighter
	index   IndexWriter

	info    source.Info
	err     error // session load failure
	loading bool

	// Each load gets a sequence number; only the latest one's session is used.
	loadSeq    int
	loadCtx    context.Context
	loadCancel context.CancelFunc

	// Analysis of the current generation streams in through results.
	results <-chan *engine.FileResult
	cancel  context.CancelFunc

	// UI state
	width   int
	height  int
	cursor  int
	scroll  int
	cursors []int // cursor of each enclosing zoom level

	// Galaxy
	galaxy   []engine.GalaxyEntry
	showDirs bool

	// Structure
	nodes     []engine.Node
	viewErr   error
	showAll   bool
	search    textinput.Model
	searching bool
	filter    string

	// Logic
	logic     *engine.LogicView
	rows      []logicRow
	expanded  map[int]bool
	ctxLines  int
	splitView bool

	status    string
	statusErr bool
	showHelp  bool
}

type sessionMsg struct {
	seq     int
	session *source.Session
	err     error
}

type resultMsg struct {
	ch <-chan *engine.FileResult
	r  *engine.FileResult
}

type analysisDoneMsg struct {
	ch <-chan *engine.FileResult
}

type appliedMsg struct {
	files int
	err   error
}

// New creates a TUI model. The session is loaded by Init.
func New(ctx context.Context, opts Options) Model {
	ti := textinput.New()
	ti.Prompt = "/"
	ti.Placeholder = "symbol name"

	style := opts.Style
	if style == "" {
		style = "dracula"
	}
	m := Model{
		ctx:      ctx,
		src:      opts.Source,
		eng:      opts.Engine,
		nav:      zoom.New(opts.Engine),
		hl:       diff.NewHighlighter(style),
		index:    opts.Index,
		loading:  true,
		search:   ti,
		expanded: map[int]bool{},
		ctxLines: max(1, opts.Context),
	}
	m.beginLoad()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return m.load()
}

// beginLoad cancels the load in flight, if any, and opens the next one.
func (m *Model) beginLoad() {
	if m.loadCancel != nil {
		m.loadCancel()
	}
	m.loadCtx, m.loadCancel = context.WithCancel(m.ctx)
	m.loadSeq++
	m.loading = true
}

func (m Model) load() tea.Cmd {
	ctx, src, seq := m.loadCtx, m.src, m.loadSeq
	return func() tea.Msg {
		s, err := src.Load(ctx)
		return sessionMsg{seq: seq, session: s, err: err}
	}
}

func wait(ch <-chan *engine.FileResult) tea.Cmd {
	return func() tea.Msg {
		r, ok := <-ch
		if !ok {
			return analysisDoneMsg{ch: ch}
		}
		return resultMsg{ch: ch, r: r}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.clamp()
		return m, nil

	case sessionMsg:
		// A superseded load: its context is already cancelled.
		if msg.seq != m.loadSeq {
			return m, nil
		}
		return m.startSession(msg)

	case resultMsg:
		// A channel of an earlier generation: stop listening to it.
		if msg.ch != m.results {
			return m, nil
		}
		if m.eng.Merge(msg.r) {
			m.refresh()
		}
		return m, wait(msg.ch)

	case analysisDoneMsg:
		if msg.ch == m.results {
			m.loading = false
			m.results = nil
			m.refresh()
		}
		return m, nil

	case appliedMsg:
		if msg.err != nil {
			m.setStatus(msg.err)
			return m, nil
		}
		noun := "files"
		if msg.files == 1 {
			noun = "file"
		}
		m.status, m.statusErr = fmt.Sprintf("updated the index for %d %s", msg.files, noun), false
		m.beginLoad()
		return m, m.load()

	case tea.KeyMsg:
		if m.searching {
			return m.updateSearch(msg)
		}
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) startSession(msg sessionMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.err = msg.err
		m.loading = false
		return m, nil
	}
	if m.cancel != nil {
		m.cancel()
	}
	ctx, cancel := context.WithCancel(m.ctx)
	m.cancel = cancel

	s := msg.session
	m.err = nil
	m.info = s.Info
	m.eng.Load(s.Files)
	m.eng.SetComments(s.Comments)
	m.stage = staging.New(s.Files)
	m.eng.SetStaging(m.stage)
	m.nav.Reset(m.eng)
	m.cursor, m.scroll, m.cursors = 0, 0, nil
	m.filter = ""
	m.search.SetValue("")
	m.expanded = map[int]bool{}
	m.loading = true

	m.results = m.eng.Start(ctx)
	m.refresh()
	return m, wait(m.results)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp && !key.Matches(msg, keys.Help, keys.Quit) {
		return m, nil
	}

	switch {
	case key.Matches(msg, keys.Quit):
		if m.cancel != nil {
			m.cancel()
		}
		if m.loadCancel != nil {
			m.loadCancel()
		}
		return m, tea.Quit

	case key.Matches(msg, keys.Help):
		m.showHelp = !m.showHelp

	case key.Matches(msg, keys.Reload):
		m.status, m.statusErr = "reloading…", false
		m.beginLoad()
		return m, m.load()

	case m.err != nil:
		// Only reload and quit work without a session.

	case key.Matches(msg, keys.Down):
		if m.cursor < m.rowCount()-1 {
			m.cursor++
		}

	case key.Matches(msg, keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(msg, keys.ZoomIn):
		m.zoomIn()

	case key.Matches(msg, keys.ZoomOut):
		m.zoomOut()

	case key.Matches(msg, keys.NextFile):
		m.stepFile(1)

	case key.Matches(msg, keys.PrevFile):
		m.stepFile(-1)

	case key.Matches(msg, keys.NextHunk):
		m.jumpToNextHunk()

	case key.Matches(msg, keys.PrevHunk):
		m.jumpToPrevHunk()

	case key.Matches(msg, keys.Stage):
		m.toggleStage()

	case key.Matches(msg, keys.Write):
		return m.write()

	case key.Matches(msg, keys.Fold):
		if m.nav.Level() == model.Logic && m.cursor < len(m.rows) {
			if id := m.rows[m.cursor].Fold; id >= 0 {
				m.expanded[id] = !m.expanded[id]
				m.refresh()
			}
		}

	case key.Matches(msg, keys.Toggle):
		m.splitView = !m.splitView

	case key.Matches(msg, keys.All):
		if m.nav.Level() == model.Structure {
			m.showAll = !m.showAll
			m.refresh()
		}

	case key.Matches(msg, keys.Dirs):
		if m.nav.Level() == model.Galaxy {
			m.showDirs = !m.showDirs
		}

	case key.Matches(msg, keys.More):
		m.ctxLines += contextStep
		m.refresh()

	case key.Matches(msg, keys.Less):
		m.ctxLines = max(1, m.ctxLines-contextStep)
		m.refresh()

	case key.Matches(msg, keys.Search):
		if m.nav.Level() == model.Structure {
			m.searching = true
			m.search.SetValue(m.filter)
			return m, m.search.Focus()
		}
	}

	m.clamp()
	return m, nil
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.searching = false
		m.search.Blur()
	case tea.KeyEsc:
		m.searching = false
		m.search.Blur()
		m.search.SetValue("")
	default:
		var cmd tea.Cmd
		m.search, cmd = m.search.Update(msg)
		m.filter = m.search.Value()
		m.cursor, m.scroll = 0, 0
		m.refresh()
		return m, cmd
	}
	m.filter = m.search.Value()
	m.refresh()
	return m, nil
}

// refresh reloads the data of the current level from the engine.
func (m *Model) refresh() {
	cur := m.nav.Current()
	m.viewErr = nil
	switch cur.Level {
	case model.Galaxy:
		m.galaxy = m.eng.Galaxy()
	case model.Structure:
		nodes, err := m.eng.Structure(cur.Selection.File, m.showAll)
		m.nodes, m.viewErr = filterNodes(nodes, m.filter), err
	case model.Logic:
		v, err := m.eng.Logic(cur.Selection.File, cur.Selection.Symbol)
		m.logic, m.viewErr = v, err
		m.rows = nil
		if err == nil {
			m.rows = logicRows(v, m.ctxLines, m.expanded, m.hl)
		}
	}
	m.clamp()
}

func filterNodes(nodes []engine.Node, q string) []engine.Node {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return nodes
	}
	var out []engine.Node
	for _, n := range nodes {
		if strings.Contains(strings.ToLower(n.Name), q) {
			out = append(out, n)
		}
	}
	return out
}

func (m Model) rowCount() int {
	switch m.nav.Level() {
	case model.Galaxy:
		return len(m.galaxy)
	case model.Structure:
		return len(m.nodes)
	default:
		return len(m.rows)
	}
}

// bodyHeight is the number of list rows that fit between header and status bar.
func (m Model) bodyHeight() int {
	return max(1, m.height-6)
}

func (m *Model) clamp() {
	n := m.rowCount()
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	h := m.bodyHeight()
	if m.cursor < m.scroll {
		m.scroll = m.cursor
	}
	if m.cursor >= m.scroll+h {
		m.scroll = m.cursor - h + 1
	}
	if m.scroll < 0 {
		m.scroll = 0
	}
}

func (m *Model) setStatus(err error) {
	m.status, m.statusErr = err.Error(), true
}

func (m *Model) zoomIn() {
	cur := m.nav.Current()
	var sel zoom.Selection
	switch cur.Level {
	case model.Galaxy:
		if m.cursor >= len(m.galaxy) {
			return
		}
		sel = zoom.Selection{File: m.galaxy[m.cursor].Impact.Path}
	case model.Structure:
		if m.cursor >= len(m.nodes) {
			return
		}
		sel = zoom.Selection{File: cur.Selection.File, Symbol: m.nodes[m.cursor].Key}
	}
	if err := m.nav.ZoomIn(sel); err != nil {
		m.setStatus(err)
		return
	}
	m.cursors = append(m.cursors, m.cursor)
	m.cursor, m.scroll = 0, 0
	m.expanded = map[int]bool{}
	m.status = ""
	m.refresh()
}

func (m *Model) zoomOut() {
	if err := m.nav.ZoomOut(); err != nil {
		if !errors.Is(err, zoom.ErrAtRoot) {
			m.setStatus(err)
		}
		return
	}
	if m.nav.Level() == model.Galaxy {
		m.filter = ""
		m.search.SetValue("")
	}
	m.cursor, m.scroll = 0, 0
	if n := len(m.cursors); n > 0 {
		m.cursor = m.cursors[n-1]
		m.cursors = m.cursors[:n-1]
	}
	m.status = ""
	m.refresh()
}

// stepFile moves to the Structure view of the next or previous file in Galaxy order.
func (m *Model) stepFile(delta int) {
	if m.nav.Level() == model.Galaxy {
		return
	}
	galaxy := m.eng.Galaxy()
	cur := m.nav.Current().Selection.File
	idx := -1
	for i, g := range galaxy {
		if g.Impact.Path == cur {
			idx = i
			break
		}
	}
	next := idx + delta
	if idx < 0 || next < 0 || next >= len(galaxy) {
		return
	}
	if err := m.nav.Jump(model.Structure, zoom.Selection{File: galaxy[next].Impact.Path}); err != nil {
		m.setStatus(err)
		return
	}
	m.cursors = []int{next}
	m.cursor, m.scroll = 0, 0
	m.filter = ""
	m.search.SetValue("")
	m.refresh()
}

func (m *Model) jumpToNextHunk() {
	for i := m.cursor + 1; i < len(m.rows); i++ {
		if m.rows[i].isHunk() {
			m.cursor = i
			return
		}
	}
}

func (m *Model) jumpToPrevHunk() {
	for i := m.cursor - 1; i >= 0; i-- {
		if m.rows[i].isHunk() {
			m.cursor = i
			return
		}
	}
}

// toggleStage stages or unstages the selection: a whole file in Galaxy, every
// changed line of a symbol in Structure, one line in Logic.
func (m *Model) toggleStage() {
	if m.stage == nil {
		return
	}
	cur := m.nav.Current()
	var (
		path string
		err  error
	)
	switch cur.Level {
	case model.Galaxy:
		if m.cursor >= len(m.galaxy) {
			return
		}
		g := m.galaxy[m.cursor]
		path = g.Impact.Path
		err = m.toggleFile(path, g.Impact.Stage() == model.StageFull)
	case model.Structure:
		if m.cursor >= len(m.nodes) {
			return
		}
		n := m.nodes[m.cursor]
		path = cur.Selection.File
		var lines []staging.Line
		if lines, err = m.eng.SymbolLines(path, n.Key); err == nil {
			if n.Stage() == model.StageFull {
				err = m.stage.UnstageLines(path, lines)
			} else {
				err = m.stage.StageLines(path, lines)
			}
		}
	case model.Logic:
		if m.cursor >= len(m.rows) {
			return
		}
		l := m.rows[m.cursor].Line
		if l == nil || l.Op == model.OpContext {
			return
		}
		path = cur.Selection.File
		r := model.LineRange{Start: l.Index, End: l.Index}
		if l.Staged {
			err = m.stage.Unstage(path, l.Hunk, r)
		} else {
			err = m.stage.Stage(path, l.Hunk, r)
		}
	}
	if err != nil {
		m.setStatus(err)
		return
	}
	if _, err := m.eng.Recompute(m.ctx, []string{path}); err != nil {
		m.setStatus(err)
		return
	}
	m.refresh()
}

func (m *Model) toggleFile(path string, unstage bool) error {
	fd, ok := m.eng.File(path)
	if !ok {
		return engine.ErrUnknownFile
	}
	for hi, h := range fd.Hunks {
		if len(h.Lines) == 0 {
			continue
		}
		r := model.LineRange{Start: 0, End: len(h.Lines) - 1}
		var err error
		if unstage {
			err = m.stage.Unstage(path, hi, r)
		} else {
			err = m.stage.Stage(path, hi, r)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// write stores the staged set in the git index, then reloads so the session
// reflects what the index now holds.
func (m Model) write() (tea.Model, tea.Cmd) {
	if m.index == nil {
		m.status, m.statusErr = "writing to the index needs a local repository", true
		return m, nil
	}
	if m.stage == nil {
		return m, nil
	}
	entries, err := m.stage.IndexEntries()
	if err != nil {
		m.setStatus(err)
		return m, nil
	}
	if len(entries) == 0 {
		m.status, m.statusErr = "index already up to date", false
		return m, nil
	}
	ctx, index, n := m.ctx, m.index, len(m.stage.Dirty())
	return m, func() tea.Msg {
		return appliedMsg{files: n, err: index.WriteIndex(ctx, entries)}
	}
}

// View implements tea.Model.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	if m.showHelp {
		return m.renderHelp()
	}

	if m.err != nil {
		msg := statusErrStyle.Render(fmt.Sprintf(" %v ", m.err))
		return lipgloss.JoinVertical(lipgloss.Left, msg, "", helpBarStyle.Render("r retry  q quit"))
	}

	var body string
	switch m.nav.Level() {
	case model.Galaxy:
		body = m.renderGalaxy(m.width, m.height-3)
	case model.Structure:
		body = m.renderStructure(m.width, m.height-3)
	case model.Logic:
		body = m.renderLogic(m.width, m.height-3)
	}

	return lipgloss.JoinVertical(lipgloss.Left, m.renderHeader(), body, m.renderStatusBar())
}

func (m Model) renderHeader() string {
	if m.info.Repo == "" {
		return headerDescStyle.Render(" loading session…") + "\n"
	}
	top := " " + headerRepoStyle.Render(m.info.Repo) + "  " +
		headerTitleStyle.Render(m.info.Title()) + "  " +
		headerDescStyle.Render(truncate(m.info.Description, max(10, m.width/2)))

	crumbs := []string{"galaxy"}
	for _, e := range m.nav.Stack()[1:] {
		switch e.Level {
		case model.Structure:
			crumbs = append(crumbs, e.Selection.File)
		case model.Logic:
			name := e.Selection.Symbol
			if m.logic != nil {
				name = m.logic.Node.Name
			}
			crumbs = append(crumbs, name)
		}
	}
	bottom := " " + breadcrumbStyle.Render(strings.Join(crumbs, " › ")) + "  " + breadcrumbStyle.Render(m.info.StatsLine())
	return top + "\n" + bottom
}

func (m Model) renderGalaxy(width, height int) string {
	listWidth := width
	var dirs string
	if m.showDirs {
		listWidth = width * 2 / 3
		dirs = m.renderDirectories(width-listWidth-1, height)
	}

	inner := listWidth - 4
	var b strings.Builder
	b.WriteString(panelTitleStyle.Render("Galaxy"))
	if len(m.galaxy) == 0 && !m.loading {
		b.WriteString("\n\nNo changes")
	}

	hottest := 0.0
	for _, g := range m.galaxy {
		hottest = max(hottest, g.Impact.ChurnScore)
	}

	start, end := m.scroll, min(len(m.galaxy), m.scroll+m.bodyHeight())
	for i := start; i < end; i++ {
		g := m.galaxy[i]
		stats := fmt.Sprintf("+%d -%d", g.Impact.Added, g.Impact.Removed)
		var note string
		switch {
		case g.Pending:
			note = " computing…"
		case g.Impact.Err != nil:
			note = " (line diff)"
		case g.Impact.HasCosmeticOnly:
			note = " (cosmetic)"
		}
		note += badge(g.Comments)

		fixed := 3 + 1 + 10 + 1 + 1 + len(stats) + lipgloss.Width(note)
		nameWidth := max(8, inner-fixed)
		name := g.Impact.Path
		if len(name) > nameWidth {
			name = "…" + name[len(name)-nameWidth+1:]
		}
		line := fmt.Sprintf("%s %s %-*s %s%s", stageBox(g.Impact.Stage()), heatBar(g.Impact.ChurnScore, hottest, 10), nameWidth, name, stats, note)

		style := itemStyle
		switch {
		case i == m.cursor:
			style = itemSelectedStyle
		case g.Pending:
			style = itemPendingStyle
		case g.Impact.Err != nil:
			style = itemErrorStyle
		case g.Impact.HasCosmeticOnly:
			style = itemCosmeticStyle
		}
		b.WriteByte('\n')
		b.WriteString(style.Width(inner).Render(line))
	}

	list := panelStyle.Width(listWidth).Height(height - 2).Render(b.String())
	if dirs == "" {
		return list
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, list, " ", dirs)
}

func (m Model) renderDirectories(width, height int) string {
	var b strings.Builder
	b.WriteString(panelTitleStyle.Render("Directories"))
	dirs := m.eng.Directories()
	hottest := 0.0
	for _, d := range dirs {
		hottest = max(hottest, d.Heat)
	}
	inner := width - 4
	for i, d := range dirs {
		if i >= height-3 {
			break
		}
		bar := heatStyle.Render(heatBar(d.Heat, hottest, 6))
		b.WriteString(fmt.Sprintf("\n%s %s", bar, truncate(fmt.Sprintf("%s (%d)", d.Dir, d.Files), max(1, inner-7))))
	}
	return panelStyle.Width(width).Height(height - 2).Render(b.String())
}

func (m Model) renderStructure(width, height int) string {
	cur := m.nav.Current().Selection
	inner := width - 4
	var b strings.Builder
	title := cur.File
	if fd, ok := m.eng.File(cur.File); ok {
		title = diff.DisplayName(fd)
	}
	b.WriteString(panelTitleStyle.Render(title))
	if m.searching || m.filter != "" {
		b.WriteByte('\n')
		if m.searching {
			b.WriteString(m.search.View())
		} else {
			b.WriteString(helpBarStyle.Render("/" + m.filter))
		}
	}

	switch {
	case errors.Is(m.viewErr, engine.ErrPending):
		b.WriteString("\n\n" + itemPendingStyle.Render("computing…"))
	case m.viewErr != nil:
		b.WriteString("\n\n" + itemErrorStyle.Render(fmt.Sprintf("no symbol view: %v", m.viewErr)))
	case len(m.nodes) == 0:
		b.WriteString("\n\n" + itemPendingStyle.Render("no changed symbols (a shows all)"))
	}

	start, end := m.scroll, min(len(m.nodes), m.scroll+m.bodyHeight())
	for i := start; i < end; i++ {
		n := m.nodes[i]
		rel := n.Relation.String()
		stats := fmt.Sprintf("+%d -%d", n.Added, n.Removed)
		var note string
		if n.CosmeticOnly() {
			note = " (cosmetic)"
		}
		if n.Relation == model.RelationMoved || n.Relation == model.RelationRenamed {
			note += fmt.Sprintf(" %.0f%%", n.Confidence*100)
		}
		note += badge(n.Comments)
		line := fmt.Sprintf("%s %-9s %s%s %s%s", stageBox(n.Stage()), rel, strings.Repeat("  ", n.Depth), n.Name, stats, note)

		style := relationStyles[rel]
		switch {
		case i == m.cursor:
			style = itemSelectedStyle
		case n.CosmeticOnly():
			style = itemCosmeticStyle
		}
		b.WriteByte('\n')
		b.WriteString(style.Width(inner).Render(truncate(line, inner)))
	}

	return panelStyle.Width(width).Height(height - 2).Render(b.String())
}

func (m Model) renderLogic(width, height int) string {
	inner := width - 4
	var b strings.Builder
	if m.viewErr != nil || m.logic == nil {
		b.WriteString(itemErrorStyle.Render(fmt.Sprintf("no logic view: %v", m.viewErr)))
		return panelStyle.Width(width).Height(height - 2).Render(b.String())
	}

	n := m.logic.Node
	b.WriteString(panelTitleStyle.Render(fmt.Sprintf("%s  %s  +%d -%d", n.Name, n.Relation, n.Added, n.Removed)))
	b.WriteString(badge(n.Comments))

	start, end := m.scroll, min(len(m.rows), m.scroll+m.bodyHeight())
	for i := start; i < end; i++ {
		b.WriteByte('\n')
		cursor := "  "
		if i == m.cursor {
			cursor = "▸ "
		}
		b.WriteString(cursor)
		if m.splitView {
			half := (inner - 5) / 2
			left, right := styleLineSplit(m.rows[i], half)
			b.WriteString(left)
			if right != "" {
				b.WriteString(" │ ")
				b.WriteString(right)
			}
		} else {
			b.WriteString(styleLine(m.rows[i], inner-2))
		}
	}

	return panelStyle.Width(width).Height(height - 2).Render(b.String())
}

func (m Model) renderStatusBar() string {
	level := m.nav.Level()
	left := fmt.Sprintf(" %s", level)
	if n := m.rowCount(); n > 0 {
		left += fmt.Sprintf("  %d/%d", m.cursor+1, n)
	}
	if m.loading {
		done := 0
		files := m.eng.Files()
		for _, fd := range files {
			if !m.eng.Pending(fd.Path) {
				done++
			}
		}
		left += fmt.Sprintf("  analyzing %d/%d", done, len(files))
	}
	if m.status != "" {
		if m.statusErr {
			left += "  " + statusErrStyle.Render(m.status)
		} else {
			left += "  " + m.status
		}
	}

	right := ""
	if level == model.Logic {
		mode := "unified"
		if m.splitView {
			mode = "split"
		}
		right = fmt.Sprintf("ctx %d  %s  ", m.ctxLines, mode)
	}
	right += statusKeyStyle.Render("?") + " help "

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 0 {
		gap = 0
	}

	return statusBarStyle.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}

func (m Model) renderHelp() string {
	var b strings.Builder

	b.WriteString(helpTitleStyle.Render("glim · Keyboard Shortcuts"))
	b.WriteString("\n")

	for _, k := range helpOrder {
		h := k.Help()
		b.WriteString(fmt.Sprintf("  %s  %s\n",
			helpKeyStyle.Width(12).Render(h.Key),
			h.Desc,
		))
	}

	b.WriteString("\n")
	b.WriteString(helpBarStyle.Render("Press ? to close help"))

	return b.String()
}

// Run starts the TUI application.
func Run(ctx context.Context, opts Options) error {
	p := tea.NewProgram(New(ctx, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
