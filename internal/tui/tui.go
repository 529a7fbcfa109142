package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Makepad-fr/tada/internal/model"
	"github.com/Makepad-fr/tada/internal/store"
	"github.com/Makepad-fr/tada/internal/ui"
)

// listItem adapts model.Item to bubbles/list.Item
type listItem struct{ model.Item }

func (i listItem) Title() string       { return i.Item.Title }
func (i listItem) Description() string { return i.DescriptionText() }
func (i listItem) FilterValue() string { return i.Item.Title }

// Custom delegate to control how items render (single line)
type itemDelegate struct{}

func (d itemDelegate) Height() int                               { return 1 }
func (d itemDelegate) Spacing() int                              { return 0 }
func (d itemDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }
func (d itemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(listItem)
	if !ok {
		return
	}
	prefix := "  "
	if index == m.Index() {
		prefix = ui.Current().Selected.Render(">") + " "
	}
	fmt.Fprint(w, prefix+ui.ItemLine(it.Item, m.Width()-8))
}

// opDoneMsg is sent when a store operation settles. item is the todo the
// operation acted on, when there is one.
type opDoneMsg struct {
	op   string
	item model.Item
	err  error
}

// changedMsg carries the store state after a transition.
type changedMsg store.Snapshot

// Relay forwards store transitions to a running program so the view redraws
// as soon as an operation starts or settles. Register Notify with
// store.WithOnChange and hand the relay to Run.
type Relay struct {
	p *tea.Program
}

// Notify is a no-op until Run has attached a program.
func (r *Relay) Notify(snap store.Snapshot) {
	if r.p != nil {
		r.p.Send(changedMsg(snap))
	}
}

type Model struct {
	ctx   context.Context
	store *store.Store

	list    list.Model
	spin    spinner.Model
	ti      textinput.Model // shared text input model (used for add & edit)
	width   int
	height  int
	loading bool // initial fetch still running

	adding  bool
	editing bool
	editID  int64

	// Undo support (single-level): re-creates the last todo whose delete
	// succeeded.
	undo *model.Item
}

var (
	addBind     = key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add"))
	editBind    = key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit"))
	toggleBind  = key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "toggle"))
	deleteBind  = key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete"))
	undoBind    = key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "undo"))
	refreshBind = key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh"))
)

// New builds the model. The first fetch runs from Init.
func New(ctx context.Context, st *store.Store) Model {
	l := list.New(nil, itemDelegate{}, 0, 0)
	l.SetShowHelp(true)
	l.SetShowPagination(true)
	l.SetShowStatusBar(true)
	l.SetShowTitle(false)
	l.SetFilteringEnabled(true)
	l.Styles.HelpStyle = ui.Current().Muted
	l.Styles.PaginationStyle = ui.Current().Muted
	l.FilterInput.Prompt = "/ "
	l.SetStatusBarItemName("todo", "todos")

	binds := func() []key.Binding {
		return []key.Binding{addBind, editBind, toggleBind, deleteBind, undoBind, refreshBind}
	}
	l.AdditionalShortHelpKeys = binds
	l.AdditionalFullHelpKeys = binds

	ti := textinput.New()
	ti.Prompt = "> "
	ti.CharLimit = 200

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		ctx:     ctx,
		store:   st,
		list:    l,
		spin:    sp,
		ti:      ti,
		width:   80,
		height:  24,
		loading: true,
	}
}

// Run starts the Bubble Tea program and blocks until the user quits.
// relay may be nil.
func Run(ctx context.Context, st *store.Store, relay *Relay) error {
	p := tea.NewProgram(New(ctx, st), tea.WithAltScreen(), tea.WithContext(ctx))
	if relay != nil {
		relay.p = p
	}
	_, err := p.Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, m.do("fetch", m.store.Activate))
}

// do runs fn off the UI goroutine and reports back with opDoneMsg.
func (m Model) do(op string, fn func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return opDoneMsg{op: op, err: fn(ctx)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case opDoneMsg:
		return m.settled(msg)

	case changedMsg:
		cmd := m.reload()
		return m, cmd
	}

	if m.adding || m.editing {
		return m.updateInput(msg)
	}

	if km, ok := msg.(tea.KeyMsg); ok && m.list.FilterState() != list.Filtering {
		if next, cmd, handled := m.handleKey(km); handled {
			return next, cmd
		}
	}
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd, bool) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit, true
	case "esc":
		if m.list.FilterState() == list.FilterApplied {
			return m, nil, false
		}
		return m, tea.Quit, true
	case " ":
		it, ok := m.selected()
		if !ok || m.store.Busy() {
			return m, nil, true
		}
		id := it.ID
		return m, m.do("toggle", func(ctx context.Context) error { return m.store.Toggle(ctx, id) }), true
	case "d":
		it, ok := m.selected()
		if !ok || m.store.Busy() {
			return m, nil, true
		}
		ctx, st := m.ctx, m.store
		return m, func() tea.Msg {
			return opDoneMsg{op: "delete", item: it, err: st.Delete(ctx, it.ID)}
		}, true
	case "u":
		if m.undo == nil || m.store.Busy() {
			return m, nil, true
		}
		req := model.CreateRequest{Title: m.undo.Title, Description: m.undo.Description}
		m.undo = nil
		return m, m.do("undo", func(ctx context.Context) error { return m.store.Create(ctx, req) }), true
	case "r":
		return m, m.do("fetch", m.store.Refresh), true
	case "a":
		m.adding = true
		m.ti.SetValue("")
		m.ti.Placeholder = "New todo title..."
		m.resize()
		cmd := m.ti.Focus()
		return m, cmd, true
	case "e":
		it, ok := m.selected()
		if !ok {
			return m, nil, true
		}
		m.editing = true
		m.editID = it.ID
		m.ti.SetValue(it.Title)
		m.ti.CursorEnd()
		m.ti.Placeholder = "Edit todo title..."
		m.resize()
		cmd := m.ti.Focus()
		return m, cmd, true
	}
	return m, nil, false
}

func (m Model) updateInput(msg tea.Msg) (tea.Model, tea.Cmd) {
	if km, ok := msg.(tea.KeyMsg); ok {
		switch km.String() {
		case "enter":
			if m.store.Busy() {
				return m, nil
			}
			title := m.ti.Value()
			if m.adding {
				return m, m.do("create", func(ctx context.Context) error {
					return m.store.Create(ctx, model.CreateRequest{Title: title})
				})
			}
			id := m.editID
			return m, m.do("edit", func(ctx context.Context) error {
				return m.store.Update(ctx, id, model.Rename(title))
			})
		case "esc":
			return m.closeInput(), nil
		}
	}
	var cmd tea.Cmd
	m.ti, cmd = m.ti.Update(msg)
	return m, cmd
}

// settled refreshes the list from the store. The input bar stays open
// until its operation succeeds, so a failed save can be retried.
func (m Model) settled(msg opDoneMsg) (tea.Model, tea.Cmd) {
	if msg.op == "fetch" {
		m.loading = false
	}
	if msg.err == nil {
		switch {
		case msg.op == "create" && m.adding, msg.op == "edit" && m.editing:
			m = m.closeInput()
		case msg.op == "delete":
			it := msg.item
			m.undo = &it
		}
	}
	cmd := m.reload()
	return m, cmd
}

func (m Model) closeInput() Model {
	m.adding, m.editing = false, false
	m.ti.SetValue("")
	m.ti.Blur()
	m.resize()
	return m
}

func (m *Model) reload() tea.Cmd {
	items := m.store.Items()
	li := make([]list.Item, 0, len(items))
	for _, it := range items {
		li = append(li, listItem{it})
	}
	return m.list.SetItems(li)
}

func (m Model) selected() (model.Item, bool) {
	it, ok := m.list.SelectedItem().(listItem)
	if !ok {
		return model.Item{}, false
	}
	return it.Item, true
}

func (m *Model) resize() {
	h := m.height - 6
	if m.adding || m.editing {
		h -= 4
	}
	if h < 3 {
		h = 3
	}
	m.list.SetSize(m.width-4, h)
}

func (m Model) View() string {
	snap := m.store.Snapshot()
	t := ui.Current()

	header := ui.StatsHeader(snap.Stats)
	if snap.Busy {
		header += "  " + m.spin.View()
	}
	lines := []string{header, t.Muted.Render(ui.ProgressBar(snap.Stats.Completed, snap.Stats.Total, 28))}
	if snap.Err != "" {
		lines = append(lines, t.Error.Render("error: "+snap.Err))
	}

	switch {
	case m.loading && len(snap.Items) == 0:
		lines = append(lines, "", t.Muted.Render("loading..."))
	case len(snap.Items) == 0 && !m.adding:
		lines = append(lines, "", t.Muted.Render("no todos yet, press a to add one"))
	default:
		lines = append(lines, m.list.View())
	}

	if m.adding || m.editing {
		title := "Add new todo"
		if m.editing {
			title = "Edit todo"
		}
		bar := lipgloss.NewStyle().Border(t.Border).BorderForeground(t.BorderColor).Padding(0, 1)
		lines = append(lines, bar.Render(title+"\n"+m.ti.View()))
	}
	return ui.Frame(strings.Join(lines, "\n"))
}
