package tui

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/Makepad-fr/tada/internal/api"
	"github.com/Makepad-fr/tada/internal/devserver"
	"github.com/Makepad-fr/tada/internal/model"
	"github.com/Makepad-fr/tada/internal/store"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func newModel(t *testing.T, seed ...model.Item) (Model, *store.Store, *devserver.Server) {
	t.Helper()
	return newModelWith(t, nil, seed...)
}

// newModelWith is newModel with the service handler wrapped by wrap.
func newModelWith(t *testing.T, wrap func(http.Handler) http.Handler, seed ...model.Item) (Model, *store.Store, *devserver.Server) {
	t.Helper()
	ds := devserver.New(devserver.WithLogger(quiet))
	ds.Seed(seed...)
	h := ds.Handler()
	if wrap != nil {
		h = wrap(h)
	}
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)

	c, err := api.New(ts.URL, api.WithLogger(quiet))
	require.NoError(t, err)
	st := store.New(c, store.WithLogger(quiet))

	ctx := context.Background()
	m := New(ctx, st)
	m = step(t, m, tea.WindowSizeMsg{Width: 80, Height: 24})
	m = run(t, m, m.do("fetch", st.Activate))
	return m, st, ds
}

// step feeds msg to m and drops the returned command.
func step(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

// press feeds a key that starts a store operation, waits for it and feeds
// the result back. Keys that only move the cursor or edit text go through
// step, since their commands (cursor blink) block.
func press(t *testing.T, m Model, k tea.KeyMsg) Model {
	t.Helper()
	next, cmd := m.Update(k)
	return run(t, next.(Model), cmd)
}

func run(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	if cmd == nil {
		return m
	}
	if done, ok := cmd().(opDoneMsg); ok {
		return step(t, m, done)
	}
	return m
}

// unblock closes ch unless it is already closed.
func unblock(ch chan struct{}) {
	select {
	case <-ch:
	default:
		close(ch)
	}
}

func runes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

var (
	space = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	enter = tea.KeyMsg{Type: tea.KeyEnter}
)

func TestInitialFetchFillsList(t *testing.T) {
	m, _, _ := newModel(t, model.Item{ID: 1, Title: "Buy milk"}, model.Item{ID: 2, Title: "Walk dog"})
	require.False(t, m.loading)
	require.Len(t, m.list.Items(), 2)
	require.Contains(t, m.View(), "Walk dog")
}

func TestToggleSelected(t *testing.T) {
	m, st, ds := newModel(t, model.Item{ID: 1, Title: "Buy milk"})
	m = press(t, m, space)

	require.True(t, ds.Items()[0].Completed)
	require.Equal(t, model.Stats{Total: 1, Completed: 1}, st.Stats())
	it, ok := m.selected()
	require.True(t, ok)
	require.True(t, it.Completed)
}

func TestAddPrependsAndClosesInput(t *testing.T) {
	m, st, _ := newModel(t, model.Item{ID: 1, Title: "old"})

	m = step(t, m, runes("a"))
	require.True(t, m.adding)
	m = step(t, m, runes("Buy milk"))
	m = press(t, m, enter)

	require.False(t, m.adding)
	items := st.Items()
	require.Len(t, items, 2)
	require.Equal(t, "Buy milk", items[0].Title)
}

func TestBlankAddKeepsInputOpen(t *testing.T) {
	m, st, ds := newModel(t)

	m = step(t, m, runes("a"))
	m = step(t, m, runes("   "))
	m = press(t, m, enter)

	require.True(t, m.adding)
	require.Equal(t, store.MsgValidation, st.Err())
	require.Empty(t, ds.Items())
	require.Contains(t, m.View(), store.MsgValidation)

	m = step(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	require.False(t, m.adding)
}

func TestEditRenames(t *testing.T) {
	m, st, _ := newModel(t, model.Item{ID: 1, Title: "Buy"})

	m = step(t, m, runes("e"))
	require.True(t, m.editing)
	require.Equal(t, "Buy", m.ti.Value())
	m = step(t, m, runes(" milk"))
	m = press(t, m, enter)

	require.False(t, m.editing)
	it, ok := st.Find(1)
	require.True(t, ok)
	require.Equal(t, "Buy milk", it.Title)
}

func TestDeleteThenUndo(t *testing.T) {
	m, st, ds := newModel(t, model.Item{ID: 1, Title: "Buy milk"})

	m = press(t, m, runes("d"))
	require.Empty(t, st.Items())
	require.Empty(t, ds.Items())

	m = press(t, m, runes("u"))
	items := st.Items()
	require.Len(t, items, 1)
	require.Equal(t, "Buy milk", items[0].Title)
	require.NotEqual(t, int64(1), items[0].ID)
	require.Nil(t, m.undo)
}

func TestFailedDeleteShowsError(t *testing.T) {
	m, st, ds := newModel(t, model.Item{ID: 1, Title: "Buy milk"})

	// gone on the server, still listed locally
	ts := httptest.NewServer(ds.Handler())
	t.Cleanup(ts.Close)
	c, err := api.New(ts.URL, api.WithLogger(quiet))
	require.NoError(t, err)
	require.NoError(t, c.Delete(context.Background(), 1))

	m = press(t, m, runes("d"))
	require.Equal(t, store.MsgDelete, st.Err())
	require.Len(t, st.Items(), 1)
	require.Contains(t, m.View(), store.MsgDelete)
}

func TestFailedDeleteLeavesNothingToUndo(t *testing.T) {
	failDeletes := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodDelete {
				http.Error(w, `{"message":"boom"}`, http.StatusInternalServerError)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
	m, st, ds := newModelWith(t, failDeletes, model.Item{ID: 1, Title: "Buy milk"})

	m = press(t, m, runes("d"))
	require.Equal(t, store.MsgDelete, st.Err())
	require.Nil(t, m.undo)

	m = press(t, m, runes("u"))
	require.Len(t, ds.Items(), 1)
	require.Len(t, st.Items(), 1)
}

func TestKeysIgnoredWhileBusy(t *testing.T) {
	var deletes atomic.Int32
	release := make(chan struct{})
	holdDeletes := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodDelete {
				deletes.Add(1)
				<-release
			}
			next.ServeHTTP(w, r)
		})
	}
	m, st, ds := newModelWith(t, holdDeletes, model.Item{ID: 1, Title: "Buy milk"})
	t.Cleanup(func() { unblock(release) })

	next, cmd := m.Update(runes("d"))
	m = next.(Model)
	require.NotNil(t, cmd)
	done := make(chan tea.Msg, 1)
	go func() { done <- cmd() }()
	require.Eventually(t, st.Busy, time.Second, 5*time.Millisecond)

	for _, k := range []tea.KeyMsg{runes("d"), space, runes("u")} {
		next, cmd := m.Update(k)
		m = next.(Model)
		require.Nil(t, cmd, "key %q", k.String())
	}

	unblock(release)
	m = step(t, m, <-done)
	require.Equal(t, int32(1), deletes.Load())
	require.Empty(t, st.Err())
	require.Empty(t, ds.Items())
	require.NotNil(t, m.undo)
}

func TestBusyEnterKeepsInput(t *testing.T) {
	release := make(chan struct{})
	holdLists := func(next http.Handler) http.Handler {
		var calls atomic.Int32
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// let the initial fetch through, hold the refresh
			if r.Method == http.MethodGet && calls.Add(1) > 1 {
				<-release
			}
			next.ServeHTTP(w, r)
		})
	}
	m, st, ds := newModelWith(t, holdLists)
	t.Cleanup(func() { unblock(release) })

	done := make(chan error, 1)
	go func() { done <- st.Refresh(context.Background()) }()
	require.Eventually(t, st.Busy, time.Second, 5*time.Millisecond)

	m = step(t, m, runes("a"))
	m = step(t, m, runes("Buy milk"))
	next, cmd := m.Update(enter)
	m = next.(Model)
	require.Nil(t, cmd)
	require.True(t, m.adding)

	unblock(release)
	require.NoError(t, <-done)
	require.Empty(t, ds.Items())
}

func TestStoreChangeRedrawsList(t *testing.T) {
	m, st, _ := newModel(t)
	require.NoError(t, st.Create(context.Background(), model.CreateRequest{Title: "Buy milk"}))
	require.Empty(t, m.list.Items())

	m = step(t, m, changedMsg(st.Snapshot()))
	require.Len(t, m.list.Items(), 1)
	require.Contains(t, m.View(), "Buy milk")

	// a relay with no program attached drops notifications
	(&Relay{}).Notify(st.Snapshot())
}

func TestQuit(t *testing.T) {
	m, _, _ := newModel(t)
	_, cmd := m.Update(runes("q"))
	require.NotNil(t, cmd)
	require.IsType(t, tea.QuitMsg{}, cmd())
}
