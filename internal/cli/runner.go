package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Makepad-fr/tada/internal/api"
	"github.com/Makepad-fr/tada/internal/config"
	"github.com/Makepad-fr/tada/internal/devserver"
	"github.com/Makepad-fr/tada/internal/model"
	"github.com/Makepad-fr/tada/internal/store"
	"github.com/Makepad-fr/tada/internal/tui"
	"github.com/Makepad-fr/tada/internal/ui"
)

// Options tune output behavior from root flags.
type Options struct {
	Group  bool // list grouped by pending/done
	Config *config.Config
	Logger *slog.Logger
}

// Run dispatches subcommands and returns an exit code (0 ok, 1 error, 2 usage).
func Run(ctx context.Context, args []string, opt Options) int {
	if len(args) == 0 {
		PrintHelp()
		return 2
	}
	if opt.Config == nil {
		opt.Config = &config.Config{
			APIURL:    config.DefaultAPIURL,
			Timeout:   config.DefaultTimeout,
			ServeAddr: config.DefaultServeAddr,
			LogFile:   config.DefaultLogFile,
		}
	}
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}
	cmd, a := args[0], args[1:]

	switch cmd {
	case "help", "-h", "--help":
		PrintHelp()
		return 0

	case "ls":
		return withStore(opt, func(st *store.Store) int { return doList(ctx, st, opt) })

	case "stats":
		return withStore(opt, func(st *store.Store) int { return doStats(ctx, st) })

	case "tui":
		return doTUI(ctx, opt)

	case "add":
		if len(a) == 0 {
			ui.Fail("usage: tada add <title...>")
			return 2
		}
		return withStore(opt, func(st *store.Store) int { return doAdd(ctx, st, strings.Join(a, " ")) })

	case "done":
		if len(a) != 1 {
			ui.Fail("usage: tada done <id>")
			return 2
		}
		id, code := parseID("done", a[0])
		if code != 0 {
			return code
		}
		return withStore(opt, func(st *store.Store) int { return doToggle(ctx, st, id) })

	case "edit":
		if len(a) < 2 {
			ui.Fail("usage: tada edit <id> <title...>")
			return 2
		}
		id, code := parseID("edit", a[0])
		if code != 0 {
			return code
		}
		return withStore(opt, func(st *store.Store) int { return doEdit(ctx, st, id, strings.Join(a[1:], " ")) })

	case "rm":
		if len(a) != 1 {
			ui.Fail("usage: tada rm <id>")
			return 2
		}
		id, code := parseID("rm", a[0])
		if code != 0 {
			return code
		}
		return withStore(opt, func(st *store.Store) int { return doRemove(ctx, st, id) })

	case "serve":
		return doServe(ctx, opt)
	}

	ui.Fail("unknown subcommand: " + cmd)
	fmt.Fprintln(ui.Stderr)
	PrintHelp()
	return 2
}

func PrintHelp() {
	fmt.Fprint(ui.Stdout, `tada - a terminal client for a remote todo service

Usage:
  tada [flags] <subcommand> [args]

Subcommands:
  ls                 List todos (-group splits pending/done)
  tui                Interactive list (a add, e edit, space toggle, d delete)
  add <title...>     Add a new todo (title can be multiple words)
  done <id>          Toggle done for the todo with this id
  edit <id> <title>  Rename a todo
  rm <id>            Delete a todo
  stats              Print total / completed / remaining
  serve              Run an in-memory todo service for local development

Examples:
  tada add "Buy milk"
  tada ls
  tada done 2
  tada rm 3

Environment:
  TADA_API_URL (default http://localhost:3001), TADA_TIMEOUT, TADA_LOG_LEVEL,
  TADA_LOG_FILE, TADA_THEME, TADA_SERVE_ADDR. A .env file is read if present.
`)
}

// -------------- wiring ----------------

func newStore(opt Options, log *slog.Logger, extra ...store.Option) (*store.Store, error) {
	c, err := api.New(opt.Config.APIURL, api.WithTimeout(opt.Config.Timeout), api.WithLogger(log))
	if err != nil {
		return nil, err
	}
	return store.New(c, append([]store.Option{store.WithLogger(log)}, extra...)...), nil
}

func withStore(opt Options, fn func(*store.Store) int) int {
	st, err := newStore(opt, opt.Logger)
	if err != nil {
		ui.Fail("config: " + err.Error())
		return 2
	}
	return fn(st)
}

func parseID(cmd, s string) (int64, int) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id < 1 {
		ui.Fail(cmd + ": not a valid id: " + s)
		return 0, 2
	}
	return id, 0
}

// failed prints the store's message plus the underlying cause.
func failed(st *store.Store, err error) int {
	msg := st.Err()
	if msg == "" {
		msg = err.Error()
	}
	ui.Fail(msg)
	if errors.Is(err, store.ErrValidation) {
		return 2
	}
	ui.Hint(describe(err))
	if api.IsNotFound(err) {
		ui.Hint("Hint: run `tada ls` to see valid ids")
	}
	return 1
}

func describe(err error) string {
	var (
		re *api.ResponseError
		ne *api.NetworkError
	)
	switch {
	case errors.As(err, &re):
		return fmt.Sprintf("server responded %d", re.StatusCode)
	case errors.As(err, &ne):
		return "no response from server: " + ne.Err.Error()
	default:
		return err.Error()
	}
}

// -------------- subcommand impls ----------------

func doList(ctx context.Context, st *store.Store, opt Options) int {
	if err := st.Activate(ctx); err != nil {
		return failed(st, err)
	}
	snap := st.Snapshot()
	t := ui.Current()

	var lines []string
	lines = append(lines, ui.StatsHeader(snap.Stats))
	lines = append(lines, t.Muted.Render(ui.ProgressBar(snap.Stats.Completed, snap.Stats.Total, 28)))
	lines = append(lines, "")

	if opt.Group {
		lines = append(lines, groupLines(snap.Items)...)
	} else {
		lines = append(lines, flatLines(snap.Items)...)
	}
	lines = append(lines, "")
	lines = append(lines, t.Muted.Render("Tip: add with `tada add \"Buy milk\"`"))
	ui.Panel(lines)
	return 0
}

func doStats(ctx context.Context, st *store.Store) int {
	if err := st.Activate(ctx); err != nil {
		return failed(st, err)
	}
	s := st.Stats()
	fmt.Fprintf(ui.Stdout, "total: %d\ncompleted: %d\nremaining: %d\n", s.Total, s.Completed, s.Remaining)
	return 0
}

func doAdd(ctx context.Context, st *store.Store, title string) int {
	if err := st.Create(ctx, model.CreateRequest{Title: title}); err != nil {
		return failed(st, err)
	}
	ui.OK(fmt.Sprintf("added #%d", st.Items()[0].ID))
	return 0
}

func doToggle(ctx context.Context, st *store.Store, id int64) int {
	if err := st.Activate(ctx); err != nil {
		return failed(st, err)
	}
	if err := st.Toggle(ctx, id); err != nil {
		if errors.Is(err, store.ErrUnknownItem) {
			ui.Fail(fmt.Sprintf("no todo with id %d", id))
			ui.Hint("Hint: run `tada ls` to see valid ids")
			return 2
		}
		return failed(st, err)
	}
	it, _ := st.Find(id)
	if it.Completed {
		ui.OK(fmt.Sprintf("#%d done", id))
	} else {
		ui.OK(fmt.Sprintf("#%d reopened", id))
	}
	return 0
}

func doEdit(ctx context.Context, st *store.Store, id int64, title string) int {
	if err := st.Update(ctx, id, model.Rename(title)); err != nil {
		return failed(st, err)
	}
	ui.OK(fmt.Sprintf("renamed #%d", id))
	return 0
}

func doRemove(ctx context.Context, st *store.Store, id int64) int {
	if err := st.Delete(ctx, id); err != nil {
		return failed(st, err)
	}
	ui.OK(fmt.Sprintf("removed #%d", id))
	return 0
}

// doTUI hands the screen to Bubble Tea. Logs go to a file meanwhile.
func doTUI(ctx context.Context, opt Options) int {
	f, err := tea.LogToFile(opt.Config.LogFile, "tada")
	if err != nil {
		ui.Fail("log file: " + err.Error())
		return 1
	}
	defer f.Close()

	relay := &tui.Relay{}
	st, err := newStore(opt, opt.Config.NewLogger(f), store.WithOnChange(relay.Notify))
	if err != nil {
		ui.Fail("config: " + err.Error())
		return 2
	}
	if err := tui.Run(ctx, st, relay); err != nil {
		ui.Fail("tui: " + err.Error())
		return 1
	}
	return 0
}

func doServe(ctx context.Context, opt Options) int {
	srv := devserver.New(devserver.WithLogger(opt.Logger))
	ui.OK("serving todos on http://" + opt.Config.ServeAddr)
	if err := srv.Run(ctx, opt.Config.ServeAddr); err != nil {
		ui.Fail("serve: " + err.Error())
		return 1
	}
	return 0
}

// -------------- rendering helpers --------------

func flatLines(items []model.Item) []string {
	if len(items) == 0 {
		return []string{ui.Current().Muted.Render("no items")}
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, ui.ItemLine(it, 80))
	}
	return out
}

func groupLines(items []model.Item) []string {
	var pend, done []model.Item
	for _, it := range items {
		if it.Completed {
			done = append(done, it)
		} else {
			pend = append(pend, it)
		}
	}
	t := ui.Current()
	var lines []string
	lines = append(lines, t.Accent.Render("Pending"))
	if len(pend) == 0 {
		lines = append(lines, t.Muted.Render("(none)"))
	} else {
		lines = append(lines, flatLines(pend)...)
	}
	lines = append(lines, "")
	lines = append(lines, t.Accent.Render("Done"))
	if len(done) == 0 {
		lines = append(lines, t.Muted.Render("(none)"))
	} else {
		lines = append(lines, flatLines(done)...)
	}
	return lines
}
