package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Makepad-fr/tada/internal/model"
)

func TestProgressBar(t *testing.T) {
	require.Equal(t, "░░░░░   0%", ProgressBar(0, 0, 5))
	require.Equal(t, "██░░░  50%", ProgressBar(1, 2, 5))
	require.Equal(t, "█████ 100%", ProgressBar(3, 3, 1))
}

func TestItemLineMono(t *testing.T) {
	SetTheme("mono")
	t.Cleanup(func() { SetTheme("classic") })

	require.Equal(t, "[ ] Buy milk  #1", ItemLine(model.Item{ID: 1, Title: "Buy milk"}, 0))
	require.Equal(t, "[x] Buy...  #2", ItemLine(model.Item{ID: 2, Title: "Buy milk", Completed: true}, 6))
}

func TestStatsHeaderAndOutput(t *testing.T) {
	SetTheme("mono")
	t.Cleanup(func() { SetTheme("classic") })
	require.Equal(t, "Todos  x 1  - 2  Total 3", StatsHeader(model.Stats{Total: 3, Completed: 1, Remaining: 2}))

	var out, errOut bytes.Buffer
	oldOut, oldErr := Stdout, Stderr
	Stdout, Stderr = &out, &errOut
	t.Cleanup(func() { Stdout, Stderr = oldOut, oldErr })
	OK("added")
	Fail("nope")
	require.Equal(t, "x added\n", out.String())
	require.True(t, strings.HasSuffix(errOut.String(), "nope\n"))
}
