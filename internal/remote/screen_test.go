package remote

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedRunner answers `screen -ls` from a queue of listings and records
// every other command.
type scriptedRunner struct {
	listings []string
	status   string
	cmds     []string
}

func (r *scriptedRunner) Run(ctx context.Context, cmd string) (Result, error) {
	r.cmds = append(r.cmds, cmd)
	switch {
	case strings.HasPrefix(cmd, "screen -ls"):
		if len(r.listings) == 0 {
			return Result{Stdout: "No Sockets found in /run/screen/S-root.\n"}, nil
		}
		out := r.listings[0]
		r.listings = r.listings[1:]
		return Result{Stdout: out}, nil
	case strings.HasPrefix(cmd, "cat "):
		return Result{Stdout: r.status}, nil
	}
	return Result{}, nil
}

const listing = `There are screens on:
	1234.sl2.nightly.tset	(Detached)
	5678.sl2.nightly.tset	(10/15/2026 09:12:01 AM)	(Detached)
	910.other	(Attached)
3 Sockets in /run/screen/S-root.
`

func TestParseScreenList(t *testing.T) {
	assert.Equal(t, []string{"1234.sl2.nightly.tset", "5678.sl2.nightly.tset"},
		parseScreenList(listing, "sl2.nightly.tset"))
	assert.Equal(t, []string{"910.other"}, parseScreenList(listing, "other"))
	assert.Empty(t, parseScreenList(listing, "sl2.nightly"))
	assert.Empty(t, parseScreenList("No Sockets found.\n", "other"))
}

func TestStartSessionCommand(t *testing.T) {
	cmd := startSessionCommand("sl2.x.tset", "python /b/mp/test_handle.py abc=")
	assert.Equal(t,
		`rm -f /tmp/sl2.x.tset.status && screen -d -m -S sl2.x.tset sh -c 'python /b/mp/test_handle.py abc=; echo $? > /tmp/sl2.x.tset.status'`,
		cmd)
}

func TestKillSessions(t *testing.T) {
	r := &scriptedRunner{listings: []string{listing}}

	n, err := killSessions(context.Background(), r, "sl2.nightly.tset")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Contains(t, r.cmds, "screen -S 1234.sl2.nightly.tset -X quit")
	assert.Contains(t, r.cmds, "screen -S 5678.sl2.nightly.tset -X quit")
}

func TestKillSessions_None(t *testing.T) {
	r := &scriptedRunner{}
	n, err := killSessions(context.Background(), r, "sl2.nightly.tset")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestWaitForSession(t *testing.T) {
	tests := []struct {
		name   string
		status string
		want   bool
	}{
		{"clean exit", "0\n", true},
		{"failed exit", "1\n", false},
		{"killed", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &scriptedRunner{listings: []string{listing, listing}, status: tt.status}
			ok, err := waitForSession(context.Background(), r, "sl2.nightly.tset", time.Millisecond)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
			assert.Empty(t, r.listings)
		})
	}
}

func TestWaitForSession_Cancelled(t *testing.T) {
	many := make([]string, 1000)
	for i := range many {
		many[i] = listing
	}
	r := &scriptedRunner{listings: many}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := waitForSession(ctx, r, "sl2.nightly.tset", 5*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestExitError(t *testing.T) {
	err := &ExitError{Host: "h1", Cmd: "false", Result: Result{ExitCode: 1, Stderr: "boom\n"}}
	assert.Equal(t, `h1: "false" exited with status 1: boom`, err.Error())
}
