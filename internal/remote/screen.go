package remote

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"al.essio.dev/pkg/shellescape"
)

// Detached sessions are GNU screen sessions. The command a session runs is
// wrapped so that its exit status lands in StatusFile(name) when it ends.

// StatusDir holds the exit status files of detached sessions.
const StatusDir = "/tmp"

// DefaultPollInterval is how often WaitForSession checks a session.
const DefaultPollInterval = 2 * time.Second

// runner is the part of a Transport the session helpers need.
type runner interface {
	Run(ctx context.Context, cmd string) (Result, error)
}

// StatusFile returns the path of the exit status file of a session.
func StatusFile(name string) string {
	return path.Join(StatusDir, name+".status")
}

func startSessionCommand(name, cmd string) string {
	status := shellescape.Quote(StatusFile(name))
	inner := fmt.Sprintf("%s; echo $? > %s", cmd, status)
	return fmt.Sprintf("rm -f %s && screen -d -m -S %s sh -c %s",
		status, shellescape.Quote(name), shellescape.Quote(inner))
}

// parseScreenList extracts the ids ("pid.name") of the sessions called name
// from `screen -ls` output.
func parseScreenList(out, name string) []string {
	var ids []string
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		pid, sess, ok := strings.Cut(fields[0], ".")
		if !ok || sess != name || !isDigits(pid) {
			continue
		}
		ids = append(ids, fields[0])
	}
	return ids
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func startSession(ctx context.Context, r runner, name, cmd string) error {
	_, err := r.Run(ctx, startSessionCommand(name, cmd))
	return err
}

func listSessions(ctx context.Context, r runner, name string) ([]string, error) {
	// screen -ls exits non-zero on some versions even when it lists sessions
	res, err := r.Run(ctx, "screen -ls 2>/dev/null || true")
	if err != nil {
		return nil, err
	}
	return parseScreenList(res.Stdout, name), nil
}

func killSessions(ctx context.Context, r runner, name string) (int, error) {
	ids, err := listSessions(ctx, r, name)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		if _, err := r.Run(ctx, "screen -S "+shellescape.Quote(id)+" -X quit"); err != nil {
			return 0, fmt.Errorf("killing session %s: %w", id, err)
		}
	}
	return len(ids), nil
}

func waitForSession(ctx context.Context, r runner, name string, poll time.Duration) (bool, error) {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		ids, err := listSessions(ctx, r, name)
		if err != nil {
			return false, err
		}
		if len(ids) == 0 {
			break
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-ticker.C:
		}
	}

	res, err := r.Run(ctx, "cat "+shellescape.Quote(StatusFile(name))+" 2>/dev/null || true")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(res.Stdout) == "0", nil
}
