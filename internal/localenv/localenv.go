// Package localenv creates the private build root a harness run works in.
//
// Every run gets its own randomly named directory below the configured root
// (sltest.<n>) holding the standard build layout. The same layout is later
// replicated on every remote host at identical paths.
package localenv

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gofrs/flock"
	"github.com/mitchellh/go-homedir"

	"evalgo.org/tsuite/internal/paths"
)

const (
	// Prefix is the name prefix of every build root.
	Prefix = "sltest."

	// LockName is the lock file guarding build root creation under a root dir.
	LockName = ".tsuite.lock"

	maxID       = 1 << 24
	maxAttempts = 32
)

// ErrNoFreeName means no unused build root name was found within the
// attempt limit.
var ErrNoFreeName = errors.New("no free build root name")

// Env is a created build root.
type Env struct {
	// ID is the random number in the directory name
	ID int

	// Base is the absolute path of the build root
	Base string

	// Dirs is the resolved build directory table
	Dirs paths.Table
}

// Builder creates build roots below RootDir.
type Builder struct {
	RootDir string

	// Mode is applied recursively to the created tree. Zero means 0777.
	Mode fs.FileMode

	// LockTimeout bounds the wait for the root lock. Zero means 30s.
	LockTimeout time.Duration

	Logger *slog.Logger

	// randID returns candidate ids; tests replace it
	randID func() int
}

// NewBuilder returns a Builder for rootDir.
func NewBuilder(rootDir string, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		RootDir: rootDir,
		Logger:  logger.With("component", "localenv"),
	}
}

func (b *Builder) nextID() int {
	if b.randID != nil {
		return b.randID()
	}
	return rand.IntN(maxID-1) + 1
}

// Create picks an unused name, creates the build layout and loosens its
// permissions. The root lock is held for the whole operation so concurrent
// harness runs on one machine never pick the same directory.
func (b *Builder) Create(ctx context.Context) (*Env, error) {
	root, err := homedir.Expand(b.RootDir)
	if err != nil {
		return nil, fmt.Errorf("expanding root dir %q: %w", b.RootDir, err)
	}
	root, err = filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving root dir %q: %w", b.RootDir, err)
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("creating root dir: %w", err)
	}

	unlock, err := b.lock(ctx, root)
	if err != nil {
		return nil, err
	}
	defer unlock()

	id, base, err := b.pickName(root)
	if err != nil {
		return nil, err
	}

	dirs := paths.BuildDirs(base)
	if err := paths.Resolve(dirs, nil); err != nil {
		return nil, fmt.Errorf("resolving build dirs: %w", err)
	}

	for _, key := range dirs.Keys() {
		if err := os.MkdirAll(dirs[key], 0755); err != nil {
			return nil, fmt.Errorf("creating %s dir: %w", key, err)
		}
	}

	mode := b.Mode
	if mode == 0 {
		mode = 0777
	}
	if err := chmodTree(base, mode); err != nil {
		return nil, err
	}

	b.Logger.Info("build root created", "base", base)

	return &Env{ID: id, Base: base, Dirs: dirs}, nil
}

func (b *Builder) lock(ctx context.Context, root string) (func(), error) {
	timeout := b.LockTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	fl := flock.New(filepath.Join(root, LockName))
	ok, err := fl.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("locking root dir %s: %w", root, err)
	}
	if !ok {
		return nil, fmt.Errorf("locking root dir %s: lock held elsewhere", root)
	}
	return func() {
		if err := fl.Unlock(); err != nil {
			b.Logger.Warn("failed to release root lock", "error", err)
		}
	}, nil
}

func (b *Builder) pickName(root string) (int, string, error) {
	for range maxAttempts {
		id := b.nextID()
		base := filepath.Join(root, Prefix+strconv.Itoa(id))
		_, err := os.Stat(base)
		if errors.Is(err, fs.ErrNotExist) {
			return id, base, nil
		}
		if err != nil {
			return 0, "", fmt.Errorf("checking %s: %w", base, err)
		}
		b.Logger.Debug("build root name taken", "base", base)
	}
	return 0, "", fmt.Errorf("%w after %d attempts in %s", ErrNoFreeName, maxAttempts, root)
}

func chmodTree(base string, mode fs.FileMode) error {
	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		return os.Chmod(path, mode)
	})
	if err != nil {
		return fmt.Errorf("changing permissions of %s: %w", base, err)
	}
	return nil
}

// Remove deletes the build root.
func (e *Env) Remove() error {
	return os.RemoveAll(e.Base)
}
