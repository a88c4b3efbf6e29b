package suite

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evalgo.org/tsuite/internal/config"
	"evalgo.org/tsuite/internal/paths"
	"evalgo.org/tsuite/internal/remote/remotetest"
	"evalgo.org/tsuite/internal/testrun"
	"evalgo.org/tsuite/internal/topology"
	"evalgo.org/tsuite/models"
)

const benchConf = `set fsuuid="0x1cafe";
# clients = c1, c2;

site @BENCH {
	site_id = 0x2;

	resource mds0 {
		type = mds;
		id = 0;
		nids = m1@tcp0;
		jrnldev = %base%/data/jrnl;
	}
}
`

type fixture struct {
	cfg   *config.Config
	fleet *remotetest.Fleet
	suite *Suite
}

func write(t *testing.T, p, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
}

func newFixture(t *testing.T, conf string) *fixture {
	t.Helper()

	dir := t.TempDir()
	write(t, filepath.Join(dir, "slash.conf"), conf)
	write(t, filepath.Join(dir, "tests", "io_basic.py"), "pass\n")
	write(t, filepath.Join(dir, "handlers", "test_handle.py"), "pass\n")

	cfg, err := config.Defaults()
	require.NoError(t, err)
	cfg.TSuite.RootDir = filepath.Join(dir, "root")
	cfg.Slash2.Conf = filepath.Join(dir, "slash.conf")
	cfg.Source.SrcRoot = "/src"
	cfg.Tests.TsetDir = filepath.Join(dir, "tests")
	cfg.Tests.TsetName = "bench"
	cfg.Tests.Handler = filepath.Join(dir, "handlers", "test_handle.py")

	fleet := remotetest.NewFleet()
	s, err := New(cfg, fleet, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Shutdown() })

	return &fixture{cfg: cfg, fleet: fleet, suite: s}
}

func (f *fixture) writesResults(pass bool) func(h *remotetest.Host, name, cmd string) {
	return func(h *remotetest.Host, name, cmd string) {
		res := models.ClientResults{Tests: []models.TestResult{{
			Name:    "io_basic.py",
			Setup:   models.PhaseResult{Pass: true},
			Operate: models.PhaseResult{Pass: pass, Elapsed: 1.5},
			Cleanup: models.PhaseResult{Pass: true},
		}}}
		data, _ := json.Marshal(res)
		h.Files[path.Join(f.suite.Dirs()[paths.Mount], "results.json")] = data
	}
}

func TestNew_RequiresArguments(t *testing.T) {
	_, err := New(nil, remotetest.NewFleet(), nil)
	assert.Error(t, err)

	cfg, err := config.Defaults()
	require.NoError(t, err)
	_, err = New(cfg, nil, nil)
	assert.Error(t, err)
}

func TestSetup(t *testing.T) {
	f := newFixture(t, benchConf)

	require.NoError(t, f.suite.Setup(context.Background()))

	env := f.suite.Env()
	require.NotNil(t, env)
	assert.DirExists(t, env.Dirs[paths.Mount])
	assert.Equal(t, "client:2, mds:1", f.suite.Registry().Summary())

	artifact := filepath.Join(env.Base, topology.ArtifactName)
	assert.Equal(t, artifact, f.suite.ConfigPath())
	data, err := os.ReadFile(artifact)
	require.NoError(t, err)
	assert.Contains(t, string(data), "jrnldev = "+env.Base+"/data/jrnl;")

	for _, host := range []string{"c1", "c2", "m1"} {
		h := f.fleet.Host(host)
		assert.True(t, h.Dirs[env.Dirs[paths.DataDir]], "host %s", host)
		assert.Equal(t, data, h.Files[artifact], "host %s", host)
		assert.Contains(t, h.Commands, "sudo chmod -R 777 "+env.Base)
	}
	// one pooled connection per host
	assert.Equal(t, 1, f.fleet.Host("m1").Dials)
}

func TestSetup_UnreachableHostIsSkipped(t *testing.T) {
	f := newFixture(t, benchConf)
	f.fleet.Host("c2").Unreachable = true

	require.NoError(t, f.suite.Setup(context.Background()))

	assert.Empty(t, f.fleet.Host("c2").Files)
	assert.NotEmpty(t, f.fleet.Host("c1").Files)
	assert.NotEmpty(t, f.fleet.Host("m1").Files)
}

func TestSetup_MkdirFailureSkipsConfigCopy(t *testing.T) {
	f := newFixture(t, benchConf)
	f.fleet.Host("m1").Fail[remotetest.OpMkdir] = errors.New("read-only file system")

	require.NoError(t, f.suite.Setup(context.Background()))
	assert.Empty(t, f.fleet.Host("m1").Files)
}

func TestSetup_IncompleteResourceIsFatal(t *testing.T) {
	conf := strings.Replace(benchConf, "\t\ttype = mds;\n", "", 1)
	f := newFixture(t, conf)

	err := f.suite.Setup(context.Background())
	require.Error(t, err)

	var fe *FatalError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "configuration parse", fe.Phase)
	assert.ErrorIs(t, err, topology.ErrIncompleteResource)
	assert.Nil(t, f.suite.Registry())
}

func TestSetup_MissingConfIsFatal(t *testing.T) {
	f := newFixture(t, benchConf)
	f.cfg.Slash2.Conf = filepath.Join(t.TempDir(), "missing.conf")

	var fe *FatalError
	assert.True(t, errors.As(f.suite.Setup(context.Background()), &fe))
}

func TestRunTests(t *testing.T) {
	f := newFixture(t, benchConf)
	require.NoError(t, f.suite.Setup(context.Background()))

	f.fleet.Host("c1").OnSession = f.writesResults(true)
	f.fleet.Host("c2").OnSession = f.writesResults(false)

	run, err := f.suite.RunTests(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sl2.bench.tset", run.Session)
	assert.Len(t, run.Results, 2)
	assert.NoError(t, run.Err())

	// tests never reach the metadata server
	assert.Empty(t, f.fleet.Host("m1").Sessions)

	store := &memStore{}
	rep, err := f.suite.StoreReport(context.Background(), store, run)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.RunID)
	assert.Equal(t, "bench", rep.RunName)
	assert.Equal(t, 2, rep.TotalTests)
	assert.Equal(t, 1, rep.FailedTests)
	assert.Len(t, store.saved, 1)
}

func TestRunTests_NoReachableClientAborts(t *testing.T) {
	f := newFixture(t, benchConf)
	require.NoError(t, f.suite.Setup(context.Background()))
	f.fleet.Host("c1").Unreachable = true
	f.fleet.Host("c2").Unreachable = true
	require.NoError(t, f.suite.pool.Remove("c1"))
	require.NoError(t, f.suite.pool.Remove("c2"))

	_, err := f.suite.RunTests(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, testrun.ErrNoClients)

	var fe *FatalError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "test run", fe.Phase)
	assert.Error(t, fe.Shutdown)

	// daemons on the reachable server were stopped
	assert.Contains(t, f.fleet.Host("m1").Commands, "sudo pkill -f slashd")
}

func TestRunTests_NotLoaded(t *testing.T) {
	f := newFixture(t, benchConf)
	_, err := f.suite.RunTests(context.Background())
	assert.ErrorIs(t, err, ErrNotLoaded)

	_, err = f.suite.Status(context.Background())
	assert.ErrorIs(t, err, ErrNotLoaded)
}

func TestLoad_IsSideEffectFree(t *testing.T) {
	f := newFixture(t, benchConf)

	require.NoError(t, f.suite.Load("/tmp/sltest.7"))
	assert.Equal(t, "/tmp/sltest.7/mp", f.suite.Dirs()[paths.Mount])
	assert.Equal(t, "/src/slash_nara/slmctl/slmctl", f.suite.SrcDirs()["slmctl"])
	assert.NoDirExists(t, f.cfg.TSuite.RootDir)
	assert.Zero(t, f.fleet.Host("m1").Dials)
	assert.Contains(t, string(f.suite.Config()), "jrnldev = /tmp/sltest.7/data/jrnl;")
}

func TestStatus(t *testing.T) {
	f := newFixture(t, benchConf)
	require.NoError(t, f.suite.Load("/tmp/sltest.7"))
	f.fleet.Host("c2").Unreachable = true

	rep, err := f.suite.Status(context.Background())
	require.NoError(t, err)

	total, failed := rep.Hosts()
	assert.Equal(t, 3, total)
	assert.Equal(t, 1, failed)
	assert.Contains(t, f.fleet.Host("m1").Commands, "/src/slash_nara/slmctl/slmctl -sconnections")
}

func TestStatus_RedialsAfterBrokenConnection(t *testing.T) {
	f := newFixture(t, benchConf)
	require.NoError(t, f.suite.Load("/tmp/sltest.7"))
	m1 := f.fleet.Host("m1")
	m1.Fail[remotetest.OpRun] = errors.New("connection reset by peer")

	rep, err := f.suite.Status(context.Background())
	require.NoError(t, err)
	for name, cr := range rep[models.KindMDS][0].Reports {
		assert.NotEmpty(t, cr.Error, name)
	}

	delete(m1.Fail, remotetest.OpRun)
	rep, err = f.suite.Status(context.Background())
	require.NoError(t, err)
	for name, cr := range rep[models.KindMDS][0].Reports {
		assert.Empty(t, cr.Error, name)
	}

	assert.Equal(t, 2, m1.Dials)
	assert.Equal(t, 2, m1.Closes)
}

func TestStatus_DoesNotReusePooledConnections(t *testing.T) {
	f := newFixture(t, benchConf)
	require.NoError(t, f.suite.Setup(context.Background()))
	require.Equal(t, 1, f.fleet.Host("m1").Dials)

	_, err := f.suite.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, f.fleet.Host("m1").Dials)
	assert.Equal(t, 1, f.fleet.Host("m1").Closes)
}

func TestStopDaemons(t *testing.T) {
	f := newFixture(t, benchConf)
	require.NoError(t, f.suite.Load("/tmp/sltest.7"))

	require.NoError(t, f.suite.StopDaemons(context.Background()))
	assert.Contains(t, f.fleet.Host("c1").Commands, "sudo umount -l /tmp/sltest.7/mp; sudo pkill -f mount_slash")
	assert.Contains(t, f.fleet.Host("m1").Commands, "sudo pkill -f slashd")
}

func TestFatalError(t *testing.T) {
	cause := errors.New("boom")
	err := &FatalError{Phase: "setup", Err: cause}
	assert.Equal(t, "fatal error during setup: boom", err.Error())
	assert.ErrorIs(t, err, cause)
}

type memStore struct {
	mu    sync.Mutex
	saved []*models.RunReport
}

func (m *memStore) LatestRunID(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	latest := 0
	for _, r := range m.saved {
		latest = max(latest, r.RunID)
	}
	return latest, nil
}

func (m *memStore) Save(ctx context.Context, r *models.RunReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, r)
	return nil
}

func (m *memStore) Close() error { return nil }
