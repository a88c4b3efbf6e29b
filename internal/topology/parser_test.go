package topology

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evalgo.org/tsuite/internal/paths"
	"evalgo.org/tsuite/models"
)

const sampleConf = `# SLASH2 bench configuration
set port=989;
set fsuuid="0x1cafe";
# clients = c1, c2 ;

site @BENCH {
	site_desc = "bench site";
	site_id = 0x2;

	resource mds0 {
		type = mds;
		id = 0;
		nids = 10.0.0.11@tcp0;
		jrnldev = %base%/data/jrnl;
	}

	resource ion0 {
		type = standalone_fs;
		id = 1;
		# zfspool = bench_pool /dev/sdb /dev/sdc
		# zfspath = /bench_pool
		# prefmds = mds0@BENCH
		fsroot = "/bench_pool";
		nids = 10.0.0.12@tcp0,
		       10.0.0.13@tcp0;
	}
}
`

func newTestParser(t *testing.T) *Parser {
	t.Helper()
	dirs := paths.BuildDirs("/tmp/sltest.42")
	require.NoError(t, paths.Resolve(dirs, nil))
	return NewParser(dirs, nil)
}

func TestParser_Sample(t *testing.T) {
	result, err := newTestParser(t).Parse(strings.NewReader(sampleConf))
	require.NoError(t, err)

	reg := result.Registry
	assert.Equal(t, 4, reg.Len())
	assert.Equal(t, []models.Kind{models.KindClient, models.KindMDS, models.KindION}, reg.Kinds())
	assert.Equal(t, "client:2, mds:1, ion:1", reg.Summary())

	mds := reg.ByKind(models.KindMDS)
	require.Len(t, mds, 1)
	assert.Equal(t, models.Resource{
		Name:   "mds0",
		Site:   "BENCH",
		Type:   "mds",
		Kind:   models.KindMDS,
		ID:     0,
		Host:   "10.0.0.11",
		SiteID: 2,
		FSUUID: "0x1cafe",
	}, mds[0])

	ion := reg.ByKind(models.KindION)
	require.Len(t, ion, 1)
	assert.Equal(t, models.Resource{
		Name:          "ion0",
		Site:          "BENCH",
		Type:          "standalone_fs",
		Kind:          models.KindION,
		ID:            1,
		Host:          "10.0.0.12",
		SiteID:        2,
		FSUUID:        "0x1cafe",
		PoolName:      "bench_pool",
		PoolArgs:      "/dev/sdb /dev/sdc",
		PoolCachePath: "/tmp/sltest.42/bench_pool.zcf",
		PoolPath:      "/bench_pool",
		PreferredMDS:  "mds0@BENCH",
		FSRoot:        "/bench_pool",
	}, ion[0])

	assert.Equal(t, []string{"c1", "c2", "10.0.0.11", "10.0.0.12"}, reg.Hosts())
}

func TestParser_RewritesPlaceholders(t *testing.T) {
	result, err := newTestParser(t).Parse(strings.NewReader(sampleConf))
	require.NoError(t, err)

	cfg := string(result.Config)
	assert.True(t, strings.HasPrefix(cfg, Header))
	assert.Contains(t, cfg, "jrnldev = /tmp/sltest.42/data/jrnl;")
	assert.NotContains(t, cfg, "%base%")
	// continuation lines of a nids directive are kept
	assert.Contains(t, cfg, "10.0.0.13@tcp0;")
}

func TestParser_RoundTripWithoutPlaceholders(t *testing.T) {
	in := "set fsuuid=\"0x1\";\n# clients = h1;\nsite @S {\n\tsite_id = 1;\n}\nno trailing newline"
	result, err := newTestParser(t).Parse(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, Header+in, string(result.Config))
}

func TestParser_Clients(t *testing.T) {
	result, err := newTestParser(t).Parse(strings.NewReader("# clients = h1, h2;\n"))
	require.NoError(t, err)

	clients := result.Registry.ByKind(models.KindClient)
	require.Len(t, clients, 2)
	assert.Equal(t, "h1", clients[0].Host)
	assert.Equal(t, "h2", clients[1].Host)
	assert.Equal(t, "client", clients[0].Type)
	assert.Empty(t, clients[0].Site)
}

func TestParser_ClientsOnlyAtTopLevel(t *testing.T) {
	in := "site @S {\n# clients = h1;\n}\n"
	result, err := newTestParser(t).Parse(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, 0, result.Registry.Len())
}

func TestParser_NIDsSingleAndMultiLine(t *testing.T) {
	tmpl := "set fsuuid=\"0x1\";\nsite @S {\nsite_id = 1;\nresource r {\ntype = mds;\nid = 0;\n%s\n}\n}\n"

	single := strings.Replace(tmpl, "%s", "nids = n1@site1, n2@site2;", 1)
	multi := strings.Replace(tmpl, "%s", "nids = n1@site1,\n   n2@site2;", 1)
	leading := strings.Replace(tmpl, "%s", "nids =\n   n1@site1,\n   n2@site2;", 1)

	for name, in := range map[string]string{"single": single, "multi": multi, "leading": leading} {
		t.Run(name, func(t *testing.T) {
			result, err := newTestParser(t).Parse(strings.NewReader(in))
			require.NoError(t, err)
			mds := result.Registry.ByKind(models.KindMDS)
			require.Len(t, mds, 1)
			assert.Equal(t, "n1", mds[0].Host)

			// continuation lines reach the rewritten config exactly once
			assert.Equal(t, Header+in, string(result.Config))
		})
	}
}

func TestParser_NIDsContinuationIsSubstituted(t *testing.T) {
	in := "set fsuuid=\"0x1\";\nsite @S {\nsite_id = 1;\nresource r {\ntype = mds;\nid = 0;\nnids = n1@site1,\n   %base%;\n}\n}\n"
	result, err := newTestParser(t).Parse(strings.NewReader(in))
	require.NoError(t, err)
	assert.Contains(t, string(result.Config), "nids = n1@site1,\n   /tmp/sltest.42;\n}\n")
	assert.Equal(t, 1, strings.Count(string(result.Config), "/tmp/sltest.42;"))
}

func TestParser_UnterminatedNIDs(t *testing.T) {
	in := "site @S {\nresource r {\nnids = n1@s,\n n2@s\n"
	_, err := newTestParser(t).Parse(strings.NewReader(in))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnterminatedDirective))

	var le *LineError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, 3, le.Line)
	assert.Equal(t, "nids = n1@s,", le.Text)
}

func TestParser_UnclosedResourceIsFatal(t *testing.T) {
	in := "set fsuuid=\"0x1\";\nsite @S {\nsite_id = 1;\nresource mds0 {\ntype = mds;\nid = 0;\nnids = m1@tcp;\n"
	result, err := newTestParser(t).Parse(strings.NewReader(in))
	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrIncompleteResource)

	var le *LineError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, 4, le.Line)
	assert.Equal(t, "resource mds0 {", le.Text)
	assert.Contains(t, err.Error(), `"mds0"`)
}

func TestParser_MissingTypeAborts(t *testing.T) {
	in := "set fsuuid=\"0x1\";\nsite @S {\nsite_id = 1;\nresource r {\nid = 0;\nnids = n1@s;\n}\n}\n"
	result, err := newTestParser(t).Parse(strings.NewReader(in))
	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrIncompleteResource)

	var ie *IncompleteError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, []string{FieldType}, ie.Missing)
}

func TestParser_MissingSiteIDAborts(t *testing.T) {
	in := "set fsuuid=\"0x1\";\nsite @S {\nresource r {\ntype = mds;\nid = 0;\nnids = n1@s;\n}\n}\n"
	_, err := newTestParser(t).Parse(strings.NewReader(in))
	assert.ErrorIs(t, err, ErrIncompleteResource)
}

func TestParser_UnknownType(t *testing.T) {
	in := "site @S {\nsite_id = 1;\nresource r {\ntype = tape;\nid = 0;\nnids = n1@s;\n}\n}\n"
	_, err := newTestParser(t).Parse(strings.NewReader(in))
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestParser_MultipleSites(t *testing.T) {
	in := `set fsuuid="0x1";
site @A {
	site_id = 1;
	resource m {
		type = mds;
		id = 0;
		nids = a1@tcp;
	}
}
site @B {
	site_id = 0x10;
	resource i {
		type = parallel_lfs;
		id = 3;
		nids = b1@tcp;
	}
}
`
	result, err := newTestParser(t).Parse(strings.NewReader(in))
	require.NoError(t, err)

	ion := result.Registry.ByKind(models.KindION)
	require.Len(t, ion, 1)
	assert.Equal(t, "B", ion[0].Site)
	assert.Equal(t, uint64(16), ion[0].SiteID)
}

func TestParser_AmbiguousRuleTable(t *testing.T) {
	p := newTestParser(t)
	p.rules = append(append([]rule{}, rules...), rules[ruleType])

	_, err := p.Parse(strings.NewReader("site @S {\nresource r {\ntype = mds;\n"))
	assert.ErrorIs(t, err, ErrAmbiguousLine)
}

func TestParser_ParseFileMissing(t *testing.T) {
	_, err := newTestParser(t).ParseFile(filepath.Join(t.TempDir(), "nope.conf"))
	assert.Error(t, err)
}

func TestWriteArtifact(t *testing.T) {
	base := t.TempDir()
	path, err := WriteArtifact(base, []byte(Header+"x\n"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, ArtifactName), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, Header+"x\n", string(data))
}

func TestRulesAreDisjoint(t *testing.T) {
	lines := []string{
		"# clients = a, b;",
		"type = mds;",
		"id = 4;",
		"# zfspool = p /dev/sda",
		"# zfspath = /p",
		"# prefmds = m@S",
		`set fsuuid = "0x12ab";`,
		"fsroot = /p;",
		"nids = a@tcp;",
		"resource r {",
		"}",
		"site @S {",
		"site_id = 0x1;",
	}
	for _, line := range lines {
		assert.Len(t, matchLine(rules, line), 1, "line %q", line)
	}
}
