// Package topology parses an annotated SLASH2 configuration into the set of
// cluster members the harness drives, and rewrites the configuration with
// resolved build paths so it can be deployed unchanged to every host.
//
// # Grammar
//
// Besides the native slash2 directives (`set fsuuid`, `site @NAME {`,
// `site_id`, `resource NAME {`, `type`, `id`, `nids`, `fsroot`) the parser
// understands a few comment directives:
//
//	# clients = host1, host2;
//	# zfspool = pool vdev-args
//	# zfspath = /pool/mountpoint
//	# prefmds = mds0@SITE
//
// # Usage Example
//
//	parser := topology.NewParser(buildDirs, logger)
//	result, err := parser.ParseFile("slash.conf")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(result.Registry.Summary())
//
// A Parser holds the state of a single pass; it must not be used from more
// than one goroutine at a time.
package topology

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"evalgo.org/tsuite/internal/paths"
)

// Header is the first line of every rewritten configuration.
const Header = "#TSuite Slash2 Conf\n"

// ArtifactName is the file name of the rewritten configuration in the build root.
const ArtifactName = "slash.conf"

type phase int

const (
	phaseTop phase = iota
	phaseSite
	phaseResource
)

func (p phase) String() string {
	switch p {
	case phaseSite:
		return "site"
	case phaseResource:
		return "resource"
	default:
		return "top"
	}
}

// parseState is everything a single parse pass carries from line to line.
type parseState struct {
	phase     phase
	site      string
	siteID    uint64
	hasSiteID bool
	fsUUID    string
	current   *Builder

	// where the current resource block was opened
	openLine int
	openText string
}

// Result is the outcome of a successful parse.
type Result struct {
	// Registry contains every finalized resource
	Registry *Registry

	// Config is the rewritten configuration, header included
	Config []byte
}

// Parser turns configuration text into a Registry and a rewritten copy.
type Parser struct {
	dirs   paths.Table
	rules  []rule
	logger *slog.Logger
}

// NewParser creates a parser that substitutes placeholders against dirs.
// dirs must already be resolved; its "base" entry locates zpool cache files.
func NewParser(dirs paths.Table, logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{
		dirs:   dirs,
		rules:  rules,
		logger: logger.With("component", "topology"),
	}
}

// ParseFile parses the configuration file at path.
func (p *Parser) ParseFile(path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read conf file at %s: %w", path, err)
	}
	defer f.Close()

	return p.Parse(f)
}

// lineReader yields lines with their terminators and counts them.
type lineReader struct {
	r    *bufio.Reader
	line int
}

func (lr *lineReader) next() (string, bool, error) {
	s, err := lr.r.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", false, err
	}
	if s == "" && err != nil {
		return "", false, nil
	}
	lr.line++
	return s, true, nil
}

// Parse consumes r line by line. Any error aborts the whole parse; no
// partial registry is returned.
func (p *Parser) Parse(r io.Reader) (*Result, error) {
	reg := NewRegistry()
	st := &parseState{}

	var out strings.Builder
	out.WriteString(Header)

	lr := &lineReader{r: bufio.NewReader(r)}
	for {
		raw, ok, err := lr.next()
		if err != nil {
			return nil, fmt.Errorf("reading configuration: %w", err)
		}
		if !ok {
			break
		}

		out.WriteString(paths.Expand(raw, p.dirs))

		line, opening := lr.line, st.current == nil
		if err := p.step(st, reg, lr, &out, raw); err != nil {
			var le *LineError
			if errors.As(err, &le) {
				return nil, err
			}
			return nil, &LineError{Line: lr.line, Text: trimEOL(raw), Err: err}
		}
		if opening && st.current != nil {
			st.openLine, st.openText = line, trimEOL(raw)
		}
	}

	if st.current != nil {
		return nil, &LineError{
			Line: st.openLine,
			Text: st.openText,
			Err:  fmt.Errorf("resource %q not closed before end of input: %w", st.current.Name(), ErrIncompleteResource),
		}
	}

	p.logger.Debug("configuration parsed", "resources", reg.Summary())

	return &Result{Registry: reg, Config: []byte(out.String())}, nil
}

// step applies one configuration line to the parse state.
func (p *Parser) step(st *parseState, reg *Registry, lr *lineReader, out *strings.Builder, raw string) error {
	line := trimEOL(raw)

	matches := matchLine(p.rules, line)
	if len(matches) > 1 {
		names := make([]string, len(matches))
		for i, m := range matches {
			names[i] = m.kind.String()
		}
		return fmt.Errorf("%w: %s", ErrAmbiguousLine, strings.Join(names, ", "))
	}
	if len(matches) == 0 {
		return nil
	}
	m := matches[0]

	switch st.phase {
	case phaseTop:
		return p.stepTop(st, reg, m)
	case phaseSite:
		return p.stepSite(st, m)
	default:
		return p.stepResource(st, reg, lr, out, m)
	}
}

func (p *Parser) stepTop(st *parseState, reg *Registry, m match) error {
	switch m.kind {
	case ruleClients:
		for _, host := range strings.Split(m.groups[0], ",") {
			host = strings.TrimSpace(host)
			if host == "" {
				continue
			}
			b := NewBuilder(host, "")
			b.SetType("client")
			b.SetHost(host)
			if _, err := b.Finalize(reg); err != nil {
				return err
			}
		}
	case ruleSite:
		st.site = m.groups[0]
		st.hasSiteID = false
		st.siteID = 0
		st.phase = phaseSite
	case ruleFSUUID:
		st.fsUUID = m.groups[0]
	}
	return nil
}

func (p *Parser) stepSite(st *parseState, m match) error {
	switch m.kind {
	case ruleSiteID:
		return p.setSiteID(st, m.groups[0])
	case ruleOpenResource:
		st.current = NewBuilder(m.groups[0], st.site)
		st.phase = phaseResource
	case ruleCloseBlock:
		st.phase = phaseTop
		st.site = ""
	}
	return nil
}

func (p *Parser) stepResource(st *parseState, reg *Registry, lr *lineReader, out *strings.Builder, m match) error {
	b := st.current

	switch m.kind {
	case ruleSiteID:
		return p.setSiteID(st, m.groups[0])
	case ruleType:
		b.SetType(m.groups[0])
	case ruleID:
		id, err := strconv.Atoi(m.groups[0])
		if err != nil {
			return fmt.Errorf("resource %q: invalid id %q: %w", b.Name(), m.groups[0], err)
		}
		b.SetID(id)
	case rulePoolPath:
		b.SetPoolPath(strings.TrimSpace(m.groups[0]))
	case rulePool:
		name := m.groups[0]
		b.SetPool(name, m.groups[1], filepath.Join(p.dirs[paths.Base], name+".zcf"))
	case rulePrefMDS:
		b.SetPreferredMDS(m.groups[0])
	case ruleFSRoot:
		b.SetFSRoot(strings.Trim(m.groups[0], `"`))
	case ruleNIDs:
		host, err := p.readNIDs(lr, out, m.groups[0])
		if err != nil {
			return err
		}
		b.SetHost(host)
	case ruleCloseBlock:
		if st.hasSiteID {
			b.SetSiteID(st.siteID)
		}
		b.SetFSUUID(st.fsUUID)

		res, err := b.Finalize(reg)
		if err != nil {
			return err
		}
		p.logger.Debug("resource registered", "resource", res.Name, "kind", res.Kind, "host", res.Host)

		st.current = nil
		st.phase = phaseSite
	}
	return nil
}

func (p *Parser) setSiteID(st *parseState, v string) error {
	id, err := strconv.ParseUint(v, 0, 64)
	if err != nil {
		return fmt.Errorf("site %q: invalid site_id %q: %w", st.site, v, err)
	}
	st.siteID = id
	st.hasSiteID = true
	return nil
}

// readNIDs gathers a nids value that may continue over several lines until
// the ';' terminator and returns the host of its first entry. Continuation
// lines are copied to out like any other line.
func (p *Parser) readNIDs(lr *lineReader, out *strings.Builder, value string) (string, error) {
	start, text := lr.line, strings.TrimSpace(value)
	for !strings.Contains(value, ";") {
		raw, ok, err := lr.next()
		if err != nil {
			return "", err
		}
		if !ok {
			return "", &LineError{Line: start, Text: "nids = " + text, Err: fmt.Errorf("nids: %w", ErrUnterminatedDirective)}
		}
		out.WriteString(paths.Expand(raw, p.dirs))
		value += " " + trimEOL(raw)
	}

	value = value[:strings.Index(value, ";")]
	first := strings.TrimSpace(strings.SplitN(value, ",", 2)[0])
	if i := strings.Index(first, "@"); i >= 0 {
		first = first[:i]
	}
	return strings.TrimSpace(first), nil
}

// WriteArtifact writes the rewritten configuration into the build root and
// returns its path.
func WriteArtifact(base string, config []byte) (string, error) {
	path := filepath.Join(base, ArtifactName)
	if err := os.WriteFile(path, config, 0644); err != nil {
		return "", fmt.Errorf("unable to write new conf to build directory: %w", err)
	}
	return path, nil
}

func trimEOL(s string) string {
	return strings.TrimRight(s, "\r\n")
}
