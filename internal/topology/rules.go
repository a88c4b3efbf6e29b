package topology

import "regexp"

type ruleKind int

const (
	ruleClients ruleKind = iota
	ruleType
	ruleID
	rulePool
	rulePoolPath
	rulePrefMDS
	ruleFSUUID
	ruleFSRoot
	ruleNIDs
	ruleOpenResource
	ruleCloseBlock
	ruleSite
	ruleSiteID
)

var ruleNames = map[ruleKind]string{
	ruleClients:      "clients",
	ruleType:         "type",
	ruleID:           "id",
	rulePool:         "zfspool",
	rulePoolPath:     "zfspath",
	rulePrefMDS:      "prefmds",
	ruleFSUUID:       "fsuuid",
	ruleFSRoot:       "fsroot",
	ruleNIDs:         "nids",
	ruleOpenResource: "resource",
	ruleCloseBlock:   "close",
	ruleSite:         "site",
	ruleSiteID:       "site_id",
}

func (k ruleKind) String() string {
	return ruleNames[k]
}

type rule struct {
	kind ruleKind
	re   *regexp.Regexp
}

// rules is matched against every line with its line ending removed. The
// patterns are whitespace tolerant and expect ';' as statement terminator.
var rules = []rule{
	{ruleClients, regexp.MustCompile(`^\s*#\s*clients\s*=\s*(.+?)\s*;\s*$`)},
	{ruleType, regexp.MustCompile(`^\s*type\s*=\s*(\S+?)\s*;\s*$`)},
	{ruleID, regexp.MustCompile(`^\s*id\s*=\s*(\d+)\s*;\s*$`)},
	{rulePool, regexp.MustCompile(`^\s*#\s*zfspool\s*=\s*(\w+?)\s+(.*?)\s*$`)},
	{rulePoolPath, regexp.MustCompile(`^\s*#\s*zfspath\s*=\s*(.+?)\s*$`)},
	{rulePrefMDS, regexp.MustCompile(`^\s*#\s*prefmds\s*=\s*(\w+?@\w+?)\s*$`)},
	{ruleFSUUID, regexp.MustCompile(`^\s*set\s*fsuuid\s*=\s*"?(0x[a-fA-F\d]+|\d+)"?\s*;\s*$`)},
	{ruleFSRoot, regexp.MustCompile(`^\s*fsroot\s*=\s*(\S+?)\s*;\s*$`)},
	{ruleNIDs, regexp.MustCompile(`^\s*nids\s*=\s*(.*)$`)},
	{ruleOpenResource, regexp.MustCompile(`^\s*resource\s+(\w+)\s*\{\s*$`)},
	{ruleCloseBlock, regexp.MustCompile(`^\s*\}\s*$`)},
	{ruleSite, regexp.MustCompile(`^\s*site\s*@(\w+)`)},
	{ruleSiteID, regexp.MustCompile(`^\s*site_id\s*=\s*(0x[a-fA-F\d]+|\d+)\s*;\s*$`)},
}

type match struct {
	kind   ruleKind
	groups []string
}

// matchLine returns every rule matching line. Callers treat more than one
// match as a broken rule table.
func matchLine(table []rule, line string) []match {
	var matches []match
	for _, r := range table {
		if m := r.re.FindStringSubmatch(line); m != nil {
			matches = append(matches, match{kind: r.kind, groups: m[1:]})
		}
	}
	return matches
}
