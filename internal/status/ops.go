package status

import (
	"maps"
	"sort"

	"evalgo.org/tsuite/models"
)

// Ops maps a metric name to the command producing it.
type Ops map[string]string

// Names returns the metric names, sorted.
func (o Ops) Names() []string {
	names := make([]string, 0, len(o))
	for n := range o {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// CommonOps run on every resource.
var CommonOps = Ops{
	"load":       "cat /proc/loadavg | cut -d' ' -f1,2,3",
	"mem_total":  "head -n1 /proc/meminfo",
	"mem_free":   "sed -n 2,2p /proc/meminfo",
	"uptime":     "cut -d' ' -f1 /proc/uptime",
	"disk_stats": "df -hl",
}

// KindOps run in addition to CommonOps on resources of one kind.
// Placeholders name entries of the source table.
var KindOps = map[models.Kind]Ops{
	models.KindMDS: {
		"connections": "%slmctl% -sconnections",
		"iostats":     "%slmctl% -siostats",
	},
	models.KindION: {
		"connections": "%slictl% -sconnections",
		"iostats":     "%slictl% -siostats",
	},
}

// OpsFor returns the commands to run for a resource kind.
func OpsFor(kind models.Kind) Ops {
	ops := maps.Clone(CommonOps)
	maps.Copy(ops, KindOps[kind])
	return ops
}
