package topology

import (
	"fmt"
	"strings"

	"evalgo.org/tsuite/models"
)

// Registry holds the resources discovered by a parse, bucketed by kind.
//
// It is appended to only while parsing and is read-only afterwards, so it can
// be shared by the per-host tasks of later phases without locking.
type Registry struct {
	byKind map[models.Kind][]models.Resource
	kinds  []models.Kind
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byKind: make(map[models.Kind][]models.Resource),
	}
}

func (r *Registry) add(res models.Resource) {
	if _, ok := r.byKind[res.Kind]; !ok {
		r.kinds = append(r.kinds, res.Kind)
	}
	r.byKind[res.Kind] = append(r.byKind[res.Kind], res)
}

// ByKind returns the resources of one kind in registration order.
func (r *Registry) ByKind(kind models.Kind) []models.Resource {
	list := r.byKind[kind]
	out := make([]models.Resource, len(list))
	copy(out, list)
	return out
}

// Kinds returns the kinds present, in the order they were first registered.
func (r *Registry) Kinds() []models.Kind {
	out := make([]models.Kind, len(r.kinds))
	copy(out, r.kinds)
	return out
}

// All returns every resource, grouped by kind.
func (r *Registry) All() []models.Resource {
	var all []models.Resource
	for _, kind := range r.kinds {
		all = append(all, r.byKind[kind]...)
	}
	return all
}

// Hosts returns the distinct hosts of all resources in registration order.
func (r *Registry) Hosts() []string {
	return uniqueHosts(r.All())
}

// HostsOf returns the distinct hosts of the resources of one kind.
func (r *Registry) HostsOf(kind models.Kind) []string {
	return uniqueHosts(r.byKind[kind])
}

// Len returns the number of registered resources.
func (r *Registry) Len() int {
	n := 0
	for _, list := range r.byKind {
		n += len(list)
	}
	return n
}

// Summary renders "kind:count" pairs, e.g. "client:2, mds:1".
func (r *Registry) Summary() string {
	parts := make([]string, 0, len(r.kinds))
	for _, kind := range r.kinds {
		parts = append(parts, fmt.Sprintf("%s:%d", kind, len(r.byKind[kind])))
	}
	return strings.Join(parts, ", ")
}

func uniqueHosts(resources []models.Resource) []string {
	seen := make(map[string]bool)
	var hosts []string
	for _, res := range resources {
		if seen[res.Host] {
			continue
		}
		seen[res.Host] = true
		hosts = append(hosts, res.Host)
	}
	return hosts
}
