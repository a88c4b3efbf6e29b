// Package paths resolves %token% placeholders in path templates.
//
// The harness describes every directory it uses as a template rooted at
// %base% (the per-run build root) or %src% (the SLASH2 source checkout):
//
//	dirs := paths.BuildDirs("/tmp/sltest.42")
//	if err := paths.Resolve(dirs, nil); err != nil {
//	    return err
//	}
//	fmt.Println(dirs["mp"]) // /tmp/sltest.42/mp
//
// Unknown placeholders are left untouched so that a later pass against a
// different table can still resolve them.
package paths

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Limits applied by Resolve to a single entry.
const (
	// MaxPasses bounds the number of expansion passes
	MaxPasses = 64

	// MaxLength bounds the length of an expanded value
	MaxLength = 64 << 10
)

// ErrCyclicTemplate is returned when a template table references itself.
var ErrCyclicTemplate = errors.New("cyclic path template")

var placeholder = regexp.MustCompile(`%([A-Za-z0-9_]+)%`)

// Table maps a symbolic directory name to a path or path template.
type Table map[string]string

// Clone returns a shallow copy of the table.
func (t Table) Clone() Table {
	c := make(Table, len(t))
	for k, v := range t {
		c[k] = v
	}
	return c
}

// Keys returns the table keys in sorted order.
func (t Table) Keys() []string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Values returns the table values ordered by key.
func (t Table) Values() []string {
	keys := t.Keys()
	values := make([]string, 0, len(keys))
	for _, k := range keys {
		values = append(values, t[k])
	}
	return values
}

// Expand replaces every %ident% in s bound by one of the lookups.
// The first lookup binding an identifier wins. A single pass is made.
func Expand(s string, lookups ...Table) string {
	return placeholder.ReplaceAllStringFunc(s, func(m string) string {
		key := m[1 : len(m)-1]
		for _, lookup := range lookups {
			if v, ok := lookup[key]; ok {
				return v
			}
		}
		return m
	})
}

// Resolve expands every entry of dirs against lookup until it reaches a fixed
// point. A nil lookup resolves dirs against itself; entries then see the
// already-resolved values of the entries processed before them.
//
// A table whose entries reach themselves through their placeholders is
// rejected with ErrCyclicTemplate before anything is expanded.
func Resolve(dirs Table, lookup Table) error {
	self := lookup == nil
	if self {
		lookup = dirs
	}
	if err := checkCycles(lookup); err != nil {
		return err
	}

	for _, k := range dirs.Keys() {
		v := dirs[k]
		passes := 0
		for {
			expanded := Expand(v, lookup)
			if expanded == v {
				break
			}
			passes++
			if passes > MaxPasses || len(expanded) > MaxLength {
				return fmt.Errorf("%w: %q did not settle after %d passes", ErrCyclicTemplate, k, passes)
			}
			v = expanded
			if self {
				dirs[k] = v
			}
		}
		dirs[k] = v
	}

	// once settled, no entry may still name a key the lookup binds
	for _, k := range dirs.Keys() {
		for _, m := range placeholder.FindAllStringSubmatch(dirs[k], -1) {
			if _, ok := lookup[m[1]]; ok {
				return fmt.Errorf("%w: %q references %q", ErrCyclicTemplate, k, m[1])
			}
		}
	}

	return nil
}

// checkCycles walks the key -> placeholder graph of t depth first and
// reports the first entry that reaches itself.
func checkCycles(t Table) error {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(t))

	var visit func(k string, trail []string) error
	visit = func(k string, trail []string) error {
		switch state[k] {
		case visiting:
			return fmt.Errorf("%w: %s", ErrCyclicTemplate, strings.Join(append(trail, k), " -> "))
		case done:
			return nil
		}
		state[k] = visiting
		for _, m := range placeholder.FindAllStringSubmatch(t[k], -1) {
			if _, ok := t[m[1]]; !ok {
				continue
			}
			if err := visit(m[1], append(trail, k)); err != nil {
				return err
			}
		}
		state[k] = done
		return nil
	}

	for _, k := range t.Keys() {
		if err := visit(k, nil); err != nil {
			return err
		}
	}
	return nil
}
