package models

import "fmt"

// Kind is the role a cluster member plays in a SLASH2 deployment.
type Kind string

const (
	// KindClient is a test client running mount_slash.
	KindClient Kind = "client"

	// KindMDS is a metadata server running slashd.
	KindMDS Kind = "mds"

	// KindION is an I/O node running sliod.
	KindION Kind = "ion"
)

// Kinds lists every known kind.
var Kinds = []Kind{KindClient, KindMDS, KindION}

// Valid reports whether k is one of Kinds.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// KindForType maps the `type=` value of a resource block to its role.
// The second return value is false for types the harness does not drive.
func KindForType(typ string) (Kind, bool) {
	switch typ {
	case "client":
		return KindClient, true
	case "mds":
		return KindMDS, true
	case "standalone_fs", "archival_fs", "cluster_noshare_lfs", "parallel_lfs":
		return KindION, true
	}
	return "", false
}

// Resource represents one cluster member discovered in the SLASH2 configuration.
//
// Resources are produced by the topology parser once every field required for
// their kind is present. They are never mutated after registration.
//
// Example JSON representation:
//
//	{
//	  "name": "ion0",
//	  "site": "BENCH",
//	  "type": "standalone_fs",
//	  "kind": "ion",
//	  "id": 1,
//	  "host": "10.0.0.12",
//	  "siteId": 2,
//	  "fsUuid": "0x1cafe",
//	  "poolName": "bench_pool",
//	  "poolArgs": "/dev/sdb",
//	  "poolCachePath": "/tmp/sltest.42/bench_pool.zcf",
//	  "fsRoot": "/bench_pool"
//	}
type Resource struct {
	// Name is the resource identifier from `resource <name> {` (or the host for clients)
	Name string `json:"name" yaml:"name"`

	// Site is the owning site name; empty for clients
	Site string `json:"site,omitempty" yaml:"site,omitempty"`

	// Type is the raw `type=` value
	Type string `json:"type" yaml:"type"`

	// Kind is the role derived from Type
	Kind Kind `json:"kind" yaml:"kind"`

	// ID is the role-scoped numeric id
	ID int `json:"id" yaml:"id"`

	// Host is the connection address (first entry of the nids list)
	Host string `json:"host" yaml:"host"`

	// SiteID is the numeric id of the enclosing site
	SiteID uint64 `json:"siteId" yaml:"siteId"`

	// FSUUID is the filesystem UUID propagated from the enclosing scope
	FSUUID string `json:"fsUuid,omitempty" yaml:"fsUuid,omitempty"`

	// PoolName is the zfs pool backing an I/O node
	PoolName string `json:"poolName,omitempty" yaml:"poolName,omitempty"`

	// PoolCachePath is the zpool cache file kept under the build root
	PoolCachePath string `json:"poolCachePath,omitempty" yaml:"poolCachePath,omitempty"`

	// PoolArgs are the vdev arguments handed to zpool create
	PoolArgs string `json:"poolArgs,omitempty" yaml:"poolArgs,omitempty"`

	// PoolPath is the mountpoint of the pool
	PoolPath string `json:"poolPath,omitempty" yaml:"poolPath,omitempty"`

	// PreferredMDS is the `host@site` of the preferred metadata server
	PreferredMDS string `json:"preferredMds,omitempty" yaml:"preferredMds,omitempty"`

	// FSRoot is the root directory exported by an I/O node
	FSRoot string `json:"fsRoot,omitempty" yaml:"fsRoot,omitempty"`
}

// String returns "name@host [kind]".
func (r Resource) String() string {
	return fmt.Sprintf("%s@%s [%s]", r.Name, r.Host, r.Kind)
}
