package topology

import (
	"fmt"

	"evalgo.org/tsuite/models"
)

// Field names tracked by a Builder.
const (
	FieldName    = "name"
	FieldSite    = "site"
	FieldType    = "type"
	FieldID      = "id"
	FieldHost    = "host"
	FieldSiteID  = "site_id"
	FieldFSUUID  = "fsuuid"
	FieldPool    = "zfspool"
	FieldPoolDir = "zfspath"
	FieldPrefMDS = "prefmds"
	FieldFSRoot  = "fsroot"
)

var (
	baseRequired = []string{FieldName, FieldType, FieldHost}

	kindRequired = map[models.Kind][]string{
		models.KindClient: {},
		models.KindMDS:    {FieldSite, FieldID, FieldSiteID, FieldFSUUID},
		models.KindION:    {FieldSite, FieldID, FieldSiteID},
	}
)

// RequiredFields returns the fields a resource of the given kind must carry.
func RequiredFields(kind models.Kind) []string {
	req := append([]string{}, baseRequired...)
	return append(req, kindRequired[kind]...)
}

// Builder accumulates the fields of a resource while its block is parsed.
type Builder struct {
	res     models.Resource
	present map[string]bool
}

// NewBuilder starts a resource named name inside site (empty for clients).
func NewBuilder(name, site string) *Builder {
	b := &Builder{present: make(map[string]bool)}
	b.res.Name = name
	b.mark(FieldName, name != "")
	if site != "" {
		b.res.Site = site
		b.mark(FieldSite, true)
	}
	return b
}

func (b *Builder) mark(field string, ok bool) {
	if ok {
		b.present[field] = true
	}
}

// Name returns the resource name.
func (b *Builder) Name() string { return b.res.Name }

func (b *Builder) SetType(typ string) {
	b.res.Type = typ
	b.mark(FieldType, typ != "")
}

func (b *Builder) SetID(id int) {
	b.res.ID = id
	b.mark(FieldID, true)
}

func (b *Builder) SetHost(host string) {
	b.res.Host = host
	b.mark(FieldHost, host != "")
}

func (b *Builder) SetSiteID(id uint64) {
	b.res.SiteID = id
	b.mark(FieldSiteID, true)
}

func (b *Builder) SetFSUUID(uuid string) {
	b.res.FSUUID = uuid
	b.mark(FieldFSUUID, uuid != "")
}

// SetPool records the backing zfs pool and the cache file kept for it.
func (b *Builder) SetPool(name, args, cachePath string) {
	b.res.PoolName = name
	b.res.PoolArgs = args
	b.res.PoolCachePath = cachePath
	b.mark(FieldPool, name != "")
}

func (b *Builder) SetPoolPath(path string) {
	b.res.PoolPath = path
	b.mark(FieldPoolDir, path != "")
}

func (b *Builder) SetPreferredMDS(mds string) {
	b.res.PreferredMDS = mds
	b.mark(FieldPrefMDS, mds != "")
}

func (b *Builder) SetFSRoot(root string) {
	b.res.FSRoot = root
	b.mark(FieldFSRoot, root != "")
}

// Fields returns the names of the fields set so far.
func (b *Builder) Fields() []string {
	fields := make([]string, 0, len(b.present))
	for _, f := range allFields {
		if b.present[f] {
			fields = append(fields, f)
		}
	}
	return fields
}

var allFields = []string{
	FieldName, FieldSite, FieldType, FieldID, FieldHost, FieldSiteID,
	FieldFSUUID, FieldPool, FieldPoolDir, FieldPrefMDS, FieldFSRoot,
}

// Finalize validates the builder and appends the resulting resource to reg.
// Nothing is registered when a required field is missing.
func (b *Builder) Finalize(reg *Registry) (models.Resource, error) {
	fields := b.Fields()

	if missing := CheckSubset(baseRequired, fields); len(missing) > 0 {
		return models.Resource{}, &IncompleteError{Name: b.res.Name, Missing: missing}
	}

	kind, ok := models.KindForType(b.res.Type)
	if !ok {
		return models.Resource{}, fmt.Errorf("resource %q: %w: %q", b.res.Name, ErrUnknownType, b.res.Type)
	}

	if missing := CheckSubset(RequiredFields(kind), fields); len(missing) > 0 {
		return models.Resource{}, &IncompleteError{Name: b.res.Name, Kind: kind, Missing: missing}
	}

	res := b.res
	res.Kind = kind
	reg.add(res)
	return res, nil
}

// CheckSubset returns the elements of necessary that are absent from check,
// in the order they appear in necessary. The result is empty when check
// already covers necessary.
func CheckSubset(necessary, check []string) []string {
	have := make(map[string]bool, len(check))
	for _, c := range check {
		have[c] = true
	}

	missing := []string{}
	for _, n := range necessary {
		if !have[n] {
			missing = append(missing, n)
		}
	}
	return missing
}
