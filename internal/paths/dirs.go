package paths

// Keys of the build directory table.
const (
	Base    = "base"
	Mount   = "mp"
	DataDir = "datadir"
	Ctl     = "ctl"
	FS      = "fs"
)

// Src is the key of the source checkout root in the source table.
const Src = "src"

// BuildDirs returns the unresolved build directory table rooted at base.
func BuildDirs(base string) Table {
	return Table{
		Base:    base,
		Mount:   "%base%/mp",
		DataDir: "%base%/data",
		Ctl:     "%base%/ctl",
		FS:      "%base%/fs",
	}
}

// SrcDirs returns the unresolved source table rooted at src. Entries in
// overrides replace or extend the defaults.
func SrcDirs(src string, overrides Table) Table {
	dirs := Table{
		Src:           src,
		"slbase":      "%src%/slash_nara",
		"tsbase":      "%slbase%/../tsuite",
		"zpool":       "%src%/zfs/src/cmd/zpool/zpool",
		"zfs_fuse":    "%slbase%/utils/zfs-fuse.sh",
		"sliod":       "%slbase%/sliod/sliod",
		"slmkjrnl":    "%slbase%/slmkjrnl/slmkjrnl",
		"slmctl":      "%slbase%/slmctl/slmctl",
		"slictl":      "%slbase%/slictl/slictl",
		"slashd":      "%slbase%/slashd/slashd",
		"slkeymgt":    "%slbase%/slkeymgt/slkeymgt",
		"slmkfs":      "%slbase%/slmkfs/slmkfs",
		"mount_slash": "%slbase%/mount_slash/mount_slash",
		"msctl":       "%slbase%/msctl/msctl",
	}
	for k, v := range overrides {
		dirs[k] = v
	}
	return dirs
}

// ResolveSrcDirs resolves the source table against itself and then against
// the already-resolved build table, so source entries may embed build paths.
func ResolveSrcDirs(src, build Table) error {
	if err := Resolve(src, nil); err != nil {
		return err
	}
	return Resolve(src, build)
}
