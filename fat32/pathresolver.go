package fat32

import (
	"strings"
	"time"
)

// PathResolver tokenizes POSIX-style paths and resolves them to a terminal
// cluster. It is stateless beyond its dependencies on the Volume and
// Directory; Mount's Chdir wrapper is the only thing that mutates a
// Volume's CWD.
//
// Resolve is kept as the pure function, with Mount.Chdir as the thin
// wrapper that additionally updates CWD on success, collapsing what would
// otherwise be two near-duplicate directory-entry functions into one.
type PathResolver struct {
	vol *Volume
	dir *Directory

	// MaxSegments bounds the number of path components walked, 0 means
	// unbounded. Deadline, if non-zero, causes EnterDirTimeout once it has
	// passed — but only when checked explicitly between segments, never
	// unconditionally (the resolution of the EnterDirTimeout open
	// ambiguity).
	MaxSegments int
	Deadline time.Time
}

// NewPathResolver returns a PathResolver with no step bound and no deadline.
func NewPathResolver(vol *Volume, dir *Directory) *PathResolver {
	return &PathResolver{vol: vol, dir: dir}
}

// Resolve walks path starting from startCluster:
// - a leading '/' or '\' starts at the root cluster regardless of
// startCluster;
// - otherwise resolution begins at startCluster;
// - an empty path resolves to startCluster;
// - "." stays in the current directory;
// - ".." at the root returns EnterRootParent;
// - any other segment must name a live directory entry to descend into.
func (r *PathResolver) Resolve(path string, startCluster uint32) (uint32, error) {
	cluster := startCluster
	trimmed := path
	if strings.HasPrefix(trimmed, "/") || strings.HasPrefix(trimmed, "\\") {
		cluster = r.vol.RootCluster()
		trimmed = strings.TrimLeft(trimmed, `/\`)
	}

	if trimmed == "" {
		return cluster, nil
	}

	segments := splitPathSegments(trimmed)
	if r.MaxSegments > 0 && len(segments) > r.MaxSegments {
		return 0, newErrf(KindEnterDirNotFound, "path has %d segments, exceeds limit of %d", len(segments), r.MaxSegments)
	}

	for _, seg := range segments {
		if !r.Deadline.IsZero() && time.Now().After(r.Deadline) {
			return 0, newErr(KindEnterDirTimeout, "path resolution deadline exceeded")
		}

		switch seg {
		case ".":
			continue
		case "..":
			if cluster == r.vol.RootCluster() {
				return 0, newErr(KindEnterRootParent, "cannot go above the root directory")
			}
			entry, ok, err := r.dir.FindByName(cluster, "..")
			if err != nil {
				return 0, err
			}
			if !ok {
				return 0, newErr(KindEnterDirNotFound, "directory has no '..' entry")
			}
			next := entry.FDI.FirstCluster()
			if next == 0 {
				next = r.vol.RootCluster()
			}
			cluster = next
		default:
			entry, ok, err := r.dir.FindByName(cluster, seg)
			if err != nil {
				return 0, err
			}
			if !ok || !entry.FDI.IsDir() {
				return 0, newErrf(KindEnterDirNotFound, "%q not found", seg)
			}
			cluster = entry.FDI.FirstCluster()
		}
	}

	return cluster, nil
}

// splitPathSegments splits a relative path on '/' or '\', dropping empty
// components produced by repeated separators.
func splitPathSegments(path string) []string {
	fields := strings.FieldsFunc(path, func(r rune) bool { return r == '/' || r == '\\' })
	return fields
}

// Split separates a path into its parent directory portion and its final
// component, e.g. "/a/b/c" -> ("/a/b", "c"). This mirrors posixpath.Split's
// contract used by dargueta/disko's basedriver, adapted to return the
// parent without a trailing separator except for the root case.
func Split(path string) (parent, base string) {
	idx := strings.LastIndexAny(path, `/\`)
	if idx < 0 {
		return "", path
	}
	if idx == 0 {
		return path[:1], path[idx+1:]
	}
	return path[:idx], path[idx+1:]
}
