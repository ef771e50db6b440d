package vfs

import (
	gopath "path"
	"strings"
)

// Normalize canonicalizes a guest path: single leading slash, no `.` or
// `..` segments, no trailing slash (except the root itself). `..` at
// the root clamps to the root rather than escaping it.
func Normalize(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return gopath.Clean(p)
}

// Join resolves child against a normalized base directory.
func Join(base, child string) string {
	if strings.HasPrefix(child, "/") {
		return Normalize(child)
	}
	return Normalize(base + "/" + child)
}

// Split returns the parent path and final component of a normalized
// path. The root splits into ("/", "").
func Split(p string) (dir, name string) {
	p = Normalize(p)
	if p == "/" {
		return "/", ""
	}
	i := strings.LastIndexByte(p, '/')
	if i == 0 {
		return "/", p[1:]
	}
	return p[:i], p[i+1:]
}

// Components returns the path segments of a normalized path, empty for
// the root.
func Components(p string) []string {
	p = Normalize(p)
	if p == "/" {
		return nil
	}
	return strings.Split(p[1:], "/")
}

// isUnder reports whether p equals prefix or lies inside it.
func isUnder(p, prefix string) bool {
	if prefix == "/" {
		return true
	}
	return p == prefix || strings.HasPrefix(p, prefix+"/")
}
