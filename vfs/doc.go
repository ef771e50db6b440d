// Package vfs layers a POSIX-like directory tree on top of a minimal
// storage primitive. The Store interface models a backend that only
// knows directories, whole-file reads and writes, and exclusive
// byte-range sync handles; everything else, including symlinks, path
// walking, and listing caches, lives in this layer so every backend
// behaves identically.
package vfs
