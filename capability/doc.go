// Package capability is the fixed guest-to-host function surface. Each
// host struct covers one namespace and registers its methods by wire
// name; resources cross the boundary as uint32 handles owned by the
// resource registry. Host methods return results, never panic, so a
// misbehaving guest sees an error instead of tearing the runtime down.
package capability
