// Package registry tracks opaque integer handles for host-side objects.
//
// Every capability component shares one registry per host instance. The
// guest only ever sees handles; dereferencing happens host-side through
// Get/GetTyped, and a dropped handle yields a typed NotFoundError rather
// than a crash.
package registry
