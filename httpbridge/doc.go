// Package httpbridge carries HTTP traffic across the guest boundary.
// Incoming requests reach a handler together with a single-use
// response out-param; outgoing requests become futures settled by a
// pluggable transport through the execution-mode bridge.
package httpbridge
