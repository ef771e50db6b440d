// Package bridge is the execution-mode core of the host runtime.
//
// The guest expects ordinary call/return semantics from capability
// functions whose real work is unavoidably asynchronous. Two disjoint
// scheduling models reconcile that, selected once per host instance:
//
//   - suspend mode: a cooperative loop pauses the guest at enrolled
//     suspension points and resumes it when the awaited future settles.
//   - block mode: a worker stalls on a synchronous wait primitive while
//     a privileged dispatcher goroutine performs the I/O and signals.
//
// Both expose the same Bridge interface, so filesystem, HTTP and loader
// code block identically in either environment and surface identical
// error codes.
package bridge
