// Package reconcile tracks the externally-visible state of one AC unit
// and arbitrates between locally-issued commands and the device's own
// status broadcasts.
//
// The device broadcasts state periodically and after every command, but
// never as an acknowledgement: a broadcast arriving just after a command
// may be a stale echo of the value the command is superseding, or a real
// change made from another controller. With no acknowledgement protocol
// the only available arbitration is timing plus value comparison, which
// is what the Reconciler implements: optimistic local updates, a short
// suppression window in which echoes of the pre-command state are
// discarded, and unconditional device authority once the window lapses.
package reconcile
