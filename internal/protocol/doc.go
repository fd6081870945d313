// Package protocol implements the HDL Buspro AC wire protocol: CRC-16
// computation, frame splitting and validation, template-driven schema
// discovery, command frame synthesis, and status broadcast decoding.
//
// The protocol is undocumented; the layout is reverse-engineered from
// captured reference packets. Schema discovery compares captured frames
// that differ in exactly one semantic dimension (power state, device
// address, temperature/mode) to locate the byte offsets of each field.
//
// Everything in this package is pure: no I/O, no clocks, no mutable
// state beyond the immutable Schema built once at startup. All functions
// are safe for concurrent use.
package protocol
