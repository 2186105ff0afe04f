// Package session owns the JDWP connection to one debuggee.
//
// Ownership boundary:
// - dial and JDWP-Handshake exchange
// - connection state machine (Disconnected, Handshaking, Connected, Closed)
// - sequential request/reply round trips with optional deadlines
// - connect retry backoff primitives for callers above the core
//
// A Conn never retries and never pipelines: each SendCommand writes one
// command packet and reads until its reply arrives before the next may start.
package session
