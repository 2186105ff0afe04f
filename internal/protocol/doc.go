// Package protocol owns the JDWP wire contract and its error taxonomy.
//
// Ownership boundary:
// - packet header primitives (frame)
// - identifier width registry (idsizes)
// - typed value codec (codec)
// - command name table (commands)
// - handshake and request/reply transport (session)
package protocol
