// Package protocol implements the RESP2 wire protocol.
//
// The package provides a streaming Reader that parses protocol messages
// incrementally from any io.Reader, and a buffered Writer that renders
// reply values back to the exact byte sequences the protocol specifies.
// Framing is chunk-boundary independent: a message whose bytes arrive
// split across several reads is assembled transparently, and partial
// input is never reported as a complete message.
//
// Malformed framing (bad length prefixes, missing CRLF terminators,
// bulk strings over the configured maximum) is reported as an error
// from ReadNext; callers treat these as fatal to the connection.
package protocol
