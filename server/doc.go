// Package server implements the TCP front end of Ember.
//
// Each accepted connection is served by its own goroutine that reads
// commands off the wire, executes them against the storage engine and
// writes replies back. Replies are flushed once per read batch, so
// pipelined commands are answered in order with a single flush.
package server
