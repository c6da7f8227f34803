// Package lua executes Redis-compatible Lua scripts against an Ember
// data engine. Scripts see the usual KEYS and ARGV tables plus a redis
// table with call and pcall, and a script cache keyed by SHA1 backs
// EVALSHA and the SCRIPT subcommands.
package lua
