// Package ember provides an embeddable in-memory key-value server
// speaking the Redis RESP protocol.
//
// The engine stores strings, lists, sets, sorted sets, geospatial
// indexes and streams. Keys may carry expirations which are enforced
// lazily on access and swept by a background sampler. Every command
// executes atomically and clients may pipeline freely.
//
// Basic usage:
//
//	srv, err := ember.New(
//		ember.WithAddr(":6379"),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer srv.Close()
//
//	if err := srv.Start(); err != nil {
//		log.Fatal(err)
//	}
//
// Any Redis client can then connect:
//
//	rdb := redis.NewClient(&redis.Options{Addr: srv.Addr()})
//	rdb.Set(ctx, "greeting", "hello", 0)
//
// The library supports:
//
//   - RESP protocol with full pipelining
//   - Per-key expiration with active background cleanup
//   - Blocking list pops (BLPOP/BRPOP)
//   - Geospatial queries layered on sorted sets
//   - Append-only streams with range and read queries
//   - Lua scripting via EVAL/EVALSHA
//
// For more examples and advanced usage, see the examples/ directory.
package ember
