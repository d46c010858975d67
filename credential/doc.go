// Package credential owns durable persistence of the single authentication
// credential kept per device or browser profile.
//
// The package is pure storage: it knows nothing about roles, routes, or the
// identity backend. Its only contract is the [Store] interface — put, get,
// clear, and a change feed that lets every execution context sharing the
// same persisted slot observe writes made by the others.
//
// Three implementations are provided: [MemoryStore] for tests and
// single-process multi-context setups, [RedisStore] for profiles shared
// across processes, and [BoltStore] for device-local storage. Stored blobs
// are schema-versioned so old readers fail loudly instead of guessing.
package credential
