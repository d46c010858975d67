// Package events carries session lifecycle notifications between execution
// contexts over a Watermill publish/subscribe bus.
//
// The bus is advisory: the persisted credential slot remains the source of
// truth, and last writer wins there. Events exist so a logout in one
// context is honored everywhere within one notification cycle instead of
// only on the next manual check — in particular for device-local stores
// that cannot broadcast changes across processes on their own.
package events
