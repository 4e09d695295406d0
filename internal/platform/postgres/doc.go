// Package postgres contains the PostgreSQL implementations of the store
// interfaces: the item store (dedup, lifecycle transitions, due-retry
// lookup) and the run store (run history, per-item attempt timings).
//
// All SQL lives here, written against store.DBTX so it runs equally inside
// or outside a transaction. Database errors are translated to store sentinel
// errors through MapError.
package postgres
