// Package attendance implements the attendance-day core: the status machine,
// the append-only activity log, duration accounting and the Session aggregate.
//
// Everything here is pure and synchronous. Validation failures are returned as
// *Error values and never mutate state; the caller decides what feedback to
// show. Network concerns live in internal/reconcile.
//
// # Duration Accounting
//
// Accumulate walks the log with a category cursor that starts at working.
// Each event closes the interval since the previous one into the cursor's
// bucket and then moves the cursor. The four buckets therefore partition
// now - clockIn exactly; clock_out clamps now.
package attendance
