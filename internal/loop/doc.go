// Package loop is the caller's single-threaded execution environment.
//
// A Loop runs posted callbacks one at a time on the goroutine that called
// Run. Work happening elsewhere (worker goroutines, timers, I/O) re-enters
// the loop by posting a callback; the post is the synchronisation point, so
// a callback may read anything its poster wrote before posting without
// further locking.
//
// A callback that panics does not stop the loop. The panic is recovered
// into a *Fault and handed to the loop's FaultHandler exactly once.
package loop
