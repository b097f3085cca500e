// Package engine executes SQL against the single live session and assembles
// normalized results.
//
// ARCHITECTURE:
//
// One Session, Serialized:
// The Engine owns at most one wire.Session. Every operation that touches it
// (Attach, Detach, Execute) holds a weight-1 semaphore for its full
// duration, so rewrite, plan-mode toggles, execution and decoding of one
// query never interleave with another. Plan capture (SHOWPLAN_XML,
// STATISTICS XML) is session-global state, which is why the toggles sit
// inside the same critical section as the query.
//
// Execution Flow:
//  1. Acquire the session (waiting callers queue; ctx abandons the wait)
//  2. Rewrite SELECT * queries with explicit casts (best effort)
//  3. Dispatch on PlanMode: None, Estimated or Actual
//  4. Turn any enabled plan option back off, even if the query failed
//  5. Append timing and summary messages
//
// Nothing is retried. Errors surface as *Error with a flat, human-readable
// message and a Code for programmatic checks.
package engine
