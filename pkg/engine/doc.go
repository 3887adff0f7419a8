// Package engine drives loan applications through the underwriting
// workflow: validation, document verification, credit check, risk
// assessment and decision, with suspension points for missing documents
// and human review.
//
// The engine is built around three rules:
//
//   - Stage executors are pure with respect to the store. They mutate a
//     cloned snapshot, call capability clients, and report an intent;
//     only the orchestrator commits.
//
//   - Every mutation is one atomic versioned commit carrying its audit
//     entries. A version conflict means another worker won the race;
//     the orchestrator reloads and re-evaluates rather than retrying
//     the stale write.
//
//   - The state machine in the loan package is authoritative. An intent
//     that maps to an illegal transition is a contract violation and
//     aborts the operation without committing.
//
// Capability failures are classified with WorkflowError: transient and
// throttled failures retry with exponential backoff up to the configured
// budget, permanent failures abandon the stage, and conflicts bubble up
// for re-evaluation.
package engine
