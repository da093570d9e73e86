// Package workflow derives and advances the approval chain of a correspondence.
//
// Builder turns a sender's organizational placement and final recipient into
// an ordered stage list: the division manager, then the department manager,
// then the final signatory, skipping any slot that is empty or held by the
// sender. Engine persists that chain on submission and advances it one
// signature at a time.
//
// Sign runs in a single IMMEDIATE transaction. The acting user's pending stage
// is completed with a conditional update, so of two racing requests for the
// same stage exactly one commits; the other finds no pending stage and
// reports services.ErrNotYourTurn. A rejection ends the chain immediately.
// Approval activates the next stage, or finalizes the correspondence when the
// chain is exhausted.
//
// Audit entries and notifications are handed to an effects.Emitter only after
// the transaction commits. Their failures are logged and never undo a
// transition.
package workflow
