// Package lifecycle defines the finite-state machines of a correspondence and
// of each of its workflow stages.
//
// StageStatus and Status are closed string enums. Every mutation of a persisted
// status must pass through CheckStage or CheckCorrespondence, which reject any
// move not listed in the transition tables below. The store calls these before
// issuing its conditional updates, so an illegal transition never reaches SQL.
package lifecycle
