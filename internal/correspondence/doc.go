// Package correspondence is the aggregate service the API and CLI call.
//
// It validates create requests, resolves the sender's placement through the
// organization directory, assigns reference numbers and hands submissions to
// the workflow engine. It also owns the mutations outside the approval chain
// (draft edits, archival, deletion, comments) and the read projections.
// Every mutation emits an audit entry through the engine's effects path.
package correspondence
