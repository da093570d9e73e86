// Package directory resolves the organization chart for the workflow engine.
//
// A Directory answers three questions: who manages a division, who manages a
// department, and where a user sits (with their role level). SQLDirectory reads
// the answers from the store; CachedDirectory decorates any Directory with a
// bounded LRU cache whose entries expire after a TTL and are dropped by exact
// key when an organization write touches them. Service ties both together with
// the write paths (manager changes, YAML seed import) so every write
// invalidates precisely the keys it affects.
package directory
