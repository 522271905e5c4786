// Package history stores saved calculations.
//
// The history is append-only with one exception: a pending Microbiology
// experiment (a starting count saved before the final count is known) is
// finalized in place, adding N, generations and doubling_time to its
// details and flipping its status to completed. Records are never deleted.
//
// Two backends implement Store:
//
//   - JSONStore: a single JSON array file, read and rewritten in full on
//     every access (the default, compatible with older history files)
//   - SQLiteStore: a local SQLite file with the same semantics
//
// Neither backend locks: a single user in a single process is assumed.
//
// Records are addressed by their 1-based position in insertion order.
// Exports (CSV, YAML, PDF) keep those positions.
package history
