// Package dualstore is the dualstore application: a small shop backend whose
// every entity lives in two databases at once.
//
// Writes fan out to the primary (SQLite by default) and the secondary
// (PostgreSQL by default). Reads go to the primary unless the "use-secondary"
// feature flag is on for the caller, and a failed secondary read falls back to
// the primary. The reconciler copies records missing on either side and
// reports count drift between the stores.
//
// [Main] is the entry point used by cmd/dualstore and by tests:
//
//	dualstore migrate                      # create tables in both stores
//	dualstore run                          # serve the HTTP API
//	dualstore sync                         # one bidirectional reconciliation pass
//	dualstore sync -direction forward      # primary to secondary only
//	dualstore verify                       # per-entity consistency report
//
// Settings come from [config.Load]; see that package for keys and the
// DUALSTORE_* environment variables.
package dualstore
