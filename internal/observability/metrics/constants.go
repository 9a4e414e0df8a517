// Package metrics provides custom Prometheus metrics for hellobirdie.
package metrics

// Namespace prefixes every metric name.
const Namespace = "hellobirdie"

// Datastore operations
const (
	OpFind     = "find"
	OpList     = "list"
	OpCount    = "count"
	OpGet      = "get"
	OpCreate   = "create"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpDistinct = "distinct"
	OpUpsert   = "upsert"
)

// Backup operations
const (
	OpBackupExport  = "export"
	OpBackupStore   = "store"
	OpBackupRestore = "restore"
)

// Status label values
const (
	StatusSuccess  = "success"
	StatusError    = "error"
	StatusNotFound = "not_found"
)

// Taxonomy import results
const (
	ImportCreated = "created"
	ImportUpdated = "updated"
	ImportSkipped = "skipped"
	ImportFailed  = "failed"
)

// Histogram bucket parameters
const (
	// BucketStart1ms is the starting bucket for 1ms histograms.
	BucketStart1ms = 0.001
	// BucketFactor2 doubles each bucket.
	BucketFactor2 = 2.0
	// BucketCount15 covers 1ms to ~16s.
	BucketCount15 = 15
)
