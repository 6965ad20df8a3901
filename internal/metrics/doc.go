// Package metrics holds the store's in-process counters and the identity
// latency histogram.
//
// Every slot is a padded atomic word, so recording never allocates or locks.
// Latency lands in one of eight fixed buckets, the last being +Inf.
// Exporters under metrics/export read [Snapshot] values and never touch the
// slots directly.
package metrics
