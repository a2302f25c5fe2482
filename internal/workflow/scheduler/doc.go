// Package scheduler turns resolver snapshots into runnable batches that respect
// dependency order plus runtime constraints: async tasks may share a batch up
// to the concurrency limit while every other task runs alone.
package scheduler
