// Package pipeline runs the audit of one target as a sequence of steps.
//
// The default pipeline loads the target's accounts from a dump file and
// classifies them against the weak hash index. Each stage is a Step that
// receives the current AuditReport and can modify it. Steps share logging
// and error recording, and the pipeline honours context cancellation
// between steps.
//
// BatchProcessor audits several targets concurrently with errgroup. All
// targets share one read-only weak hash index built by BuildIndex.
package pipeline
