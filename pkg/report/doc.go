// Package report consolidates externally produced results with a profile's
// backup expectations.
//
// A results directory holds one JSON document per artifact. Each artifact is a
// flat record: a policy finding written by a scanner, or a backup job found in
// the backup server inventory. The record type comes from its "kind" field
// ("policy-finding" or "backup-job"), or is inferred: a "datastore" field marks a
// backup job and any of "policy", "status", "target" or "severity" marks a
// finding. Records are validated against embedded JSON Schemas before decoding.
//
// The Aggregator reads the directory in lexical order, skips malformed files with
// one warning each, optionally merges profile policy denials, groups findings by
// severity and reconciles every backup expectation against the discovered jobs.
// Every call is a fresh snapshot; nothing is cached or persisted between calls.
package report
