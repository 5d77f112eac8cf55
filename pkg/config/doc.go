// Package config loads ralf profiles and evaluates task preconditions.
//
// # Overview
//
// The config package is the load phase of the planner. It decodes a profile
// document, validates it strictly and converts it into an immutable engine.Profile.
//
// # Formats
//
//   - YAML (.yaml, .yml): decoded with unknown keys rejected
//   - JSON (.json): decoded by the YAML decoder, JSON being a YAML subset
//   - CUE (.cue): compiled and unified with the built-in #Profile schema
//
// # Usage Example
//
//	profile, err := config.LoadProfile(ctx, "homelab.yaml")
//	if err != nil {
//	    os.Exit(engine.ExitCode(err))
//	}
//
// # Profile Structure
//
//	name: homelab
//	components:
//	  - id: postgres
//	    category: datastore
//	    tasks:
//	      - id: install
//	        action: deploy
//	        idempotent: true
//	      - id: configure
//	        action: configure
//	        depends_on: [install]
//	        precondition: has_task("install") and not component["installed"]
//	workflows:
//	  - loop: main
//	    runtime: orchestrator
//	    template: workflows/main.json
//	    trigger: {cron: "*/5 * * * *", interval_seconds: 900}
//	backups:
//	  - datastore: D1
//	    retention: 30d
//	    expected_guests: [postgres]
//
// # Error Handling
//
// Malformed syntax yields an engine ProfileParseError. Anything that parses but does
// not match the schema yields a SchemaViolationError whose path names the document
// location, e.g. components[0].tasks[1].action. Dependency references are resolved
// later by the task graph builder.
//
// # Preconditions
//
// StarlarkEvaluator evaluates a task's precondition as a single Starlark expression:
//   - No load statements
//   - Print statements suppressed
//   - A fixed execution step budget instead of a timeout
//
// # Thread Safety
//
// StarlarkEvaluator is safe for concurrent use. A Loader holds a CUE context and must
// not be shared between goroutines.
package config
