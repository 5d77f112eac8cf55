// Package policy evaluates Rego policies over a loaded profile with Open Policy
// Agent.
//
// Each policy is a Rego module that defines a "deny" set. A member of the set is
// either a message string or an object:
//
//	deny contains violation if {
//	    some component in input.profile.components
//	    component.category == "datastore"
//	    violation := {"message": "...", "target": component.id, "severity": "critical"}
//	}
//
// Every member becomes a failing Finding. The target defaults to the profile name
// and the severity to the policy's default severity. The profile is visible to
// policies as input.profile, using the JSON field names of the engine types.
//
// # Built-in policies
//
//   - secret-rotation-idempotent: rotate-secret tasks must be idempotent
//   - datastore-backup-coverage: datastore components must be expected backup guests
//   - workflow-phases: workflows should declare phases
//   - cron-fallback: cron triggers should carry a fallback interval
//   - component-naming: component ids should be lowercase DNS labels
//
// # Custom policies
//
// Loader reads .rego files (named after the file) and JSON policy definitions.
// The leading comment block of a .rego file is its description, and lines of the
// form "# severity: critical" or "# tags: a, b" set metadata. Modules are parsed
// in Rego v0 mode, so v1 keywords need "import rego.v1".
//
// Evaluation is a pure function of the profile and the loaded policies; nothing is
// cached between invocations.
package policy
