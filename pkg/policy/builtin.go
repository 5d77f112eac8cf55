package policy

// GetBuiltinPolicies returns all built-in profile policies.
func GetBuiltinPolicies() []Policy {
	return []Policy{
		secretRotationPolicy(),
		backupCoveragePolicy(),
		workflowPhasesPolicy(),
		cronFallbackPolicy(),
		componentNamingPolicy(),
	}
}

// secretRotationPolicy requires secret rotation tasks to be safe to re-run.
func secretRotationPolicy() Policy {
	return Policy{
		Name:        "secret-rotation-idempotent",
		Description: "Tasks that rotate secrets must be marked idempotent",
		Severity:    SeverityCritical,
		Enabled:     true,
		Tags:        []string{"secrets", "safety"},
		Rego: `package ralf.policies.secrets

import rego.v1

deny contains violation if {
	some component in input.profile.components
	some task in component.tasks
	task.action == "rotate-secret"
	not task.idempotent
	violation := {
		"message": sprintf("rotate-secret task %s of component %s is not idempotent", [task.id, component.id]),
		"target": task.id,
	}
}`,
	}
}

// backupCoveragePolicy requires every datastore component to be an expected backup guest.
func backupCoveragePolicy() Policy {
	return Policy{
		Name:        "datastore-backup-coverage",
		Description: "Datastore components must be covered by an expected backup job",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"backups"},
		Rego: `package ralf.policies.backups

import rego.v1

covered contains guest if {
	some backup in input.profile.backups
	some guest in backup.expected_guests
}

deny contains violation if {
	some component in input.profile.components
	component.category == "datastore"
	not covered[component.id]
	violation := {
		"message": sprintf("datastore component %s is not an expected guest of any backup job", [component.id]),
		"target": component.id,
	}
}`,
	}
}

// workflowPhasesPolicy flags workflows without declared phases.
func workflowPhasesPolicy() Policy {
	return Policy{
		Name:        "workflow-phases",
		Description: "Workflows should declare their phases",
		Severity:    SeverityInfo,
		Enabled:     true,
		Tags:        []string{"workflows", "documentation"},
		Rego: `package ralf.policies.phases

import rego.v1

deny contains violation if {
	some workflow in input.profile.workflows
	count(object.get(workflow, "phases", [])) == 0
	violation := {
		"message": sprintf("workflow %s declares no phases", [workflow.loop]),
		"target": workflow.loop,
	}
}`,
	}
}

// cronFallbackPolicy flags cron triggers without a fallback interval.
func cronFallbackPolicy() Policy {
	return Policy{
		Name:        "cron-fallback",
		Description: "Cron triggers should carry a fallback interval",
		Severity:    SeverityInfo,
		Enabled:     true,
		Tags:        []string{"workflows", "resilience"},
		Rego: `package ralf.policies.triggers

import rego.v1

deny contains violation if {
	some workflow in input.profile.workflows
	workflow.trigger.cron
	not workflow.trigger.interval_seconds
	violation := {
		"message": sprintf("workflow %s runs on cron %q without a fallback interval", [workflow.loop, workflow.trigger.cron]),
		"target": workflow.loop,
	}
}`,
	}
}

// componentNamingPolicy enforces DNS-label style component ids.
func componentNamingPolicy() Policy {
	return Policy{
		Name:        "component-naming",
		Description: "Component ids should be lowercase DNS labels (letters, digits, hyphens)",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"naming", "conventions"},
		Rego: `package ralf.policies.naming

import rego.v1

deny contains violation if {
	some component in input.profile.components
	not regex.match("^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$", component.id)
	violation := {
		"message": sprintf("component id %q is not a lowercase DNS label", [component.id]),
		"target": component.id,
	}
}`,
	}
}
