// Package engine provides the core types and algorithms of the ralf installation planner.
//
// # Overview
//
// ralf reads a declarative profile of infrastructure components, tasks, workflows and
// backup expectations, then plans and reports on it without side effects:
//
//  1. Load - Parse and validate the profile (see package config)
//  2. Graph - Resolve task dependencies into a deterministic order (BuildTaskGraph)
//  3. Plan - Simulate every task and classify its outcome (DryRunPlanner)
//  4. Render - Project the plan as text, JSON or YAML (see package render)
//
// # Core Domain Types
//
//   - Profile: components, workflows and backup expectations of one deployment
//   - Component: an infrastructure or service unit owning ordered tasks
//   - Task: an atomic action (deploy/configure/rotate-secret/discover/other)
//   - Workflow and Trigger: automation loops and their cron/interval activation
//   - BackupExpectation and Retention: the backups a deployment must have
//   - Plan and PlanStep: the ordered, simulated outcomes of all tasks
//
// # Ordering
//
// Tasks follow their dependencies. Tasks with no relative constraint keep declaration
// order (component order, then task order), so identical profiles always yield
// byte-identical plans. Execution waves group tasks that share no dependency and
// target different components; an external Executor may run a wave concurrently.
//
// # Error Classification
//
// Fatal errors are *Error values classified by ErrorKind. ExitCode maps them to the
// process exit code:
//
//	if engine.IsKind(err, engine.KindCyclicDependency) {
//	    // report the cycle
//	}
//
// # Immutability
//
// A Profile is read-only once loaded. Plans are derived per invocation and never
// persisted.
package engine
