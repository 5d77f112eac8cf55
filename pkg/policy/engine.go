package policy

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/open-policy-agent/opa/ast"
	"github.com/open-policy-agent/opa/rego"
	"github.com/open-policy-agent/opa/storage"
	"github.com/open-policy-agent/opa/storage/inmem"
	"github.com/rs/zerolog"

	"github.com/ralf-homelab/ralf/pkg/engine"
)

// Engine evaluates Rego profile policies. Every policy exposes a "deny" set; each
// member becomes one failing Finding.
type Engine struct {
	mu       sync.RWMutex
	policies map[string]*compiledPolicy
	store    storage.Store
	logger   zerolog.Logger
}

// compiledPolicy represents a compiled Rego policy.
type compiledPolicy struct {
	policy *Policy
	module *ast.Module
	query  rego.PreparedEvalQuery
}

// NewEngine creates a policy engine with the built-in policies loaded.
func NewEngine(logger zerolog.Logger) (*Engine, error) {
	e := &Engine{
		policies: make(map[string]*compiledPolicy),
		store:    inmem.New(),
		logger:   logger.With().Str("component", "policy-engine").Logger(),
	}

	builtins := GetBuiltinPolicies()
	for i := range builtins {
		if err := e.compileAndStorePolicy(context.Background(), &builtins[i]); err != nil {
			return nil, fmt.Errorf("failed to compile built-in policy %s: %w", builtins[i].Name, err)
		}
	}

	e.logger.Debug().Int("count", len(builtins)).Msg("Built-in policies loaded")

	return e, nil
}

// LoadPolicies loads policy files or directories and compiles them. A loaded policy
// replaces an existing policy of the same name.
func (e *Engine) LoadPolicies(ctx context.Context, paths []string) error {
	policies, err := NewLoader(e.logger).LoadFromPaths(ctx, paths)
	if err != nil {
		return fmt.Errorf("failed to load policies: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range policies {
		if err := e.compileAndStorePolicy(ctx, &policies[i]); err != nil {
			e.logger.Error().Err(err).
				Str("policy", policies[i].Name).
				Msg("Failed to compile policy")
			return fmt.Errorf("failed to compile policy %s: %w", policies[i].Name, err)
		}
	}

	e.logger.Info().
		Int("count", len(policies)).
		Msg("Policies loaded successfully")

	return nil
}

// EvaluateProfile evaluates every enabled policy against the profile, in policy
// name order. A policy that fails to evaluate is recorded in Result.Failures and
// does not stop the others.
func (e *Engine) EvaluateProfile(ctx context.Context, profile *engine.Profile) (*Result, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	result := &Result{
		Findings:  make([]Finding, 0),
		Evaluated: make([]string, 0, len(e.policies)),
	}
	input := &Input{Profile: profile}

	for _, name := range e.sortedNames() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		cp := e.policies[name]
		if !cp.policy.Enabled {
			continue
		}
		result.Evaluated = append(result.Evaluated, name)

		findings, err := e.evaluatePolicy(ctx, cp, input)
		if err != nil {
			e.logger.Warn().Err(err).
				Str("policy", name).
				Str("profile", profile.Name).
				Msg("Policy evaluation failed")
			result.Failures = append(result.Failures, Failure{
				Policy: name,
				Source: cp.policy.Source,
				Error:  err.Error(),
			})
			continue
		}
		result.Findings = append(result.Findings, findings...)
	}

	e.logger.Debug().
		Str("profile", profile.Name).
		Int("policies", len(result.Evaluated)).
		Int("findings", len(result.Findings)).
		Msg("Profile policy evaluation completed")

	return result, nil
}

// evaluatePolicy evaluates a single compiled policy.
func (e *Engine) evaluatePolicy(ctx context.Context, cp *compiledPolicy, input *Input) ([]Finding, error) {
	results, err := cp.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, fmt.Errorf("policy evaluation error: %w", err)
	}

	var findings []Finding
	for _, result := range results {
		if len(result.Expressions) == 0 {
			continue
		}
		denySet, ok := result.Expressions[0].Value.([]interface{})
		if !ok {
			return nil, fmt.Errorf("deny must be a set, got %T", result.Expressions[0].Value)
		}
		for _, d := range denySet {
			findings = append(findings, createFinding(cp.policy, d, input))
		}
	}

	return findings, nil
}

// createFinding turns one deny member into a Finding. A member is either a message
// string or an object with message, severity and target keys.
func createFinding(policy *Policy, denial interface{}, input *Input) Finding {
	finding := Finding{
		Policy:   policy.Name,
		Target:   input.Profile.Name,
		Status:   StatusFail,
		Severity: policy.Severity,
		Source:   policy.Source,
	}

	switch v := denial.(type) {
	case string:
		finding.Details = v
	case map[string]interface{}:
		if msg, ok := v["message"].(string); ok {
			finding.Details = msg
		}
		if sev, ok := v["severity"].(string); ok {
			if parsed, err := ParseSeverity(sev); err == nil {
				finding.Severity = parsed
			}
		}
		if target, ok := v["target"].(string); ok && target != "" {
			finding.Target = target
		}
	default:
		finding.Details = fmt.Sprintf("%v", denial)
	}

	return finding
}

// compileAndStorePolicy compiles a policy and stores it. Callers hold e.mu or own e.
func (e *Engine) compileAndStorePolicy(ctx context.Context, policy *Policy) error {
	module, err := ast.ParseModule(policy.Name, policy.Rego)
	if err != nil {
		return fmt.Errorf("failed to parse policy: %w", err)
	}

	if policy.Severity == "" {
		policy.Severity = SeverityWarning
	}
	if policy.Source == "" {
		policy.Source = "builtin:" + policy.Name
	}

	r := rego.New(
		rego.ParsedModule(module),
		rego.Store(e.store),
		rego.Query(module.Package.Path.String()+".deny"),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return fmt.Errorf("failed to prepare query: %w", err)
	}

	e.policies[policy.Name] = &compiledPolicy{
		policy: policy,
		module: module,
		query:  query,
	}

	e.logger.Debug().
		Str("policy", policy.Name).
		Str("package", module.Package.Path.String()).
		Msg("Policy compiled successfully")

	return nil
}

func (e *Engine) sortedNames() []string {
	names := make([]string, 0, len(e.policies))
	for name := range e.policies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetPolicy returns a policy by name.
func (e *Engine) GetPolicy(name string) (*Policy, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	cp, exists := e.policies[name]
	if !exists {
		return nil, fmt.Errorf("policy not found: %s", name)
	}

	return cp.policy, nil
}

// ListPolicies returns all loaded policies in name order.
func (e *Engine) ListPolicies() []Policy {
	e.mu.RLock()
	defer e.mu.RUnlock()

	policies := make([]Policy, 0, len(e.policies))
	for _, name := range e.sortedNames() {
		policies = append(policies, *e.policies[name].policy)
	}

	return policies
}

// EnablePolicy enables a policy by name.
func (e *Engine) EnablePolicy(name string) error {
	return e.setEnabled(name, true)
}

// DisablePolicy disables a policy by name.
func (e *Engine) DisablePolicy(name string) error {
	return e.setEnabled(name, false)
}

func (e *Engine) setEnabled(name string, enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	cp, exists := e.policies[name]
	if !exists {
		return fmt.Errorf("policy not found: %s", name)
	}

	cp.policy.Enabled = enabled
	e.logger.Debug().Str("policy", name).Bool("enabled", enabled).Msg("Policy toggled")

	return nil
}
