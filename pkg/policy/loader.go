package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// Loader reads policies from .rego files and JSON policy definitions. Every call
// reads the files afresh.
type Loader struct {
	logger zerolog.Logger
}

// NewLoader creates a new policy loader.
func NewLoader(logger zerolog.Logger) *Loader {
	return &Loader{
		logger: logger.With().Str("component", "policy-loader").Logger(),
	}
}

// LoadFromPaths loads policies from a list of file or directory paths.
func (l *Loader) LoadFromPaths(ctx context.Context, paths []string) ([]Policy, error) {
	var allPolicies []Policy

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		policies, err := l.loadFromPath(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load from path %s: %w", path, err)
		}
		allPolicies = append(allPolicies, policies...)
	}

	l.logger.Debug().
		Int("total", len(allPolicies)).
		Int("sources", len(paths)).
		Msg("Policies loaded from paths")

	return allPolicies, nil
}

// loadFromPath loads policies from a single path (file or directory).
func (l *Loader) loadFromPath(path string) ([]Policy, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat path: %w", err)
	}

	if info.IsDir() {
		return l.loadFromDirectory(path)
	}

	policy, err := l.loadFromFile(path)
	if err != nil {
		return nil, err
	}

	return []Policy{*policy}, nil
}

// loadFromDirectory loads all policy files below a directory, in lexical order.
func (l *Loader) loadFromDirectory(dirPath string) ([]Policy, error) {
	var policies []Policy

	err := filepath.WalkDir(dirPath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() || !isPolicyFile(path) {
			return nil
		}

		policy, err := l.loadFromFile(path)
		if err != nil {
			return err
		}

		policies = append(policies, *policy)
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}

	return policies, nil
}

func isPolicyFile(path string) bool {
	return strings.HasSuffix(path, ".rego") || strings.HasSuffix(path, ".json")
}

// loadFromFile loads a policy from a single file.
func (l *Loader) loadFromFile(filePath string) (*Policy, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var policy *Policy

	switch {
	case strings.HasSuffix(filePath, ".rego"):
		policy, err = parseRegoFile(filePath, data)
	case strings.HasSuffix(filePath, ".json"):
		policy, err = parseJSONFile(filePath, data)
	default:
		return nil, fmt.Errorf("unsupported file type: %s", filePath)
	}
	if err != nil {
		return nil, err
	}

	l.logger.Debug().
		Str("path", filePath).
		Str("policy", policy.Name).
		Msg("Policy loaded from file")

	return policy, nil
}

// parseRegoFile parses a .rego file into a Policy named after the file. The
// leading comment block is the description; "# severity: <level>" and
// "# tags: a, b" lines in it set the default severity and tags.
func parseRegoFile(filePath string, data []byte) (*Policy, error) {
	name := strings.TrimSuffix(filepath.Base(filePath), ".rego")

	policy := &Policy{
		Name:     name,
		Rego:     string(data),
		Severity: SeverityWarning,
		Enabled:  true,
		Tags:     []string{},
		Source:   filePath,
	}

	var description []string
	for _, comment := range headerComments(string(data)) {
		key, value, found := strings.Cut(comment, ":")
		switch {
		case found && strings.EqualFold(strings.TrimSpace(key), "severity"):
			severity, err := ParseSeverity(value)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", filePath, err)
			}
			policy.Severity = severity
		case found && strings.EqualFold(strings.TrimSpace(key), "tags"):
			for _, tag := range strings.Split(value, ",") {
				if tag = strings.TrimSpace(tag); tag != "" {
					policy.Tags = append(policy.Tags, tag)
				}
			}
		default:
			description = append(description, comment)
		}
	}
	policy.Description = strings.Join(description, " ")

	return policy, nil
}

// parseJSONFile parses a JSON policy definition.
func parseJSONFile(filePath string, data []byte) (*Policy, error) {
	var policy Policy
	if err := json.Unmarshal(data, &policy); err != nil {
		return nil, fmt.Errorf("failed to parse JSON policy: %w", err)
	}

	if policy.Name == "" {
		policy.Name = strings.TrimSuffix(filepath.Base(filePath), ".json")
	}
	if policy.Rego == "" {
		return nil, fmt.Errorf("%s: policy %s has no rego", filePath, policy.Name)
	}
	severity, err := ParseSeverity(string(policy.Severity))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filePath, err)
	}
	if policy.Severity == "" {
		severity = SeverityWarning
	}
	policy.Severity = severity
	policy.Source = filePath

	return &policy, nil
}

// headerComments returns the comments that open a Rego file, before the first
// non-comment line.
func headerComments(content string) []string {
	var comments []string

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			if len(comments) > 0 {
				break
			}
			continue
		}
		if !strings.HasPrefix(trimmed, "#") {
			break
		}
		if comment := strings.TrimSpace(strings.TrimPrefix(trimmed, "#")); comment != "" {
			comments = append(comments, comment)
		}
	}

	return comments
}
