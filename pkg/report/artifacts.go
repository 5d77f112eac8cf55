package report

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/ralf-homelab/ralf/pkg/policy"
)

//go:embed schemas/*.schema.yaml
var schemaFiles embed.FS

// ArtifactKind identifies the record type of a results-directory artifact.
type ArtifactKind string

const (
	ArtifactPolicyFinding ArtifactKind = "policy-finding"
	ArtifactBackupJob     ArtifactKind = "backup-job"
)

// Schedules are the windows of a discovered backup job.
type Schedules struct {
	Backup string `json:"backup,omitempty"`
	Verify string `json:"verify,omitempty"`
	Sync   string `json:"sync,omitempty"`
}

// BackupJob is a backup job discovered on the backup server.
type BackupJob struct {
	// ID defaults to the artifact file stem.
	ID        string    `json:"id"`
	Datastore string    `json:"datastore"`
	Namespace string    `json:"namespace,omitempty"`
	Endpoint  string    `json:"endpoint,omitempty"`
	Schedules Schedules `json:"schedules"`

	// Retention is the retention as reported. It is parsed during reconciliation.
	Retention string   `json:"retention,omitempty"`
	Guests    []string `json:"guests,omitempty"`
	Source    string   `json:"source"`
}

// Artifact is one decoded results-directory file. Exactly one of Finding and
// BackupJob is set.
type Artifact struct {
	Kind      ArtifactKind
	Finding   *policy.Finding
	BackupJob *BackupJob
}

// ArtifactReader validates and decodes results-directory artifacts.
type ArtifactReader struct {
	schemas map[ArtifactKind]*jsonschema.Schema
}

// NewArtifactReader compiles the embedded artifact schemas.
func NewArtifactReader() (*ArtifactReader, error) {
	r := &ArtifactReader{schemas: make(map[ArtifactKind]*jsonschema.Schema)}

	for _, kind := range []ArtifactKind{ArtifactPolicyFinding, ArtifactBackupJob} {
		schema, err := compileSchema(kind)
		if err != nil {
			return nil, fmt.Errorf("failed to compile %s schema: %w", kind, err)
		}
		r.schemas[kind] = schema
	}

	return r, nil
}

// compileSchema loads an embedded YAML schema, converts it to JSON and compiles it.
func compileSchema(kind ArtifactKind) (*jsonschema.Schema, error) {
	data, err := schemaFiles.ReadFile("schemas/" + string(kind) + ".schema.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}

	var schemaObj interface{}
	if err := yaml.Unmarshal(data, &schemaObj); err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}

	jsonData, err := json.Marshal(schemaObj)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}

	url := fmt.Sprintf("ralf://artifacts/%s.schema.json", kind)
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, bytes.NewReader(jsonData)); err != nil {
		return nil, err
	}

	return compiler.Compile(url)
}

// ReadFile reads and decodes one artifact file.
func (r *ArtifactReader) ReadFile(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}
	return r.Decode(data, path)
}

// Decode validates and decodes an artifact. The source names the file the data
// came from; its stem is the default policy name or job id.
func (r *ArtifactReader) Decode(data []byte, source string) (*Artifact, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("invalid JSON: trailing data after the record")
	}

	record, ok := doc.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("artifact must be a JSON object, got %s", jsonKindName(doc))
	}

	kind, err := detectKind(record)
	if err != nil {
		return nil, err
	}

	if err := r.schemas[kind].Validate(doc); err != nil {
		return nil, fmt.Errorf("%s does not match schema: %s", kind, schemaMessage(err))
	}

	stem := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))

	switch kind {
	case ArtifactBackupJob:
		job, err := decodeBackupJob(data, stem, source)
		if err != nil {
			return nil, err
		}
		return &Artifact{Kind: kind, BackupJob: job}, nil
	default:
		finding, err := decodeFinding(data, stem, source)
		if err != nil {
			return nil, err
		}
		return &Artifact{Kind: kind, Finding: finding}, nil
	}
}

// detectKind reads the kind field, or infers the kind from the fields present.
func detectKind(record map[string]interface{}) (ArtifactKind, error) {
	if raw, ok := record["kind"]; ok {
		s, _ := raw.(string)
		switch ArtifactKind(strings.ToLower(strings.TrimSpace(s))) {
		case ArtifactPolicyFinding:
			return ArtifactPolicyFinding, nil
		case ArtifactBackupJob:
			return ArtifactBackupJob, nil
		default:
			return "", fmt.Errorf("unknown artifact kind %v", raw)
		}
	}

	if _, ok := record["datastore"]; ok {
		return ArtifactBackupJob, nil
	}
	for _, key := range []string{"policy", "status", "target", "severity"} {
		if _, ok := record[key]; ok {
			return ArtifactPolicyFinding, nil
		}
	}

	return "", fmt.Errorf("cannot determine artifact kind: expected a policy finding or a backup job")
}

type findingRecord struct {
	Policy   string `json:"policy"`
	Target   string `json:"target"`
	Status   string `json:"status"`
	Severity string `json:"severity"`
	Details  string `json:"details"`
	Summary  string `json:"summary"`
}

func decodeFinding(data []byte, stem, source string) (*policy.Finding, error) {
	var rec findingRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode policy finding: %w", err)
	}

	status, err := policy.ParseStatus(rec.Status)
	if err != nil {
		return nil, err
	}
	severity, err := policy.ParseSeverity(rec.Severity)
	if err != nil {
		return nil, err
	}

	finding := &policy.Finding{
		Policy:   strings.TrimSpace(rec.Policy),
		Target:   strings.TrimSpace(rec.Target),
		Status:   status,
		Severity: severity,
		Details:  rec.Details,
		Source:   source,
	}
	if finding.Policy == "" {
		finding.Policy = stem
	}
	if finding.Details == "" {
		finding.Details = rec.Summary
	}

	return finding, nil
}

type backupJobRecord struct {
	ID        string      `json:"id"`
	Datastore string      `json:"datastore"`
	Namespace string      `json:"namespace"`
	Endpoint  string      `json:"endpoint"`
	Schedules Schedules   `json:"schedules"`
	Retention interface{} `json:"retention"`
	Guests    []string    `json:"guests"`
}

func decodeBackupJob(data []byte, stem, source string) (*BackupJob, error) {
	var rec backupJobRecord
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("failed to decode backup job: %w", err)
	}

	var retention string
	switch v := rec.Retention.(type) {
	case nil:
	case string:
		retention = v
	case json.Number:
		retention = v.String()
	default:
		return nil, fmt.Errorf("retention must be a string or a count")
	}

	job := &BackupJob{
		ID:        strings.TrimSpace(rec.ID),
		Datastore: strings.TrimSpace(rec.Datastore),
		Namespace: strings.TrimSpace(rec.Namespace),
		Endpoint:  strings.TrimSpace(rec.Endpoint),
		Schedules: rec.Schedules,
		Retention: strings.TrimSpace(retention),
		Guests:    rec.Guests,
		Source:    source,
	}
	if job.ID == "" {
		job.ID = stem
	}
	if job.Datastore == "" {
		return nil, fmt.Errorf("backup job %s has an empty datastore", job.ID)
	}

	return job, nil
}

// schemaMessage flattens a validation error to its most specific causes.
func schemaMessage(err error) string {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return err.Error()
	}

	var leaves []string
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			location := e.InstanceLocation
			if location == "" {
				location = "/"
			}
			leaves = append(leaves, fmt.Sprintf("%s: %s", location, e.Message))
			return
		}
		for _, cause := range e.Causes {
			walk(cause)
		}
	}
	walk(verr)

	return strings.Join(leaves, "; ")
}

func jsonKindName(v interface{}) string {
	switch v.(type) {
	case []interface{}:
		return "an array"
	case string:
		return "a string"
	case json.Number:
		return "a number"
	case bool:
		return "a boolean"
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%T", v)
	}
}
