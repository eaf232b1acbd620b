// Package config resolves the core's two file paths from the
// environment and, optionally, loads a YAML policy profile overriding
// the built-in default PolicyRuleSet — validated against a JSON Schema
// and semver-checked before it is trusted.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/kilnworks/pat/pkg/contracts"
)

const (
	defaultLogPath      = "pat_log.jsonl"
	defaultKeyringPath  = "pat_keys.json"
	defaultMirrorDBPath = "pat_mirror.db"
	defaultArchiveDir   = "pat_archive"

	DefaultPolicyID = "PAT_DEMO_001"
	DefaultVersion  = "0.2.0"
)

var defaultHighStakesActions = []string{"DISPATCH_POLICE", "ESCALATE_INCIDENT", "LOCKDOWN"}

const defaultConfidenceThreshold = 0.85

// DefaultPolicy is the built-in ruleset used when no POLICY_PROFILE
// override is configured.
var DefaultPolicy = contracts.PolicyRuleSet{
	PolicyID:            DefaultPolicyID,
	Version:             DefaultVersion,
	HighStakesActions:   defaultHighStakesActions,
	ConfidenceThreshold: defaultConfidenceThreshold,
}

// Config holds the core's external inputs: file paths and the active
// policy ruleset.
type Config struct {
	LogPath      string
	KeyringPath  string
	Policy       contracts.PolicyRuleSet
	OTELEnabled  bool
	OTELEndpoint string

	// MirrorDBPath is where the SQLite read-index mirror lives.
	MirrorDBPath string

	// ArchiveDir is the local CAS directory used for batch export when
	// no S3 bucket is configured.
	ArchiveDir string
	// ArchiveS3Bucket selects an S3-backed archive store instead of
	// the local filesystem one; Region/Endpoint/Prefix are ignored
	// when it is empty.
	ArchiveS3Bucket   string
	ArchiveS3Region   string
	ArchiveS3Endpoint string
	ArchiveS3Prefix   string
}

// Load resolves LOG_PATH, KEYRING_PATH, OTEL_EXPORTER_OTLP_ENDPOINT,
// MIRROR_DB_PATH, ARCHIVE_DIR, ARCHIVE_S3_* and, if POLICY_PROFILE
// names a YAML file, an overriding policy ruleset.
func Load() (Config, error) {
	cfg := Config{
		LogPath:      envOr("LOG_PATH", defaultLogPath),
		KeyringPath:  envOr("KEYRING_PATH", defaultKeyringPath),
		Policy:       DefaultPolicy,
		OTELEnabled:  envOr("OTEL_ENABLED", "") == "1" || envOr("OTEL_ENABLED", "") == "true",
		OTELEndpoint: envOr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),

		MirrorDBPath: envOr("MIRROR_DB_PATH", defaultMirrorDBPath),

		ArchiveDir:        envOr("ARCHIVE_DIR", defaultArchiveDir),
		ArchiveS3Bucket:   os.Getenv("ARCHIVE_S3_BUCKET"),
		ArchiveS3Region:   os.Getenv("ARCHIVE_S3_REGION"),
		ArchiveS3Endpoint: os.Getenv("ARCHIVE_S3_ENDPOINT"),
		ArchiveS3Prefix:   os.Getenv("ARCHIVE_S3_PREFIX"),
	}

	if profilePath := os.Getenv("POLICY_PROFILE"); profilePath != "" {
		p, err := LoadPolicyProfile(profilePath)
		if err != nil {
			return Config{}, fmt.Errorf("config: load policy profile: %w", err)
		}
		cfg.Policy = p
	}

	return cfg, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// policyProfileSchema constrains the shape of a policy profile document
// before it is trusted: required fields, types, and a semver-shaped
// version string.
const policyProfileSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["policy_id", "version", "high_stakes_actions", "confidence_threshold"],
  "properties": {
    "policy_id": {"type": "string", "minLength": 1},
    "version": {"type": "string", "pattern": "^[0-9]+\\.[0-9]+\\.[0-9]+"},
    "high_stakes_actions": {
      "type": "array",
      "items": {"type": "string", "minLength": 1}
    },
    "confidence_threshold": {"type": "number", "minimum": 0, "maximum": 1}
  }
}`

// LoadPolicyProfile reads a YAML (or JSON, a YAML subset) policy
// profile from path, validates it against policyProfileSchema, checks
// that its version field parses as semver, and returns the resulting
// PolicyRuleSet.
func LoadPolicyProfile(path string) (contracts.PolicyRuleSet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return contracts.PolicyRuleSet{}, fmt.Errorf("read profile: %w", err)
	}

	var generic map[string]any
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return contracts.PolicyRuleSet{}, fmt.Errorf("parse profile yaml: %w", err)
	}

	if err := validateAgainstSchema(generic); err != nil {
		return contracts.PolicyRuleSet{}, fmt.Errorf("profile schema: %w", err)
	}

	var profile struct {
		PolicyID            string   `yaml:"policy_id"`
		Version             string   `yaml:"version"`
		HighStakesActions   []string `yaml:"high_stakes_actions"`
		ConfidenceThreshold float64  `yaml:"confidence_threshold"`
	}
	if err := yaml.Unmarshal(raw, &profile); err != nil {
		return contracts.PolicyRuleSet{}, fmt.Errorf("decode profile: %w", err)
	}

	if _, err := semver.NewVersion(profile.Version); err != nil {
		return contracts.PolicyRuleSet{}, fmt.Errorf("policy version %q is not valid semver: %w", profile.Version, err)
	}

	return contracts.PolicyRuleSet{
		PolicyID:            profile.PolicyID,
		Version:             profile.Version,
		HighStakesActions:   profile.HighStakesActions,
		ConfidenceThreshold: profile.ConfidenceThreshold,
	}, nil
}

func validateAgainstSchema(doc map[string]any) error {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	const schemaURL = "https://pat.local/policy-profile.schema.json"
	if err := compiler.AddResource(schemaURL, strings.NewReader(policyProfileSchema)); err != nil {
		return err
	}
	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return err
	}
	return schema.Validate(doc)
}
