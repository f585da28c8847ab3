package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Policy is the optional YAML overlay for tracker behaviour. Zero fields
// leave the environment configuration untouched.
//
//	archive_folder: Pile of Shame
//	sweep_period: 2m
//	schemes: [http, https]
//	browser:
//	  start_urls:
//	    - https://example.com/${START_PATH}
type Policy struct {
	ArchiveFolder string        `yaml:"archive_folder"`
	SweepPeriod   time.Duration `yaml:"sweep_period"`
	Schemes       []string      `yaml:"schemes"`
	Browser       BrowserPolicy `yaml:"browser"`
}

// BrowserPolicy configures the browser host.
type BrowserPolicy struct {
	StartURLs []string `yaml:"start_urls"`
}

// LoadPolicy reads and parses a YAML policy file, expanding env vars.
func LoadPolicy(path string) (*Policy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("policy: read %s: %w", path, err)
	}
	p, err := LoadPolicyBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("policy: %s: %w", path, err)
	}
	return p, nil
}

// LoadPolicyBytes parses a YAML policy from bytes.
func LoadPolicyBytes(data []byte) (*Policy, error) {
	expanded := expandEnvVars(string(data))

	var p Policy
	if err := yaml.Unmarshal([]byte(expanded), &p); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	for i, s := range p.Schemes {
		p.Schemes[i] = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(s), ":"))
	}
	if p.SweepPeriod < 0 {
		return nil, fmt.Errorf("sweep_period must not be negative, got %s", p.SweepPeriod)
	}
	return &p, nil
}

// Apply overlays the policy onto cfg.
func (p *Policy) Apply(cfg *Config) {
	if p.ArchiveFolder != "" {
		cfg.ArchiveFolder = p.ArchiveFolder
	}
	if p.SweepPeriod > 0 {
		cfg.SweepPeriod = p.SweepPeriod
	}
	if len(p.Browser.StartURLs) > 0 {
		cfg.BrowserStartURLs = strings.Join(p.Browser.StartURLs, ",")
	}
}

// envVarPattern matches ${VAR_NAME} and $VAR_NAME.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandEnvVars replaces ${VAR} and $VAR with the corresponding environment
// variable value. Missing vars are replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := strings.TrimPrefix(match, "${")
		name = strings.TrimSuffix(name, "}")
		name = strings.TrimPrefix(name, "$")
		return os.Getenv(name)
	})
}
