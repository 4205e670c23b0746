package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/vietddude/purity/internal/core/domain"
	"gopkg.in/yaml.v2"
)

// DefaultPegValue is the fixed amount every accepted transaction must carry.
const DefaultPegValue int64 = 314159

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML content, applies environment overrides and defaults,
// and validates the result.
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := applyEnvOverrides(&cfg.Policy); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *AppConfig {
	var cfg AppConfig
	applyDefaults(&cfg)
	return &cfg
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}

	p := &cfg.Policy
	if p.PegValue == 0 {
		p.PegValue = DefaultPegValue
	}
	if len(p.AllowedOrigins) == 0 {
		p.AllowedOrigins = []string{"mining", "reward", "p2p"}
	}
	if p.RejectThreshold == 0 {
		p.RejectThreshold = 0.7
	}
	if p.ConsensusThresholdNormal == 0 {
		p.ConsensusThresholdNormal = 0.6
	}
	if p.ConsensusThresholdPrivileged == 0 {
		p.ConsensusThresholdPrivileged = 0.8
	}
	if p.TraceHopLimit == 0 {
		p.TraceHopLimit = 20
	}
	if p.TraceNodeCap == 0 {
		p.TraceNodeCap = 10000
	}
	if p.ViolationTolerance == 0 {
		p.ViolationTolerance = 1
	}
	if p.ViolationLookback == 0 {
		p.ViolationLookback = 30 * 24 * time.Hour
	}
	if p.ScorerTimeout == 0 {
		p.ScorerTimeout = 2 * time.Second
	}
	if p.VoteTimeout == 0 {
		p.VoteTimeout = 2 * time.Second
	}
	if p.LedgerTimeout == 0 {
		p.LedgerTimeout = 3 * time.Second
	}

	if cfg.Scorer.Strategy == "" {
		cfg.Scorer.Strategy = "rule"
	}
	if len(cfg.Voters) == 0 {
		cfg.Voters = []VoterConfig{
			{ID: "score-strict", Kind: "score", MaxScore: 0.3},
			{ID: "score-lenient", Kind: "score", MaxScore: 0.5},
			{ID: "history", Kind: "history"},
		}
	}

	if cfg.Window.MaxEdges == 0 {
		cfg.Window.MaxEdges = 100000
	}
	if cfg.Window.MaxAge == 0 {
		cfg.Window.MaxAge = 24 * time.Hour
	}
	if cfg.Window.PruneInterval == 0 {
		cfg.Window.PruneInterval = time.Minute
	}

	r := &cfg.Redistribution
	if r.InitialDelay == 0 {
		r.InitialDelay = 2 * time.Second
	}
	if r.MaxDelay == 0 {
		r.MaxDelay = 60 * time.Second
	}
	if r.MaxAttempts == 0 {
		r.MaxAttempts = 5
	}
	if r.SweepInterval == 0 {
		r.SweepInterval = 5 * time.Minute
	}

	if cfg.Feed.Encoding == "" {
		cfg.Feed.Encoding = "json"
	}
	if cfg.Feed.Group == "" {
		cfg.Feed.Group = "purity-enforcer"
	}
	if cfg.Audit.Sink == "" {
		cfg.Audit.Sink = "log"
	}
	if cfg.Ledger.Timeout == 0 {
		cfg.Ledger.Timeout = p.LedgerTimeout
	}
}

// applyEnvOverrides lets operators override policy knobs without editing YAML.
func applyEnvOverrides(p *PolicyConfig) error {
	if v, ok := os.LookupEnv("PEG_VALUE"); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid PEG_VALUE %q: %w", v, err)
		}
		p.PegValue = n
	}
	if v, ok := os.LookupEnv("ALLOWED_ORIGINS"); ok && v != "" {
		p.AllowedOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				p.AllowedOrigins = append(p.AllowedOrigins, o)
			}
		}
	}
	floats := []struct {
		env string
		dst *float64
	}{
		{"REJECT_THRESHOLD", &p.RejectThreshold},
		{"CONSENSUS_THRESHOLD_NORMAL", &p.ConsensusThresholdNormal},
		{"CONSENSUS_THRESHOLD_PRIVILEGED", &p.ConsensusThresholdPrivileged},
	}
	for _, f := range floats {
		v, ok := os.LookupEnv(f.env)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", f.env, v, err)
		}
		*f.dst = n
	}
	ints := []struct {
		env string
		dst *int
	}{
		{"TRACE_HOP_LIMIT", &p.TraceHopLimit},
		{"VIOLATION_TOLERANCE_N", &p.ViolationTolerance},
	}
	for _, i := range ints {
		v, ok := os.LookupEnv(i.env)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", i.env, v, err)
		}
		*i.dst = n
	}
	return nil
}

// Validate checks ranges and cross-field constraints.
func (c *AppConfig) Validate() error {
	p := c.Policy
	if p.PegValue <= 0 {
		return fmt.Errorf("policy.peg_value must be positive, got %d", p.PegValue)
	}
	for _, th := range []struct {
		name string
		v    float64
	}{
		{"reject_threshold", p.RejectThreshold},
		{"escalation_score", p.EscalationScore},
		{"consensus_threshold_normal", p.ConsensusThresholdNormal},
		{"consensus_threshold_privileged", p.ConsensusThresholdPrivileged},
	} {
		if th.v < 0 || th.v > 1 {
			return fmt.Errorf("policy.%s must be within [0,1], got %v", th.name, th.v)
		}
	}
	if p.TraceHopLimit < 1 {
		return fmt.Errorf("policy.trace_hop_limit must be >= 1, got %d", p.TraceHopLimit)
	}
	if p.ViolationTolerance < 1 {
		return fmt.Errorf("policy.violation_tolerance must be >= 1, got %d", p.ViolationTolerance)
	}
	for _, o := range p.AllowedOrigins {
		if domain.ParseOrigin(o).IsDisallowed() {
			return fmt.Errorf("policy.allowed_origins must not contain %q", o)
		}
	}
	seen := make(map[string]bool, len(c.Privileged))
	for _, acc := range c.Privileged {
		if acc.Account == "" {
			return fmt.Errorf("privileged account without id")
		}
		if seen[acc.Account] {
			return fmt.Errorf("duplicate privileged account %q", acc.Account)
		}
		seen[acc.Account] = true
	}
	switch c.Scorer.Strategy {
	case "rule", "stub", "statistical":
	default:
		return fmt.Errorf("unknown scorer strategy %q", c.Scorer.Strategy)
	}
	return nil
}

// Origins returns AllowedOrigins parsed into domain values.
func (p PolicyConfig) Origins() []domain.Origin {
	out := make([]domain.Origin, 0, len(p.AllowedOrigins))
	for _, o := range p.AllowedOrigins {
		out = append(out, domain.ParseOrigin(o))
	}
	return out
}
