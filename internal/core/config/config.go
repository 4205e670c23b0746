package config

import (
	"time"

	"github.com/vietddude/purity/internal/core/domain"
	redisclient "github.com/vietddude/purity/internal/infra/redis"
	"github.com/vietddude/purity/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server           ServerConfig               `yaml:"server"`
	Logging          LoggingConfig              `yaml:"logging"`
	Policy           PolicyConfig               `yaml:"policy"`
	Privileged       []domain.PrivilegedAccount `yaml:"privileged"`
	ExchangeAccounts []string                   `yaml:"exchange_accounts"`
	Scorer           ScorerConfig               `yaml:"scorer"`
	Voters           []VoterConfig              `yaml:"voters"`
	Window           WindowConfig               `yaml:"window"`
	Redistribution   RedistributionConfig       `yaml:"redistribution"`
	Workers          int                        `yaml:"workers"`
	Feed             FeedConfig                 `yaml:"feed"`
	Audit            AuditConfig                `yaml:"audit"`
	Ledger           LedgerConfig               `yaml:"ledger"`
	Redis            redisclient.Config         `yaml:"redis"`
	Database         postgres.Config            `yaml:"database"`
}

// ServerConfig holds HTTP and gRPC server settings.
type ServerConfig struct {
	Port     int `yaml:"port"`
	GRPCPort int `yaml:"grpc_port"` // 0 = disabled
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// PolicyConfig carries the enforcement knobs. Every field can be overridden
// from the environment using the upper-case option name.
type PolicyConfig struct {
	PegValue                     int64         `yaml:"peg_value"`                      // PEG_VALUE
	AllowedOrigins               []string      `yaml:"allowed_origins"`                // ALLOWED_ORIGINS
	RejectThreshold              float64       `yaml:"reject_threshold"`               // REJECT_THRESHOLD
	EscalationScore              float64       `yaml:"escalation_score"`               // 0 = never escalate non-privileged
	ConsensusThresholdNormal     float64       `yaml:"consensus_threshold_normal"`     // CONSENSUS_THRESHOLD_NORMAL
	ConsensusThresholdPrivileged float64       `yaml:"consensus_threshold_privileged"` // CONSENSUS_THRESHOLD_PRIVILEGED
	TraceHopLimit                int           `yaml:"trace_hop_limit"`                // TRACE_HOP_LIMIT
	TraceNodeCap                 int           `yaml:"trace_node_cap"`
	ViolationTolerance           int           `yaml:"violation_tolerance"` // VIOLATION_TOLERANCE_N
	ViolationLookback            time.Duration `yaml:"violation_lookback"`
	ScorerTimeout                time.Duration `yaml:"scorer_timeout"`
	VoteTimeout                  time.Duration `yaml:"vote_timeout"`
	LedgerTimeout                time.Duration `yaml:"ledger_timeout"`
}

// ScorerConfig selects the anomaly scoring strategy.
type ScorerConfig struct {
	Strategy  string   `yaml:"strategy"` // rule, stub, statistical
	StubScore float64  `yaml:"stub_score"`
	Keywords  []string `yaml:"keywords"`
	Noise     float64  `yaml:"noise"` // amplitude of pseudo-random augmentation, 0 = off
	Seed      uint64   `yaml:"seed"`
}

// VoterConfig declares one consensus voter.
type VoterConfig struct {
	ID            string  `yaml:"id"`
	Kind          string  `yaml:"kind"` // score, history, random
	MaxScore      float64 `yaml:"max_score"`
	ApproveChance float64 `yaml:"approve_chance"`
	Seed          uint64  `yaml:"seed"`
}

// WindowConfig bounds the exposure graph.
type WindowConfig struct {
	MaxEdges      int           `yaml:"max_edges"`
	MaxAge        time.Duration `yaml:"max_age"`
	PruneInterval time.Duration `yaml:"prune_interval"`
}

// RedistributionConfig controls retries of ledger writes for frozen value.
type RedistributionConfig struct {
	InitialDelay  time.Duration `yaml:"initial_delay"`
	MaxDelay      time.Duration `yaml:"max_delay"`
	MaxAttempts   int           `yaml:"max_attempts"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// FeedConfig configures the Kafka transaction feed. Empty brokers = disabled.
type FeedConfig struct {
	Brokers  []string `yaml:"brokers"`
	Topic    string   `yaml:"topic"`
	Group    string   `yaml:"group"`
	Encoding string   `yaml:"encoding"` // json, cbor
}

// AuditConfig selects the audit sink.
type AuditConfig struct {
	Sink    string   `yaml:"sink"` // log, kafka
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	Chain   bool     `yaml:"chain"` // hash-chain events before emitting
}

// LedgerConfig points at the ledger collaborator. Empty URL = in-memory ledger.
type LedgerConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}
