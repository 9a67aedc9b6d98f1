// Package config loads the run configuration: roster, budget ceilings,
// round cadence, storage paths and telemetry. Configuration is read once at
// startup and is read-only for the duration of a run.
package config

import (
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/jllopis/orchestra/pkg/budget"
	"github.com/jllopis/orchestra/pkg/core"
	"github.com/jllopis/orchestra/pkg/errors"
)

type Config struct {
	Log       LogConfig       `koanf:"log"`
	LLM       LLMConfig       `koanf:"llm"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Budget    BudgetConfig    `koanf:"budget"`
	Round     RoundConfig     `koanf:"round"`
	Roster    RosterConfig    `koanf:"roster"`
	Storage   StorageConfig   `koanf:"storage"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, text
}

type LLMConfig struct {
	Provider    string          `koanf:"provider"` // ollama, scripted
	Model       string          `koanf:"model"`
	BaseURL     string          `koanf:"base_url"`
	Temperature float64         `koanf:"temperature"`
	Pricing     map[string]Rate `koanf:"pricing"`
}

// Rate is the USD price per one million tokens for a model.
type Rate struct {
	PromptPerMTok     float64 `koanf:"prompt_per_mtok"`
	CompletionPerMTok float64 `koanf:"completion_per_mtok"`
}

type TelemetryConfig struct {
	Exporter     string `koanf:"exporter"` // stdout, otlp, none
	OTLPEndpoint string `koanf:"otlp_endpoint"`
	OTLPInsecure bool   `koanf:"otlp_insecure"`
}

// BudgetConfig holds the three ceilings and the per-turn reservation
// estimate. A missing ceiling leaves that dimension unconstrained; a ceiling
// explicitly set to zero denies the very first turn.
type BudgetConfig struct {
	MaxTokens  *int           `koanf:"max_tokens"`
	MaxCostUSD *float64       `koanf:"max_cost_usd"`
	MaxElapsed *time.Duration `koanf:"max_elapsed"`

	// EstimateTokens and EstimateCost are reserved before every turn. A zero
	// EstimateCost is derived from the pricing table at wiring time.
	EstimateTokens int     `koanf:"estimate_tokens"`
	EstimateCost   float64 `koanf:"estimate_cost"`
}

type RoundConfig struct {
	Rounds         int    `koanf:"rounds"`
	TalkBackCycles int    `koanf:"talk_back_cycles"`
	Objective      string `koanf:"objective"`
	Rotation       string `koanf:"rotation"` // round, run
}

// AgentSpec declares one roster member.
type AgentSpec struct {
	Name      string `koanf:"name"`
	Provider  string `koanf:"provider"`
	Model     string `koanf:"model"`
	Role      string `koanf:"role"`
	Privilege string `koanf:"privilege"` // standard, head, observer
	Position  int    `koanf:"position"`
}

type RosterConfig struct {
	Agents       []AgentSpec `koanf:"agents"`
	DefaultOrder []string    `koanf:"default_order"`
}

type StorageConfig struct {
	Backend           string `koanf:"backend"` // sqlite, file, memory
	TurnDB            string `koanf:"turn_db"`
	ScoreDB           string `koanf:"score_db"`
	TurnLogDir        string `koanf:"turn_log_dir"`
	ScoresFile        string `koanf:"scores_file"`
	OutputFile        string `koanf:"output_file"`
	ProjectMemoryFile string `koanf:"project_memory_file"`
	PromptManifest    string `koanf:"prompt_manifest"`
}

// Load reads configuration from defaults, an optional YAML file, and the
// environment (ORCHESTRA_LLM_PROVIDER -> llm.provider).
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Defaults
	k.Set("log.level", "info")
	k.Set("log.format", "text")
	k.Set("llm.provider", "scripted")
	k.Set("llm.model", "qwen2.5-coder:7b-instruct-q5_K_M")
	k.Set("llm.base_url", "http://localhost:11434")
	k.Set("telemetry.exporter", "none")
	k.Set("budget.estimate_tokens", 512)
	k.Set("round.rounds", 1)
	k.Set("round.talk_back_cycles", 1)
	k.Set("round.rotation", "round")
	k.Set("storage.backend", "sqlite")
	k.Set("storage.turn_db", "memory/turns.db")
	k.Set("storage.score_db", "rewards/scores.db")
	k.Set("storage.turn_log_dir", "memory/logs")
	k.Set("storage.scores_file", "rewards/agent_scores.json")
	k.Set("storage.output_file", "output/round_summaries.md")
	k.Set("storage.project_memory_file", "memory/project_memory.md")

	// 1. Load from file
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, errors.New(errors.CodeConfig, "load config file", err)
		}
	}

	// 2. Load from ENV (ORCHESTRA_LLM_PROVIDER -> llm.provider)
	if err := k.Load(env.Provider("ORCHESTRA_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "ORCHESTRA_")), "_", ".", -1)
	}), nil); err != nil {
		return nil, errors.New(errors.CodeConfig, "load config environment", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, errors.New(errors.CodeConfig, "unmarshal config", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if (c.Budget.MaxTokens != nil && *c.Budget.MaxTokens < 0) ||
		(c.Budget.MaxCostUSD != nil && *c.Budget.MaxCostUSD < 0) ||
		(c.Budget.MaxElapsed != nil && *c.Budget.MaxElapsed < 0) {
		return errors.New(errors.CodeConfig, "budget ceilings must not be negative", nil)
	}
	if c.Budget.EstimateTokens < 0 || c.Budget.EstimateCost < 0 {
		return errors.New(errors.CodeConfig, "budget estimates must not be negative", nil)
	}
	if c.Round.Rounds < 0 || c.Round.TalkBackCycles < 0 {
		return errors.New(errors.CodeConfig, "round cadence must not be negative", nil)
	}
	switch c.Storage.Backend {
	case "sqlite", "file", "memory":
	default:
		return errors.New(errors.CodeConfig, "unknown storage backend "+c.Storage.Backend, nil)
	}
	return nil
}

// Limits converts the budget section into tracker ceilings. A ceiling left
// out of the configuration stays unconstrained; one explicitly set to zero
// becomes budget.ZeroCeiling and denies every reservation.
func (c *Config) Limits() budget.Limits {
	var l budget.Limits
	if c.Budget.MaxTokens != nil {
		l.MaxTokens = *c.Budget.MaxTokens
		if l.MaxTokens == 0 {
			l.MaxTokens = budget.ZeroCeiling
		}
	}
	if c.Budget.MaxCostUSD != nil {
		l.MaxCost = *c.Budget.MaxCostUSD
		if l.MaxCost == 0 {
			l.MaxCost = budget.ZeroCeiling
		}
	}
	if c.Budget.MaxElapsed != nil {
		l.MaxDuration = *c.Budget.MaxElapsed
		if l.MaxDuration == 0 {
			l.MaxDuration = budget.ZeroCeiling
		}
	}
	return l
}

// Descriptors converts the roster section into core descriptors.
func (c *Config) Descriptors() []core.AgentDescriptor {
	out := make([]core.AgentDescriptor, 0, len(c.Roster.Agents))
	for i, spec := range c.Roster.Agents {
		privilege := core.Privilege(spec.Privilege)
		if spec.Privilege == "" {
			privilege = core.PrivilegeStandard
		}
		position := spec.Position
		if position == 0 {
			position = i
		}
		model := spec.Model
		if model == "" {
			model = c.LLM.Model
		}
		out = append(out, core.AgentDescriptor{
			Name:      spec.Name,
			Provider:  spec.Provider,
			Model:     model,
			Role:      spec.Role,
			Privilege: privilege,
			Position:  position,
		})
	}
	return out
}
