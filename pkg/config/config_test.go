package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jllopis/orchestra/pkg/budget"
	"github.com/jllopis/orchestra/pkg/core"
	"github.com/jllopis/orchestra/pkg/errors"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("log.level = %q, want info", cfg.Log.Level)
	}
	if cfg.LLM.Provider != "scripted" {
		t.Errorf("llm.provider = %q, want scripted", cfg.LLM.Provider)
	}
	if cfg.Round.Rotation != "round" {
		t.Errorf("round.rotation = %q, want round", cfg.Round.Rotation)
	}
	if cfg.Budget.MaxTokens != nil || cfg.Budget.MaxCostUSD != nil || cfg.Budget.MaxElapsed != nil {
		t.Errorf("default budget should be unconstrained, got %+v", cfg.Budget)
	}
	if cfg.Budget.EstimateTokens != 512 {
		t.Errorf("budget.estimate_tokens = %d, want 512", cfg.Budget.EstimateTokens)
	}
	if limits := cfg.Limits(); limits != (budget.Limits{}) {
		t.Errorf("Limits() = %+v, want unconstrained", limits)
	}
	if cfg.Storage.Backend != "sqlite" {
		t.Errorf("storage.backend = %q, want sqlite", cfg.Storage.Backend)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "orchestra.yaml")
	data := `
log:
  level: debug
  format: json
budget:
  max_tokens: 5000
  max_cost_usd: 1.25
  max_elapsed: 30m
round:
  rounds: 3
  talk_back_cycles: 2
  objective: build the game
  rotation: run
roster:
  agents:
    - name: alice
      provider: ollama
      role: architect
      privilege: head
    - name: bob
      provider: ollama
      model: llama3.2:3b
      role: reviewer
  default_order: [alice, bob]
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("log = %+v", cfg.Log)
	}
	if cfg.Budget.MaxTokens == nil || *cfg.Budget.MaxTokens != 5000 {
		t.Errorf("max_tokens = %v, want 5000", cfg.Budget.MaxTokens)
	}
	if cfg.Budget.MaxElapsed == nil || *cfg.Budget.MaxElapsed != 30*time.Minute {
		t.Errorf("max_elapsed = %v, want 30m", cfg.Budget.MaxElapsed)
	}
	if cfg.Round.Rounds != 3 || cfg.Round.TalkBackCycles != 2 {
		t.Errorf("round = %+v", cfg.Round)
	}
	if cfg.Round.Rotation != "run" {
		t.Errorf("rotation = %q, want run", cfg.Round.Rotation)
	}
	if len(cfg.Roster.Agents) != 2 {
		t.Fatalf("agents = %d, want 2", len(cfg.Roster.Agents))
	}
	if cfg.Roster.Agents[0].Privilege != "head" {
		t.Errorf("agent[0].privilege = %q", cfg.Roster.Agents[0].Privilege)
	}

	limits := cfg.Limits()
	if limits.MaxTokens != 5000 || limits.MaxCost != 1.25 || limits.MaxDuration != 30*time.Minute {
		t.Errorf("Limits() = %+v", limits)
	}
}

func TestExplicitZeroCeilingMapsToDenyAll(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "orchestra.yaml")
	data := "budget:\n  max_tokens: 0\n  max_cost_usd: 2.5\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	limits := cfg.Limits()
	if limits.MaxTokens != budget.ZeroCeiling {
		t.Errorf("explicit zero max_tokens mapped to %d, want ZeroCeiling", limits.MaxTokens)
	}
	if limits.MaxCost != 2.5 {
		t.Errorf("max_cost = %v, want 2.5", limits.MaxCost)
	}
	if limits.MaxDuration != 0 {
		t.Errorf("absent max_elapsed mapped to %v, want unconstrained", limits.MaxDuration)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("ORCHESTRA_LOG_LEVEL", "warn")
	t.Setenv("ORCHESTRA_ROUND_ROUNDS", "5")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("log.level = %q, want warn", cfg.Log.Level)
	}
	if cfg.Round.Rounds != 5 {
		t.Errorf("round.rounds = %d, want 5", cfg.Round.Rounds)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !errors.IsCode(err, errors.CodeConfig) {
		t.Errorf("error code: %v", err)
	}
}

func TestValidateRejectsNegativeCeilings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(path, []byte("budget:\n  max_tokens: -1\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); !errors.IsCode(err, errors.CodeConfig) {
		t.Errorf("expected CONFIG_ERROR, got %v", err)
	}
}

func TestValidateRejectsUnknownBackend(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(path, []byte("storage:\n  backend: redis\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); !errors.IsCode(err, errors.CodeConfig) {
		t.Errorf("expected CONFIG_ERROR, got %v", err)
	}
}

func TestDescriptors(t *testing.T) {
	cfg := &Config{
		LLM: LLMConfig{Model: "default-model"},
		Roster: RosterConfig{Agents: []AgentSpec{
			{Name: "alice", Role: "architect", Privilege: "head"},
			{Name: "bob", Role: "reviewer", Model: "llama3.2:3b", Position: 7},
		}},
	}
	got := cfg.Descriptors()
	if len(got) != 2 {
		t.Fatalf("descriptors = %d, want 2", len(got))
	}
	if got[0].Privilege != core.PrivilegeHead {
		t.Errorf("alice privilege = %q", got[0].Privilege)
	}
	if got[0].Model != "default-model" {
		t.Errorf("alice model = %q, want inherited default", got[0].Model)
	}
	if got[1].Privilege != core.PrivilegeStandard {
		t.Errorf("bob privilege = %q, want standard default", got[1].Privilege)
	}
	if got[1].Position != 7 {
		t.Errorf("bob position = %d, want 7", got[1].Position)
	}
}
