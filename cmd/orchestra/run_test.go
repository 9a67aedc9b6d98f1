// Copyright 2026 © The Orchestra Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"testing"

	"github.com/jllopis/orchestra/pkg/budget"
	"github.com/jllopis/orchestra/pkg/config"
)

func TestTurnEstimateDerivesCostFromPricing(t *testing.T) {
	cfg := &config.Config{
		LLM: config.LLMConfig{
			Model: "gpt-4o-mini",
			Pricing: map[string]config.Rate{
				"gpt-4o-mini": {PromptPerMTok: 0.15, CompletionPerMTok: 0.60},
			},
		},
		Budget: config.BudgetConfig{EstimateTokens: 1000},
	}

	got := turnEstimate(cfg, buildPricing(cfg))
	if got.Tokens != 1000 {
		t.Errorf("estimate tokens = %d, want 1000", got.Tokens)
	}
	// 500 prompt tokens at 0.15/MTok plus 500 completion tokens at 0.60/MTok.
	want := 500*0.15/1e6 + 500*0.60/1e6
	if got.Cost != want {
		t.Errorf("estimate cost = %v, want %v", got.Cost, want)
	}
}

func TestTurnEstimateKeepsExplicitCost(t *testing.T) {
	cfg := &config.Config{
		LLM: config.LLMConfig{
			Model:   "gpt-4o-mini",
			Pricing: map[string]config.Rate{"gpt-4o-mini": {PromptPerMTok: 5}},
		},
		Budget: config.BudgetConfig{EstimateTokens: 512, EstimateCost: 0.02},
	}

	got := turnEstimate(cfg, buildPricing(cfg))
	if got != (budget.Usage{Tokens: 512, Cost: 0.02}) {
		t.Errorf("estimate = %+v, want explicit cost preserved", got)
	}
}

func TestTurnEstimateUnknownModelCostsNothing(t *testing.T) {
	cfg := &config.Config{
		LLM:    config.LLMConfig{Model: "unpriced"},
		Budget: config.BudgetConfig{EstimateTokens: 512},
	}

	got := turnEstimate(cfg, buildPricing(cfg))
	if got.Cost != 0 {
		t.Errorf("estimate cost = %v, want 0 for unpriced model", got.Cost)
	}
}
