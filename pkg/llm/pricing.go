// Copyright 2026 © The Orchestra Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import "strings"

// Pricing maps a model label to its per-million-token rates in USD.
// Unknown models cost zero, which matches local backends like Ollama.
type Pricing struct {
	rates map[string]Rate
}

// Rate is the USD price per one million tokens.
type Rate struct {
	PromptPerMTok     float64
	CompletionPerMTok float64
}

// NewPricing creates a pricing table.
func NewPricing(rates map[string]Rate) *Pricing {
	if rates == nil {
		rates = make(map[string]Rate)
	}
	return &Pricing{rates: rates}
}

// Set registers or replaces the rate for a model.
func (p *Pricing) Set(model string, rate Rate) {
	p.rates[normalizeModel(model)] = rate
}

// Cost computes the monetary cost of a usage for the given model.
func (p *Pricing) Cost(model string, usage Usage) float64 {
	rate, ok := p.rates[normalizeModel(model)]
	if !ok {
		return 0
	}
	return float64(usage.PromptTokens)*rate.PromptPerMTok/1e6 +
		float64(usage.CompletionTokens)*rate.CompletionPerMTok/1e6
}

func normalizeModel(model string) string {
	return strings.ToLower(strings.TrimSpace(model))
}
