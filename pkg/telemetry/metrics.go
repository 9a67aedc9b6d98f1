// SPDX-License-Identifier: Apache-2.0
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Semantic conventions for coordination telemetry.
const (
	AttrAgentName  = "orchestra.agent.name"
	AttrAgentModel = "orchestra.agent.model"
	AttrRound      = "orchestra.round"
	AttrTurnPhase  = "orchestra.turn.phase"
	AttrTurnStatus = "orchestra.turn.status"
	AttrRunID      = "orchestra.run_id"
	AttrDimension  = "orchestra.budget.dimension"
)

// RoundMetrics tracks turn throughput, resource consumption and budget
// denials for production monitoring.
type RoundMetrics struct {
	turnCounter   metric.Int64Counter
	tokenCounter  metric.Int64Counter
	costCounter   metric.Float64Counter
	denialCounter metric.Int64Counter
	scoreGauge    metric.Float64Gauge
}

// NewRoundMetrics creates a metrics tracker with OTEL meters.
func NewRoundMetrics() (*RoundMetrics, error) {
	meter := otel.Meter("orchestra/coordinator")

	turnCounter, err := meter.Int64Counter(
		"orchestra.turns.total",
		metric.WithDescription("Total turns by agent, phase and status"),
	)
	if err != nil {
		return nil, err
	}

	tokenCounter, err := meter.Int64Counter(
		"orchestra.tokens.total",
		metric.WithDescription("Total tokens consumed by agent"),
	)
	if err != nil {
		return nil, err
	}

	costCounter, err := meter.Float64Counter(
		"orchestra.cost.total",
		metric.WithDescription("Total cost in USD by agent"),
	)
	if err != nil {
		return nil, err
	}

	denialCounter, err := meter.Int64Counter(
		"orchestra.budget.denials",
		metric.WithDescription("Budget denials by dimension"),
	)
	if err != nil {
		return nil, err
	}

	scoreGauge, err := meter.Float64Gauge(
		"orchestra.agent.score",
		metric.WithDescription("Current running score by agent"),
	)
	if err != nil {
		return nil, err
	}

	return &RoundMetrics{
		turnCounter:   turnCounter,
		tokenCounter:  tokenCounter,
		costCounter:   costCounter,
		denialCounter: denialCounter,
		scoreGauge:    scoreGauge,
	}, nil
}

// RecordTurn counts a completed or failed turn with its consumption.
func (m *RoundMetrics) RecordTurn(ctx context.Context, agent, phase, status string, tokens int, cost float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(AttrAgentName, agent),
		attribute.String(AttrTurnPhase, phase),
		attribute.String(AttrTurnStatus, status),
	)
	m.turnCounter.Add(ctx, 1, attrs)
	m.tokenCounter.Add(ctx, int64(tokens), metric.WithAttributes(attribute.String(AttrAgentName, agent)))
	m.costCounter.Add(ctx, cost, metric.WithAttributes(attribute.String(AttrAgentName, agent)))
}

// RecordDenial counts a budget denial for the breached dimension.
func (m *RoundMetrics) RecordDenial(ctx context.Context, dimension string) {
	if m == nil {
		return
	}
	m.denialCounter.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrDimension, dimension)))
}

// RecordScore records an agent's current running score.
func (m *RoundMetrics) RecordScore(ctx context.Context, agent string, score float64) {
	if m == nil {
		return
	}
	m.scoreGauge.Record(ctx, score, metric.WithAttributes(attribute.String(AttrAgentName, agent)))
}
