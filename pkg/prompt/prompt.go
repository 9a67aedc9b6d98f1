// Copyright 2026 © The Orchestra Authors
// SPDX-License-Identifier: Apache-2.0

// Package prompt loads the phase prompt templates used to assemble turn input.
//
// Templates are declared in a small YAML manifest mapping phase keys to
// template files and are loaded once at startup. A phase without a declared
// template falls back to a built-in minimal one so offline runs stay usable.
package prompt

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/jllopis/orchestra/pkg/core"
	"github.com/jllopis/orchestra/pkg/errors"
)

// Data is the material available to a phase template.
type Data struct {
	AgentName     string
	AgentRole     string
	Round         int
	Objective     string
	ProjectMemory string
	Summary       string
}

type manifest struct {
	Phases map[string]string `yaml:"phases"`
}

// Library holds one parsed template per phase.
type Library struct {
	templates map[core.TurnPhase]*template.Template
}

var builtins = map[core.TurnPhase]string{
	core.PhaseKickoff: "You are {{.AgentName}} ({{.AgentRole}}), leading round {{.Round}}.\n" +
		"Objective: {{.Objective}}\n{{if .ProjectMemory}}Project memory:\n{{.ProjectMemory}}\n{{end}}" +
		"Open the round and set direction for the team.",
	core.PhaseTask: "You are {{.AgentName}} ({{.AgentRole}}) in round {{.Round}}.\n" +
		"Objective: {{.Objective}}\n{{if .Summary}}Discussion so far:\n{{.Summary}}\n{{end}}" +
		"Contribute your part of the task.",
	core.PhaseReview: "You are {{.AgentName}} ({{.AgentRole}}), closing round {{.Round}}.\n" +
		"{{if .Summary}}Discussion so far:\n{{.Summary}}\n{{end}}" +
		"Review the round and summarize the outcome.",
}

// Load reads the manifest at path and parses every declared template file,
// resolving relative paths against baseDir. An empty path yields a library
// with only the built-in templates.
func Load(baseDir, path string) (*Library, error) {
	lib := &Library{templates: make(map[core.TurnPhase]*template.Template)}
	for phase, text := range builtins {
		lib.templates[phase] = template.Must(template.New(string(phase)).Parse(text))
	}
	if path == "" {
		return lib, nil
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(errors.CodeConfig, "read prompt manifest", err)
	}
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errors.New(errors.CodeConfig, "parse prompt manifest", err)
	}

	for key, file := range m.Phases {
		phase := core.TurnPhase(strings.ToLower(strings.TrimSpace(key)))
		switch phase {
		case core.PhaseKickoff, core.PhaseTask, core.PhaseReview:
		default:
			return nil, errors.New(errors.CodeConfig, fmt.Sprintf("unknown prompt phase %q", key), nil)
		}
		if !filepath.IsAbs(file) {
			file = filepath.Join(baseDir, file)
		}
		text, err := os.ReadFile(file)
		if err != nil {
			return nil, errors.New(errors.CodeConfig, fmt.Sprintf("read prompt template for %s", phase), err)
		}
		tmpl, err := template.New(string(phase)).Parse(string(text))
		if err != nil {
			return nil, errors.New(errors.CodeConfig, fmt.Sprintf("parse prompt template for %s", phase), err)
		}
		lib.templates[phase] = tmpl
	}
	return lib, nil
}

// Render produces the prompt for a phase.
func (l *Library) Render(phase core.TurnPhase, data Data) (string, error) {
	tmpl, ok := l.templates[phase]
	if !ok {
		return "", errors.New(errors.CodeConfig, fmt.Sprintf("no template for phase %q", phase), nil)
	}
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", errors.New(errors.CodeInternal, "render prompt", err)
	}
	return sb.String(), nil
}
