// Copyright 2026 © The Orchestra Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
)

const version = "dev"

// Exit codes: 0 clean run, 1 fatal error, 2 halted on a budget ceiling.
const (
	exitOK     = 0
	exitFatal  = 1
	exitBudget = 2
)

type globalFlags struct {
	ConfigPath string
	BaseDir    string
	Help       bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	global, args, err := parseGlobalFlags(os.Args[1:])
	if err != nil {
		fatal(err)
	}
	if global.Help || len(args) == 0 {
		printUsage()
		return
	}

	switch cmd := args[0]; cmd {
	case "run":
		runRun(ctx, global, args[1:])
	case "chat":
		runChat(ctx, global, args[1:])
	case "scores":
		runScores(ctx, global, args[1:])
	case "turns":
		runTurns(ctx, global, args[1:])
	case "help":
		printUsage()
	case "version":
		printVersion()
	default:
		fatal(fmt.Errorf("unknown command %q", cmd))
	}
}

func parseGlobalFlags(args []string) (globalFlags, []string, error) {
	var global globalFlags
	i := 0
	for i < len(args) {
		arg := args[i]
		if !strings.HasPrefix(arg, "-") {
			break
		}
		switch arg {
		case "--config", "-config":
			if i+1 >= len(args) {
				return global, nil, fmt.Errorf("%s requires a value", arg)
			}
			global.ConfigPath = args[i+1]
			i += 2
		case "--base-dir", "-base-dir":
			if i+1 >= len(args) {
				return global, nil, fmt.Errorf("%s requires a value", arg)
			}
			global.BaseDir = args[i+1]
			i += 2
		case "--help", "-help", "-h":
			global.Help = true
			i++
		default:
			return global, nil, fmt.Errorf("unknown global flag %q", arg)
		}
	}
	return global, args[i:], nil
}

func printVersion() {
	fmt.Println(version)
}

func printUsage() {
	fmt.Println(`Orchestra round coordination engine

Usage:
  orchestra [global flags] <command> [args]

Global flags:
  --config <path>      Path to orchestra.yaml
  --base-dir <path>    Base directory for stores and output (default ".")

Commands:
  run [--rounds N]                    Run coordinated rounds over the roster
  chat <agent-a> <agent-b> [--cycles N]  Run a focused side chat between two agents
  scores                              Show the persisted agent score table
  turns [--agent <name>] [--round N]  Show logged turns
  version
  help

Exit codes:
  0  run completed
  1  fatal error
  2  run halted on a budget ceiling`)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(exitFatal)
}
