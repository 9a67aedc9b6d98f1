// Copyright 2026 © The Orchestra Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/jllopis/orchestra/pkg/core"
)

func runScores(ctx context.Context, global globalFlags, args []string) {
	fs := flag.NewFlagSet("scores", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		fatal(err)
	}

	rt, err := buildRuntime(global)
	if err != nil {
		fatal(err)
	}
	defer rt.close()

	records, err := rt.rewards.Scores(ctx)
	if err != nil {
		fatal(err)
	}
	if len(records) == 0 {
		fmt.Println("no scores recorded")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "AGENT\tSCORE\tTURNS\tUPDATED")
	for _, rec := range records {
		fmt.Fprintf(w, "%s\t%.2f\t%d\t%s\n",
			rec.Agent, rec.Score, rec.Turns, formatTime(rec.UpdatedAt))
	}
	w.Flush()
}

func runTurns(ctx context.Context, global globalFlags, args []string) {
	fs := flag.NewFlagSet("turns", flag.ExitOnError)
	agent := fs.String("agent", "", "filter by agent name")
	round := fs.Int("round", 0, "filter by round number")
	if err := fs.Parse(args); err != nil {
		fatal(err)
	}
	if *agent == "" && *round == 0 {
		fatal(fmt.Errorf("turns requires --agent or --round"))
	}

	rt, err := buildRuntime(global)
	if err != nil {
		fatal(err)
	}
	defer rt.close()

	var turns []core.Turn
	if *agent != "" {
		turns, err = rt.store.ListByAgent(ctx, *agent)
	} else {
		turns, err = rt.store.ListByRound(ctx, *round)
	}
	if err != nil {
		fatal(err)
	}
	if len(turns) == 0 {
		fmt.Println("no turns recorded")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ROUND\tSEQ\tAGENT\tPHASE\tSTATUS\tTOKENS\tCOST")
	for _, turn := range turns {
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\t%d\t%.4f\n",
			turn.Round, turn.Seq, turn.Agent, turn.Phase, turn.Status, turn.Tokens, turn.Cost)
	}
	w.Flush()
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return "-"
	}
	return value.UTC().Format(time.RFC3339)
}
