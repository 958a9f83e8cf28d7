package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"

	"github.com/joshuapare/flowkit/cmd/flowctl/logger"
	"github.com/joshuapare/flowkit/controller"
	"github.com/joshuapare/flowkit/flowid"
)

var (
	simCapacity   int
	simFlows      int
	simDistinct   int
	simTouchEvery int
	simLinkEvery  int
	simSeed       uint64
)

func init() {
	cmd := newSimulateCmd()
	cmd.Flags().IntVar(&simCapacity, "capacity", 1024, "Flow table capacity")
	cmd.Flags().IntVar(&simFlows, "flows", 10000, "Number of flow adds to issue")
	cmd.Flags().IntVar(&simDistinct, "distinct", 4096, "Number of distinct flow matches")
	cmd.Flags().IntVar(&simTouchEvery, "touch-every", 4, "Touch a recent flow every N adds (0 = never)")
	cmd.Flags().IntVar(&simLinkEvery, "link-every", 0, "Link every Nth add to the previous flow (0 = never)")
	cmd.Flags().Uint64Var(&simSeed, "seed", 1, "Random seed")
	rootCmd.AddCommand(cmd)
}

func newSimulateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "simulate",
		Short: "Drive a flow controller with a synthetic workload",
		Long: `The simulate command adds flows drawn from a fixed set of matches to a
controller with no datapath attached, touching recently added flows as it goes,
and reports how many adds were deduplicated or forced an eviction.

Example:
  flowctl simulate --capacity 3 --flows 4 --distinct 4
  flowctl simulate --capacity 10000 --flows 1000000 --touch-every 2 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(cmd.Context())
		},
	}
}

type simResult struct {
	controller.Stats
	Elapsed string `json:"elapsed"`
}

func runSimulate(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if simDistinct < 1 {
		return fmt.Errorf("--distinct must be positive, got %d", simDistinct)
	}

	c, err := controller.New(controller.Options{
		MaxFlows: simCapacity,
		Logger:   logger.L,
	})
	if err != nil {
		return fmt.Errorf("failed to create controller: %w", err)
	}

	printVerbose("Simulating %d adds over %d matches, capacity %d\n", simFlows, simDistinct, simCapacity)

	rng := rand.New(rand.NewPCG(simSeed, simSeed^0x9e3779b97f4a7c15))
	start := time.Now()
	prev := flowid.NullID
	for i := 1; i <= simFlows; i++ {
		match := fmt.Appendf(nil, "flow-%d", rng.IntN(simDistinct))

		partner := flowid.NullID
		if simLinkEvery > 0 && i%simLinkEvery == 0 {
			partner = prev
		}
		id, err := c.AddLinked(ctx, match, partner)
		if err != nil {
			return fmt.Errorf("add %d: %w", i, err)
		}
		prev = id

		// Traffic hitting an installed flow keeps it warm.
		if simTouchEvery > 0 && i%simTouchEvery == 0 {
			hit := fmt.Appendf(nil, "flow-%d", rng.IntN(simDistinct))
			if hid, ok := c.Lookup(hit); ok {
				if err := c.Touch(hid); err != nil {
					return err
				}
			}
		}
	}
	res := simResult{Stats: c.Stats(), Elapsed: time.Since(start).String()}

	if err := c.Close(ctx); err != nil {
		return err
	}
	if jsonOut {
		return printJSON(res)
	}
	printInfo("%s\n", res.Summary(language.English))
	printVerbose("elapsed %s\n", res.Elapsed)
	return nil
}
