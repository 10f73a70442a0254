package main

import (
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/matanfield/lightsolver/core"
	"github.com/matanfield/lightsolver/export"
	"github.com/matanfield/lightsolver/miner"
)

var (
	configFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "TOML config file",
	}
	instanceFlag = &cli.StringFlag{
		Name:     "instance",
		Usage:    "candidate instance JSON file",
		Required: true,
	}
	capacityFlag = &cli.Uint64Flag{
		Name:  "capacity",
		Usage: "capacity budget, overrides the instance value",
	}
	orderingFlag = &cli.StringFlag{
		Name:  "ordering",
		Usage: "priority function (profit-per-gas, max-profit)",
	}
	deadlineFlag = &cli.Uint64Flag{
		Name:  "deadline",
		Usage: "build deadline in milliseconds, 0 for unbounded",
	}
	reportFlag = &cli.StringFlag{
		Name:  "report",
		Usage: "write the result ledger to this file",
	}
	remainingFlag = &cli.StringFlag{
		Name:  "export-remaining",
		Usage: "write the unresolved candidate pool to this file",
	}
	selectionFlag = &cli.StringFlag{
		Name:     "selection",
		Usage:    "external solver selection JSON file",
		Required: true,
	}
	verbosityFlag = &cli.IntFlag{
		Name:  "verbosity",
		Usage: "logging verbosity, 0-5",
		Value: int(log.LvlInfo),
	}
)

func main() {
	app := &cli.App{
		Name:  "lightsolver",
		Usage: "dependency-aware greedy order selection over exported instances",
		Flags: []cli.Flag{verbosityFlag},
		Before: func(ctx *cli.Context) error {
			log.Root().SetHandler(log.LvlFilterHandler(
				log.Lvl(ctx.Int(verbosityFlag.Name)),
				log.StreamHandler(os.Stderr, log.TerminalFormat(false))))
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "solve",
				Usage:  "run the greedy engine over an instance",
				Flags:  []cli.Flag{configFlag, instanceFlag, capacityFlag, orderingFlag, deadlineFlag, reportFlag, remainingFlag},
				Action: solve,
			},
			{
				Name:   "verify",
				Usage:  "validate an external solver selection against an instance",
				Flags:  []cli.Flag{configFlag, instanceFlag, capacityFlag, orderingFlag, selectionFlag, reportFlag},
				Action: verify,
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setup(ctx *cli.Context) (miner.AlgorithmConfig, *export.Instance, []*core.Order, error) {
	cfg := DefaultConfig
	if path := ctx.String(configFlag.Name); path != "" {
		var err error
		if cfg, err = loadConfig(path); err != nil {
			return miner.AlgorithmConfig{}, nil, nil, err
		}
	}
	if ctx.IsSet(orderingFlag.Name) {
		cfg.Ordering = ctx.String(orderingFlag.Name)
	}
	if ctx.IsSet(deadlineFlag.Name) {
		cfg.DeadlineMillis = ctx.Uint64(deadlineFlag.Name)
	}

	f, err := os.Open(ctx.String(instanceFlag.Name))
	if err != nil {
		return miner.AlgorithmConfig{}, nil, nil, err
	}
	defer f.Close()
	instance, err := export.ReadInstance(f)
	if err != nil {
		return miner.AlgorithmConfig{}, nil, nil, err
	}

	cfg.Capacity = instance.Capacity
	if ctx.IsSet(capacityFlag.Name) {
		cfg.Capacity = ctx.Uint64(capacityFlag.Name)
	}
	aconf, err := cfg.algorithmConfig()
	if err != nil {
		return miner.AlgorithmConfig{}, nil, nil, err
	}

	orders, rejected := instance.Orders()
	for _, rerr := range rejected {
		log.Warn("Rejected malformed instance item", "err", rerr)
	}
	log.Info("Loaded instance", "run", instance.RunID, "items", len(instance.Items),
		"accepted", len(orders), "capacity", aconf.Capacity)
	return aconf, instance, orders, nil
}

func solve(ctx *cli.Context) error {
	aconf, instance, orders, err := setup(ctx)
	if err != nil {
		return err
	}

	builder := miner.NewGreedyBuilder(aconf, miner.NewNoExecSimulator())
	accepted, rejected := builder.AddOrders(orders)
	for _, rerr := range rejected {
		log.Warn("Rejected order at ingestion", "err", rerr)
	}
	log.Info("Building", "orders", accepted, "ordering", aconf.Ordering)

	ledger, err := builder.Build(ctx.Context)
	if err != nil {
		return err
	}
	logLedger("Build finished", ledger)

	if path := ctx.String(reportFlag.Name); path != "" {
		if err := writeReport(path, instance.RunID, ledger); err != nil {
			return err
		}
	}
	if path := ctx.String(remainingFlag.Name); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		remaining := builder.Pool().Remaining()
		if err := export.WriteInstance(f, instance.RunID, ledger.CapacityRemaining(), remaining); err != nil {
			return err
		}
		log.Info("Exported remaining pool", "orders", len(remaining), "file", path)
	}
	return nil
}

func verify(ctx *cli.Context) error {
	aconf, instance, orders, err := setup(ctx)
	if err != nil {
		return err
	}

	f, err := os.Open(ctx.String(selectionFlag.Name))
	if err != nil {
		return err
	}
	defer f.Close()
	selection, err := export.ReadSelection(f)
	if err != nil {
		return err
	}

	sim := miner.NewNoExecSimulator()
	verified, err := miner.VerifySolution(orders, selection, sim, aconf.Capacity)
	if err != nil {
		return fmt.Errorf("selection invalid: %w", err)
	}
	logLedger("Selection verified", verified)

	// Replay the engine's own greedy pass for comparison.
	builder := miner.NewGreedyBuilder(aconf, sim)
	builder.AddOrders(orders)
	greedy, err := builder.Build(ctx.Context)
	if err != nil {
		return err
	}
	delta := new(big.Int).Sub(verified.Profit(), greedy.Profit())
	log.Info("Compared against greedy", "greedyProfit", greedy.Profit(),
		"selectionProfit", verified.Profit(), "delta", delta)

	if path := ctx.String(reportFlag.Name); path != "" {
		if err := writeReport(path, instance.RunID, verified); err != nil {
			return err
		}
	}
	return nil
}

func writeReport(path, runID string, ledger *core.Ledger) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := export.WriteReport(f, runID, ledger); err != nil {
		return err
	}
	log.Info("Wrote report", "file", path)
	return nil
}

func logLedger(msg string, ledger *core.Ledger) {
	log.Info(msg, "committed", ledger.Stats.Committed, "profit", ledger.Profit(),
		"capacityUsed", ledger.CapacityUsed(), "capacity", ledger.Capacity(),
		"stale", ledger.Stats.StaleDropped, "rejected", ledger.Stats.RejectedDropped,
		"skipped", ledger.Stats.CapacitySkipped, "deferred", ledger.Stats.Deferred,
		"deferredDropped", ledger.Stats.DeferredDropped, "retried", ledger.Stats.Retried)
}
