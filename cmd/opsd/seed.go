// Copyright (C) 2026 FreightCtl Labs (ops@freightctl.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/freightctl/freightctl/pkg/logging"
	"github.com/freightctl/freightctl/services/ops/config"
	"github.com/freightctl/freightctl/services/ops/seed"
)

var (
	seedConfigPath     string
	seedDBDir          string
	seedRandomSeed     int64
	seedLoads          int
	seedExceptionRatio float64

	seedCmd = &cobra.Command{
		Use:   "seed",
		Short: "Seed a deterministic synthetic scenario",
		Long: `Populates the store with synthetic loads, assignments, and review
tickets for demos and smoke tests. The same --seed always produces the
same scenario. Point --db at the directory the server uses.`,
		RunE: runSeed,
	}
)

func init() {
	seedCmd.Flags().StringVarP(&seedConfigPath, "config", "c", "",
		"config file path (falls back to $"+config.EnvConfigPath+")")
	seedCmd.Flags().StringVar(&seedDBDir, "db", "", "Badger data directory (overrides config)")
	seedCmd.Flags().Int64Var(&seedRandomSeed, "seed", 1, "random seed")
	seedCmd.Flags().IntVar(&seedLoads, "loads", 20, "number of loads to create")
	seedCmd.Flags().Float64Var(&seedExceptionRatio, "exception-ratio", 0.2,
		"fraction of tickets submitted with missing paperwork")
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(seedConfigPath)
	if err != nil {
		return err
	}
	if seedDBDir != "" {
		cfg.Store.Dir = seedDBDir
	}
	if seedExceptionRatio < 0 || seedExceptionRatio > 1 {
		return fmt.Errorf("exception-ratio must be in [0,1], got %v", seedExceptionRatio)
	}

	logger := logging.New(logging.Config{
		Level:   parseLogLevel(cfg.Logging.Level),
		Service: "opsd-seed",
		JSON:    cfg.Logging.JSON,
	})
	defer logger.Close()

	s, err := openStore(cfg, nil, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer s.Close()

	deps := buildDeps(cfg, s, nil, logger)
	result, err := seed.Run(context.Background(), deps.Registry, deps.Assigner,
		deps.Reviewer, seed.Options{
			Seed:           seedRandomSeed,
			Loads:          seedLoads,
			ExceptionRatio: seedExceptionRatio,
		}, logger)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
