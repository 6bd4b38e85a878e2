// Copyright (C) 2026 FreightCtl Labs (ops@freightctl.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// opsd is the FreightCtl back-office operations daemon. It owns the
// dispatch state store and exposes the /v1 ops API: load lifecycle,
// driver assignment, ticket review, billing readiness, legacy export,
// and the autonomy cycle.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "opsd",
	Short: "FreightCtl back-office operations daemon",
	Long: `opsd runs the trucking back-office state engine: load registry,
driver assignment, ticket review, billing leakage detection, and the
export bridge to the legacy billing system.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
