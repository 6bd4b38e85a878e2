// Copyright (C) 2026 FreightCtl Labs (ops@freightctl.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package registry

import "github.com/freightctl/freightctl/services/ops/datatypes"

// transitions is the legal status graph. Anything not listed is
// rejected.
var transitions = map[datatypes.LoadStatus][]datatypes.LoadStatus{
	datatypes.StatusPlanned:        {datatypes.StatusAssigned},
	datatypes.StatusAssigned:       {datatypes.StatusInTransit},
	datatypes.StatusInTransit:      {datatypes.StatusDelivered},
	datatypes.StatusDelivered:      {datatypes.StatusBillingBlocked, datatypes.StatusBillingReady},
	datatypes.StatusBillingBlocked: {datatypes.StatusBillingReady},
	datatypes.StatusBillingReady:   {datatypes.StatusBillingBlocked, datatypes.StatusExported},
	datatypes.StatusExported:       {},
}

// engineOwned edges cannot be taken through the manual transition API:
// assignment sets assigned, the billing ledger owns the billing_* pair,
// and the export bridge owns exported.
var engineOwned = map[datatypes.LoadStatus]bool{
	datatypes.StatusAssigned:       true,
	datatypes.StatusBillingBlocked: true,
	datatypes.StatusBillingReady:   true,
	datatypes.StatusExported:       true,
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to datatypes.LoadStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ManualTransitionAllowed reports whether an operator may take the edge
// directly (as opposed to it being owned by an engine).
func ManualTransitionAllowed(from, to datatypes.LoadStatus) bool {
	return CanTransition(from, to) && !engineOwned[to]
}
