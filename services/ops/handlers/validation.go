// Copyright (C) 2026 FreightCtl Labs (ops@freightctl.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/freightctl/freightctl/services/ops/datatypes"
)

// Custom binding validations. Registered once on gin's shared validator
// so request structs can use them in binding tags.
func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("load_status", validateLoadStatus)
	}
}

// validateLoadStatus accepts only known load lifecycle statuses, so an
// unknown target fails binding instead of reaching the transition table.
func validateLoadStatus(fl validator.FieldLevel) bool {
	return datatypes.LoadStatus(fl.Field().String()).Valid()
}
