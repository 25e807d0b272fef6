// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 DIANA Project Authors

package server

import "errors"

var (
	errNoAddressConfigured = errors.New("no http address configured")
)
