// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Command labelhub runs the label shop account server and manages its
// database and the local cart.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/holomush/labelhub/pkg/errutil"
)

// Version information set at build time via -ldflags.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// exitCode maps an error to the process status: 2 for configuration
// problems, so supervisors can tell a bad deployment from a runtime failure,
// and 1 for everything else.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	code := errutil.Code(err)
	if strings.HasPrefix(code, "CONFIG_") || code == "DATABASE_URL_INVALID" || code == "ORIGIN_PATTERN_INVALID" {
		return 2
	}
	return 1
}

func main() {
	cmd := NewRootCmd()
	cmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)
	os.Exit(exitCode(cmd.Execute()))
}
