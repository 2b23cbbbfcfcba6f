// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Command gen-schema writes the labelhub config file JSON Schema, or with
// --check verifies that the committed copy is current.
package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/holomush/labelhub/internal/config"
)

const defaultOutPath = "schemas/config.schema.json"

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	flags := pflag.NewFlagSet("gen-schema", pflag.ContinueOnError)
	outPath := flags.StringP("out", "o", defaultOutPath, "schema file to write")
	check := flags.Bool("check", false, "fail if the schema file is missing or stale instead of writing it")
	if err := flags.Parse(args); err != nil {
		return oops.Code("USAGE").Wrap(err)
	}

	schema, err := config.GenerateSchema()
	if err != nil {
		return err
	}

	if *check {
		current, err := os.ReadFile(*outPath)
		if err != nil {
			return oops.Code("SCHEMA_MISSING").With("path", *outPath).Wrap(err)
		}
		if !bytes.Equal(current, schema) {
			return oops.Code("SCHEMA_STALE").With("path", *outPath).
				Errorf("%s is out of date; run gen-schema", *outPath)
		}
		fmt.Fprintf(stdout, "%s is up to date\n", *outPath)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(*outPath), 0o750); err != nil {
		return oops.Code("SCHEMA_WRITE_FAILED").With("path", *outPath).Wrap(err)
	}
	if err := os.WriteFile(*outPath, schema, 0o600); err != nil {
		return oops.Code("SCHEMA_WRITE_FAILED").With("path", *outPath).Wrap(err)
	}

	fmt.Fprintf(stdout, "Generated %s\n", *outPath)
	return nil
}
