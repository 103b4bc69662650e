package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bluewave-labs/maskwise-sub001/pkg/cli"
	"github.com/bluewave-labs/maskwise-sub001/pkg/policy"
	policyerrors "github.com/bluewave-labs/maskwise-sub001/pkg/policy/errors"
)

var validateFlags struct {
	dir    string
	strict bool
	format string
}

var validateCmd = &cobra.Command{
	Use:   "validate [file...]",
	Short: "Validate policy files",
	Long: `Validate policy YAML files for syntax and schema errors.

Validation is exhaustive: every schema violation is reported in one
pass, with a path to the offending field. Advisory warnings (weak
thresholds, duplicate entity types) never fail validation unless
--strict is set.

Examples:
  # Validate a single file
  maskwise validate policy.yaml

  # Validate every policy in a directory
  maskwise validate --dir policies/

  # Strict mode (warnings as errors)
  maskwise validate policy.yaml --strict

  # JSON output for CI/CD
  maskwise validate policy.yaml --format json`,
	RunE: validatePolicies,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVarP(&validateFlags.dir, "dir", "d", "", "directory of policy files")
	validateCmd.Flags().BoolVar(&validateFlags.strict, "strict", false, "treat warnings as errors")
	validateCmd.Flags().StringVar(&validateFlags.format, "format", "text", "output format: text, json")
}

// fileResult is the validation outcome for one file.
type fileResult struct {
	File     string   `json:"file"`
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

func validatePolicies(cmd *cobra.Command, args []string) error {
	files := append([]string(nil), args...)

	if validateFlags.dir != "" {
		for _, pattern := range []string{"*.yaml", "*.yml"} {
			matches, err := filepath.Glob(filepath.Join(validateFlags.dir, pattern))
			if err != nil {
				return fmt.Errorf("failed to list policy files: %w", err)
			}
			files = append(files, matches...)
		}
	}

	if len(files) == 0 {
		return fmt.Errorf("no policy files given; pass file arguments or --dir")
	}

	results := make([]fileResult, 0, len(files))
	failed := false
	for _, file := range files {
		result := validatePolicyFile(file)
		if !result.Valid || (validateFlags.strict && len(result.Warnings) > 0) {
			failed = true
		}
		results = append(results, result)
	}

	if err := printResults(cmd, results); err != nil {
		return err
	}
	if failed {
		// Distinguishes invalid policies from runtime failures.
		os.Exit(1)
	}
	return nil
}

func validatePolicyFile(file string) fileResult {
	result := fileResult{File: file}

	raw, err := os.ReadFile(file)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		return result
	}

	vr, err := policy.Validate(raw)
	if err != nil {
		var docErr *policyerrors.DocumentError
		if errors.As(err, &docErr) {
			result.Errors = append(result.Errors, docErr.Error())
		} else {
			result.Errors = append(result.Errors, err.Error())
		}
		return result
	}

	result.Valid = vr.Valid
	for _, v := range vr.Errors {
		result.Errors = append(result.Errors, v.String())
	}
	result.Warnings = vr.Warnings
	return result
}

func printResults(cmd *cobra.Command, results []fileResult) error {
	out := cmd.OutOrStdout()

	if validateFlags.format == string(cli.FormatJSON) {
		formatter, err := cli.NewFormatter(validateFlags.format)
		if err != nil {
			return err
		}
		return formatter.FormatTo(out, results)
	}

	for _, r := range results {
		switch {
		case r.Valid && len(r.Warnings) == 0:
			fmt.Fprintf(out, "%s: OK\n", r.File)
		case r.Valid:
			fmt.Fprintf(out, "%s: OK (%d warnings)\n", r.File, len(r.Warnings))
		default:
			fmt.Fprintf(out, "%s: INVALID (%d errors)\n", r.File, len(r.Errors))
		}
		for _, e := range r.Errors {
			fmt.Fprintf(out, "  error: %s\n", e)
		}
		for _, w := range r.Warnings {
			fmt.Fprintf(out, "  warning: %s\n", w)
		}
	}
	return nil
}
