package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"promptvault/internal/schema"
)

var validateFlags struct {
	promptDir  string
	prompt     string
	version    string
	inputs     []string
	inputsJSON string
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate inputs against a prompt's schema without executing",
	RunE:  runValidate,
}

func init() {
	validateCmd.Flags().StringVar(&validateFlags.promptDir, "prompts", "prompts", "directory of prompt YAML files")
	validateCmd.Flags().StringVar(&validateFlags.prompt, "prompt", "", "prompt id (required)")
	validateCmd.Flags().StringVar(&validateFlags.version, "version", "", "prompt version (default latest)")
	validateCmd.Flags().StringArrayVar(&validateFlags.inputs, "input", nil, "input as key=value (repeatable; values are strings)")
	validateCmd.Flags().StringVar(&validateFlags.inputsJSON, "inputs-json", "", "inputs as a JSON object (typed values; wins over --input)")
	validateCmd.MarkFlagRequired("prompt")
}

func runValidate(cmd *cobra.Command, _ []string) error {
	library, err := loadLibrary(validateFlags.promptDir)
	if err != nil {
		return err
	}
	def, _, err := library.Get(cmd.Context(), validateFlags.prompt, validateFlags.version)
	if err != nil {
		return err
	}
	inputs, err := parseInputs(validateFlags.inputs, validateFlags.inputsJSON)
	if err != nil {
		return err
	}

	report := schema.Validate(inputs, def.Inputs)
	if err := printJSON(report); err != nil {
		return err
	}
	if !report.Valid {
		return fmt.Errorf("inputs invalid (%d errors)", len(report.Errors))
	}
	return nil
}
