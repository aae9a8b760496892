package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"promptvault/internal/pipeline"
)

var execFlags struct {
	promptDir  string
	prompt     string
	version    string
	inputs     []string
	inputsJSON string
	provider   string
	caller     string
}

var execCmd = &cobra.Command{
	Use:   "exec",
	Short: "Execute a single prompt and print the signed result",
	RunE:  runExec,
}

func init() {
	execCmd.Flags().StringVar(&execFlags.promptDir, "prompts", "prompts", "directory of prompt YAML files")
	execCmd.Flags().StringVar(&execFlags.prompt, "prompt", "", "prompt id to execute (required)")
	execCmd.Flags().StringVar(&execFlags.version, "version", "", "prompt version (default latest)")
	execCmd.Flags().StringArrayVar(&execFlags.inputs, "input", nil, "input as key=value (repeatable; values are strings)")
	execCmd.Flags().StringVar(&execFlags.inputsJSON, "inputs-json", "", "inputs as a JSON object (typed values; wins over --input)")
	execCmd.Flags().StringVar(&execFlags.provider, "provider", "", "provider override (mock, openai, anthropic)")
	execCmd.Flags().StringVar(&execFlags.caller, "caller", "cli", "caller identity for access checks")
	execCmd.MarkFlagRequired("prompt")
}

func runExec(cmd *cobra.Command, _ []string) error {
	_, executor, _, err := newExecutor(execFlags.promptDir)
	if err != nil {
		return err
	}
	inputs, err := parseInputs(execFlags.inputs, execFlags.inputsJSON)
	if err != nil {
		return err
	}

	ec := pipeline.NewContext(execFlags.caller)
	ec.Provider = execFlags.provider

	res := executor.Execute(cmd.Context(), execFlags.prompt, execFlags.version, inputs, ec)
	if err := printJSON(res); err != nil {
		return err
	}
	if !res.Success {
		return fmt.Errorf("execution failed: %s", res.Metadata.Error.Message)
	}
	return nil
}
