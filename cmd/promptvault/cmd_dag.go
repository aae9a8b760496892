package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"promptvault/internal/dag"
	"promptvault/internal/pipeline"
)

var dagFlags struct {
	promptDir  string
	file       string
	inputsJSON string
	caller     string
	provider   string
	parallel   bool
}

var dagCmd = &cobra.Command{
	Use:   "dag",
	Short: "Execute a YAML workflow of composed prompts",
	Long: `Executes a workflow file describing prompt nodes and their dependencies.
Upstream node outputs feed downstream inputs; root inputs apply to every
node with final precedence. The run is fail-fast and prints all partial
results.`,
	RunE: runDag,
}

func init() {
	dagCmd.Flags().StringVar(&dagFlags.promptDir, "prompts", "prompts", "directory of prompt YAML files")
	dagCmd.Flags().StringVarP(&dagFlags.file, "file", "f", "", "workflow YAML file (required)")
	dagCmd.Flags().StringVar(&dagFlags.inputsJSON, "inputs-json", "", "root inputs as a JSON object")
	dagCmd.Flags().StringVar(&dagFlags.caller, "caller", "cli", "caller identity for access checks")
	dagCmd.Flags().StringVar(&dagFlags.provider, "provider", "", "provider override for all nodes")
	dagCmd.Flags().BoolVar(&dagFlags.parallel, "parallel", false, "run independent branches concurrently")
	dagCmd.MarkFlagRequired("file")
}

func runDag(cmd *cobra.Command, _ []string) error {
	_, executor, _, err := newExecutor(dagFlags.promptDir)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(dagFlags.file)
	if err != nil {
		return fmt.Errorf("read workflow: %w", err)
	}
	var def dag.Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return fmt.Errorf("parse workflow %s: %w", dagFlags.file, err)
	}

	rootInputs, err := parseInputs(nil, dagFlags.inputsJSON)
	if err != nil {
		return err
	}

	var opts []dag.Option
	if dagFlags.parallel {
		opts = append(opts, dag.WithParallel())
	}
	orchestrator := dag.New(executor, opts...)

	ec := pipeline.NewContext(dagFlags.caller)
	ec.Provider = dagFlags.provider

	res := orchestrator.Run(cmd.Context(), def, rootInputs, ec)
	if err := printJSON(res); err != nil {
		return err
	}
	if !res.Success {
		return fmt.Errorf("workflow failed at node %s: %s", res.Error.NodeID, res.Error.Err.Message)
	}
	return nil
}
