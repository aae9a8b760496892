package main

import (
	"github.com/spf13/cobra"
)

var infoFlags struct {
	promptDir string
	version   string
}

var infoCmd = &cobra.Command{
	Use:   "info <prompt-id>",
	Short: "Show a prompt's definition and usage metadata",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

func init() {
	infoCmd.Flags().StringVar(&infoFlags.promptDir, "prompts", "prompts", "directory of prompt YAML files")
	infoCmd.Flags().StringVar(&infoFlags.version, "version", "", "prompt version (default latest)")
}

func runInfo(cmd *cobra.Command, args []string) error {
	library, err := loadLibrary(infoFlags.promptDir)
	if err != nil {
		return err
	}
	def, meta, err := library.Get(cmd.Context(), args[0], infoFlags.version)
	if err != nil {
		return err
	}
	return printJSON(map[string]any{
		"definition": def,
		"metadata":   meta,
	})
}
