package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Brownie44l1/depth-api/internal/model"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Load a model and print its tensor signature",
	RunE:  runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	engine, err := model.Open(settings.Model.Path, settings.ModelOptions())
	if err != nil {
		return fmt.Errorf("loading model: %w", err)
	}
	defer engine.Close()

	sig := engine.Signature()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Model:   %s\n", sig.Path)
	fmt.Fprintf(out, "Backend: %s\n", sig.Backend)
	fmt.Fprintf(out, "Input:   %v float32\n", sig.Input)
	fmt.Fprintf(out, "Output:  %v float32\n", sig.Output)
	fmt.Fprintf(out, "State:   %s\n", engine.State())
	return nil
}
