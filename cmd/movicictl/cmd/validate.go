package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nginfra/movici-simulation-core-sub002/config"
)

var validateScenarioCmd = &cobra.Command{
	Use:   "validate-scenario <scenario.json>",
	Short: "Parse and sanity-check a scenario file without running it",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidateScenario,
}

func init() {
	rootCmd.AddCommand(validateScenarioCmd)
}

func runValidateScenario(cmd *cobra.Command, args []string) error {
	sc, err := loadScenario(args[0])
	if err != nil {
		return err
	}
	if len(sc.Models) == 0 {
		return fmt.Errorf("scenario %q declares no models", args[0])
	}
	seen := make(map[string]bool, len(sc.Models))
	for _, m := range sc.Models {
		if m.Name == "" {
			return fmt.Errorf("scenario %q has a model with an empty name", args[0])
		}
		if seen[m.Name] {
			return fmt.Errorf("scenario %q declares model %q more than once", args[0], m.Name)
		}
		seen[m.Name] = true
	}
	fmt.Printf("scenario %q is valid: %d model(s), %d service(s), %d dataset(s)\n",
		args[0], len(sc.Models), len(sc.Services), len(sc.Datasets))
	return nil
}

func loadScenario(path string) (config.Scenario, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return config.Scenario{}, fmt.Errorf("read scenario: %w", err)
	}
	var sc config.Scenario
	if err := json.Unmarshal(b, &sc); err != nil {
		return config.Scenario{}, fmt.Errorf("parse scenario: %w", err)
	}
	return sc, nil
}
