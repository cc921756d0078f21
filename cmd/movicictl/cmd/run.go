package cmd

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/nginfra/movici-simulation-core-sub002/cmn/nlog"
	"github.com/nginfra/movici-simulation-core-sub002/supervisor"
)

var runCmd = &cobra.Command{
	Use:   "run <scenario.json>",
	Short: "Launch the supervisor, services, and model processes for a scenario",
	Args:  cobra.ExactArgs(1),
	RunE:  runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

// modelBinary is the PATH lookup convention for a scenario-declared model:
// each model name resolves to an executable named movici-model-<name>.
// Model implementations are external collaborators -- this
// naming convention is this CLI's only opinion about how to find them.
func modelBinary(name string) string { return "movici-model-" + name }

func runRun(cmd *cobra.Command, args []string) error {
	scenarioPath := args[0]
	sc, err := loadScenario(scenarioPath)
	if err != nil {
		return err
	}

	registry := supervisor.NewRegistry()
	if err := registerBuiltinServices(registry); err != nil {
		return err
	}
	for _, m := range sc.Models {
		name := m.Name
		if err := registry.Register(supervisor.Plugin{
			Name: name,
			Kind: supervisor.KindModel,
			Command: func(a supervisor.StartArgs) *exec.Cmd {
				c := exec.Command(modelBinary(name))
				c.Env = append(os.Environ(),
					"MOVICI_SCENARIO_PATH="+a.ScenarioPath,
					"MOVICI_MODEL_NAME="+name,
				)
				for svc, addr := range a.Services {
					c.Env = append(c.Env, "MOVICI_SERVICE_"+svc+"="+addr)
				}
				return c
			},
		}); err != nil {
			return err
		}
	}

	sup := supervisor.New(registry)
	services, err := registry.ActiveServices(sc.Services)
	if err != nil {
		return err
	}
	for _, svc := range services {
		if err := sup.StartService(svc, scenarioPath); err != nil {
			return fmt.Errorf("start service %q: %w", svc.Name, err)
		}
	}

	modelNames := make([]string, len(sc.Models))
	for i, m := range sc.Models {
		modelNames[i] = m.Name
	}
	models, err := registry.ActiveModels(modelNames)
	if err != nil {
		return err
	}
	for _, mp := range models {
		if err := sup.StartModel(mp, scenarioPath, nil); err != nil {
			return fmt.Errorf("start model %q: %w", mp.Name, err)
		}
	}

	exitCode := sup.Shutdown()
	nlog.Infof("movicictl: run finished with exit code %d", exitCode)
	if exitCode != 0 {
		return fmt.Errorf("simulation exited with code %d", exitCode)
	}
	return nil
}

// registerBuiltinServices registers the three built-in services --
// init-data, update-data, and orchestrator -- each spawned via its own
// subprocess binary.
func registerBuiltinServices(registry *supervisor.Registry) error {
	services := []supervisor.Plugin{
		{
			Name:    "initdata",
			Kind:    supervisor.KindService,
			AutoUse: true,
			Command: func(a supervisor.StartArgs) *exec.Cmd {
				c := exec.Command("movici-initdatad")
				c.Env = os.Environ()
				return c
			},
		},
		{
			Name:    "updatedata",
			Kind:    supervisor.KindService,
			AutoUse: true,
			Command: func(a supervisor.StartArgs) *exec.Cmd {
				c := exec.Command("movici-updatedatad")
				c.Env = os.Environ()
				return c
			},
		},
		{
			Name:    "orchestrator",
			Kind:    supervisor.KindService,
			AutoUse: true,
			Command: func(a supervisor.StartArgs) *exec.Cmd {
				c := exec.Command("movici-orchestratord")
				c.Env = append(os.Environ(), "MOVICI_SCENARIO_PATH="+a.ScenarioPath)
				return c
			},
		},
	}
	for _, svc := range services {
		if err := registry.Register(svc); err != nil {
			return err
		}
	}
	return nil
}
