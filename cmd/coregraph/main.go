// Command coregraph is the runtime's process entry point: it parses the
// command line, builds a runtime.Runtime from a system config file, and
// submits one job in batch mode ("run"), exiting once the job reaches a
// terminal state.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/smallnest/coregraph/examplemodels"
	"github.com/smallnest/coregraph/repos"
	"github.com/smallnest/coregraph/runtime"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "coregraph",
		Short: "Execution core for job-graph based model runs",
	}
	root.AddCommand(newRunCmd())
	return root
}

func newRunCmd() *cobra.Command {
	var sysConfigPath, jobConfigPath string
	var devMode bool
	var startTimeout time.Duration

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Submit one job and exit once it reaches a terminal state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(sysConfigPath, jobConfigPath, devMode, startTimeout)
		},
	}
	cmd.Flags().StringVar(&sysConfigPath, "sys-config", "", "path to the runtime's system config (YAML or JSON)")
	cmd.Flags().StringVar(&jobConfigPath, "job-config", "", "path to the job config to submit (YAML or JSON)")
	cmd.Flags().BoolVar(&devMode, "dev", false, "run with debug-level logging")
	cmd.Flags().DurationVar(&startTimeout, "start-timeout", 5*time.Second, "how long to wait for the engine to start")
	cmd.MarkFlagRequired("sys-config")
	cmd.MarkFlagRequired("job-config")

	return cmd
}

// builtinRepositories registers the bundled reference models (see
// examplemodels) under a "builtin" repository id, so a job config can
// reference them without the core needing a real model-loading backend.
func builtinRepositories() repos.Repositories {
	loader := repos.NewInProcessLoader()
	loader.Register("examplemodels:Passthrough", examplemodels.NewPassthrough)
	return repos.NewStaticRepositories(map[string]repos.ModelLoader{"builtin": loader})
}

func runOnce(sysConfigPath, jobConfigPath string, devMode bool, startTimeout time.Duration) error {
	rt, err := runtime.NewRuntime(sysConfigPath, devMode,
		runtime.WithRepositories(builtinRepositories()),
		runtime.WithBatchMode(),
	)
	if err != nil {
		return err
	}

	if err := rt.Start(startTimeout); err != nil {
		return fmt.Errorf("coregraph: engine failed to start: %w", err)
	}

	_, resultCh, err := rt.SubmitJob(jobConfigPath)
	if err != nil {
		return fmt.Errorf("coregraph: %w", err)
	}

	result := <-resultCh
	rt.WaitForShutdown()

	if result.Err != nil {
		return fmt.Errorf("coregraph: job failed: %w", result.Err)
	}
	if code := rt.ShutdownCode(); code != 0 {
		return fmt.Errorf("coregraph: runtime shut down with code %d: %w", code, rt.ShutdownError())
	}
	fmt.Printf("job %s succeeded\n", result.JobID)
	return nil
}
