package cli

import (
	"github.com/TashanGKD/Tashan-TopicLab/internal/config"
	"github.com/TashanGKD/Tashan-TopicLab/internal/daemon"
	"github.com/spf13/cobra"
)

func newDaemonCmd() *cobra.Command {
	var (
		port        int
		intervalSec float64
		dev         bool
		pprofAddr   string
		runtimeKind string
		runnerCmd   string
		runnerArgs  []string
		sandboxHome string
		enableOtel  bool
	)

	cmd := &cobra.Command{
		Use:    "daemon",
		Short:  "Internal: run daemon process",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			home := config.MustHomeFrom(cmd.Context())
			return daemon.StartForeground(cmd.Context(), daemon.StartOptions{
				Home:           home,
				Port:           port,
				SyncInterval:   intervalSec,
				Dev:            dev,
				PprofAddr:      pprofAddr,
				Runtime:        runtimeKind,
				SubprocessCmd:  runnerCmd,
				SubprocessArgs: runnerArgs,
				SandboxHome:    sandboxHome,
				EnableOtel:     enableOtel,
			})
		},
	}

	cmd.Flags().IntVar(&port, "port", 3986, "Port for the HTTP API")
	cmd.Flags().Float64Var(&intervalSec, "sync-interval", 5.0, "Workspace reconciliation interval (seconds)")
	cmd.Flags().BoolVar(&dev, "dev", false, "Enable dev mode")
	cmd.Flags().StringVar(&pprofAddr, "pprof", "", "Enable pprof on address (e.g. 127.0.0.1:6060)")
	cmd.Flags().StringVar(&runtimeKind, "runtime", "", "Runtime: stub or subprocess")
	cmd.Flags().StringVar(&runnerCmd, "runner-cmd", "", "Command for subprocess runtime")
	cmd.Flags().StringSliceVar(&runnerArgs, "runner-args", nil, "Args for subprocess runtime")
	cmd.Flags().StringVar(&sandboxHome, "sandbox-home", "", "Run subprocess inside bubblewrap (Linux only)")
	cmd.Flags().BoolVar(&enableOtel, "otel", false, "Enable OpenTelemetry metrics")

	return cmd
}
