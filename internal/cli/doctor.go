package cli

import (
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/TashanGKD/Tashan-TopicLab/internal/config"
	"github.com/spf13/cobra"
)

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Verify runtime dependencies and configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			home := config.MustHomeFrom(cmd.Context())

			var problems []string

			cfg, err := config.LoadAgentConfig(home)
			if err != nil {
				problems = append(problems, fmt.Sprintf("config.yaml: %v", err))
			} else {
				if cfg.APIKey == "" {
					problems = append(problems, "missing model credentials: set anthropic.api_key in config.yaml or ANTHROPIC_API_KEY (agent jobs will use the stub runner)")
				}
				if cfg.RunnerCommand != "" {
					if _, err := exec.LookPath(cfg.RunnerCommand); err != nil {
						problems = append(problems, fmt.Sprintf("runner command %q not found on PATH", cfg.RunnerCommand))
					}
				}
			}

			if _, err := os.Stat(config.SkillsDir(home)); err != nil {
				problems = append(problems, fmt.Sprintf("skills directory missing: %s (expert presets and moderator modes unavailable)", config.SkillsDir(home)))
			}

			if len(problems) > 0 {
				for _, p := range problems {
					_, _ = fmt.Fprintln(cmd.ErrOrStderr(), p)
				}
				return errors.New("doctor checks failed")
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
	return cmd
}
