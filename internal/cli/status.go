package cli

import (
	"fmt"

	"github.com/TashanGKD/Tashan-TopicLab/internal/config"
	"github.com/TashanGKD/Tashan-TopicLab/internal/daemon"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show TopicLab daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			home := config.MustHomeFrom(cmd.Context())
			st, err := daemon.Status(cmd.Context(), home)
			if err != nil {
				return err
			}
			if !st.Running {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "TopicLab not running")
				return nil
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "TopicLab running (pid %d, addr %s)\n", st.PID, st.Addr)
			return nil
		},
	}
	return cmd
}
