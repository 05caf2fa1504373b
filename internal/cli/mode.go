package cli

import (
	"fmt"

	"github.com/TashanGKD/Tashan-TopicLab/pkg/models"
	"github.com/spf13/cobra"
)

func newModeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mode",
		Short: "Manage moderator modes",
	}
	cmd.AddCommand(newModeListCmd())
	cmd.AddCommand(newModeShowCmd())
	cmd.AddCommand(newModeSetCmd())
	return cmd
}

func newModeListCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List available moderator modes",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := apiClient(cmd, addr)
			if err != nil {
				return err
			}
			modes, err := c.ListModeratorModes(cmd.Context())
			if err != nil {
				return err
			}
			for _, m := range modes {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s (%d rounds): %s\n", m.ID, m.NumRounds, m.Description)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Server address (default: from running daemon)")
	return cmd
}

func newModeShowCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "show <topic-id>",
		Short: "Show a topic's moderator configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := apiClient(cmd, addr)
			if err != nil {
				return err
			}
			cfg, err := c.ModeratorMode(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Mode: %s (%d rounds)\n", cfg.ModeID, cfg.NumRounds)
			if cfg.CustomPrompt != "" {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "\n%s\n", cfg.CustomPrompt)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Server address (default: from running daemon)")
	return cmd
}

func newModeSetCmd() *cobra.Command {
	var addr, modeID, customPrompt string
	var rounds int
	cmd := &cobra.Command{
		Use:   "set <topic-id>",
		Short: "Set a topic's moderator mode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if modeID == "" {
				return fmt.Errorf("--mode is required")
			}
			c, err := apiClient(cmd, addr)
			if err != nil {
				return err
			}
			cfg, err := c.SetModeratorMode(cmd.Context(), args[0], models.ModeratorModeConfig{
				ModeID:       modeID,
				NumRounds:    rounds,
				CustomPrompt: customPrompt,
			})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Mode set to %s (%d rounds)\n", cfg.ModeID, cfg.NumRounds)
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Server address (default: from running daemon)")
	cmd.Flags().StringVar(&modeID, "mode", "", "Mode ID (see `topiclab mode list`, or \"custom\")")
	cmd.Flags().IntVar(&rounds, "rounds", 0, "Rounds per run (0 = mode default)")
	cmd.Flags().StringVar(&customPrompt, "prompt", "", "Custom moderator prompt (mode=custom)")
	_ = cmd.MarkFlagRequired("mode")
	return cmd
}
