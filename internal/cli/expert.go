package cli

import (
	"fmt"

	"github.com/TashanGKD/Tashan-TopicLab/pkg/models"
	"github.com/spf13/cobra"
)

func newExpertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "expert",
		Short: "Manage experts (presets and per-topic rosters)",
	}
	cmd.AddCommand(newExpertPresetsCmd())
	cmd.AddCommand(newExpertListCmd())
	cmd.AddCommand(newExpertAddCmd())
	cmd.AddCommand(newExpertRemoveCmd())
	return cmd
}

func newExpertPresetsCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "presets",
		Short: "List expert presets from the skills directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := apiClient(cmd, addr)
			if err != nil {
				return err
			}
			presets, err := c.ListExpertPresets(cmd.Context())
			if err != nil {
				return err
			}
			if len(presets) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No presets")
				return nil
			}
			for _, p := range presets {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s (%s): %s\n", p.Name, p.Label, p.Description)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Server address (default: from running daemon)")
	return cmd
}

func newExpertListCmd() *cobra.Command {
	var addr, topic string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a topic's expert roster",
		RunE: func(cmd *cobra.Command, args []string) error {
			if topic == "" {
				return fmt.Errorf("--topic is required")
			}
			c, err := apiClient(cmd, addr)
			if err != nil {
				return err
			}
			roster, err := c.ListTopicExperts(cmd.Context(), topic)
			if err != nil {
				return err
			}
			if len(roster) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No experts")
				return nil
			}
			for _, e := range roster {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s (%s, %s)\n", e.Name, e.Label, e.Source)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Server address (default: from running daemon)")
	cmd.Flags().StringVar(&topic, "topic", "", "Topic ID")
	_ = cmd.MarkFlagRequired("topic")
	return cmd
}

func newExpertAddCmd() *cobra.Command {
	var addr, topic, name, label, description, source string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an expert to a topic's roster",
		RunE: func(cmd *cobra.Command, args []string) error {
			if topic == "" || name == "" {
				return fmt.Errorf("--topic and --name are required")
			}
			c, err := apiClient(cmd, addr)
			if err != nil {
				return err
			}
			roster, err := c.AddTopicExpert(cmd.Context(), topic, models.AddExpertRequest{
				Name:        name,
				Label:       label,
				Description: description,
				Source:      source,
			})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Added %q (%d experts)\n", name, len(roster))
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Server address (default: from running daemon)")
	cmd.Flags().StringVar(&topic, "topic", "", "Topic ID")
	cmd.Flags().StringVar(&name, "name", "", "Expert name")
	cmd.Flags().StringVar(&label, "label", "", "Display label")
	cmd.Flags().StringVar(&description, "description", "", "Expert description")
	cmd.Flags().StringVar(&source, "source", "", "Source: preset, custom, or ai_generated (default custom)")
	_ = cmd.MarkFlagRequired("topic")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newExpertRemoveCmd() *cobra.Command {
	var addr, topic, name string
	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Remove an expert from a topic's roster (at least one must remain)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if topic == "" || name == "" {
				return fmt.Errorf("--topic and --name are required")
			}
			c, err := apiClient(cmd, addr)
			if err != nil {
				return err
			}
			if err := c.RemoveTopicExpert(cmd.Context(), topic, name); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Removed %q\n", name)
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Server address (default: from running daemon)")
	cmd.Flags().StringVar(&topic, "topic", "", "Topic ID")
	cmd.Flags().StringVar(&name, "name", "", "Expert name")
	_ = cmd.MarkFlagRequired("topic")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}
