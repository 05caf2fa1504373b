package cli

import (
	"fmt"

	"github.com/TashanGKD/Tashan-TopicLab/pkg/models"
	"github.com/spf13/cobra"
)

func newTopicCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "topic",
		Short: "Manage topics",
	}
	cmd.AddCommand(newTopicListCmd())
	cmd.AddCommand(newTopicCreateCmd())
	cmd.AddCommand(newTopicShowCmd())
	cmd.AddCommand(newTopicCloseCmd())
	cmd.AddCommand(newTopicPostCmd())
	cmd.AddCommand(newTopicPostsCmd())
	cmd.AddCommand(newTopicMentionCmd())
	cmd.AddCommand(newTopicRoundtableCmd())
	return cmd
}

func newTopicListCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List topics (newest first)",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := apiClient(cmd, addr)
			if err != nil {
				return err
			}
			topics, err := c.ListTopics(cmd.Context())
			if err != nil {
				return err
			}
			if len(topics) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No topics")
				return nil
			}
			for _, t := range topics {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s  [%s/%s]  %s\n", t.ID, t.Status, t.RoundtableStatus, t.Title)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Server address (default: from running daemon)")
	return cmd
}

func newTopicCreateCmd() *cobra.Command {
	var addr, title, body string
	var rounds int
	var expertNames []string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a topic with an optional initial expert lineup",
		RunE: func(cmd *cobra.Command, args []string) error {
			if title == "" {
				return fmt.Errorf("--title is required")
			}
			c, err := apiClient(cmd, addr)
			if err != nil {
				return err
			}
			t, err := c.CreateTopic(cmd.Context(), models.CreateTopicRequest{
				Title:       title,
				Body:        body,
				NumRounds:   rounds,
				ExpertNames: expertNames,
			})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Created topic %s\n", t.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Server address (default: from running daemon)")
	cmd.Flags().StringVar(&title, "title", "", "Topic title")
	cmd.Flags().StringVar(&body, "body", "", "Topic body")
	cmd.Flags().IntVar(&rounds, "rounds", 0, "Rounds per roundtable run (0 = default)")
	cmd.Flags().StringSliceVar(&expertNames, "experts", nil, "Initial expert names")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func newTopicShowCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "show <topic-id>",
		Short: "Show a topic",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := apiClient(cmd, addr)
			if err != nil {
				return err
			}
			t, err := c.GetTopic(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "ID:         %s\n", t.ID)
			_, _ = fmt.Fprintf(out, "Title:      %s\n", t.Title)
			_, _ = fmt.Fprintf(out, "Status:     %s\n", t.Status)
			_, _ = fmt.Fprintf(out, "Roundtable: %s\n", t.RoundtableStatus)
			_, _ = fmt.Fprintf(out, "Rounds:     %d\n", t.NumRounds)
			_, _ = fmt.Fprintf(out, "Experts:    %v\n", t.ExpertNames)
			if t.Body != "" {
				_, _ = fmt.Fprintf(out, "\n%s\n", t.Body)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Server address (default: from running daemon)")
	return cmd
}

func newTopicCloseCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "close <topic-id>",
		Short: "Close a topic",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := apiClient(cmd, addr)
			if err != nil {
				return err
			}
			t, err := c.CloseTopic(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Closed topic %s\n", t.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Server address (default: from running daemon)")
	return cmd
}

func newTopicPostCmd() *cobra.Command {
	var addr, author, body string
	cmd := &cobra.Command{
		Use:   "post <topic-id>",
		Short: "Create a human post on a topic",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if body == "" {
				return fmt.Errorf("--body is required")
			}
			c, err := apiClient(cmd, addr)
			if err != nil {
				return err
			}
			p, err := c.CreatePost(cmd.Context(), args[0], author, body)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Posted %s\n", p.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Server address (default: from running daemon)")
	cmd.Flags().StringVar(&author, "author", "human", "Author name")
	cmd.Flags().StringVar(&body, "body", "", "Post body")
	_ = cmd.MarkFlagRequired("body")
	return cmd
}

func newTopicPostsCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "posts <topic-id>",
		Short: "List a topic's posts in chronological order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := apiClient(cmd, addr)
			if err != nil {
				return err
			}
			posts, err := c.ListPosts(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(posts) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No posts")
				return nil
			}
			for _, p := range posts {
				author := p.Author
				if p.AuthorType == models.AuthorAgent && p.ExpertLabel != "" {
					author = p.ExpertLabel
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s (%s): %s\n", p.CreatedAt, author, p.Status, p.Body)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Server address (default: from running daemon)")
	return cmd
}

func newTopicMentionCmd() *cobra.Command {
	var addr, author, body, expert string
	cmd := &cobra.Command{
		Use:   "mention <topic-id>",
		Short: "Post a message addressed to an expert; the reply arrives asynchronously",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if body == "" || expert == "" {
				return fmt.Errorf("--body and --expert are required")
			}
			c, err := apiClient(cmd, addr)
			if err != nil {
				return err
			}
			resp, err := c.Mention(cmd.Context(), args[0], models.MentionRequest{
				Author:     author,
				Body:       body,
				ExpertName: expert,
			})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Posted %s; reply pending as %s\n", resp.UserPost.ID, resp.ReplyPostID)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Poll it with: topiclab topic posts %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Server address (default: from running daemon)")
	cmd.Flags().StringVar(&author, "author", "human", "Author name")
	cmd.Flags().StringVar(&body, "body", "", "Post body")
	cmd.Flags().StringVar(&expert, "expert", "", "Expert name to address")
	return cmd
}

func newTopicRoundtableCmd() *cobra.Command {
	var addr string
	var maxTurns int
	var maxBudget float64
	var status bool

	cmd := &cobra.Command{
		Use:   "roundtable <topic-id>",
		Short: "Start a roundtable run, or show its status with --status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := apiClient(cmd, addr)
			if err != nil {
				return err
			}
			if status {
				st, err := c.RoundtableStatus(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				_, _ = fmt.Fprintf(out, "Status: %s\n", st.Status)
				if st.Progress != nil {
					_, _ = fmt.Fprintf(out, "Progress: %d/%d turns (round %d, latest %s)\n",
						st.Progress.CompletedTurns, st.Progress.TotalTurns, st.Progress.CurrentRound, st.Progress.LatestSpeaker)
				}
				if st.Result != nil {
					_, _ = fmt.Fprintf(out, "Turns: %d\n", st.Result.TurnsCount)
					if st.Result.CostUSD != nil {
						_, _ = fmt.Fprintf(out, "Cost: $%.4f\n", *st.Result.CostUSD)
					}
					if st.Result.DiscussionSummary != "" {
						_, _ = fmt.Fprintf(out, "\n%s\n", st.Result.DiscussionSummary)
					}
				}
				return nil
			}

			t, err := c.StartRoundtable(cmd.Context(), args[0], models.StartRoundtableRequest{
				MaxTurns:     maxTurns,
				MaxBudgetUSD: maxBudget,
			})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Roundtable started on %s (%d rounds)\n", t.ID, t.NumRounds)
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Server address (default: from running daemon)")
	cmd.Flags().IntVar(&maxTurns, "max-turns", 0, "Turn cap for this run (0 = default)")
	cmd.Flags().Float64Var(&maxBudget, "max-budget", 0, "Budget cap in USD for this run (0 = default)")
	cmd.Flags().BoolVar(&status, "status", false, "Show roundtable status instead of starting")
	return cmd
}
