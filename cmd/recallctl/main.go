// Command recallctl drives a RecallMem store from the command line. Every
// subcommand prints its result as JSON.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/oceanbase/recallmem-go/pkg/core"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	agentID    string
	userID     string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:          "recallctl",
		Short:        "recallctl - inspect and maintain agent memories",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "Config file (.json, .yaml); defaults to environment")
	root.PersistentFlags().StringVarP(&g.agentID, "agent", "a", "", "Agent ID (required)")
	root.PersistentFlags().StringVarP(&g.userID, "user", "u", "", "User ID; empty for the agent-global scope")
	_ = root.MarkPersistentFlagRequired("agent")

	root.AddCommand(
		newAddCmd(g),
		newRecallCmd(g),
		newCleanupCmd(g),
		newStatsCmd(g),
		newGetCmd(g),
		newDeleteCmd(g),
	)
	return root
}

// openClient loads the configuration and opens a client.
func openClient(g *globalFlags) (*core.Client, error) {
	var (
		cfg *core.Config
		err error
	)
	if g.configPath != "" {
		cfg, err = core.LoadConfigFromFile(g.configPath)
	} else {
		cfg, err = core.LoadConfigFromEnv()
	}
	if err != nil {
		return nil, err
	}
	return core.NewClient(cfg)
}

// withClient opens a client, runs fn and closes it.
func withClient(g *globalFlags, fn func(ctx context.Context, client *core.Client) error) error {
	client, err := openClient(g)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()
	return fn(context.Background(), client)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newAddCmd(g *globalFlags) *cobra.Command {
	var (
		entryType  string
		input      string
		entryCtx   string
		tags       []string
		relevance  float64
		sessionID  string
		correctsID string
		goalID     string
		goalStatus string
		infer      bool
	)

	cmd := &cobra.Command{
		Use:   "add <summary>",
		Short: "Add a memory entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entry := &core.MemoryEntry{
				AgentID:        g.agentID,
				UserID:         g.userID,
				Type:           core.EntryType(entryType),
				Input:          input,
				Summary:        args[0],
				Context:        entryCtx,
				Tags:           tags,
				RelevanceScore: relevance,
				SessionID:      sessionID,
				CorrectsID:     correctsID,
			}
			if goalID != "" || goalStatus != "" {
				entry.Goal = &core.Goal{ID: goalID, Summary: args[0], Status: core.GoalStatus(goalStatus)}
			}

			return withClient(g, func(ctx context.Context, client *core.Client) error {
				stored, err := client.Add(ctx, entry, core.WithInfer(infer))
				if stored != nil {
					if perr := printJSON(cmd.OutOrStdout(), stored); perr != nil {
						return perr
					}
				}
				return err
			})
		},
	}

	f := cmd.Flags()
	f.StringVarP(&entryType, "type", "t", string(core.TypeLog), "Entry type")
	f.StringVar(&input, "input", "", "Raw originating text")
	f.StringVar(&entryCtx, "context", "", "Free-text context")
	f.StringSliceVar(&tags, "tags", nil, "Comma-separated tags")
	f.Float64Var(&relevance, "relevance", 0, "Intrinsic relevance in [0,1]")
	f.StringVar(&sessionID, "session", "", "Session ID (session_summary, session_decision)")
	f.StringVar(&correctsID, "corrects", "", "ID of the entry a correction refers to")
	f.StringVar(&goalID, "goal-id", "", "Goal ID (goal, goal_progress)")
	f.StringVar(&goalStatus, "goal-status", "", "Goal status (goal, goal_progress)")
	f.BoolVar(&infer, "infer", false, "Infer relevance and reinforce near-duplicates")
	return cmd
}

func newRecallCmd(g *globalFlags) *cobra.Command {
	var (
		limit        int
		minRelevance float64
		types        []string
	)

	cmd := &cobra.Command{
		Use:   "recall [query]",
		Short: "Recall the memories most relevant to a query",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := ""
			if len(args) == 1 {
				query = args[0]
			}

			opts := []core.RecallOption{core.WithUserIDForRecall(g.userID)}
			if cmd.Flags().Changed("limit") {
				opts = append(opts, core.WithLimit(limit))
			}
			if cmd.Flags().Changed("min-relevance") {
				opts = append(opts, core.WithMinRelevance(minRelevance))
			}
			if len(types) > 0 {
				entryTypes := make([]core.EntryType, len(types))
				for i, t := range types {
					entryTypes[i] = core.EntryType(t)
				}
				opts = append(opts, core.WithTypes(entryTypes...))
			}

			return withClient(g, func(ctx context.Context, client *core.Client) error {
				result, err := client.Recall(ctx, g.agentID, query, opts...)
				if result != nil {
					if perr := printJSON(cmd.OutOrStdout(), result); perr != nil {
						return perr
					}
				}
				return err
			})
		},
	}

	f := cmd.Flags()
	f.IntVarP(&limit, "limit", "n", 0, "Maximum entries returned (default from config)")
	f.Float64Var(&minRelevance, "min-relevance", 0, "Score floor in [0,1] (default from config)")
	f.StringSliceVar(&types, "types", nil, "Comma-separated entry types")
	return cmd
}

func newCleanupCmd(g *globalFlags) *cobra.Command {
	var (
		maxAge       int
		minRelevance float64
		maxEntries   int
		allScopes    bool
	)

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Evict memories beyond the retention bounds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts []core.CleanupOption
			if !allScopes {
				opts = append(opts, core.WithUserIDForCleanup(g.userID))
			}
			if cmd.Flags().Changed("max-age") {
				opts = append(opts, core.WithMaxAge(maxAge))
			}
			if cmd.Flags().Changed("min-relevance") {
				opts = append(opts, core.WithCleanupMinRelevance(minRelevance))
			}
			if cmd.Flags().Changed("max-entries") {
				opts = append(opts, core.WithMaxEntries(maxEntries))
			}

			return withClient(g, func(ctx context.Context, client *core.Client) error {
				result, err := client.Cleanup(ctx, g.agentID, opts...)
				if result != nil {
					if perr := printJSON(cmd.OutOrStdout(), result); perr != nil {
						return perr
					}
				}
				return err
			})
		},
	}

	f := cmd.Flags()
	f.IntVar(&maxAge, "max-age", 0, "Maximum days since last access (default from config)")
	f.Float64Var(&minRelevance, "min-relevance", 0, "Relevance floor for never-reinforced entries (default from config)")
	f.IntVar(&maxEntries, "max-entries", 0, "Maximum entries per scope (default from config)")
	f.BoolVar(&allScopes, "all-scopes", false, "Clean every scope of the agent, ignoring --user")
	return cmd
}

func newStatsCmd(g *globalFlags) *cobra.Command {
	var allScopes bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize stored memories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts []core.StatsOption
			if !allScopes {
				opts = append(opts, core.WithUserIDForStats(g.userID))
			}
			return withClient(g, func(ctx context.Context, client *core.Client) error {
				stats, err := client.Stats(ctx, g.agentID, opts...)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), stats)
			})
		},
	}

	cmd.Flags().BoolVar(&allScopes, "all-scopes", false, "Summarize every scope of the agent, ignoring --user")
	return cmd
}

func newGetCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one memory entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(g, func(ctx context.Context, client *core.Client) error {
				entry, err := client.Get(ctx, g.agentID, args[0], core.WithUserIDForGet(g.userID))
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), entry)
			})
		},
	}
}

func newDeleteCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete one memory entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(g, func(ctx context.Context, client *core.Client) error {
				removed, err := client.Delete(ctx, g.agentID, args[0], core.WithUserIDForDelete(g.userID))
				if err != nil {
					return fmt.Errorf("delete %s: %w", args[0], err)
				}
				return printJSON(cmd.OutOrStdout(), core.DeleteResult{Success: removed})
			})
		},
	}
}
