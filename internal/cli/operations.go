package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kiranshivaraju/leaselens/internal/lease"
	"github.com/kiranshivaraju/leaselens/internal/report"
)

var (
	opJSON bool
	opMeta metadataFlags
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize [file]",
	Short: "Summarize a lease in plain language",
	Args:  cobra.ExactArgs(1),
	RunE: withLease(func(ctx context.Context, cmd *cobra.Command, sess *lease.Session) error {
		summary, err := sess.Summarize(ctx)
		if err != nil {
			return fmt.Errorf("summarize failed: %w", err)
		}
		cmd.Println(summary)
		return nil
	}),
}

var issuesCmd = &cobra.Command{
	Use:   "issues [file]",
	Short: "List problematic clauses",
	Args:  cobra.ExactArgs(1),
	RunE: withLease(func(ctx context.Context, cmd *cobra.Command, sess *lease.Session) error {
		clauses, err := sess.FindIssues(ctx)
		if err != nil {
			return fmt.Errorf("finding issues failed: %w", err)
		}
		if opJSON {
			return printJSON(cmd, clauses)
		}
		cmd.Println(report.FormatIssues(clauses))
		return nil
	}),
}

var priceCmd = &cobra.Command{
	Use:   "price [file]",
	Short: "Compare the rent with the local market",
	Long: `Compares the rent with the local market. Needs the city, state and monthly
rent, either extracted from the lease or given with --city, --state and --rent.`,
	Args: cobra.ExactArgs(1),
	RunE: withLease(func(ctx context.Context, cmd *cobra.Command, sess *lease.Session) error {
		analysis, err := sess.PriceContext(ctx)
		if err != nil {
			return fmt.Errorf("price analysis failed: %w", err)
		}
		cmd.Println(analysis)
		return nil
	}),
}

var rewritesCmd = &cobra.Command{
	Use:   "rewrites [file]",
	Short: "Suggest fairer wording for the most serious clauses",
	Args:  cobra.ExactArgs(1),
	RunE: withLease(func(ctx context.Context, cmd *cobra.Command, sess *lease.Session) error {
		rewrites, err := sess.RewriteSuggestions(ctx)
		if err != nil {
			return fmt.Errorf("rewrite suggestions failed: %w", err)
		}
		if opJSON {
			return printJSON(cmd, rewrites)
		}
		cmd.Println(report.FormatRewrites(rewrites))
		return nil
	}),
}

var rightsCmd = &cobra.Command{
	Use:   "rights [file]",
	Short: "Explain tenant rights for the lease's location",
	Args:  cobra.ExactArgs(1),
	RunE: withLease(func(ctx context.Context, cmd *cobra.Command, sess *lease.Session) error {
		advice, err := sess.RightsAdvice(ctx)
		if err != nil {
			return fmt.Errorf("rights advice failed: %w", err)
		}
		cmd.Println(advice)
		return nil
	}),
}

func init() {
	for _, c := range []*cobra.Command{summarizeCmd, issuesCmd, priceCmd, rewritesCmd, rightsCmd} {
		opMeta.register(c.Flags())
		rootCmd.AddCommand(c)
	}
	issuesCmd.Flags().BoolVar(&opJSON, "json", false, "output clauses as JSON")
	rewritesCmd.Flags().BoolVar(&opJSON, "json", false, "output rewrites as JSON")
}

// withLease loads args[0] into a fresh session before running fn.
func withLease(fn func(ctx context.Context, cmd *cobra.Command, sess *lease.Session) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		sess, err := loadLease(ctx, cmd, args[0], opMeta.known(cmd))
		if err != nil {
			return err
		}
		return fn(ctx, cmd, sess)
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
