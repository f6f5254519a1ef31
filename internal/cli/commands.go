package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/lazypower/trustledger/internal/audit"
	"github.com/lazypower/trustledger/internal/trust"
	"github.com/spf13/cobra"
)

func userPath(userID string, parts ...string) string {
	p := "/api/users/" + url.PathEscape(userID)
	if len(parts) > 0 {
		p += "/" + strings.Join(parts, "/")
	}
	return p
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// --- register ---

var (
	registerInviter  string
	registerMetadata []string
)

var registerCmd = &cobra.Command{
	Use:   "register <user-id>",
	Short: "Register a user, optionally under an inviter",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		meta := make(map[string]any, len(registerMetadata))
		for _, kv := range registerMetadata {
			k, v, ok := strings.Cut(kv, "=")
			if !ok {
				return fmt.Errorf("metadata %q: want key=value", kv)
			}
			meta[k] = v
		}

		req := map[string]any{"user_id": args[0], "inviter_id": registerInviter}
		if len(meta) > 0 {
			req["metadata"] = meta
		}
		var p trust.Profile
		if err := newClient().Post("/api/users", req, &p); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "registered %s (score %.2f, depth %d)\n", p.UserID, p.TrustScore, p.InviteDepth)
		return nil
	},
}

// --- burn ---

var (
	burnReason   string
	burnApproved bool
)

var burnCmd = &cobra.Command{
	Use:   "burn <user-id> <amount>",
	Short: "Burn trust from a user; inviters absorb an attenuated share",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("amount %q: %w", args[1], err)
		}
		req := map[string]any{
			"amount":              amount,
			"reason":              burnReason,
			"governance_approved": burnApproved,
		}
		var p trust.Profile
		if err := newClient().Post(userPath(args[0], "burn"), req, &p); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %.2f\n", p.UserID, p.TrustScore)
		return nil
	},
}

// --- recover ---

var (
	recoverReason string
	recoverProof  string
)

var recoverCmd = &cobra.Command{
	Use:   "recover <user-id> <amount>",
	Short: "Restore trust after the recovery window",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("amount %q: %w", args[1], err)
		}
		req := map[string]any{
			"amount":           amount,
			"reason":           recoverReason,
			"validation_proof": recoverProof,
		}
		var p trust.Profile
		if err := newClient().Post(userPath(args[0], "recover"), req, &p); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %.2f\n", p.UserID, p.TrustScore)
		return nil
	},
}

// --- score / profile ---

var scoreCmd = &cobra.Command{
	Use:   "score <user-id>",
	Short: "Print a user's current trust score",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp struct {
			TrustScore float64 `json:"trust_score"`
		}
		if err := newClient().Get(userPath(args[0], "score"), &resp); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%.2f\n", resp.TrustScore)
		return nil
	},
}

var profileJSON bool

var profileCmd = &cobra.Command{
	Use:   "profile <user-id>",
	Short: "Show a user's trust profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var p trust.Profile
		if err := newClient().Get(userPath(args[0]), &p); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if profileJSON {
			return printJSON(out, p)
		}

		fmt.Fprintf(out, "## %s\n\n", p.UserID)
		fmt.Fprintf(out, "  score:       %.2f (%s)\n", p.TrustScore, trust.Bucket(p.TrustScore))
		if p.InviterUserID != "" {
			fmt.Fprintf(out, "  invited by:  %s\n", p.InviterUserID)
		}
		fmt.Fprintf(out, "  depth:       %d\n", p.InviteDepth)
		fmt.Fprintf(out, "  invites:     %d\n", p.TotalInvites)
		fmt.Fprintf(out, "  registered:  %s\n", p.RegistrationTime.Format("2006-01-02 15:04"))
		fmt.Fprintf(out, "  last active: %s\n", p.LastActivityTime.Format("2006-01-02 15:04"))

		if len(p.BurnEvents) > 0 {
			fmt.Fprintln(out, "\n## Burns")
			for _, b := range p.BurnEvents {
				approved := ""
				if b.GovernanceApproved {
					approved = " [approved]"
				}
				fmt.Fprintf(out, "  %s  -%.2f  %s%s\n", b.Timestamp.Format("2006-01-02 15:04"), b.Amount, b.Reason, approved)
			}
		}
		if len(p.RecoveryEvents) > 0 {
			fmt.Fprintln(out, "\n## Recoveries")
			for _, r := range p.RecoveryEvents {
				fmt.Fprintf(out, "  %s  +%.2f  %s\n", r.Timestamp.Format("2006-01-02 15:04"), r.Amount, r.Reason)
			}
		}
		return nil
	},
}

// --- tree ---

var treeDepth int

var treeCmd = &cobra.Command{
	Use:   "tree <user-id>",
	Short: "Show the invite tree below a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var root trust.InviteTreeNode
		path := userPath(args[0], "tree") + "?depth=" + strconv.Itoa(treeDepth)
		if err := newClient().Get(path, &root); err != nil {
			return err
		}
		printTree(cmd.OutOrStdout(), &root, "")
		return nil
	},
}

func printTree(w io.Writer, n *trust.InviteTreeNode, indent string) {
	fmt.Fprintf(w, "%s%s (%.2f)\n", indent, n.UserID, n.TrustScore)
	for _, c := range n.Children {
		printTree(w, c, indent+"  ")
	}
}

// --- governance ---

var governanceCmd = &cobra.Command{
	Use:   "governance",
	Short: "Inspect and change governance parameters",
	RunE: func(cmd *cobra.Command, args []string) error {
		var params map[string]any
		if err := newClient().Get("/api/governance", &params); err != nil {
			return err
		}
		names := make([]string, 0, len(params))
		for name := range params {
			names = append(names, name)
		}
		sort.Strings(names)

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		for _, name := range names {
			fmt.Fprintf(tw, "%s\t%v\n", name, params[name])
		}
		return tw.Flush()
	},
}

var governanceApproved bool

var governanceSetCmd = &cobra.Command{
	Use:   "set <parameter> <value>",
	Short: "Change a parameter directly (requires --approved)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		value, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("value %q: %w", args[1], err)
		}
		req := map[string]any{"value": value, "governance_approved": governanceApproved}
		var res trust.UpdateResult
		if err := newClient().Put("/api/governance/"+url.PathEscape(args[0]), req, &res); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s = %v\n", args[0], args[1])
		return nil
	},
}

var (
	proposeSignature string
	proposeQuorum    float64
)

var governanceProposeCmd = &cobra.Command{
	Use:   "propose <parameter> <value>",
	Short: "Change a parameter through a vote proof",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		value, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("value %q: %w", args[1], err)
		}
		req := map[string]any{"value": value, "signature": proposeSignature, "quorum": proposeQuorum}
		var res trust.UpdateResult
		if err := newClient().Post("/api/governance/"+url.PathEscape(args[0])+"/proposals", req, &res); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s = %v (vote passed)\n", args[0], args[1])
		return nil
	},
}

// --- stats ---

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show ledger-wide trust metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		var m trust.Metrics
		if err := newClient().Get("/api/metrics/trust", &m); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "users:       %d\n", m.TotalUsers)
		fmt.Fprintf(out, "average:     %.2f\n", m.AverageTrustScore)
		fmt.Fprintf(out, "invites:     %d\n", m.TotalInvites)
		fmt.Fprintf(out, "burns:       %d\n", m.TotalBurns)
		fmt.Fprintf(out, "recoveries:  %d\n", m.TotalRecoveries)
		d := m.TrustDistribution
		fmt.Fprintf(out, "buckets:     high %d, medium %d, low %d, critical %d\n", d.High, d.Medium, d.Low, d.Critical)
		fmt.Fprintf(out, "tree depth:  max %d, avg %.2f\n", m.InviteTree.MaxDepth, m.InviteTree.AverageDepth)
		return nil
	},
}

// --- events ---

var eventsLimit int

var eventsCmd = &cobra.Command{
	Use:   "events <user-id>",
	Short: "Show a user's audit log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp struct {
			Events []audit.Entry `json:"events"`
		}
		path := userPath(args[0], "events") + "?limit=" + strconv.Itoa(eventsLimit)
		if err := newClient().Get(path, &resp); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(resp.Events) == 0 {
			fmt.Fprintln(out, "No events recorded.")
			return nil
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		for _, e := range resp.Events {
			fmt.Fprintf(tw, "%s\t%s\t%.2f\t%.2f -> %.2f\t%s\n",
				e.Time().Format("2006-01-02 15:04"), e.Type, e.Amount, e.PreviousScore, e.NewScore, e.Reason)
		}
		return tw.Flush()
	},
}

func init() {
	registerCmd.Flags().StringVarP(&registerInviter, "inviter", "i", "", "Inviting user")
	registerCmd.Flags().StringSliceVarP(&registerMetadata, "meta", "m", nil, "Metadata as key=value (repeatable)")

	burnCmd.Flags().StringVarP(&burnReason, "reason", "r", "", "Why trust is burned")
	burnCmd.Flags().BoolVar(&burnApproved, "approved", false, "Governance approved: bypasses the daily limit")

	recoverCmd.Flags().StringVarP(&recoverReason, "reason", "r", "", "Why trust is restored")
	recoverCmd.Flags().StringVar(&recoverProof, "proof", "", "Validation proof reference")

	profileCmd.Flags().BoolVar(&profileJSON, "json", false, "Print the raw profile as JSON")

	treeCmd.Flags().IntVarP(&treeDepth, "depth", "d", 3, "Levels below the user to show")

	governanceSetCmd.Flags().BoolVar(&governanceApproved, "approved", false, "Governance approval for the change")
	governanceProposeCmd.Flags().StringVar(&proposeSignature, "signature", "", "Vote signature")
	governanceProposeCmd.Flags().Float64Var(&proposeQuorum, "quorum", 0, "Fraction of voters in favor")
	governanceCmd.AddCommand(governanceSetCmd)
	governanceCmd.AddCommand(governanceProposeCmd)

	eventsCmd.Flags().IntVarP(&eventsLimit, "limit", "n", 20, "Maximum number of events")
}
