package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/benedict-erwin/geo-gateway/pkg/entitlement"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Entitlement token tools",
	Long:  "Commands for examining entitlement tokens issued after payment verification",
}

var tokenInspectCmd = &cobra.Command{
	Use:   "inspect [token]",
	Short: "Verify a token and show its claim",
	Long:  "Verify a token with the configured secret and print the claim it carries. Tokens are never minted here.",
	Args:  cobra.ExactArgs(1),
	RunE:  runTokenInspect,
}

func runTokenInspect(cmd *cobra.Command, args []string) error {
	codec, err := entitlement.NewCodec(cfg.Token.Secret,
		entitlement.WithTTL(cfg.TokenTTL()),
		entitlement.WithIssuer(cfg.Token.Issuer),
	)
	if err != nil {
		return err
	}

	token := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(args[0]), "Bearer "))
	claim, err := codec.Verify(token)
	if err != nil {
		return fmt.Errorf("token rejected: %w", err)
	}

	out := cmd.OutOrStdout()
	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		output, _ := json.MarshalIndent(claim, "", "  ")
		fmt.Fprintln(out, string(output))
		return nil
	}

	email := claim.Email
	if email == "" {
		email = "-"
	}

	table := tablewriter.NewWriter(out)
	table.Header([]string{"Claim", "Value"})
	table.Append([]string{"premium", strconv.FormatBool(claim.Premium)})
	table.Append([]string{"email", email})
	table.Append([]string{"paid_reference", claim.PaidReference})
	table.Append([]string{"remaining_premium_trials", strconv.Itoa(claim.RemainingPremiumTrials)})
	table.Append([]string{"remaining_total_searches", strconv.Itoa(claim.RemainingTotalSearches)})
	issuedAt := time.UnixMilli(claim.IssuedAt).UTC()
	table.Append([]string{"issued_at", issuedAt.Format(time.RFC3339)})
	table.Append([]string{"expires_at", issuedAt.Add(codec.ExpiresIn()).Format(time.RFC3339)})
	table.Render()
	return nil
}

func init() {
	tokenInspectCmd.Flags().BoolP("json", "j", false, "Output claim in JSON format")
	tokenCmd.AddCommand(tokenInspectCmd)
}
