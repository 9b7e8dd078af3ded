package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var redeemCmd = &cobra.Command{
	Use:   "redeem",
	Short: "List redeemable positions and hand them to the redemption collaborator",
	RunE:  runRedeem,
}

var approveRedemptionCmd = &cobra.Command{
	Use:   "approve-redemption",
	Short: "Approve pending redemptions",
	RunE:  runApproveRedemption,
}

func init() {
	rootCmd.AddCommand(redeemCmd)
	rootCmd.AddCommand(approveRedemptionCmd)
}

// Settlement is handled by the external redemption collaborator; these
// commands surface what it would act on.
func runRedeem(cmd *cobra.Command, args []string) error {
	positions, err := fetchPositions()
	if err != nil {
		return err
	}

	redeemable := positions[:0]
	for _, pos := range positions {
		if pos.Redeemable {
			redeemable = append(redeemable, pos)
		}
	}

	if len(redeemable) == 0 {
		fmt.Println("No redeemable positions")
		return nil
	}

	total := 0.0
	fmt.Printf("%-50s %-8s %10s\n", "MARKET", "SIDE", "VALUE")
	for _, pos := range redeemable {
		fmt.Printf("%-50s %-8s %9.2f$\n", truncate(pos.MarketSlug, 50), pos.Outcome, pos.Value)
		total += pos.Value
	}
	fmt.Printf("\n%d redeemable position(s), $%.2f total.\n", len(redeemable), total)
	fmt.Println("Run 'polyarb approve-redemption' to release them to the redemption job.")

	return nil
}

func runApproveRedemption(cmd *cobra.Command, args []string) error {
	fmt.Println("Redemption is delegated to the external settlement job;")
	fmt.Println("this build ships without one configured.")
	return nil
}
