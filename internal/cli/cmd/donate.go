package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"taxoclean/internal/api"
	"taxoclean/internal/config"
	"taxoclean/internal/donate"
	"taxoclean/internal/logging"
)

func newDonateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "donate",
		Short:         "Support the project with a donation",
		Long:          fmt.Sprintf("Collects a donation amount and card details, then confirms the payment through the gateway. Suggested amounts: %s.", presetList()),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runDonate,
	}
	fs := cmd.Flags()
	fs.String("amount", "", "Donation amount in USD, e.g. 25.50 (suggested: 5, 10, 20)")
	fs.String("name", "", "Billing name (optional)")
	fs.String("email", "", "Billing email (optional)")
	fs.String("card-number", "", "Card number")
	fs.Int64("card-exp-month", 0, "Card expiry month (1-12)")
	fs.Int64("card-exp-year", 0, "Card expiry year, e.g. 2027")
	fs.String("card-cvc", "", "Card verification code")
	return cmd
}

func runDonate(cmd *cobra.Command, _ []string) error {
	log := logging.New(getVerbose(cmd))
	client, err := api.NewClient(config.APIBase(), api.WithLogger(log))
	if err != nil {
		return &ExitError{Code: ExitCLIError, Err: err}
	}

	key := config.PublishableKey()
	if key == "" {
		return &ExitError{Code: ExitCLIError, Err: errors.New("a gateway publishable key is required (--publishable-key or TAXOCLEAN_PUBLISHABLE_KEY)")}
	}

	w := donate.NewWizard(client, donate.NewStripeConfirmer(key))

	// Step 1: amount
	amount, _ := cmd.Flags().GetString("amount")
	if err := w.SetAmount(amount); err != nil {
		return &ExitError{Code: ExitValidationError, Err: err}
	}

	name, _ := cmd.Flags().GetString("name")
	email, _ := cmd.Flags().GetString("email")
	w.SetBilling(name, email)

	// Step 2: payment details
	card := donate.CardDetails{}
	card.Number, _ = cmd.Flags().GetString("card-number")
	card.ExpMonth, _ = cmd.Flags().GetInt64("card-exp-month")
	card.ExpYear, _ = cmd.Flags().GetInt64("card-exp-year")
	card.CVC, _ = cmd.Flags().GetString("card-cvc")
	if card.Number == "" || card.ExpMonth == 0 || card.ExpYear == 0 || card.CVC == "" {
		return &ExitError{Code: ExitValidationError, Err: errors.New("card details are required: --card-number, --card-exp-month, --card-exp-year, --card-cvc")}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Donating %s...\n", donate.FormatUSD(w.AmountCents()))
	if err := w.Pay(cmd.Context(), card); err != nil {
		// The wizard stays on the payment step; the same command can be
		// re-run with corrected details.
		return &ExitError{Code: ExitPaymentError, Err: err}
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Thank you for your donation!")
	return nil
}

func presetList() string {
	s := ""
	for i, amt := range donate.PresetAmountsUSD {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("$%d", amt)
	}
	return s
}
