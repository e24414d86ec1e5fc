package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"currencyconv/internal/app"
)

var (
	convertAmount    string
	convertFrom      string
	convertTo        string
	convertPrecision int
)

var convertCmd = &cobra.Command{
	Use:     "convert [AMOUNT]",
	Short:   "Convert an amount with the latest rates",
	Example: "  currencyconv convert --amount 1,250.5 --from USD --to VND --precision 0",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount := convertAmount
		if len(args) == 1 {
			if amount != "" {
				return fmt.Errorf("amount given both as --amount and argument")
			}
			amount = args[0]
		}

		opts := app.ConvertOptions{
			From:      convertFrom,
			To:        convertTo,
			Amount:    amount,
			Precision: convertPrecision,
		}
		return getApp().Convert(cmd.Context(), opts, cmd.OutOrStdout())
	},
}

var keypadCmd = &cobra.Command{
	Use:   "keypad",
	Short: "Drive the converter with keypad tokens read from stdin",
	Long: `Reads one token per line and prints the display after every change.

Tokens: 0-9, ".", C, DEL, SWAP, DEC, REFRESH, "FROM XXX", "TO XXX".
A run of digits such as 1250.5 is typed key by key. QUIT or EOF exits.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Keypad(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func init() {
	convertCmd.Flags().StringVar(&convertAmount, "amount", "", "Amount of the source unit, e.g. 1,250.5")
	convertCmd.Flags().StringVar(&convertFrom, "from", "", "Source unit (defaults to config)")
	convertCmd.Flags().StringVar(&convertTo, "to", "", "Target unit (defaults to config)")
	convertCmd.Flags().IntVar(&convertPrecision, "precision", -1, "Fractional digits to display, 0-10 (defaults to config)")
}
