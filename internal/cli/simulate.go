package cli

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	simulatePair     string
	simulatePrevious string
	simulateCurrent  string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "模拟一次汇率波动并触发告警",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulatePrevious == "" || simulateCurrent == "" {
			return errors.New("--previous 与 --current 必须提供")
		}

		previous, err := decimal.NewFromString(simulatePrevious)
		if err != nil {
			return fmt.Errorf("invalid --previous value: %w", err)
		}
		current, err := decimal.NewFromString(simulateCurrent)
		if err != nil {
			return fmt.Errorf("invalid --current value: %w", err)
		}

		return getApp().SimulateAlert(cmd.Context(), simulatePair, previous, current)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulatePair, "pair", "USD/VND", "Watched pair, SRC/TGT")
	simulateCmd.Flags().StringVar(&simulatePrevious, "previous", "", "上一次汇率 (TGT per SRC)")
	simulateCmd.Flags().StringVar(&simulateCurrent, "current", "", "当前汇率 (TGT per SRC)")
}
