package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/netmonitor/semantic-index/internal/padregistry"
)

var padlengthCmd = &cobra.Command{
	Use:   "padlength",
	Short: "Inspect the per-index pad-length registry",
}

var padlengthShowCmd = &cobra.Command{
	Use:   "show <index-name>",
	Short: "Show the registered pad length for an index",
	Args:  cobra.ExactArgs(1),
	RunE:  runPadlengthShow,
}

func init() {
	padlengthCmd.AddCommand(padlengthShowCmd)
}

func runPadlengthShow(cmd *cobra.Command, args []string) error {
	tk, err := newToolkit()
	if err != nil {
		return err
	}
	defer tk.Close()

	rec, err := tk.pads.Get(args[0])
	if err != nil {
		if errors.Is(err, padregistry.ErrNotFound) {
			fmt.Printf("no pad length registered for %q\n", args[0])
			return nil
		}
		return fmt.Errorf("get pad length: %w", err)
	}

	if outputJSON {
		return PrintJSON(rec)
	}

	PrintKeyValue(map[string]string{
		"Index":           args[0],
		"PadToTokens":     fmt.Sprintf("%d", rec.PadToTokens),
		"ActualMaxTokens": fmt.Sprintf("%d", rec.ActualMaxTokens),
	})
	return nil
}
