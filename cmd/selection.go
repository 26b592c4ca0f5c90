package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mabhi256/jprof/internal/selection"
	"github.com/mabhi256/jprof/internal/tui"
)

var selectionCmd = &cobra.Command{
	Use:   "selection",
	Short: "Encode and decode root selection tokens",
}

var selectionEncodeCmd = &cobra.Command{
	Use:   "encode <class> [<method> <signature> | <start-line> <end-line>]",
	Short: "Build a selection token",
	Long: `Build the token naming a root method or a source line range.

Examples:
  jprof selection encode com.acme.Foo run "()V"
  jprof selection encode com.acme.Foo 10 42`,
	Args: cobra.RangeArgs(1, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		sel, err := selectionFromArgs(args)
		if err != nil {
			return err
		}
		fmt.Println(selection.Encode(sel))
		return nil
	},
}

var selectionDecodeCmd = &cobra.Command{
	Use:   "decode <token>",
	Short: "Show what a selection token selects",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sel, err := selection.Decode(args[0])
		if err != nil {
			return err
		}

		kv := func(k, v string) string { return tui.FormatKeyValue(k, v, 12) }
		fmt.Println(kv("Class", sel.ClassName))
		if sel.DefinedViaSourceLines() {
			fmt.Println(kv("Lines", fmt.Sprintf("%d-%d", sel.StartLine, sel.EndLine)))
		} else {
			fmt.Println(kv("Method", sel.MethodName))
			fmt.Println(kv("Signature", sel.MethodSignature))
		}
		fmt.Println(kv("Flattened", sel.Flattened()))
		return nil
	},
}

// selectionFromArgs treats two numeric arguments after the class as a line
// range; anything else is a method name and signature.
func selectionFromArgs(args []string) (selection.Selection, error) {
	class := args[0]
	switch len(args) {
	case 1:
		return selection.Method(class, "", ""), nil
	case 2:
		return selection.Method(class, args[1], ""), nil
	}

	start, errStart := strconv.Atoi(args[1])
	end, errEnd := strconv.Atoi(args[2])
	if errStart == nil && errEnd == nil {
		if start > end {
			return selection.Selection{}, fmt.Errorf("%w: start line %d after end line %d", selection.ErrInvalidSelection, start, end)
		}
		return selection.Lines(class, start, end), nil
	}
	return selection.Method(class, args[1], args[2]), nil
}

func init() {
	rootCmd.AddCommand(selectionCmd)
	selectionCmd.AddCommand(selectionEncodeCmd, selectionDecodeCmd)
}
