// Package display renders CLI results as JSON or pterm tables.
package display

import (
	"github.com/spf13/cobra"
)

// ShouldOutputJSON reports whether cmd should print JSON: a local --json flag
// wins when set, otherwise the root's persistent --json decides.
func ShouldOutputJSON(cmd *cobra.Command) bool {
	if cmd == nil {
		return false
	}

	if f := cmd.Flags().Lookup("json"); f != nil && f.Changed {
		v, _ := cmd.Flags().GetBool("json")
		return v
	}

	if globalFlag, _ := cmd.Root().PersistentFlags().GetBool("json"); globalFlag {
		return true
	}
	return false
}
