package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/ternarybob/attachtimer/internal/common"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	// Skips config loading
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("AttachTimer version %s\n", common.GetFullVersion())
	},
}
