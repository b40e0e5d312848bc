package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tendermint/tendermint/version"
)

// Version of the ordering node.
const Version = "0.1.0"

// VersionCmd ...
var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version info",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("%s (tendermint %s)\n", Version, version.TMCoreSemVer)
	},
}
