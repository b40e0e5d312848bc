package main

import (
	"os"
	"path/filepath"

	"github.com/tendermint/tendermint/libs/cli"

	cmd "ondemand_os/cmd/commands"
	cfg "ondemand_os/config"
	nm "ondemand_os/node"
)

func main() {
	rootCmd := cmd.RootCmd

	rootCmd.AddCommand(
		cmd.InitFilesCmd,
		cli.NewCompletionCmd(rootCmd, true),
	)

	// NOTE:
	// Users wishing to provide their own peer query or clock
	// can copy this file and use something other than the
	// DefaultNewNode function
	nodeFunc := nm.DefaultNewNode

	// Create & start node
	rootCmd.AddCommand(
		cmd.GenNodeKeyCmd,
		cmd.ShowNodeIDCmd,
		cmd.ShowProposalsCmd,
		cmd.VersionCmd,
		cmd.NewRunNodeCmd(nodeFunc),
	)

	command := cli.PrepareBaseCmd(rootCmd, "OD", os.ExpandEnv(filepath.Join("$HOME", cfg.DefaultDirName)))
	if err := command.Execute(); err != nil {
		os.Exit(1)
	}
}
