package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	tmos "github.com/tendermint/tendermint/libs/os"

	nm "ondemand_os/node"
)

// AddNodeFlags exposes some common configuration options on the command-line
// These are exposed for convenience of commands embedding an ordering node
func AddNodeFlags(cmd *cobra.Command) {
	// bind flags
	cmd.Flags().String("moniker", config.Moniker, "node name")

	// rpc flags
	cmd.Flags().String("rpc.laddr", config.RPC.ListenAddress, "RPC listen address. Port required")

	// p2p flags
	cmd.Flags().String(
		"p2p.laddr",
		config.P2P.ListenAddress,
		"node listen address. (0.0.0.0:0 means any interface, any port)")
	cmd.Flags().String("p2p.persistent_peers", config.P2P.PersistentPeers, "comma-delimited ID@host:port persistent peers")

	// ordering flags
	cmd.Flags().Int("ordering.max_size", config.Ordering.MaxSize, "max batches (or transactions) in one proposal")
	cmd.Flags().String("ordering.size_limit", config.Ordering.SizeLimit, "what max_size counts: batches or transactions")
	cmd.Flags().Duration("ordering.delay", config.Ordering.Delay, "finalize the open round after this delay even if it is not full")
	cmd.Flags().Duration("ordering.request_timeout", config.Ordering.RequestTimeout, "how long the gate waits for a proposal")
	cmd.Flags().Int("ordering.retention_window", config.Ordering.RetentionWindow, "number of finalized rounds kept")
	cmd.Flags().String("ordering.peers", config.Ordering.Peers, "comma-delimited [ID@]host:port rpc addresses of ordering services, only the first is used")
	cmd.Flags().Bool("ordering.persist", config.Ordering.Persist, "store finalized proposals in db_dir")

	// db flags
	cmd.Flags().String(
		"db_backend",
		config.DBBackend,
		"database backend: goleveldb | cleveldb | boltdb | rocksdb | badgerdb")
	cmd.Flags().String(
		"db_dir",
		config.DBPath,
		"database directory")
}

// NewRunNodeCmd returns the command that allows the CLI to start a node.
// nodeProvider lets embedders supply their own node construction.
func NewRunNodeCmd(nodeProvider nm.Provider) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "start",
		Aliases: []string{"node", "run"},
		Short:   "Run the ordering node",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := nodeProvider(config, logger)
			if err != nil {
				return fmt.Errorf("failed to create node: %w", err)
			}

			if err := n.Start(); err != nil {
				return fmt.Errorf("failed to start node: %w", err)
			}

			logger.Info("Started node", "nodeInfo", n.Switch().NodeInfo())

			// Stop upon receiving SIGTERM or CTRL-C.
			tmos.TrapSignal(logger, func() {
				if n.IsRunning() {
					if err := n.Stop(); err != nil {
						logger.Error("unable to stop the node", "error", err)
					}
				}
			})

			// Run forever.
			select {}
		},
	}

	AddNodeFlags(cmd)
	return cmd
}
