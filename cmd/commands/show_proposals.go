package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"ondemand_os/store"
)

var recentRounds int

func init() {
	ShowProposalsCmd.Flags().IntVar(&recentRounds, "n", 10, "number of most recent rounds to show")
}

// ShowProposalsCmd 打印存储中最近的提案，节点运行时数据库被占用，需要先停止节点
var ShowProposalsCmd = &cobra.Command{
	Use:     "show-proposals",
	Aliases: []string{"show_proposals"},
	Short:   "Show the most recent finalized proposals kept in the database",
	PreRun:  deprecateSnakeCase,
	RunE:    showProposals,
}

func showProposals(cmd *cobra.Command, args []string) error {
	ps, err := store.NewProposalStore(store.DBName, config.DBBackend, config.DBDir(), logger)
	if err != nil {
		return fmt.Errorf("failed to open proposal store in %s: %w", config.DBDir(), err)
	}
	defer ps.Close()

	proposals, err := ps.LoadRecent(recentRounds)
	if err != nil {
		return err
	}
	if len(proposals) == 0 {
		fmt.Println("no proposals")
		return nil
	}
	for _, p := range proposals {
		fmt.Printf("%v batches=%d txs=%d hash=%X\n", p.Round, len(p.Batches), p.TxCount(), []byte(p.Hash))
	}
	return nil
}
