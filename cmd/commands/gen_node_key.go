package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	tmos "github.com/tendermint/tendermint/libs/os"
	"github.com/tendermint/tendermint/p2p"
)

// GenNodeKeyCmd 为排序节点生成p2p连接用的密钥，打印节点ID
// 密钥路径取自已解析的配置(node_key_file)
var GenNodeKeyCmd = &cobra.Command{
	Use:     "gen-node-key",
	Aliases: []string{"gen_node_key"},
	Short:   "Generate the p2p key of this ordering node and print its ID",
	PreRun:  deprecateSnakeCase,
	RunE:    genNodeKey,
}

func genNodeKey(cmd *cobra.Command, args []string) error {
	keyFile := config.NodeKeyFile()
	if tmos.FileExists(keyFile) {
		return fmt.Errorf("ordering node key already exists at %s", keyFile)
	}

	if err := tmos.EnsureDir(filepath.Dir(keyFile), 0700); err != nil {
		return fmt.Errorf("failed to create dir for %s: %w", keyFile, err)
	}
	nodeKey, err := p2p.LoadOrGenNodeKey(keyFile)
	if err != nil {
		return fmt.Errorf("failed to generate node key %s: %w", keyFile, err)
	}
	fmt.Println(nodeKey.ID())
	return nil
}
