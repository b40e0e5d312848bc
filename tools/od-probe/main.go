package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"ondemand_os/transport"
	"ondemand_os/types"
)

var (
	remote      string
	blockRound  int64
	rejectRound int64
	timeout     time.Duration
)

// od-probe 向排序服务请求某一轮的提案并打印
func main() {
	cmd := &cobra.Command{
		Use:   "od-probe",
		Short: "Request the proposal of one round from an ordering node",
		RunE:  probe,
	}
	cmd.Flags().StringVar(&remote, "remote", "tcp://127.0.0.1:26657", "rpc address of the ordering node")
	cmd.Flags().Int64Var(&blockRound, "block", 0, "block round")
	cmd.Flags().Int64Var(&rejectRound, "reject", 0, "reject round")
	cmd.Flags().DurationVar(&timeout, "timeout", time.Second, "request timeout")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func probe(cmd *cobra.Command, args []string) error {
	round, err := types.NewRoundCoordinate(blockRound, rejectRound)
	if err != nil {
		return err
	}
	ht, err := transport.NewHTTPTransport(remote)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	p, err := ht.RequestProposal(ctx, round)
	if err != nil {
		return err
	}
	if p == nil {
		fmt.Printf("no proposal for round %v\n", round)
		return nil
	}

	fmt.Println(p)
	for i, b := range p.Batches {
		fmt.Printf("  #%d %v\n", i, b)
	}
	return nil
}
