package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-kit/kit/log/term"
	"github.com/spf13/cobra"
	"github.com/tendermint/tendermint/libs/log"
	tmos "github.com/tendermint/tendermint/libs/os"
	jsonrpcclient "github.com/tendermint/tendermint/rpc/jsonrpc/client"

	"ondemand_os/rpc/coretypes"
)

var (
	connections int
	rate        int
	batchSize   int
	duration    time.Duration
	verbose     bool
)

func main() {
	cmd := &cobra.Command{
		Use:     "od-bench [endpoint]",
		Short:   "Send batches to an ordering node over websocket at a fixed rate",
		Example: "od-bench -T 30s -r 100 -s 5 127.0.0.1:26657",
		Args:    cobra.ExactArgs(1),
		RunE:    runBench,
	}
	cmd.Flags().IntVarP(&connections, "connections", "c", 1, "connections to the endpoint")
	cmd.Flags().IntVarP(&rate, "rate", "r", 100, "batches per second sent by each connection")
	cmd.Flags().IntVarP(&batchSize, "size", "s", 1, "transactions per batch")
	cmd.Flags().DurationVarP(&duration, "time", "T", 10*time.Second, "how long to send batches")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() log.Logger {
	if !verbose {
		return log.NewTMLogger(log.NewSyncWriter(os.Stdout))
	}
	// Color errors red
	colorFn := func(keyvals ...interface{}) term.FgBgColor {
		for i := 1; i < len(keyvals); i += 2 {
			if _, ok := keyvals[i].(error); ok {
				return term.FgBgColor{Fg: term.White, Bg: term.Red}
			}
		}
		return term.FgBgColor{}
	}
	return log.NewTMLoggerWithColorFn(log.NewSyncWriter(os.Stdout), colorFn)
}

func runBench(cmd *cobra.Command, args []string) error {
	endpoint := strings.TrimPrefix(args[0], "tcp://")
	if rate <= 0 || batchSize <= 0 || connections <= 0 {
		return fmt.Errorf("rate, size and connections must be positive")
	}

	logger := newLogger()
	t := newTransacter(endpoint, connections, rate, batchSize)
	t.SetLogger(logger)

	if err := t.Start(); err != nil {
		return err
	}

	// Stop upon receiving SIGTERM or CTRL-C.
	tmos.TrapSignal(logger, func() {
		t.Stop()
	})

	time.Sleep(duration)
	t.Stop()

	batches, txs := t.Sent()
	secs := duration.Seconds()
	fmt.Printf("sent %d batches (%d txs) in %v, %.1f batches/s\n", batches, txs, duration, float64(batches)/secs)

	return printMetrics(endpoint)
}

func printMetrics(endpoint string) error {
	c, err := jsonrpcclient.New("tcp://" + endpoint)
	if err != nil {
		return err
	}
	result := new(coretypes.ResultMetrics)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := c.Call(ctx, "metrics", map[string]interface{}{"label": ""}, result); err != nil {
		return err
	}
	for label, m := range result.Metrics {
		fmt.Printf("%s: %s\n", label, m)
	}
	return nil
}
