package rpc

import (
	"net"
	"net/http"

	"github.com/tendermint/tendermint/libs/log"
	rpcserver "github.com/tendermint/tendermint/rpc/jsonrpc/server"
)

// StartHTTPServer 在listenAddr上提供JSON-RPC（HTTP和websocket）服务
// 调用前需要先SetEnvironment；关闭返回的listener即停止服务
func StartHTTPServer(listenAddr string, maxOpenConnections int, logger log.Logger) (net.Listener, error) {
	config := rpcserver.DefaultConfig()
	if maxOpenConnections > 0 {
		config.MaxOpenConnections = maxOpenConnections
	}

	mux := http.NewServeMux()
	wm := rpcserver.NewWebsocketManager(Routes)
	wm.SetLogger(logger.With("protocol", "websocket"))
	mux.HandleFunc("/websocket", wm.WebsocketHandler)
	rpcserver.RegisterRPCFuncs(mux, Routes, logger)

	listener, err := rpcserver.Listen(listenAddr, config)
	if err != nil {
		return nil, err
	}

	go func() {
		if err := rpcserver.Serve(listener, mux, logger, config); err != nil {
			logger.Info("rpc server stopped", "err", err)
		}
	}()
	return listener, nil
}
