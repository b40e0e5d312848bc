package rpc

import (
	"github.com/tendermint/tendermint/libs/log"

	"ondemand_os/libs/metric"
	"ondemand_os/ordering"
)

var (
	env *Environment
)

func SetEnvironment(e *Environment) {
	env = e
}

// Environment 所有rpc处理函数共享的依赖，节点启动rpc服务前设置
type Environment struct {
	Service   *ordering.Service
	MetricSet *metric.MetricSet

	Logger log.Logger
}
