package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	cfg "github.com/tendermint/tendermint/config"
)

const (
	// LimitBatches 以batch个数作为提案大小
	LimitBatches = "batches"
	// LimitTransactions 以交易个数作为提案大小，最后一个batch可以超出上限
	LimitTransactions = "transactions"

	DefaultDirName = ".ondemand_os"
)

var (
	ErrInvalidMaxSize   = errors.New("max_size must be positive")
	ErrInvalidSizeLimit = fmt.Errorf("size_limit must be %q or %q", LimitBatches, LimitTransactions)
)

// Config 节点的全部配置，base/rpc/p2p部分沿用tendermint的配置结构
type Config struct {
	cfg.BaseConfig `mapstructure:",squash"`

	RPC      *cfg.RPCConfig  `mapstructure:"rpc"`
	P2P      *cfg.P2PConfig  `mapstructure:"p2p"`
	Ordering *OrderingConfig `mapstructure:"ordering"`
}

func DefaultConfig() *Config {
	return &Config{
		BaseConfig: cfg.DefaultBaseConfig(),
		RPC:        cfg.DefaultRPCConfig(),
		P2P:        cfg.DefaultP2PConfig(),
		Ordering:   DefaultOrderingConfig(),
	}
}

func TestConfig() *Config {
	return &Config{
		BaseConfig: cfg.TestBaseConfig(),
		RPC:        cfg.TestRPCConfig(),
		P2P:        cfg.TestP2PConfig(),
		Ordering:   TestOrderingConfig(),
	}
}

// SetRoot sets the RootDir for all Config structs
func (c *Config) SetRoot(root string) *Config {
	c.BaseConfig.RootDir = root
	c.RPC.RootDir = root
	c.P2P.RootDir = root
	return c
}

func (c *Config) ValidateBasic() error {
	if err := c.BaseConfig.ValidateBasic(); err != nil {
		return err
	}
	if err := c.RPC.ValidateBasic(); err != nil {
		return fmt.Errorf("error in [rpc] section: %w", err)
	}
	if err := c.P2P.ValidateBasic(); err != nil {
		return fmt.Errorf("error in [p2p] section: %w", err)
	}
	if err := c.Ordering.ValidateBasic(); err != nil {
		return fmt.Errorf("error in [ordering] section: %w", err)
	}
	return nil
}

// ConfigFile 配置文件路径
func (c *Config) ConfigFile() string {
	return filepath.Join(c.RootDir, "config", "config.toml")
}

//-----------------------------------------------------------------------------

// OrderingConfig 排序服务和排序网关的配置
type OrderingConfig struct {
	// 一轮提案最多包含的batch数（或交易数，见SizeLimit）
	MaxSize int `mapstructure:"max_size"`
	// "batches" or "transactions"
	SizeLimit string `mapstructure:"size_limit"`
	// 距上一次切分超过Delay后，当前轮次即使不满也会切分
	Delay time.Duration `mapstructure:"delay"`
	// 网关向排序服务请求提案的超时时间
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	// 保留最近多少个已切分轮次的提案
	RetentionWindow int `mapstructure:"retention_window"`
	// 交易状态缓存的条数
	StatusCacheSize int `mapstructure:"status_cache_size"`
	// 排序服务所在的节点，逗号分隔，格式 id@host:port，只使用第一个
	Peers string `mapstructure:"peers"`
	// 将已切分的提案写入 db_dir
	Persist bool `mapstructure:"persist"`
}

func DefaultOrderingConfig() *OrderingConfig {
	return &OrderingConfig{
		MaxSize:         10,
		SizeLimit:       LimitBatches,
		Delay:           500 * time.Millisecond,
		RequestTimeout:  time.Second,
		RetentionWindow: 10,
		StatusCacheSize: 10000,
		Peers:           "",
		Persist:         true,
	}
}

func TestOrderingConfig() *OrderingConfig {
	c := DefaultOrderingConfig()
	c.MaxSize = 2
	c.Delay = 100 * time.Millisecond
	c.RequestTimeout = 100 * time.Millisecond
	c.RetentionWindow = 3
	c.StatusCacheSize = 100
	c.Persist = false
	return c
}

func (c *OrderingConfig) ValidateBasic() error {
	if c.MaxSize <= 0 {
		return ErrInvalidMaxSize
	}
	if c.SizeLimit != LimitBatches && c.SizeLimit != LimitTransactions {
		return ErrInvalidSizeLimit
	}
	if c.Delay <= 0 {
		return errors.New("delay must be positive")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("request_timeout must be positive")
	}
	if c.RetentionWindow <= 0 {
		return errors.New("retention_window must be positive")
	}
	if c.StatusCacheSize < 0 {
		return errors.New("status_cache_size can't be negative")
	}
	return nil
}

// LimitByTransactions reports whether max_size counts transactions.
func (c *OrderingConfig) LimitByTransactions() bool {
	return c.SizeLimit == LimitTransactions
}

// PeerList 解析Peers字段
func (c *OrderingConfig) PeerList() []string {
	return SplitAndTrimEmpty(c.Peers, ",", " ")
}

// SplitAndTrimEmpty slices s into all subslices separated by sep and returns a
// slice of the string s with all leading and trailing Unicode code points
// contained in cutset removed. Empty strings are filtered out.
func SplitAndTrimEmpty(s, sep, cutset string) []string {
	if s == "" {
		return []string{}
	}

	spl := strings.Split(s, sep)
	nonEmptyStrings := make([]string, 0, len(spl))
	for i := 0; i < len(spl); i++ {
		element := strings.Trim(spl[i], cutset)
		if element != "" {
			nonEmptyStrings = append(nonEmptyStrings, element)
		}
	}
	return nonEmptyStrings
}
