package config

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Settings keeps all configuration options.
// Every key is read in both lower_case and UPPER_CASE form.
type Settings struct {
	RPCURL           string
	ChainID          string // empty: ask the node
	PrivateKeyHex    string
	OfferingID       string // empty: first active offering
	OfferingsFile    string
	ReferrerFile     string
	PollInterval     time.Duration
	TxTimeout        time.Duration
	BlockTime        time.Duration
	TipGwei          int64
	BaseFeeMul       int64
	BufferPct        int64
	BatchConcurrency int
	RPCRate          float64 // eth_call per second, 0: unlimited
	LogLevel         string
	LogFile          string
	MetricsAddr      string
}

// LoadDotenv loads .env and then lets .env.local override it. Missing files
// are fine.
func LoadDotenv() {
	_ = godotenv.Load()
	_ = godotenv.Overload(".env.local")
}

// Load reads settings from environment supporting both UPPER_CASE and lower_case keys.
func Load() Settings {
	get := func(keys []string, def string) string {
		for _, k := range keys {
			if v := strings.TrimSpace(os.Getenv(k)); v != "" {
				return v
			}
		}
		return def
	}
	getInt := func(keys []string, def int) int {
		s := get(keys, "")
		if s == "" {
			return def
		}
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
		return def
	}
	getInt64 := func(keys []string, def int64) int64 {
		s := get(keys, "")
		if s == "" {
			return def
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
		return def
	}
	getMillis := func(keys []string, def time.Duration) time.Duration {
		return time.Duration(getInt64(keys, int64(def/time.Millisecond))) * time.Millisecond
	}
	getSeconds := func(keys []string, def time.Duration) time.Duration {
		return time.Duration(getInt64(keys, int64(def/time.Second))) * time.Second
	}

	st := Settings{}
	st.RPCURL = get([]string{"rpc_url", "RPC_URL"}, "https://bsc-dataseed.binance.org")
	st.ChainID = get([]string{"chain_id", "CHAIN_ID"}, "")
	st.PrivateKeyHex = get([]string{"private_key", "PRIVATE_KEY"}, "")
	st.OfferingID = get([]string{"offering_id", "OFFERING_ID"}, "")
	st.OfferingsFile = get([]string{"offerings_file", "OFFERINGS_FILE"}, "")
	st.ReferrerFile = get([]string{"referrer_file", "REFERRER_FILE"}, "")

	st.PollInterval = getMillis([]string{"poll_interval_ms", "POLL_INTERVAL_MS"}, time.Second)
	st.TxTimeout = getSeconds([]string{"tx_timeout_sec", "TX_TIMEOUT_SEC"}, 3*time.Minute)
	st.BlockTime = getSeconds([]string{"block_time_sec", "BLOCK_TIME_SEC"}, 3*time.Second)

	st.TipGwei = getInt64([]string{"tip_gwei", "TIP_GWEI"}, 1)
	st.BaseFeeMul = getInt64([]string{"basefee_mul", "BASEFEE_MUL"}, 2)
	st.BufferPct = getInt64([]string{"buffer_pct", "BUFFER_PCT"}, 20)
	st.BatchConcurrency = getInt([]string{"batch_concurrency", "BATCH_CONCURRENCY"}, 0)
	if v, err := strconv.ParseFloat(get([]string{"rpc_rate", "RPC_RATE"}, "0"), 64); err == nil {
		st.RPCRate = v
	}

	st.LogLevel = get([]string{"log_level", "LOG_LEVEL"}, "info")
	st.LogFile = get([]string{"log_file", "LOG_FILE"}, "")
	st.MetricsAddr = get([]string{"metrics_addr", "METRICS_ADDR"}, "")
	return st
}

// ChainIDBig parses ChainID. It returns nil, nil when unset.
func (s Settings) ChainIDBig() (*big.Int, error) {
	if s.ChainID == "" {
		return nil, nil
	}
	id, ok := new(big.Int).SetString(s.ChainID, 0)
	if !ok || id.Sign() <= 0 {
		return nil, fmt.Errorf("config: bad CHAIN_ID %q", s.ChainID)
	}
	return id, nil
}

// Validate reports settings that cannot work.
func (s Settings) Validate() error {
	var errs []error
	if s.RPCURL == "" {
		errs = append(errs, errors.New("RPC_URL is empty"))
	}
	if _, err := s.ChainIDBig(); err != nil {
		errs = append(errs, err)
	}
	if s.PollInterval <= 0 {
		errs = append(errs, errors.New("POLL_INTERVAL_MS must be positive"))
	}
	if s.BlockTime <= 0 {
		errs = append(errs, errors.New("BLOCK_TIME_SEC must be positive"))
	}
	if s.TxTimeout < 0 {
		errs = append(errs, errors.New("TX_TIMEOUT_SEC must not be negative"))
	}
	if s.BaseFeeMul < 1 {
		errs = append(errs, errors.New("BASEFEE_MUL must be at least 1"))
	}
	if s.RPCRate < 0 {
		errs = append(errs, errors.New("RPC_RATE must not be negative"))
	}
	if s.BufferPct < 0 || s.TipGwei < 0 {
		errs = append(errs, errors.New("BUFFER_PCT and TIP_GWEI must not be negative"))
	}
	return errors.Join(errs...)
}
