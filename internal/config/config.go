package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	Backend           string
	StateFile         string
	PGDSN             string
	Journal           string
	RPCURL            string
	ProgramID         string
	AmmProgramID      string
	AmmConfigIndex    uint16
	CreatePoolFee     uint64
	LoanDurations     []int64
	Principals        []uint64
	RequireFullSupply bool
	Caller            string
	Now               int64
	LogLevel          string
	LogFile           string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return Config{}, err
	}
	return fromViper(v)
}

func newViper(cfgFile string, flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("CUSTODY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("backend", BackendFile)
	v.SetDefault("state-file", "./data/custody-state.json")
	v.SetDefault("journal", "./data/events.jsonl")
	v.SetDefault("amm-config-index", 0)
	v.SetDefault("create-pool-fee", "0.15")
	v.SetDefault("loan-durations", "86400")
	v.SetDefault("principals", "2,5,10,20")
	v.SetDefault("require-full-supply", true)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

func fromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		Backend:           strings.ToLower(v.GetString("backend")),
		StateFile:         v.GetString("state-file"),
		PGDSN:             v.GetString("pg-dsn"),
		Journal:           v.GetString("journal"),
		RPCURL:            v.GetString("rpc"),
		ProgramID:         v.GetString("program-id"),
		AmmProgramID:      v.GetString("amm-program-id"),
		AmmConfigIndex:    uint16(v.GetUint("amm-config-index")),
		RequireFullSupply: v.GetBool("require-full-supply"),
		Caller:            v.GetString("as"),
		LogLevel:          v.GetString("log-level"),
		LogFile:           v.GetString("log-file"),
	}

	switch cfg.Backend {
	case BackendFile, BackendPostgres:
	default:
		return Config{}, fmt.Errorf("unknown backend %q", cfg.Backend)
	}

	fee, err := ParseSOL(v.GetString("create-pool-fee"))
	if err != nil {
		return Config{}, fmt.Errorf("create-pool-fee: %w", err)
	}
	cfg.CreatePoolFee = fee

	for _, item := range getStringSlice(v, "loan-durations") {
		d, err := ParseDuration(item)
		if err != nil {
			return Config{}, fmt.Errorf("loan-durations: %w", err)
		}
		cfg.LoanDurations = append(cfg.LoanDurations, d)
	}
	for _, item := range getStringSlice(v, "principals") {
		p, err := ParseSOL(item)
		if err != nil {
			return Config{}, fmt.Errorf("principals: %w", err)
		}
		cfg.Principals = append(cfg.Principals, p)
	}

	now, err := ParseTimestamp(v.GetString("now"))
	if err != nil {
		return Config{}, fmt.Errorf("now: %w", err)
	}
	cfg.Now = now

	return cfg, nil
}

// ParseDuration parses a loan duration given in seconds or as a Go
// duration string such as "24h".
func ParseDuration(input string) (int64, error) {
	input = strings.TrimSpace(input)
	if isNumeric(input) {
		return strconv.ParseInt(input, 10, 64)
	}
	d, err := time.ParseDuration(input)
	if err != nil {
		return 0, err
	}
	if d%time.Second != 0 {
		return 0, fmt.Errorf("duration %s is not a whole number of seconds", d)
	}
	return int64(d / time.Second), nil
}

// ParseTimestamp parses a timestamp value (unix seconds or RFC3339).
func ParseTimestamp(input string) (int64, error) {
	if strings.TrimSpace(input) == "" {
		return 0, nil
	}

	if isNumeric(input) {
		return strconv.ParseInt(input, 10, 64)
	}

	tm, err := time.Parse(time.RFC3339, input)
	if err != nil {
		return 0, err
	}
	return tm.Unix(), nil
}

func isNumeric(input string) bool {
	for _, r := range input {
		if r < '0' || r > '9' {
			return false
		}
	}
	return input != ""
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
