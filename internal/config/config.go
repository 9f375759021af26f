package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Targets are the recognized top-level configuration sections.
var Targets = []string{"timescaledb", "idrac", "slurm_rest_api"}

type Config struct {
	ServerAddress string             `mapstructure:"server_address"`
	LogLevel      string             `mapstructure:"log_level"`
	Output        string             `mapstructure:"output"`
	IDRAC         IDRACConfig        `mapstructure:"idrac"`
	TimescaleDB   TimescaleDBConfig  `mapstructure:"timescaledb"`
	SlurmRESTAPI  SlurmRESTAPIConfig `mapstructure:"slurm_rest_api"`
	Scan          ScanConfig         `mapstructure:"scan"`
}

// IDRACConfig holds the BMC credentials and the compressed node list.
type IDRACConfig struct {
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	Nodelist []string `mapstructure:"nodelist"`
}

// TimescaleDBConfig locates the database sink. URL, when set, wins over the other fields.
type TimescaleDBConfig struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
}

type SlurmRESTAPIConfig struct {
	URL      string `mapstructure:"url"`
	Username string `mapstructure:"username"`
	Token    string `mapstructure:"token"`
}

// ScanConfig tunes a sweep.
type ScanConfig struct {
	Workers            int           `mapstructure:"workers"`
	MaxRetries         int           `mapstructure:"max_retries"`
	RetryInterval      time.Duration `mapstructure:"retry_interval"`
	ConnectTimeout     time.Duration `mapstructure:"connect_timeout"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
	Scheme             string        `mapstructure:"scheme"`
	SystemPath         string        `mapstructure:"system_path"`
	ManagerPath        string        `mapstructure:"manager_path"`
}

// LoadConfig reads the optional YAML file at path, then applies environment overrides
// (IDRAC_USERNAME, SCAN_WORKERS, TIMESCALEDB_URL, ...).
func LoadConfig(path string) (*Config, error) {
	viper.SetDefault("server_address", ":8080")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("output", "nodes_metadata.csv")

	viper.SetDefault("idrac.username", "")
	viper.SetDefault("idrac.password", "")
	viper.SetDefault("idrac.nodelist", []string{})

	viper.SetDefault("timescaledb.url", "")
	viper.SetDefault("timescaledb.host", "localhost")
	viper.SetDefault("timescaledb.port", 5432)
	viper.SetDefault("timescaledb.database", "inventory")
	viper.SetDefault("timescaledb.username", "")
	viper.SetDefault("timescaledb.password", "")
	viper.SetDefault("timescaledb.sslmode", "disable")

	viper.SetDefault("slurm_rest_api.url", "")
	viper.SetDefault("slurm_rest_api.username", "")
	viper.SetDefault("slurm_rest_api.token", "")

	viper.SetDefault("scan.workers", 0)
	viper.SetDefault("scan.max_retries", 3)
	viper.SetDefault("scan.retry_interval", "0s")
	viper.SetDefault("scan.connect_timeout", "15s")
	viper.SetDefault("scan.request_timeout", "45s")
	viper.SetDefault("scan.insecure_skip_verify", true)
	viper.SetDefault("scan.scheme", "https")
	viper.SetDefault("scan.system_path", "/redfish/v1/Systems/System.Embedded.1")
	viper.SetDefault("scan.manager_path", "/redfish/v1/Managers/iDRAC.Embedded.1")

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if path != "" {
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Target returns the raw settings of one top-level section. Unknown names are an error.
func Target(name string) (map[string]interface{}, error) {
	for _, t := range Targets {
		if t == name {
			return viper.GetStringMap(name), nil
		}
	}
	return nil, fmt.Errorf("invalid configuration target %q, expected one of: %v", name, Targets)
}

// DSN builds a PostgreSQL connection URL.
func (c TimescaleDBConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   "/" + c.Database,
	}
	if c.Username != "" {
		if c.Password != "" {
			u.User = url.UserPassword(c.Username, c.Password)
		} else {
			u.User = url.User(c.Username)
		}
	}
	if c.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": []string{c.SSLMode}}.Encode()
	}
	return u.String()
}
