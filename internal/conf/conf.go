// Package conf parses the opensrf.xml-shaped configuration document
// using the standard library's
// encoding/xml. No XML parsing library appears anywhere in the
// example corpus (see DESIGN.md), so this package, like marc/xml.go and
// the z3950 BER code, is built directly on stdlib.
package conf

import (
	"encoding/xml"
	"fmt"
	"os"

	"github.com/kcls/opensrf-go/internal/logging"
	"github.com/kcls/opensrf-go/internal/osrferr"
)

// LogOptions configures the ambient logger for one connection.
type LogOptions struct {
	Logfile  string `xml:"logfile"`  // "syslog", "stdout", or a path
	LogLevel string `xml:"loglevel"` // "1".."5" or error/warn/info/debug/trace
	Syslog   string `xml:"syslog"`
	Actlog   string `xml:"actlog"`
}

// Level maps the configured log level string to a logging.Level,
// matching the original's "1".."5" -> Error..Trace mapping and
// accepting the long-form names as an alternative.
func (o LogOptions) Level() logging.Level {
	switch o.LogLevel {
	case "1", "error":
		return logging.LevelError
	case "2", "warn":
		return logging.LevelWarn
	case "3", "info", "":
		return logging.LevelInfo
	case "4", "debug":
		return logging.LevelDebug
	case "5", "trace":
		return logging.LevelTrace
	default:
		return logging.LevelInfo
	}
}

// Domain is one bus endpoint.
type Domain struct {
	Name string `xml:"name,attr"`
	Port int    `xml:"port,attr"`
}

// BusClient is the connection template for the primary domain.
type BusClient struct {
	Username   string     `xml:"username"`
	Password   string     `xml:"password"`
	Domain     Domain     `xml:"domain"`
	RouterName string     `xml:"router_name"`
	LogOptions LogOptions `xml:"log_options"`
}

// RouterConfig describes one <router> entry under <routers>.
type RouterConfig struct {
	Transport BusClient `xml:"transport"`
	Services  []string  `xml:"services>service"` // empty means "register for all services"
}

// GatewayConfig configures the HTTP/WebSocket gateways.
type GatewayConfig struct {
	HTTPAddr      string `xml:"http_addr"`
	WebsocketAddr string `xml:"websocket_addr"`
	MaxClients    int    `xml:"max_clients"`
}

// wireConfig is the literal XML document shape.
type wireConfig struct {
	XMLName xml.Name `xml:"config"`
	Opensrf struct {
		Default    BusClient `xml:"default_router"`
		MinWorkers int       `xml:"unix_config>min_workers"`
		MaxWorkers int       `xml:"unix_config>max_workers"`
	} `xml:"opensrf"`
	Routers []RouterConfig `xml:"routers>router"`
	Gateway GatewayConfig  `xml:"gateway"`
	Shared  struct {
		LogProtect []string `xml:"log_protect>match_string"`
	} `xml:"shared"`
}

// Config is the fully parsed, immutable configuration: write-once at
// startup and read-only thereafter.
type Config struct {
	Client      BusClient
	MinWorkers  int
	MaxWorkers  int
	Routers     []RouterConfig
	Gateway     GatewayConfig
	LogProtect  []string
}

// Load parses the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &osrferr.ConfigError{Msg: err.Error()}
	}
	return Parse(data)
}

// Parse decodes a configuration document already read into memory.
func Parse(data []byte) (*Config, error) {
	var w wireConfig
	if err := xml.Unmarshal(data, &w); err != nil {
		return nil, &osrferr.ConfigError{Msg: fmt.Sprintf("parsing config: %v", err)}
	}

	if w.Opensrf.Default.Domain.Name == "" {
		return nil, &osrferr.ConfigError{Msg: "config missing opensrf/default_router/domain"}
	}
	if w.Opensrf.Default.Domain.Port == 0 {
		w.Opensrf.Default.Domain.Port = 6379
	}

	return &Config{
		Client:     w.Opensrf.Default,
		MinWorkers: orDefault(w.Opensrf.MinWorkers, 1),
		MaxWorkers: orDefault(w.Opensrf.MaxWorkers, 20),
		Routers:    w.Routers,
		Gateway:    w.Gateway,
		LogProtect: w.Shared.LogProtect,
	}, nil
}

func orDefault(n, def int) int {
	if n == 0 {
		return def
	}
	return n
}
