// Package config resolves the environment-driven configuration shared by
// the node, master, and analytics-bridge processes: the on-disk base
// directory layout and the handful of validated environment variables
// that govern bind address, peer address, and the ambient stack's
// external dependencies.
package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

const (
	DefaultBaseDir    = ".argos"
	DefaultHost       = "127.0.0.1"
	DefaultPort       = 8080
	DefaultMetricsPort = 9090
	DefaultRedisAddr  = "localhost:6379"
	DefaultNATSURL    = "nats://localhost:4222"
)

var hostPattern = regexp.MustCompile(`^(\d{1,3}\.){3}\d{1,3}$`)

// Config is the resolved, validated set of environment inputs a process
// needs to boot. Every field falls back to its documented default on
// misconfiguration rather than aborting, per the external-interfaces
// contract.
type Config struct {
	BaseDir       string
	Host          string
	Port          int
	MasterAddress string
	AuditDBDSN    string
	RedisAddr     string
	NATSURL       string
	MetricsPort   int
}

// Load resolves Config from the process environment.
func Load() Config {
	return Config{
		BaseDir:       resolveBaseDir(),
		Host:          resolveHost(),
		Port:          resolvePort(),
		MasterAddress: os.Getenv("MASTER_ADDRESS"),
		AuditDBDSN:    os.Getenv("AUDIT_DB_DSN"),
		RedisAddr:     resolveRedisAddr(),
		NATSURL:       resolveNATSURL(),
		MetricsPort:   resolveMetricsPort(),
	}
}

func resolveBaseDir() string {
	if v := os.Getenv("BASE_DIR"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultBaseDir
	}
	return filepath.Join(home, DefaultBaseDir)
}

func resolveHost() string {
	v := os.Getenv("HOST")
	if v == "" || !hostPattern.MatchString(v) || net.ParseIP(v) == nil {
		return DefaultHost
	}
	return v
}

func resolvePort() int {
	v := os.Getenv("PORT")
	if v == "" {
		return DefaultPort
	}
	p, err := strconv.Atoi(v)
	if err != nil || p < 1024 || p > 65535 {
		return DefaultPort
	}
	return p
}

func resolveRedisAddr() string {
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		return v
	}
	return DefaultRedisAddr
}

func resolveNATSURL() string {
	if v := os.Getenv("NATS_URL"); v != "" {
		return v
	}
	return DefaultNATSURL
}

func resolveMetricsPort() int {
	v := os.Getenv("METRICS_PORT")
	if v == "" {
		return DefaultMetricsPort
	}
	p, err := strconv.Atoi(v)
	if err != nil || p < 1 || p > 65535 {
		return DefaultMetricsPort
	}
	return p
}

// Addr formats Host:Port for http.Server.Addr.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// CamerasDir, NodesDir, DatasetsDir are the fixed subdirectories under
// BaseDir described in the on-disk layout.
func (c Config) CamerasDir() string  { return filepath.Join(c.BaseDir, "cameras") }
func (c Config) NodesDir() string    { return filepath.Join(c.BaseDir, "nodes") }
func (c Config) DatasetsDir() string { return filepath.Join(c.BaseDir, "datasets") }

// EnsureDirs creates the standard base-dir subdirectories if absent.
func EnsureDirs(c Config) error {
	for _, dir := range []string{c.CamerasDir(), c.NodesDir(), filepath.Join(c.NodesDir(), "images"), c.DatasetsDir()} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("config: create %s: %w", dir, err)
		}
	}
	return nil
}

// SafeJoin joins base with elements, refusing absolute/traversal
// components so callers never escape a dataset or node root by crafted
// input (camera serials, node subpaths, dataset names).
func SafeJoin(base string, elements ...string) (string, error) {
	for _, el := range elements {
		if filepath.IsAbs(el) {
			return "", fmt.Errorf("config: absolute path not allowed: %s", el)
		}
	}
	joined := filepath.Join(append([]string{base}, elements...)...)

	absBase, err := filepath.Abs(base)
	if err != nil {
		return "", err
	}
	absJoined, err := filepath.Abs(joined)
	if err != nil {
		return "", err
	}
	if absJoined != absBase && !strings.HasPrefix(absJoined, absBase+string(filepath.Separator)) {
		return "", fmt.Errorf("config: path traversal attempt: %s is outside %s", absJoined, absBase)
	}
	return absJoined, nil
}
