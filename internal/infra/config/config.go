// Package config loads runtime configuration from DEFACE_* environment variables and
// an optional YAML file. Every field has a default so the binary runs locally without
// any setup.
package config

import (
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrInvalid marks configuration that failed to parse or validate.
var ErrInvalid = errors.New("invalid configuration")

// Config holds runtime configuration for the defacing service.
type Config struct {
	Host           string        `validate:"required"`        // DEFACE_HOST, default "0.0.0.0"
	Port           int           `validate:"min=1,max=65535"` // DEFACE_PORT, default 5000
	WorkDir        string        `validate:"required"`        // DEFACE_WORK_DIR, default $TMPDIR/mri-deface
	DBPath         string        `validate:"required"`        // DEFACE_DB_PATH, default ./data/deface.db
	MaxUploadBytes int64         `validate:"gt=0"`            // DEFACE_MAX_UPLOAD_BYTES, default 2 GiB
	ToolTimeout    time.Duration `validate:"gte=0"`           // DEFACE_TOOL_TIMEOUT, default 0 (none)

	// Tool resolution. File values come first; env extends them.
	SearchPath  []string          // DEFACE_SEARCH_PATH + $FSLDIR/bin
	Python      string            `validate:"required"` // DEFACE_PYTHON, default python3
	Executables map[string]string `validate:"dive,keys,required,endkeys,required"`
	Disabled    []string          `validate:"dive,oneof=pydeface quickshear deepdefacer mri_deface anonymi"`

	CORSOrigin string        // DEFACE_CORS_ORIGIN, default "*"
	JWTSecret  string        `validate:"omitempty,min=32"` // DEFACE_JWT_SECRET, empty disables auth
	JWTExpiry  time.Duration `validate:"gt=0"`             // DEFACE_JWT_EXPIRY in hours, default 24

	HistoryRetention  time.Duration `validate:"gte=0"`    // DEFACE_HISTORY_RETENTION, default 720h
	RetentionSchedule string        `validate:"required"` // DEFACE_RETENTION_SCHEDULE, default @hourly
	OrphanAge         time.Duration `validate:"gte=0"`    // DEFACE_ORPHAN_AGE, default 6h

	LogLevel  string `validate:"oneof=trace debug info notice warning error critical"` // DEFACE_LOG_LEVEL
	LogFormat string `validate:"oneof=text json"`                                      // DEFACE_LOG_FORMAT

	ConfigFile string // DEFACE_CONFIG_FILE
}

// File is the YAML configuration file layout.
type File struct {
	Executables map[string]string `yaml:"executables"`
	SearchPath  []string          `yaml:"search_path"`
	Python      string            `yaml:"python"`
	Disabled    []string          `yaml:"disabled"`
}

// DefaultWorkDir is a dedicated directory under os.TempDir so the orphan sweep
// never touches files that belong to other programs.
func DefaultWorkDir() string {
	return filepath.Join(os.TempDir(), "mri-deface")
}

const (
	envKeyHost              = "DEFACE_HOST"
	envKeyPort              = "DEFACE_PORT"
	envKeyWorkDir           = "DEFACE_WORK_DIR"
	envKeyDBPath            = "DEFACE_DB_PATH"
	envKeyMaxUploadBytes    = "DEFACE_MAX_UPLOAD_BYTES"
	envKeyToolTimeout       = "DEFACE_TOOL_TIMEOUT"
	envKeySearchPath        = "DEFACE_SEARCH_PATH"
	envKeyPython            = "DEFACE_PYTHON"
	envKeyCORSOrigin        = "DEFACE_CORS_ORIGIN"
	envKeyJWTSecret         = "DEFACE_JWT_SECRET"
	envKeyJWTExpiry         = "DEFACE_JWT_EXPIRY"
	envKeyHistoryRetention  = "DEFACE_HISTORY_RETENTION"
	envKeyRetentionSchedule = "DEFACE_RETENTION_SCHEDULE"
	envKeyOrphanAge         = "DEFACE_ORPHAN_AGE"
	envKeyLogLevel          = "DEFACE_LOG_LEVEL"
	envKeyLogFormat         = "DEFACE_LOG_FORMAT"
	envKeyConfigFile        = "DEFACE_CONFIG_FILE"
	envKeyFSLDir            = "FSLDIR"
)

const (
	DefaultHost           = "0.0.0.0"
	DefaultPort           = 5000
	DefaultDBPath         = "./data/deface.db"
	DefaultMaxUploadBytes = int64(2) << 30
	DefaultPython         = "python3"
	DefaultJWTExpiryHours = 24
)

// Load reads the environment, merges the config file if DEFACE_CONFIG_FILE is set
// and validates the result. Errors are marked with ErrInvalid.
func Load() (Config, error) {
	p := &parser{}
	cfg := Config{
		Host:              envOr(envKeyHost, DefaultHost),
		Port:              p.int(envKeyPort, DefaultPort),
		WorkDir:           envOr(envKeyWorkDir, DefaultWorkDir()),
		DBPath:            envOr(envKeyDBPath, DefaultDBPath),
		MaxUploadBytes:    p.int64(envKeyMaxUploadBytes, DefaultMaxUploadBytes),
		ToolTimeout:       p.duration(envKeyToolTimeout, 0),
		Python:            os.Getenv(envKeyPython),
		CORSOrigin:        envOr(envKeyCORSOrigin, "*"),
		JWTSecret:         os.Getenv(envKeyJWTSecret),
		JWTExpiry:         time.Duration(p.int(envKeyJWTExpiry, DefaultJWTExpiryHours)) * time.Hour,
		HistoryRetention:  p.duration(envKeyHistoryRetention, 720*time.Hour),
		RetentionSchedule: envOr(envKeyRetentionSchedule, "@hourly"),
		OrphanAge:         p.duration(envKeyOrphanAge, 6*time.Hour),
		LogLevel:          strings.ToLower(envOr(envKeyLogLevel, "info")),
		LogFormat:         strings.ToLower(envOr(envKeyLogFormat, "text")),
		ConfigFile:        os.Getenv(envKeyConfigFile),
	}
	if p.err != nil {
		return Config{}, errors.Mark(p.err, ErrInvalid)
	}

	if cfg.ConfigFile != "" {
		f, err := ReadFile(cfg.ConfigFile)
		if err != nil {
			return Config{}, errors.Mark(err, ErrInvalid)
		}
		cfg.merge(f)
	}

	cfg.SearchPath = append(cfg.SearchPath, splitList(os.Getenv(envKeySearchPath))...)
	if fsl := os.Getenv(envKeyFSLDir); fsl != "" {
		cfg.SearchPath = append(cfg.SearchPath, filepath.Join(fsl, "bin"))
	}
	if cfg.Python == "" {
		cfg.Python = DefaultPython
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ReadFile parses a YAML config file.
func ReadFile(path string) (File, error) {
	// #nosec G304 -- operator-supplied config path.
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, errors.Wrapf(err, "reading config file %q", path)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, errors.Wrapf(err, "parsing config file %q", path)
	}
	return f, nil
}

func (c *Config) merge(f File) {
	c.Executables = f.Executables
	c.SearchPath = append(c.SearchPath, f.SearchPath...)
	c.Disabled = f.Disabled
	if c.Python == "" {
		c.Python = f.Python
	}
}

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Mark(errors.Wrap(err, "config"), ErrInvalid)
	}
	return nil
}

// Addr is the listen address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// AuthEnabled reports whether protected routes require a bearer token.
func (c Config) AuthEnabled() bool {
	return c.JWTSecret != ""
}

// envOr returns the value of the environment variable key, or fallback if not set.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// parser keeps the first conversion error so Load reports one bad variable at a time.
type parser struct {
	err error
}

func (p *parser) int(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" || p.err != nil {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		p.err = errors.Wrapf(err, "%s", key)
		return fallback
	}
	return n
}

func (p *parser) int64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" || p.err != nil {
		return fallback
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		p.err = errors.Wrapf(err, "%s", key)
		return fallback
	}
	return n
}

// duration accepts Go duration syntax; a bare integer is read as seconds.
func (p *parser) duration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" || p.err != nil {
		return fallback
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.err = errors.Wrapf(err, "%s", key)
		return fallback
	}
	return d
}

func splitList(v string) []string {
	var out []string
	for _, p := range filepath.SplitList(v) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
