package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/ini.v1"

	"github.com/ontahood/drivefetch/internal/constants"
)

// Config holds all runtime settings for a run. Values are resolved in
// layers: built-in defaults, the INI config file, environment variables,
// and finally command-line flags (applied by the CLI).
//
// INI format:
//
//	[drive]
//	token_file = /home/user/.config/drivefetch/token.json
//	output_dir = ./output
//
//	[fetch]
//	image_width = 400
//	workers = 3
//	max_attempts = 8
//	original_images = false
//	download_videos = true
//	download_docs = false
//	overwrite = false
//
//	[proxy]
//	mode = no-proxy
//	host =
//	port = 8080
//	user =
//	no_proxy =
//	warmup = false
//
//	[logging]
//	level = info
type Config struct {
	// Drive connection settings
	TokenFile string `ini:"token_file"`
	OutputDir string `ini:"output_dir"`

	// Fetch behavior
	ImageWidth     int  `ini:"image_width"`
	Workers        int  `ini:"workers"`
	MaxAttempts    int  `ini:"max_attempts"`
	OriginalImages bool `ini:"original_images"`
	DownloadVideos bool `ini:"download_videos"`
	DownloadDocs   bool `ini:"download_docs"`
	Overwrite      bool `ini:"overwrite"`

	// Proxy settings
	ProxyMode     string `ini:"mode"`
	ProxyHost     string `ini:"host"`
	ProxyPort     int    `ini:"port"`
	ProxyUser     string `ini:"user"`
	ProxyPassword string `ini:"-"`
	NoProxy       string `ini:"no_proxy"`
	ProxyWarmup   bool   `ini:"warmup"`

	// Logging
	LogLevel string `ini:"level"`
}

// Validation errors
var (
	ErrMissingTokenFile = errors.New("token_file is required")
	ErrMissingOutputDir = errors.New("output_dir is required")
	ErrInvalidWidth     = errors.New("image_width must be between 16 and 8192")
	ErrInvalidWorkers   = fmt.Errorf("workers must be between 1 and %d", constants.MaxWorkers)
	ErrInvalidAttempts  = errors.New("max_attempts must be between 1 and 20")
	ErrInvalidProxyMode = errors.New("proxy mode must be one of: no-proxy, system, basic, ntlm")
)

// New returns a Config with default values.
func New() *Config {
	return &Config{
		TokenFile:      DefaultTokenPath(),
		OutputDir:      "./output",
		ImageWidth:     constants.DefaultImageWidth,
		Workers:        constants.DefaultWorkers,
		MaxAttempts:    constants.DefaultMaxAttempts,
		OriginalImages: false,
		DownloadVideos: true,
		DownloadDocs:   false,
		Overwrite:      false,
		ProxyMode:      "no-proxy",
		ProxyPort:      8080,
		LogLevel:       "info",
	}
}

// Load resolves configuration from the INI file at path (or the default
// location when path is empty), then applies environment overrides.
// A missing file is not an error; defaults are returned.
func Load(path string) (*Config, error) {
	cfg := New()

	if path == "" {
		path = DefaultConfigPath()
	}

	if _, err := os.Stat(path); err == nil {
		iniFile, err := ini.Load(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg.fromINI(iniFile)
	}

	cfg.applyEnv()
	cfg.clamp()
	return cfg, nil
}

func (cfg *Config) fromINI(f *ini.File) {
	drive := f.Section("drive")
	cfg.TokenFile = drive.Key("token_file").MustString(cfg.TokenFile)
	cfg.OutputDir = drive.Key("output_dir").MustString(cfg.OutputDir)

	fetch := f.Section("fetch")
	cfg.ImageWidth = fetch.Key("image_width").MustInt(cfg.ImageWidth)
	cfg.Workers = fetch.Key("workers").MustInt(cfg.Workers)
	cfg.MaxAttempts = fetch.Key("max_attempts").MustInt(cfg.MaxAttempts)
	cfg.OriginalImages = fetch.Key("original_images").MustBool(cfg.OriginalImages)
	cfg.DownloadVideos = fetch.Key("download_videos").MustBool(cfg.DownloadVideos)
	cfg.DownloadDocs = fetch.Key("download_docs").MustBool(cfg.DownloadDocs)
	cfg.Overwrite = fetch.Key("overwrite").MustBool(cfg.Overwrite)

	proxy := f.Section("proxy")
	cfg.ProxyMode = proxy.Key("mode").MustString(cfg.ProxyMode)
	cfg.ProxyHost = proxy.Key("host").String()
	cfg.ProxyPort = proxy.Key("port").MustInt(cfg.ProxyPort)
	cfg.ProxyUser = proxy.Key("user").String()
	cfg.NoProxy = proxy.Key("no_proxy").String()
	cfg.ProxyWarmup = proxy.Key("warmup").MustBool(cfg.ProxyWarmup)

	logging := f.Section("logging")
	cfg.LogLevel = logging.Key("level").MustString(cfg.LogLevel)
}

// applyEnv overlays environment variables. Names follow the conventions
// of the tool's earlier releases (TOKEN_FILE, OUTPUT_DIR, IMAGE_WIDTH,
// CONCURRENCY) so existing .env files keep working.
func (cfg *Config) applyEnv() {
	if v := os.Getenv("TOKEN_FILE"); v != "" {
		cfg.TokenFile = v
	}
	if v := os.Getenv("OUTPUT_DIR"); v != "" {
		cfg.OutputDir = v
	}
	if v := os.Getenv("IMAGE_WIDTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ImageWidth = n
		}
	}
	if v := os.Getenv("CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Workers = n
		}
	}
	if v := os.Getenv("ORIGINAL"); v != "" {
		cfg.OriginalImages = isTruthy(v)
	}
	if v := os.Getenv("DOWNLOAD_VIDEOS"); v != "" {
		cfg.DownloadVideos = isTruthy(v)
	}
	if v := os.Getenv("DOWNLOAD_DOCS"); v != "" {
		cfg.DownloadDocs = isTruthy(v)
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("PROXY_PASSWORD"); v != "" {
		cfg.ProxyPassword = v
	}
}

func isTruthy(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// clamp constrains numeric settings to sane ranges instead of failing.
// Out-of-range values typically come from hand-edited .env files.
func (cfg *Config) clamp() {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Workers > constants.MaxWorkers {
		cfg.Workers = constants.MaxWorkers
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.ImageWidth < 16 {
		cfg.ImageWidth = constants.DefaultImageWidth
	}
}

// Validate checks that the configuration is usable for a run.
func (cfg *Config) Validate() error {
	if strings.TrimSpace(cfg.TokenFile) == "" {
		return ErrMissingTokenFile
	}
	if strings.TrimSpace(cfg.OutputDir) == "" {
		return ErrMissingOutputDir
	}
	if cfg.ImageWidth < 16 || cfg.ImageWidth > 8192 {
		return ErrInvalidWidth
	}
	if cfg.Workers < 1 || cfg.Workers > constants.MaxWorkers {
		return ErrInvalidWorkers
	}
	if cfg.MaxAttempts < 1 || cfg.MaxAttempts > 20 {
		return ErrInvalidAttempts
	}
	switch strings.ToLower(cfg.ProxyMode) {
	case "", "no-proxy", "system", "basic", "ntlm":
	default:
		return ErrInvalidProxyMode
	}
	return nil
}

// Save writes the configuration to an INI file. Creates parent
// directories if they don't exist. The proxy password is never written.
func Save(cfg *Config, path string) error {
	if path == "" {
		path = DefaultConfigPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f := ini.Empty()

	drive, err := f.NewSection("drive")
	if err != nil {
		return fmt.Errorf("failed to create drive section: %w", err)
	}
	drive.Key("token_file").SetValue(cfg.TokenFile)
	drive.Key("output_dir").SetValue(cfg.OutputDir)

	fetch, err := f.NewSection("fetch")
	if err != nil {
		return fmt.Errorf("failed to create fetch section: %w", err)
	}
	fetch.Key("image_width").SetValue(strconv.Itoa(cfg.ImageWidth))
	fetch.Key("workers").SetValue(strconv.Itoa(cfg.Workers))
	fetch.Key("max_attempts").SetValue(strconv.Itoa(cfg.MaxAttempts))
	fetch.Key("original_images").SetValue(strconv.FormatBool(cfg.OriginalImages))
	fetch.Key("download_videos").SetValue(strconv.FormatBool(cfg.DownloadVideos))
	fetch.Key("download_docs").SetValue(strconv.FormatBool(cfg.DownloadDocs))
	fetch.Key("overwrite").SetValue(strconv.FormatBool(cfg.Overwrite))

	proxy, err := f.NewSection("proxy")
	if err != nil {
		return fmt.Errorf("failed to create proxy section: %w", err)
	}
	proxy.Key("mode").SetValue(cfg.ProxyMode)
	proxy.Key("host").SetValue(cfg.ProxyHost)
	proxy.Key("port").SetValue(strconv.Itoa(cfg.ProxyPort))
	proxy.Key("user").SetValue(cfg.ProxyUser)
	proxy.Key("no_proxy").SetValue(cfg.NoProxy)
	proxy.Key("warmup").SetValue(strconv.FormatBool(cfg.ProxyWarmup))

	logging, err := f.NewSection("logging")
	if err != nil {
		return fmt.Errorf("failed to create logging section: %w", err)
	}
	logging.Key("level").SetValue(cfg.LogLevel)

	// Temp file + rename so a crash never leaves a half-written config.
	tmpPath := path + ".tmp"
	if err := f.SaveTo(tmpPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	if runtime.GOOS != "windows" {
		if err := os.Chmod(tmpPath, 0600); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("failed to set config permissions: %w", err)
		}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}
