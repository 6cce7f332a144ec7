package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"

	"github.com/pfrederiksen/pulep-events/internal/site"
)

// AppName is used for the XDG directory names
const AppName = "pulep-events"

// Defaults
const (
	DefaultBaseURL      = "https://pulepapp.mincultura.gov.co"
	DefaultTimeout      = 40 * time.Second
	DefaultRequestDelay = 250 * time.Millisecond
	DefaultConcurrency  = 4
	DefaultMaxPages     = 0 // unlimited; pagination ends on its own
	DefaultGridPageSize = 100
	DefaultFilterTTL    = 24 * time.Hour
	DefaultOutDir       = "."
	DefaultUserAgent    = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/121.0 Safari/537.36"
)

// Mode selects how the results listing is read
type Mode string

const (
	// ModeAuto tries the JSON grid endpoint and falls back to the HTML table
	ModeAuto Mode = "auto"
	// ModeHTML reads the paginated HTML results table only
	ModeHTML Mode = "html"
	// ModeGrid reads the jqGrid JSON endpoint only
	ModeGrid Mode = "grid"
)

// Config is passed explicitly to every component that needs it
type Config struct {
	BaseURL   string        `yaml:"base_url" envconfig:"BASE_URL"`
	UserAgent string        `yaml:"user_agent" envconfig:"USER_AGENT"`
	Timeout   time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`

	// RequestDelay is the minimum spacing between outbound requests. 0 disables pacing.
	RequestDelay time.Duration `yaml:"request_delay" envconfig:"REQUEST_DELAY"`
	// Retries is the number of extra attempts on transport errors, 429 and 5xx.
	Retries       int  `yaml:"retries" envconfig:"RETRIES"`
	RespectRobots bool `yaml:"respect_robots" envconfig:"RESPECT_ROBOTS"`

	Mode         Mode `yaml:"mode" envconfig:"MODE"`
	MaxPages     int  `yaml:"max_pages" envconfig:"MAX_PAGES"` // 0 means unlimited
	GridPageSize int  `yaml:"grid_page_size" envconfig:"GRID_PAGE_SIZE"`

	IncludeDetails bool `yaml:"include_details" envconfig:"INCLUDE_DETAILS"`
	MaxDetails     int  `yaml:"max_details" envconfig:"MAX_DETAILS"` // 0 means all
	Concurrency    int  `yaml:"concurrency" envconfig:"CONCURRENCY"`

	Format string `yaml:"format" envconfig:"FORMAT"`
	OutDir string `yaml:"out_dir" envconfig:"OUT_DIR"`

	DataDir        string        `yaml:"data_dir" envconfig:"DATA_DIR"`
	FilterCacheTTL time.Duration `yaml:"filter_cache_ttl" envconfig:"FILTER_CACHE_TTL"`
	Archive        bool          `yaml:"archive" envconfig:"ARCHIVE"`

	Verbose bool `yaml:"verbose" envconfig:"VERBOSE"`

	Layout site.Selectors `yaml:"layout" ignored:"true"`

	// ConfigFile is the file the YAML layer was read from, if any
	ConfigFile string `yaml:"-" ignored:"true"`
}

// NewConfig returns a Config populated with defaults
func NewConfig() *Config {
	return &Config{
		BaseURL:        DefaultBaseURL,
		UserAgent:      DefaultUserAgent,
		Timeout:        DefaultTimeout,
		RequestDelay:   DefaultRequestDelay,
		Mode:           ModeAuto,
		MaxPages:       DefaultMaxPages,
		GridPageSize:   DefaultGridPageSize,
		IncludeDetails: true,
		Concurrency:    DefaultConcurrency,
		Format:         "xlsx",
		OutDir:         DefaultOutDir,
		DataDir:        XDGDataDir(),
		FilterCacheTTL: DefaultFilterTTL,
		Layout:         site.DefaultSelectors(),
	}
}

// Validate checks the configuration once every layer has been applied
func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidBaseURL, c.BaseURL)
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.RequestDelay < 0 {
		return ErrInvalidDelay
	}
	if c.Retries < 0 {
		return ErrInvalidRetries
	}
	if c.Concurrency < 1 {
		return ErrInvalidConcurrency
	}
	if c.MaxDetails < 0 {
		return ErrInvalidMaxDetails
	}
	if c.MaxPages < 0 {
		return ErrInvalidMaxPages
	}
	if c.GridPageSize < 1 {
		return ErrInvalidGridPageSize
	}
	if c.FilterCacheTTL < 0 {
		return ErrInvalidCacheTTL
	}
	switch c.Mode {
	case ModeAuto, ModeHTML, ModeGrid:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidMode, c.Mode)
	}
	switch c.Format {
	case "xlsx", "csv":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidFormat, c.Format)
	}
	return nil
}

// XDGDataDir returns the default directory for the filter cache and run archive.
// On Linux this is ~/.local/share/pulep-events.
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigFile returns the config file looked up when none is in the working directory
func XDGConfigFile() string {
	return filepath.Join(xdg.ConfigHome, AppName, "config.yaml")
}
