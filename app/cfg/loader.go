package cfg

import (
	"cmp"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Delivery
	BotToken string `long:"bot-token" env:"BOT_TOKEN" description:"Telegram bot token (required unless --dry-run)"`
	Channel  string `long:"channel" env:"CHANNEL" default:"@osetia_lenta" description:"Target channel: @username or numeric chat id"`
	DryRun   bool   `long:"dry-run" env:"DRY_RUN" description:"Log composed posts instead of sending them"`

	// Sources and dedup state
	ConfigFile   string `long:"config-file" env:"CONFIG_FILE" default:"./relay.yml" description:"YAML file with sources and post template"`
	DedupBackend string `long:"dedup-backend" env:"DEDUP_BACKEND" default:"file" choice:"file" choice:"sqlite" description:"Storage for published links"`
	DedupPath    string `long:"dedup-path" env:"DEDUP_PATH" default:"posted.txt" description:"Path of the dedup log file or SQLite database"`

	// Scheduling
	Interval     int  `long:"interval" env:"INTERVAL" default:"900" description:"Polling interval in seconds"`
	StartDelay   int  `long:"start-delay" env:"START_DELAY" default:"10" description:"Delay before the first cycle in seconds"`
	CycleTimeout int  `long:"cycle-timeout" env:"CYCLE_TIMEOUT" default:"600" description:"Upper bound for one cycle in seconds"`
	Once         bool `long:"once" env:"ONCE" description:"Run a single cycle and exit"`

	// Selection
	MaxPostsPerCycle int `long:"max-posts" env:"MAX_POSTS_PER_CYCLE" default:"1" description:"Maximum posts published per cycle"`
	ActualityHours   int `long:"actuality-hours" env:"ACTUALITY_HOURS" default:"48" description:"Maximum entry age in hours"`
	ActiveFromHour   int `long:"active-from" env:"ACTIVE_FROM_HOUR" default:"7" description:"First active hour of the day (inclusive)"`
	ActiveToHour     int `long:"active-to" env:"ACTIVE_TO_HOUR" default:"23" description:"Last active hour of the day (inclusive)"`
	FetchWorkers     int `long:"fetch-workers" env:"FETCH_WORKERS" default:"4" description:"Sources fetched concurrently"`

	// Text and caption limits
	ExcerptThreshold int `long:"excerpt-threshold" env:"EXCERPT_THRESHOLD" default:"100" description:"Excerpt truncation threshold in characters"`
	MinTextLength    int `long:"min-text-length" env:"MIN_TEXT_LENGTH" default:"30" description:"Minimum cleaned text length for a text candidate"`
	CaptionLimit     int `long:"caption-limit" env:"CAPTION_LIMIT" default:"1024" description:"Hard caption limit in characters"`
	CaptionCut       int `long:"caption-cut" env:"CAPTION_CUT" default:"1010" description:"Cut position for captions over the limit"`

	// Network
	FeedTimeout  int    `long:"feed-timeout" env:"FEED_TIMEOUT" default:"12" description:"Feed fetch timeout in seconds"`
	PageTimeout  int    `long:"page-timeout" env:"PAGE_TIMEOUT" default:"15" description:"Article page fetch timeout in seconds"`
	PhotoTimeout int    `long:"photo-timeout" env:"PHOTO_TIMEOUT" default:"25" description:"Photo download and upload timeout in seconds"`
	VideoTimeout int    `long:"video-timeout" env:"VIDEO_TIMEOUT" default:"30" description:"Video download and upload timeout in seconds"`
	SendInterval int    `long:"send-interval" env:"SEND_INTERVAL_MS" default:"3000" description:"Minimum pause between channel sends in milliseconds"`
	UserAgent    string `long:"user-agent" env:"USER_AGENT" default:"Mozilla/5.0 (compatible; RSS Relay/1.0)" description:"User agent string for HTTP requests"`

	// HTTP status API
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP status server port (empty disables)"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Application metadata
	Timezone string `long:"timezone" env:"TZ" default:"Europe/Moscow" description:"Timezone for the active-hours gate (e.g., UTC, Europe/Moscow)"`
	Debug    bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

// Load reads .env (if present), then flags and environment from os.Args.
func Load() (*Cfg, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Printf("Warning: failed to read .env file: %v\n", err)
	}
	return LoadArgs(os.Args[1:])
}

// LoadArgs parses the given arguments. It returns nil, nil when help was requested.
func LoadArgs(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	seconds := func(v int) time.Duration { return time.Duration(v) * time.Second }

	cfg := &Cfg{
		BotToken:         raw.BotToken,
		Channel:          raw.Channel,
		DryRun:           raw.DryRun,
		ConfigFile:       raw.ConfigFile,
		DedupBackend:     raw.DedupBackend,
		DedupPath:        raw.DedupPath,
		Interval:         seconds(raw.Interval),
		StartDelay:       seconds(raw.StartDelay),
		CycleTimeout:     seconds(raw.CycleTimeout),
		Once:             raw.Once,
		MaxPostsPerCycle: raw.MaxPostsPerCycle,
		ActualityWindow:  time.Duration(raw.ActualityHours) * time.Hour,
		ActiveFromHour:   raw.ActiveFromHour,
		ActiveToHour:     raw.ActiveToHour,
		FetchWorkers:     raw.FetchWorkers,
		ExcerptThreshold: raw.ExcerptThreshold,
		MinTextLength:    raw.MinTextLength,
		CaptionLimit:     raw.CaptionLimit,
		CaptionCut:       raw.CaptionCut,
		FeedTimeout:      seconds(raw.FeedTimeout),
		PageTimeout:      seconds(raw.PageTimeout),
		PhotoTimeout:     seconds(raw.PhotoTimeout),
		VideoTimeout:     seconds(raw.VideoTimeout),
		SendInterval:     time.Duration(raw.SendInterval) * time.Millisecond,
		UserAgent:        raw.UserAgent,
		Port:             raw.Port,
		APIAccessKey:     raw.APIAccessKey,
		Timezone:         raw.Timezone,
		Debug:            raw.Debug,
		Version:          GetVersion(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func (c *Cfg) Validate() error {
	if c.BotToken == "" && !c.DryRun {
		return fmt.Errorf("bot token is required unless dry-run is enabled")
	}
	if c.Channel == "" {
		return fmt.Errorf("channel is required")
	}
	if c.MaxPostsPerCycle < 1 {
		return fmt.Errorf("max posts per cycle must be at least 1")
	}
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}

	hours := map[string]int{
		"active from hour": c.ActiveFromHour,
		"active to hour":   c.ActiveToHour,
	}
	for name, h := range hours {
		if h < 0 || h > 23 {
			return fmt.Errorf("%s must be within 0..23, got %d", name, h)
		}
	}

	positive := map[string]int{
		"excerpt threshold": c.ExcerptThreshold,
		"caption limit":     c.CaptionLimit,
		"caption cut":       c.CaptionCut,
		"fetch workers":     c.FetchWorkers,
	}
	for name, v := range positive {
		if v <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}

	if c.CaptionCut >= c.CaptionLimit {
		return fmt.Errorf("caption cut (%d) must be below caption limit (%d)", c.CaptionCut, c.CaptionLimit)
	}
	if c.ActualityWindow <= 0 {
		return fmt.Errorf("actuality window must be positive")
	}

	return nil
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
