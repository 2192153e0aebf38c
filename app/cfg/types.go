package cfg

import "time"

type Cfg struct {
	// Delivery
	BotToken string
	Channel  string
	DryRun   bool

	// Sources and dedup state
	ConfigFile   string
	DedupBackend string
	DedupPath    string

	// Scheduling
	Interval     time.Duration
	StartDelay   time.Duration
	CycleTimeout time.Duration
	Once         bool

	// Selection
	MaxPostsPerCycle int
	ActualityWindow  time.Duration
	ActiveFromHour   int
	ActiveToHour     int
	FetchWorkers     int

	// Text and caption limits, in runes
	ExcerptThreshold int
	MinTextLength    int
	CaptionLimit     int
	CaptionCut       int

	// Network
	FeedTimeout  time.Duration
	PageTimeout  time.Duration
	PhotoTimeout time.Duration
	VideoTimeout time.Duration
	SendInterval time.Duration
	UserAgent    string

	// HTTP status API
	Port         string
	APIAccessKey string

	// Application metadata
	Timezone string
	Debug    bool
	Version  string
}

// PostsPerHour is the publishing cadence implied by the schedule, used in operator replies.
func (c *Cfg) PostsPerHour() float64 {
	if c.Interval <= 0 {
		return 0
	}
	return float64(c.MaxPostsPerCycle) * float64(time.Hour) / float64(c.Interval)
}
