package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"NetGauntlet/internal/model"
)

// DetectorConfig holds the client-side settings for talking to the detector
// HTTP boundary. Durations are Go duration strings, e.g. "3s".
type DetectorConfig struct {
	BaseURL        string `yaml:"base_url"`
	RequestTimeout string `yaml:"request_timeout"` // single HTTP operation
	MaxWait        string `yaml:"max_wait"`        // snapshot-diff bound
	PollInterval   string `yaml:"poll_interval"`   // snapshot-diff poll
	SubmitTimeout  string `yaml:"submit_timeout"`  // execution-id poll bound
	SubmitPoll     string `yaml:"submit_poll"`     // execution-id poll interval
	PostWait       string `yaml:"post_wait"`       // pause between scenario end and wait
}

// WatchdogConfig holds the supervision limits for scenario commands.
type WatchdogConfig struct {
	PollInterval     string  `yaml:"poll_interval"`
	GracePeriod      string  `yaml:"grace_period"`
	MaxRuntime       int     `yaml:"max_runtime"` // seconds, cap on per-scenario timeout
	EnableCPUCheck   bool    `yaml:"enable_cpu_check"`
	MaxCPUPercent    float64 `yaml:"max_cpu_percent"`
	MaxNetBytesDelta uint64  `yaml:"max_net_bytes_delta"`
	Interface        string  `yaml:"interface"`
}

// RunnerConfig holds the orchestrator settings.
type RunnerConfig struct {
	Workdir     string  `yaml:"workdir"`
	OutputPath  string  `yaml:"output_path"`
	Repetitions int     `yaml:"repetitions"`
	DelayBase   float64 `yaml:"delay_base"`   // seconds between scenarios
	DelayJitter float64 `yaml:"delay_jitter"` // uniform extra, seconds
}

// TrafficConfig holds the legitimate-traffic generator settings.
type TrafficConfig struct {
	BaseHost       string   `yaml:"base_host"`
	SitePrefix     string   `yaml:"site_prefix"`
	OutputPath     string   `yaml:"output_path"`
	Repetitions    int      `yaml:"repetitions"`
	Sessions       int      `yaml:"sessions"`
	RequestTimeout string   `yaml:"request_timeout"`
	PostWait       string   `yaml:"post_wait"` // pause between scenario end and submission
	MaxRPS         float64  `yaml:"max_rps"`
	BurstCapacity  float64  `yaml:"burst_capacity"`
	ThinkMedian    float64  `yaml:"think_median"`
	ThinkSigma     float64  `yaml:"think_sigma"`
	UserAgents     []string `yaml:"user_agents"`
	Sitemap        []string `yaml:"sitemap"`
}

// CaptureConfig holds the packet source settings for the extractor.
type CaptureConfig struct {
	Source       string  `yaml:"source"` // "live", "pcap" or "nats"
	Interface    string  `yaml:"interface"`
	BPF          string  `yaml:"bpf"`
	SnapshotLen  int32   `yaml:"snapshot_len"`
	PacketCount  int     `yaml:"packet_count"` // packets per aggregation cycle
	PcapPath     string  `yaml:"pcap_path"`
	FlowTimeout  float64 `yaml:"flow_timeout"` // seconds of inactivity closing a flow
	SleepBetween string  `yaml:"sleep_between"`
	OutputPath   string  `yaml:"output_path"` // flow-submission log
}

// PersistenceConfig controls the probe-side dump of captured packet records.
type PersistenceConfig struct {
	Enabled           bool   `yaml:"enabled"`
	Path              string `yaml:"path"`
	Encoding          string `yaml:"encoding"` // "jsonl", "text" or "gob"
	NumWorkers        int    `yaml:"num_workers"`
	ChannelBufferSize int    `yaml:"channel_buffer_size"`
}

// ProbeConfig holds the remote capture probe settings.
type ProbeConfig struct {
	NATSURL string            `yaml:"nats_url"`
	Subject string            `yaml:"subject"`
	Dump    PersistenceConfig `yaml:"dump"`
}

// ClickHouseConfig holds the connection settings for the flow archive.
type ClickHouseConfig struct {
	Addr     []string `yaml:"addr"`
	Database string   `yaml:"database"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	Table    string   `yaml:"table"`
}

// ArchiveConfig enables persisting every closed flow to ClickHouse.
type ArchiveConfig struct {
	Enabled    bool             `yaml:"enabled"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
}

// AIConfig holds the settings for the OpenAI-compatible analysis endpoint.
type AIConfig struct {
	BaseURL string `yaml:"base_url"` // e.g. http://localhost:11434/v1 for Ollama
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}

// ServiceConfig holds the detector boundary service settings.
type ServiceConfig struct {
	ListenAddr    string   `yaml:"listen_addr"`
	RequestLog    string   `yaml:"request_log"`
	CacheCapacity int      `yaml:"cache_capacity"`
	CacheTTL      string   `yaml:"cache_ttl"`
	QueueSize     int      `yaml:"queue_size"`
	AI            AIConfig `yaml:"ai"`
}

// Config is the top-level configuration struct for the entire application.
type Config struct {
	Detector  DetectorConfig   `yaml:"detector"`
	Watchdog  WatchdogConfig   `yaml:"watchdog"`
	Runner    RunnerConfig     `yaml:"runner"`
	Traffic   TrafficConfig    `yaml:"traffic"`
	Capture   CaptureConfig    `yaml:"capture"`
	Probe     ProbeConfig      `yaml:"probe"`
	Archive   ArchiveConfig    `yaml:"archive"`
	Service   ServiceConfig    `yaml:"service"`
	Scenarios []model.Scenario `yaml:"scenarios"`
}

// LoadConfig reads the configuration from a YAML file and returns a Config struct.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	d := &c.Detector
	setIfEmpty(&d.RequestTimeout, "10s")
	setIfEmpty(&d.MaxWait, "120s")
	setIfEmpty(&d.PollInterval, "3s")
	setIfEmpty(&d.SubmitTimeout, "90s")
	setIfEmpty(&d.SubmitPoll, "2s")
	setIfEmpty(&d.PostWait, "2s")

	w := &c.Watchdog
	setIfEmpty(&w.PollInterval, "1s")
	setIfEmpty(&w.GracePeriod, "5s")
	if w.MaxRuntime == 0 {
		w.MaxRuntime = 40
	}
	if w.MaxCPUPercent == 0 {
		w.MaxCPUPercent = 80.0
	}
	if w.MaxNetBytesDelta == 0 {
		w.MaxNetBytesDelta = 40_000_000
	}

	r := &c.Runner
	setIfEmpty(&r.OutputPath, "results/scenario_results.jsonl")
	if r.Repetitions == 0 {
		r.Repetitions = 2
	}
	if r.DelayBase == 0 {
		r.DelayBase = 3.0
	}
	if r.DelayJitter == 0 {
		r.DelayJitter = 2.0
	}

	t := &c.Traffic
	setIfEmpty(&t.OutputPath, "results/traffic_records.jsonl")
	setIfEmpty(&t.RequestTimeout, "12s")
	setIfEmpty(&t.PostWait, "1500ms")
	if t.Repetitions == 0 {
		t.Repetitions = 10
	}
	if t.Sessions == 0 {
		t.Sessions = 2
	}
	if t.MaxRPS == 0 {
		t.MaxRPS = 1.0
	}
	if t.BurstCapacity == 0 {
		t.BurstCapacity = 4
	}
	if t.ThinkMedian == 0 {
		t.ThinkMedian = 0.8
	}
	if t.ThinkSigma == 0 {
		t.ThinkSigma = 0.6
	}
	if len(t.UserAgents) == 0 {
		t.UserAgents = defaultUserAgents
	}
	if len(t.Sitemap) == 0 {
		t.Sitemap = defaultSitemap
	}

	cpt := &c.Capture
	setIfEmpty(&cpt.Source, "live")
	setIfEmpty(&cpt.BPF, "ip")
	if cpt.SnapshotLen == 0 {
		cpt.SnapshotLen = 1600
	}
	if cpt.PacketCount == 0 {
		cpt.PacketCount = 50
	}
	if cpt.FlowTimeout == 0 {
		cpt.FlowTimeout = 60
	}
	setIfEmpty(&cpt.SleepBetween, "1s")
	setIfEmpty(&cpt.OutputPath, "results/flow_submissions.jsonl")

	p := &c.Probe
	setIfEmpty(&p.NATSURL, "nats://127.0.0.1:4222")
	setIfEmpty(&p.Subject, "ng.packets.raw")
	setIfEmpty(&p.Dump.Encoding, "jsonl")

	setIfEmpty(&c.Archive.ClickHouse.Table, "flow_records")

	s := &c.Service
	setIfEmpty(&s.ListenAddr, ":3000")
	setIfEmpty(&s.RequestLog, "results/detector_requests.jsonl")
	if s.CacheCapacity == 0 {
		s.CacheCapacity = 256
	}
	setIfEmpty(&s.CacheTTL, "10m")
	if s.QueueSize == 0 {
		s.QueueSize = 16
	}
	setIfEmpty(&s.AI.Model, "llama3.2:1b")
}

func setIfEmpty(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 13_4) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.0 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Mobile/15E148",
	"curl/8.2.1",
	"Wget/1.21.3 (linux-gnu)",
}

var defaultSitemap = []string{
	"/", "/about.html", "/gallery.html", "/video.html", "/contact.html",
	"/product-1.html", "/product-2.html", "/product-3.html", "/product-4.html",
	"/product-5.html", "/product-6.html", "/product-7.html", "/product-8.html",
	"/product-9.html", "/product-10.html", "/product-11.html", "/product-12.html",
}
