// Package config assembles runtime settings from defaults, an optional TOML
// file and the process environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	EnvTelegramToken   = "TELEGRAM_BOT_TOKEN"
	EnvGeminiKey       = "GEMINI_API_KEY"
	EnvGeminiModel     = "GEMINI_MODEL"
	EnvGeminiRPS       = "GEMINI_RPS"
	EnvGeminiTimeout   = "GEMINI_TIMEOUT"
	EnvGeminiPoll      = "GEMINI_POLL_INTERVAL"
	EnvTranscriber     = "TRANSCRIBER"
	EnvWhisperBin      = "WHISPER_BIN"
	EnvWhisperModel    = "WHISPER_MODEL"
	EnvWhisperLanguage = "WHISPER_LANGUAGE"
	EnvOpenAIKey       = "OPENAI_API_KEY"
	EnvFFmpegPath      = "FFMPEG_PATH"
	EnvFFprobePath     = "FFPROBE_PATH"
	EnvYtDlpPath       = "YTDLP_PATH"
	EnvAllowedHosts    = "ALLOWED_SOURCE_HOSTS"
	EnvMaxConcurrent   = "MAX_CONCURRENT_REQUESTS"
	EnvRequestTimeout  = "REQUEST_TIMEOUT"
	EnvLogLevel        = "LOG_LEVEL"
	EnvHealthAddr      = "HEALTH_ADDR"
)

const (
	DefaultConfigFile  = "shortsbot.toml"
	TranscriberWhisper = "whispercpp"
	TranscriberOpenAI  = "openai"

	defaultGeminiModel  = "gemini-2.0-flash"
	defaultWhisperBin   = "whisper-cli"
	defaultWhisperModel = ".cache/models/ggml-base.bin"
)

// Duration decodes TOML strings such as "90s" or "10m".
type Duration struct{ time.Duration }

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

type Gemini struct {
	APIKey       string   `toml:"-"`
	Model        string   `toml:"model"`
	RPS          float64  `toml:"rps"`
	Timeout      Duration `toml:"timeout"`
	PollInterval Duration `toml:"poll_interval"`
}

type Transcription struct {
	Backend      string `toml:"backend"`
	WhisperBin   string `toml:"whisper_bin"`
	WhisperModel string `toml:"whisper_model"`
	Language     string `toml:"language"`
	OpenAIKey    string `toml:"-"`
}

type Media struct {
	FFmpegPath   string   `toml:"ffmpeg_path"`
	FFprobePath  string   `toml:"ffprobe_path"`
	YtDlpPath    string   `toml:"ytdlp_path"`
	AllowedHosts []string `toml:"allowed_hosts"`
}

type Bot struct {
	Token                 string   `toml:"-"`
	MaxConcurrentRequests int      `toml:"max_concurrent_requests"`
	RequestTimeout        Duration `toml:"request_timeout"`
	HealthAddr            string   `toml:"health_addr"`
}

type Config struct {
	Gemini        Gemini        `toml:"gemini"`
	Transcription Transcription `toml:"transcription"`
	Media         Media         `toml:"media"`
	Bot           Bot           `toml:"bot"`
	LogLevel      string        `toml:"log_level"`
}

func Defaults() Config {
	return Config{
		Gemini: Gemini{
			Model:        defaultGeminiModel,
			RPS:          1,
			Timeout:      Duration{10 * time.Minute},
			PollInterval: Duration{5 * time.Second},
		},
		Transcription: Transcription{
			Backend:      TranscriberWhisper,
			WhisperBin:   defaultWhisperBin,
			WhisperModel: defaultWhisperModel,
			Language:     "fr",
		},
		Media: Media{
			FFmpegPath:  "ffmpeg",
			FFprobePath: "ffprobe",
			YtDlpPath:   "yt-dlp",
		},
		Bot: Bot{
			RequestTimeout: Duration{time.Hour},
		},
		LogLevel: "info",
	}
}

// Load reads path (if it exists) over the defaults, then applies the
// environment. An explicitly requested file that is missing is an error;
// the default file name is optional.
func Load(path string) (Config, error) {
	cfg := Defaults()
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("decode %s: %w", path, err)
		}
	} else if explicit {
		return Config{}, fmt.Errorf("config file: %w", err)
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(c *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	dur := func(key string, dst *Duration) error {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		if err := dst.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		return nil
	}

	str(EnvTelegramToken, &c.Bot.Token)
	str(EnvGeminiKey, &c.Gemini.APIKey)
	str(EnvGeminiModel, &c.Gemini.Model)
	str(EnvTranscriber, &c.Transcription.Backend)
	str(EnvWhisperBin, &c.Transcription.WhisperBin)
	str(EnvWhisperModel, &c.Transcription.WhisperModel)
	str(EnvWhisperLanguage, &c.Transcription.Language)
	str(EnvOpenAIKey, &c.Transcription.OpenAIKey)
	str(EnvFFmpegPath, &c.Media.FFmpegPath)
	str(EnvFFprobePath, &c.Media.FFprobePath)
	str(EnvYtDlpPath, &c.Media.YtDlpPath)
	str(EnvHealthAddr, &c.Bot.HealthAddr)
	str(EnvLogLevel, &c.LogLevel)

	if v, ok := lookup(EnvAllowedHosts); ok && strings.TrimSpace(v) != "" {
		c.Media.AllowedHosts = splitList(v)
	}
	if v, ok := lookup(EnvGeminiRPS); ok && strings.TrimSpace(v) != "" {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvGeminiRPS, err)
		}
		c.Gemini.RPS = f
	}
	if v, ok := lookup(EnvMaxConcurrent); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMaxConcurrent, err)
		}
		c.Bot.MaxConcurrentRequests = n
	}
	if err := dur(EnvGeminiTimeout, &c.Gemini.Timeout); err != nil {
		return err
	}
	if err := dur(EnvGeminiPoll, &c.Gemini.PollInterval); err != nil {
		return err
	}
	return dur(EnvRequestTimeout, &c.Bot.RequestTimeout)
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks the settings shared by every command.
func (c Config) Validate() error {
	if c.Gemini.APIKey == "" {
		return errors.New(EnvGeminiKey + " is required (set it in .env)")
	}
	if c.Gemini.Model == "" {
		return errors.New("gemini model is required")
	}
	if c.Gemini.RPS <= 0 {
		return fmt.Errorf("gemini rps must be > 0")
	}
	if c.Gemini.PollInterval.Duration <= 0 {
		return fmt.Errorf("gemini poll interval must be > 0")
	}
	switch c.Transcription.Backend {
	case TranscriberWhisper:
		if c.Transcription.WhisperModel == "" {
			return fmt.Errorf("whisper model path is required")
		}
	case TranscriberOpenAI:
		if c.Transcription.OpenAIKey == "" {
			return errors.New(EnvOpenAIKey + " is required when " + EnvTranscriber + "=openai")
		}
	default:
		return fmt.Errorf("unknown transcriber %q (want %s or %s)", c.Transcription.Backend, TranscriberWhisper, TranscriberOpenAI)
	}
	if c.Bot.MaxConcurrentRequests < 0 {
		return fmt.Errorf("max concurrent requests must be >= 0")
	}
	return nil
}

// ValidateBot additionally requires the Telegram credential.
func (c Config) ValidateBot() error {
	if c.Bot.Token == "" {
		return errors.New(EnvTelegramToken + " is required (set it in .env)")
	}
	return c.Validate()
}
