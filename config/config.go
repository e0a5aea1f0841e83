package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type ConfigStruct struct {
	Billy      BillyConfig
	Options    Options
	Audio      AudioConfig
	Youtube    YoutubeConfig
	Soundcloud SoundcloudConfig
}

type BillyConfig struct {
	APIBase     string
	Token       string
	HTTPTimeout time.Duration
}

type Options struct {
	Port          string
	DBPath        string
	LogLevel      string
	DefaultVolume int
	Repeat        bool
	ImportDir     string
}

type AudioConfig struct {
	Output      string
	LoadTimeout time.Duration
}

type YoutubeConfig struct {
	APIKey string
}

type SoundcloudConfig struct {
	ClientID string
}

const (
	OutputFFPlay  = "ffplay"
	OutputDiscard = "discard"
)

// CookieName is the per-port key the session token is stored under, so two
// daemons on different ports keep separate sessions.
func (o *Options) CookieName() string {
	return "token" + o.Port
}

func (y *YoutubeConfig) IsEnabled() bool {
	return y.APIKey != ""
}

func (o *Options) ImportEnabled() bool {
	return o.ImportDir != ""
}

var Config *ConfigStruct

func NewConfig() {
	config := &ConfigStruct{
		Billy: BillyConfig{
			APIBase:     getAPIBase(),
			Token:       os.Getenv("BILLY_TOKEN"),
			HTTPTimeout: time.Duration(getHTTPTimeout()) * time.Second,
		},
		Options: Options{
			Port:          getPort(),
			DBPath:        getDBPath(),
			LogLevel:      getLogLevel(),
			DefaultVolume: getDefaultVolume(),
			Repeat:        os.Getenv("REPEAT") == "true",
			ImportDir:     os.Getenv("IMPORT_DIR"),
		},
		Audio: AudioConfig{
			Output:      getAudioOutput(),
			LoadTimeout: time.Duration(getLoadTimeout()) * time.Second,
		},
		Youtube: YoutubeConfig{
			APIKey: os.Getenv("YOUTUBE_API_KEY"),
		},
		Soundcloud: SoundcloudConfig{
			ClientID: os.Getenv("SOUNDCLOUD_CLIENT_ID"),
		},
	}

	Config = config
}

func getAPIBase() string {
	base := os.Getenv("BILLY_API_BASE")
	if base == "" {
		return "http://musesync.ewi.tudelft.nl:8000/api"
	}
	return strings.TrimRight(base, "/")
}

func getPort() string {
	port := os.Getenv("PORT")
	if port == "" {
		return "8080"
	}
	return port
}

func getDBPath() string {
	path := os.Getenv("DB_PATH")
	if path == "" {
		return "/app/data/billy.db"
	}
	return path
}

func getLogLevel() string {
	level := strings.ToLower(os.Getenv("LOG_LEVEL"))
	switch level {
	case "trace", "debug", "info", "warn", "error":
		return level
	}
	return "info"
}

func getDefaultVolume() int {
	volumeStr := os.Getenv("DEFAULT_VOLUME")
	if volumeStr == "" {
		return 80
	}
	volume, err := strconv.Atoi(volumeStr)
	if err != nil {
		return 80
	}
	if volume < 0 {
		return 0
	}
	if volume > 100 {
		return 100
	}
	return volume
}

func getLoadTimeout() int {
	timeoutStr := os.Getenv("LOAD_TIMEOUT_SECONDS")
	if timeoutStr == "" {
		return 30
	}
	timeout, err := strconv.Atoi(timeoutStr)
	if err != nil || timeout <= 0 {
		return 30
	}
	if timeout < 5 {
		return 5
	}
	if timeout > 300 {
		return 300
	}
	return timeout
}

func getHTTPTimeout() int {
	timeoutStr := os.Getenv("HTTP_TIMEOUT_SECONDS")
	if timeoutStr == "" {
		return 10
	}
	timeout, err := strconv.Atoi(timeoutStr)
	if err != nil || timeout <= 0 {
		return 10
	}
	if timeout > 120 {
		return 120
	}
	return timeout
}

func getAudioOutput() string {
	if os.Getenv("AUDIO_OUTPUT") == OutputDiscard {
		return OutputDiscard
	}
	return OutputFFPlay
}
