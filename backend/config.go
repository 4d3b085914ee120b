package backend

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/ini.v1"
)

// Application configuration. Read-only: ytgrab never writes the file back.

type Config struct {
	DownloadDir string `json:"downloadDir"`
	YTDLPPath   string `json:"ytdlpPath,omitempty"`
	FFmpegPath  string `json:"ffmpegPath,omitempty"`

	DefaultMode   MediaMode     `json:"defaultMode"`
	VideoFormat   string        `json:"videoFormat"` // "mp4", "mkv"
	AudioFormat   string        `json:"audioFormat"` // "mp3", "m4a", "wav"
	MaxHeight     int           `json:"maxHeight"`   // 0 = best
	PlaylistLimit int           `json:"playlistLimit"`
	ProbeTimeout  time.Duration `json:"probeTimeout"`

	LogLevel  string `json:"logLevel"`
	LogFormat string `json:"logFormat"` // "text", "json"

	Port string `json:"port"`
}

var defaultConfig = Config{
	DownloadDir:   "",
	DefaultMode:   ModeVideo,
	VideoFormat:   "mp4",
	AudioFormat:   "mp3",
	MaxHeight:     0,
	PlaylistLimit: 50,
	ProbeTimeout:  DefaultProbeTimeout,
	LogLevel:      "info",
	LogFormat:     "text",
	Port:          "8080",
}

// GetDefaultConfig returns a copy of the built-in defaults
func GetDefaultConfig() *Config {
	c := defaultConfig
	return &c
}

// GetConfigPath returns the path to the config file
func GetConfigPath() string {
	if env := os.Getenv("YTGRAB_CONFIG"); env != "" {
		return env
	}
	configDir, _ := os.UserConfigDir()
	return filepath.Join(configDir, "ytgrab", "config.ini")
}

// LoadConfig loads the config file from GetConfigPath
func LoadConfig() (*Config, error) {
	return LoadConfigFrom(GetConfigPath())
}

// LoadConfigFrom loads an INI config file. A missing file yields the defaults.
func LoadConfigFrom(path string) (*Config, error) {
	config := GetDefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config, nil
	}

	file, err := ini.Load(path)
	if err != nil {
		return config, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	paths := file.Section("paths")
	config.DownloadDir = paths.Key("download_dir").MustString(config.DownloadDir)
	config.YTDLPPath = paths.Key("ytdlp").MustString(config.YTDLPPath)
	config.FFmpegPath = paths.Key("ffmpeg").MustString(config.FFmpegPath)

	download := file.Section("download")
	config.DefaultMode = MediaMode(strings.ToLower(download.Key("mode").MustString(string(config.DefaultMode))))
	config.VideoFormat = strings.ToLower(download.Key("video_format").MustString(config.VideoFormat))
	config.AudioFormat = strings.ToLower(download.Key("audio_format").MustString(config.AudioFormat))
	config.MaxHeight = download.Key("max_height").MustInt(config.MaxHeight)
	config.PlaylistLimit = download.Key("playlist_limit").MustInt(config.PlaylistLimit)
	config.ProbeTimeout = download.Key("probe_timeout").MustDuration(config.ProbeTimeout)

	logSection := file.Section("log")
	config.LogLevel = logSection.Key("level").MustString(config.LogLevel)
	config.LogFormat = logSection.Key("format").MustString(config.LogFormat)

	config.Port = file.Section("server").Key("port").MustString(config.Port)

	return config, config.Validate()
}

// LoadConfigWithEnv loads the config file then applies YTGRAB_* overrides
func LoadConfigWithEnv() (*Config, error) {
	config, err := LoadConfig()
	if config == nil {
		config = GetDefaultConfig()
	}
	applyEnv(config)
	if err != nil {
		return config, err
	}
	return config, config.Validate()
}

func applyEnv(config *Config) {
	if v := os.Getenv("YTGRAB_DOWNLOAD_DIR"); v != "" {
		config.DownloadDir = v
	}
	if v := os.Getenv("YTGRAB_YTDLP"); v != "" {
		config.YTDLPPath = v
	}
	if v := os.Getenv("YTGRAB_FFMPEG"); v != "" {
		config.FFmpegPath = v
	}
	if v := os.Getenv("YTGRAB_MODE"); v != "" {
		config.DefaultMode = MediaMode(strings.ToLower(v))
	}
	if v := os.Getenv("YTGRAB_VIDEO_FORMAT"); v != "" {
		config.VideoFormat = strings.ToLower(v)
	}
	if v := os.Getenv("YTGRAB_AUDIO_FORMAT"); v != "" {
		config.AudioFormat = strings.ToLower(v)
	}
	if v, err := strconv.Atoi(os.Getenv("YTGRAB_MAX_HEIGHT")); err == nil {
		config.MaxHeight = v
	}
	if v, err := strconv.Atoi(os.Getenv("YTGRAB_PLAYLIST_LIMIT")); err == nil {
		config.PlaylistLimit = v
	}
	if v, err := time.ParseDuration(os.Getenv("YTGRAB_PROBE_TIMEOUT")); err == nil {
		config.ProbeTimeout = v
	}
	if v := os.Getenv("PORT"); v != "" {
		config.Port = v
	}
}

// Validate checks the values that would otherwise fail deep inside a job
func (c *Config) Validate() error {
	if c.DefaultMode != ModeVideo && c.DefaultMode != ModeAudio {
		return fmt.Errorf("invalid mode %q", c.DefaultMode)
	}
	if err := ValidateContainer(ModeVideo, c.VideoFormat); err != nil {
		return err
	}
	if err := ValidateContainer(ModeAudio, c.AudioFormat); err != nil {
		return err
	}
	if c.MaxHeight < 0 || c.PlaylistLimit < 0 {
		return fmt.Errorf("max_height and playlist_limit must not be negative")
	}
	if c.DownloadDir != "" {
		if err := ValidateOutputDirectory(c.DownloadDir); err != nil {
			return err
		}
	}
	return nil
}

// ContainerFor returns the configured container for a mode
func (c *Config) ContainerFor(mode MediaMode) string {
	if mode == ModeAudio {
		return c.AudioFormat
	}
	return c.VideoFormat
}

// OutputDirectory returns the download directory, falling back to the default
func (c *Config) OutputDirectory() string {
	if c.DownloadDir != "" {
		return c.DownloadDir
	}
	return GetDefaultOutputDirectory()
}

// GetDefaultOutputDirectory returns default output path
func GetDefaultOutputDirectory() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return defaultDownloadDir
	}
	return filepath.Join(homeDir, "Downloads", "ytgrab")
}
