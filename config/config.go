// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package config

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Application config structure
type AppConfig struct {
	Name        string `mapstructure:"service_name" validate:"required"`
	Version     string `mapstructure:"version" validate:"required"`
	Host        string `mapstructure:"host" validate:"required"`
	Port        int    `mapstructure:"port" validate:"required"`
	LogLevel    string `mapstructure:"log_level" validate:"required"`
	LogPath     string `mapstructure:"log_path"`
	Environment string `mapstructure:"env"`

	CaptureConfig       CaptureConfig       `mapstructure:"capture" validate:"required"`
	RecordingConfig     RecordingConfig     `mapstructure:"recording" validate:"required"`
	TranscriptionConfig TranscriptionConfig `mapstructure:"transcription" validate:"required"`
	SummarizerConfig    SummarizerConfig    `mapstructure:"summarizer"`
	HistoryConfig       HistoryConfig       `mapstructure:"history" validate:"required"`
	RedisConfig         RedisConfig         `mapstructure:"redis"`
}

type CaptureConfig struct {
	FFmpegPath   string `mapstructure:"ffmpeg_path" validate:"required"`
	ScreenFormat string `mapstructure:"screen_format"`
	ScreenDevice string `mapstructure:"screen_device"`
	CameraFormat string `mapstructure:"camera_format"`
	CameraDevice string `mapstructure:"camera_device"`
	AudioFormat  string `mapstructure:"audio_format"`
	AudioDevice  string `mapstructure:"audio_device"`
	FrameRate    int    `mapstructure:"frame_rate" validate:"min=1,max=120"`
	ChunkSize    int    `mapstructure:"chunk_size" validate:"min=512"`
	Camera       bool   `mapstructure:"camera"`
	Audio        bool   `mapstructure:"audio"`
}

type RecordingConfig struct {
	MimeType    string `mapstructure:"mime_type" validate:"required"`
	FileName    string `mapstructure:"file_name" validate:"required"`
	DownloadDir string `mapstructure:"download_dir" validate:"required"`
}

type TranscriptionConfig struct {
	Mode               string        `mapstructure:"mode" validate:"required,oneof=live clip auto"`
	Language           string        `mapstructure:"language" validate:"required"`
	UploadLanguage     string        `mapstructure:"upload_language" validate:"required"`
	LiveEndpoint       string        `mapstructure:"live_endpoint"`
	InterimResults     bool          `mapstructure:"interim_results"`
	UploadURL          string        `mapstructure:"upload_url"`
	Timeout            time.Duration `mapstructure:"timeout" validate:"required"`
	RestartDelay       time.Duration `mapstructure:"restart_delay"`
	MaxRestartFailures int           `mapstructure:"max_restart_failures" validate:"min=1"`
}

type SummarizerConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type HistoryConfig struct {
	Driver            string `mapstructure:"driver" validate:"required,oneof=sqlite postgres"`
	DSN               string `mapstructure:"dsn" validate:"required"`
	MaxOpenConnection int    `mapstructure:"max_open_connection"`
}

type RedisConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	Password      string `mapstructure:"password"`
	DB            int    `mapstructure:"db"`
	MaxConnection int    `mapstructure:"max_connection"`
	Channel       string `mapstructure:"channel"`
}

// reading config and intializing configs for application
func InitConfig() (*viper.Viper, error) {
	vConfig := viper.NewWithOptions(viper.KeyDelimiter("__"))

	vConfig.AddConfigPath(".")
	vConfig.SetConfigName(".env")
	vConfig.SetConfigType("env")
	path := os.Getenv("ENV_PATH")
	if path != "" {
		log.Printf("env path %v", path)
		vConfig.SetConfigFile(path)
		if ext := strings.TrimPrefix(filepath.Ext(path), "."); ext == "yaml" || ext == "yml" {
			vConfig.SetConfigType("yaml")
		}
	}
	vConfig.AutomaticEnv()

	setDefault(vConfig)
	if err := vConfig.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) && path != "" {
			return nil, err
		}
		log.Printf("Reading from env varaibles.")
	}
	return vConfig, nil
}

func setDefault(v *viper.Viper) {
	// every key needs a default so AutomaticEnv can override it during Unmarshal
	v.SetDefault("SERVICE_NAME", "studio")
	v.SetDefault("VERSION", "0.0.1")
	v.SetDefault("HOST", "0.0.0.0")
	v.SetDefault("PORT", 9090)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PATH", "")
	v.SetDefault("ENV", "development")

	v.SetDefault("CAPTURE__FFMPEG_PATH", "ffmpeg")
	v.SetDefault("CAPTURE__SCREEN_FORMAT", "")
	v.SetDefault("CAPTURE__SCREEN_DEVICE", "")
	v.SetDefault("CAPTURE__CAMERA_FORMAT", "")
	v.SetDefault("CAPTURE__CAMERA_DEVICE", "")
	v.SetDefault("CAPTURE__AUDIO_FORMAT", "")
	v.SetDefault("CAPTURE__AUDIO_DEVICE", "")
	v.SetDefault("CAPTURE__FRAME_RATE", 30)
	v.SetDefault("CAPTURE__CHUNK_SIZE", 32*1024)
	v.SetDefault("CAPTURE__CAMERA", true)
	v.SetDefault("CAPTURE__AUDIO", true)

	v.SetDefault("RECORDING__MIME_TYPE", "video/webm")
	v.SetDefault("RECORDING__FILE_NAME", "recording.webm")
	v.SetDefault("RECORDING__DOWNLOAD_DIR", ".")

	v.SetDefault("TRANSCRIPTION__MODE", "auto")
	v.SetDefault("TRANSCRIPTION__LANGUAGE", "en-US")
	v.SetDefault("TRANSCRIPTION__UPLOAD_LANGUAGE", "en")
	v.SetDefault("TRANSCRIPTION__LIVE_ENDPOINT", "")
	v.SetDefault("TRANSCRIPTION__INTERIM_RESULTS", true)
	v.SetDefault("TRANSCRIPTION__UPLOAD_URL", "http://localhost:8000")
	v.SetDefault("TRANSCRIPTION__TIMEOUT", "60s")
	v.SetDefault("TRANSCRIPTION__RESTART_DELAY", "250ms")
	v.SetDefault("TRANSCRIPTION__MAX_RESTART_FAILURES", 3)

	v.SetDefault("SUMMARIZER__URL", "http://localhost:8000")
	v.SetDefault("SUMMARIZER__TIMEOUT", "120s")

	v.SetDefault("HISTORY__DRIVER", "sqlite")
	v.SetDefault("HISTORY__DSN", "studio.db")
	v.SetDefault("HISTORY__MAX_OPEN_CONNECTION", 5)

	v.SetDefault("REDIS__ENABLED", false)
	v.SetDefault("REDIS__HOST", "localhost")
	v.SetDefault("REDIS__PORT", 6379)
	v.SetDefault("REDIS__PASSWORD", "")
	v.SetDefault("REDIS__DB", 0)
	v.SetDefault("REDIS__MAX_CONNECTION", 10)
	v.SetDefault("REDIS__CHANNEL", "studio:transcripts")
}

// Getting application config from viper
func GetApplicationConfig(v *viper.Viper) (*AppConfig, error) {
	var config AppConfig
	err := v.Unmarshal(&config)
	if err != nil {
		log.Printf("%+v\n", err)
		return nil, err
	}

	// valdating the app config
	validate := validator.New()
	err = validate.Struct(&config)
	if err != nil {
		log.Printf("%+v\n", err)
		return nil, err
	}
	return &config, nil
}

// LevelSetter is the part of the application logger a config reload touches.
type LevelSetter interface {
	SetLevel(level string) error
	Infof(template string, args ...interface{})
	Warnf(template string, args ...interface{})
}

// Watch re-reads the config file on change and applies the new log level.
func Watch(v *viper.Viper, logger LevelSetter) {
	v.OnConfigChange(func(e fsnotify.Event) {
		applyChange(v, logger, e)
	})
	v.WatchConfig()
}

func applyChange(v *viper.Viper, logger LevelSetter, e fsnotify.Event) {
	if e.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}
	level := v.GetString("LOG_LEVEL")
	if err := logger.SetLevel(level); err != nil {
		logger.Warnf("config: ignoring log level from %s: %v", e.Name, err)
		return
	}
	logger.Infof("config: log level set to %s from %s", level, e.Name)
}
