// Package config loads the processor's two configuration surfaces: runtime
// settings from the environment (and an optional apifp.toml), and the folder
// settings file that maps local folders to API endpoints.
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/paperoffice-ai/api-file-processor/errors"
)

const (
	// DefaultFolderSettingsFile is looked up in the working directory when
	// no --config flag is given.
	DefaultFolderSettingsFile = "api_file_processor_config.json"

	// DefaultLogFile receives the rotating JSON log.
	DefaultLogFile = "api_file_processor.log"

	defaultLogLevel       = "INFO"
	defaultLogFileMaxMB   = 10
	defaultLogBackupCount = 5
	defaultWorkers        = 4
)

var validLogLevels = map[string]bool{
	"DEBUG": true, "INFO": true, "WARNING": true, "WARN": true, "ERROR": true,
}

// Settings holds runtime configuration from the environment. Invalid values
// never abort startup; they fall back to defaults and queue a notice that is
// logged once the logger is up.
type Settings struct {
	APIKey               string
	LogLevel             string
	LogFile              string
	LogFileMaxMB         int
	LogFileBackupCount   int
	Workers              int
	SubmissionsPerMinute int

	// Notices collects fallback warnings raised before the logger exists.
	Notices []string
}

// LoadSettings reads runtime settings from APIFP_* environment variables and
// an optional apifp.toml in the working directory.
func LoadSettings() *Settings {
	v := viper.New()
	v.SetEnvPrefix("APIFP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("log_level", defaultLogLevel)
	v.SetDefault("log_file", DefaultLogFile)
	v.SetDefault("log_file_max_mb", defaultLogFileMaxMB)
	v.SetDefault("log_file_backup_count", defaultLogBackupCount)
	v.SetDefault("workers", defaultWorkers)
	v.SetDefault("submissions_per_minute", 0)

	v.SetConfigName("apifp")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	// A missing apifp.toml is the normal case.
	_ = v.ReadInConfig()

	s := &Settings{
		APIKey:               v.GetString("api_key"),
		LogLevel:             strings.ToUpper(v.GetString("log_level")),
		LogFile:              v.GetString("log_file"),
		LogFileMaxMB:         v.GetInt("log_file_max_mb"),
		LogFileBackupCount:   v.GetInt("log_file_backup_count"),
		Workers:              v.GetInt("workers"),
		SubmissionsPerMinute: v.GetInt("submissions_per_minute"),
	}

	if !validLogLevels[s.LogLevel] {
		s.notice("invalid log level %q, using %s", s.LogLevel, defaultLogLevel)
		s.LogLevel = defaultLogLevel
	}
	if s.LogFileMaxMB <= 0 {
		s.notice("invalid log file size %d MB, using %d", s.LogFileMaxMB, defaultLogFileMaxMB)
		s.LogFileMaxMB = defaultLogFileMaxMB
	}
	if s.LogFileBackupCount < 0 {
		s.notice("invalid log backup count %d, using %d", s.LogFileBackupCount, defaultLogBackupCount)
		s.LogFileBackupCount = defaultLogBackupCount
	}
	if s.Workers <= 0 {
		s.notice("invalid worker count %d, using %d", s.Workers, defaultWorkers)
		s.Workers = defaultWorkers
	}
	if s.SubmissionsPerMinute < 0 {
		s.notice("invalid submissions per minute %d, disabling the limiter", s.SubmissionsPerMinute)
		s.SubmissionsPerMinute = 0
	}

	return s
}

func (s *Settings) notice(format string, args ...interface{}) {
	s.Notices = append(s.Notices, fmt.Sprintf(format, args...))
}

// Endpoint is the API endpoint a folder submits its files to. Payload is
// form-encoded verbatim into every job add call.
type Endpoint struct {
	URL     string                 `json:"url"`
	Payload map[string]interface{} `json:"payload"`
}

// FolderSpec maps one local folder to an endpoint.
type FolderSpec struct {
	FolderPath   string   `json:"folder_path"`
	OutputFolder string   `json:"output_folder"`
	Recursive    bool     `json:"recursive"`
	Endpoint     Endpoint `json:"endpoint"`
}

// FolderSettings is the parsed folder settings file.
type FolderSettings struct {
	Folders []FolderSpec `json:"folders"`

	// TestsAmount is the default repetition count for benchmark runs.
	TestsAmount int `json:"tests_amount"`
}

// LoadFolderSettings reads and validates the folder settings file. Any
// problem is run-fatal; validation happens before the first network call so
// a malformed file never submits anything.
func LoadFolderSettings(path string) (*FolderSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidConfig, "cannot read settings file %q: %v", path, err)
	}

	var settings FolderSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidConfig, "settings file %q is not valid JSON: %v", path, err)
	}

	if len(settings.Folders) == 0 {
		return nil, errors.Wrapf(errors.ErrInvalidConfig, "settings file %q configures no folders", path)
	}
	for i, folder := range settings.Folders {
		if err := folder.validate(); err != nil {
			return nil, errors.Wrapf(err, "folder entry %d", i)
		}
	}

	return &settings, nil
}

func (f FolderSpec) validate() error {
	if f.FolderPath == "" {
		return errors.Wrap(errors.ErrInvalidConfig, "missing required key folder_path")
	}
	if f.OutputFolder == "" {
		return errors.Wrap(errors.ErrInvalidConfig, "missing required key output_folder")
	}
	if f.FolderPath == f.OutputFolder {
		return errors.Wrapf(errors.ErrInvalidConfig,
			"folder_path and output_folder must differ, both are %q", f.FolderPath)
	}
	if f.Endpoint.URL == "" {
		return errors.Wrap(errors.ErrInvalidConfig, "missing required key endpoint.url")
	}
	u, err := url.Parse(f.Endpoint.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.Wrapf(errors.ErrInvalidConfig, "endpoint.url %q is not a valid URL", f.Endpoint.URL)
	}
	return nil
}
