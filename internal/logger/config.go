package logger

import (
	"io"
	"os"
	"strconv"
)

// Options configures a Logger. The zero value logs JSON at info level to
// stdout.
type Options struct {
	Level   string    // debug, info, warn, error
	Format  string    // json or text
	Output  io.Writer // overrides stdout and file output when set
	Service string    // value of the "service" field

	// Environment "local" never writes the log file.
	Environment string

	File FileOptions
}

// FileOptions controls the rotated log file used outside local runs.
type FileOptions struct {
	Path       string
	Only       bool // skip stdout
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// OptionsFromEnv reads LOG_*, SERVICE_NAME and APP_ENV.
// Returns:
//   - *Options: options with defaults for unset variables.
func OptionsFromEnv() *Options {
	return &Options{
		Level:       envString("LOG_LEVEL", "info"),
		Format:      envString("LOG_FORMAT", "json"),
		Service:     envString("SERVICE_NAME", "transitdw"),
		Environment: envString("APP_ENV", "local"),
		File: FileOptions{
			Path:       envString("LOG_FILE", "/var/log/transitdw/transitdw.log"),
			Only:       envBool("LOG_FILE_ONLY", false),
			MaxSizeMB:  envInt("LOG_MAX_SIZE", 100),
			MaxBackups: envInt("LOG_MAX_BACKUPS", 7),
			MaxAgeDays: envInt("LOG_MAX_AGE", 30),
			Compress:   envBool("LOG_COMPRESS", true),
		},
	}
}

func (o *Options) writesFile() bool {
	return o.Environment != "local" && o.File.Path != ""
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	b, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	i, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return def
	}
	return i
}
