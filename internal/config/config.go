package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	ListenAddr     string
	APIPrefix      string
	DBPath         string
	AssetPath      string
	LogLevel       string
	LogFormat      string
	LogFile        string
	ClearPassword  string
	CameraSeedFile string
	RecentWindow   time.Duration
	ImageMaxEdge   int
	ImageQuality   int
	MaxUploadBytes int64
}

func Load() *Config {
	return &Config{
		ListenAddr:     getEnv("LISTEN_ADDR", ":3000"),
		APIPrefix:      getEnv("API_PREFIX", "/api"),
		DBPath:         getEnv("DB_PATH", "/data/gpstrack.db"),
		AssetPath:      getEnv("ASSET_PATH", "./uploads/images"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
		LogFile:        getEnv("LOG_FILE", ""),
		ClearPassword:  getEnv("CLEAR_PASSWORD", ""),
		CameraSeedFile: getEnv("CAMERA_SEED_FILE", ""),
		RecentWindow:   getEnvDuration("RECENT_WINDOW", 24*time.Hour),
		ImageMaxEdge:   getEnvInt("IMAGE_MAX_EDGE", 800),
		ImageQuality:   getEnvInt("IMAGE_QUALITY", 80),
		MaxUploadBytes: int64(getEnvInt("MAX_UPLOAD_BYTES", 50*1024*1024)),
	}
}

func getEnv(key, defaultVal string) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	return defaultVal
}

// getEnvInt falls back to defaultVal when the variable is unset, malformed or
// not positive.
func getEnvInt(key string, defaultVal int) int {
	val, exists := os.LookupEnv(key)
	if !exists {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil || n <= 0 {
		return defaultVal
	}
	return n
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val, exists := os.LookupEnv(key)
	if !exists {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}
