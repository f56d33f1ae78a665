// Package config exposes process-level configuration read from the environment.
// Values may be supplied through a .env file in the working directory.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

//go:embed version
var version string

//go:embed name
var name string

type LogLevel string

const (
	Debug  LogLevel = "debug"
	Info   LogLevel = "info"
	Notice LogLevel = "notice"
	Warn   LogLevel = "warn"
	Error  LogLevel = "error"
)

// LoadEnv loads the first .env file found in the working directory or its parent.
// A missing file is not an error.
func LoadEnv() {
	for _, p := range []string{".env", filepath.Join("..", ".env")} {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
			return
		}
	}
}

func GetVersion() string {
	return strings.TrimSpace(version)
}

func GetName() string {
	return strings.TrimSpace(name)
}

func GetLogLevel() LogLevel {
	if IsDebug() {
		return Debug
	}
	logLevel := os.Getenv("DESIGNDESK_LOG_LEVEL")
	if logLevel == "" {
		return Info
	}
	return LogLevel(logLevel)
}

func IsDebug() bool {
	return os.Getenv("DESIGNDESK_DEBUG") == "true"
}

func GetDBFolderPath() string {
	dbFolderPath := os.Getenv("DESIGNDESK_DB_FOLDER")
	if dbFolderPath == "" {
		dbFolderPath = "/etc/designdesk"
	}
	return dbFolderPath
}

func GetDBPath() string {
	return fmt.Sprintf("%s/%s.db", GetDBFolderPath(), GetName())
}

func GetLogFolder() string {
	logFolderPath := os.Getenv("DESIGNDESK_LOG_FOLDER")
	if logFolderPath == "" {
		logFolderPath = "/var/log"
	}
	return logFolderPath
}

// GetMediaFolder returns the root directory of uploaded images.
func GetMediaFolder() string {
	mediaFolderPath := os.Getenv("DESIGNDESK_MEDIA_FOLDER")
	if mediaFolderPath == "" {
		mediaFolderPath = filepath.Join(GetDBFolderPath(), "media")
	}
	return mediaFolderPath
}
