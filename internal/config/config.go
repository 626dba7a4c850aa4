package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Presence  PresenceConfig
	Transport TransportConfig
	Database  DatabaseConfig
	NATS      NATSConfig
	LogLevel  string
}

type ServerConfig struct {
	Port          string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	WSPath        string
	AllowedOrigin string
}

type PresenceConfig struct {
	Channel        string
	IdentityParam  string
	IdentityHeader string
	SystemSender   string
	CountRefresh   bool
	RegistryShards int
}

type TransportConfig struct {
	SendBuffer   int
	PongWait     time.Duration
	WriteWait    time.Duration
	MaxFrameSize int
}

type DatabaseConfig struct {
	URL string
}

type NATSConfig struct {
	URL           string
	SubjectPrefix string
}

func Load() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found or error loading .env file: %v", err)
	}

	return &Config{
		Server: ServerConfig{
			Port:          getEnvOrDefault("PORT", ":9999"),
			ReadTimeout:   getDurationOrDefault("READ_TIMEOUT", "15s"),
			WriteTimeout:  getDurationOrDefault("WRITE_TIMEOUT", "15s"),
			WSPath:        getEnvOrDefault("WS_PATH", "/ws"),
			AllowedOrigin: os.Getenv("ALLOWED_ORIGIN"),
		},
		Presence: PresenceConfig{
			Channel:        getEnvOrDefault("PRESENCE_CHANNEL", "/topic/global"),
			IdentityParam:  getEnvOrDefault("IDENTITY_PARAM", "username"),
			IdentityHeader: getEnvOrDefault("IDENTITY_HEADER", "username"),
			SystemSender:   getEnvOrDefault("SYSTEM_SENDER", "System"),
			CountRefresh:   getBoolOrDefault("COUNT_REFRESH", true),
			RegistryShards: getIntOrDefault("REGISTRY_SHARDS", 32),
		},
		Transport: TransportConfig{
			SendBuffer:   getIntOrDefault("SEND_BUFFER", 256),
			PongWait:     getDurationOrDefault("PONG_WAIT", "60s"),
			WriteWait:    getDurationOrDefault("WRITE_WAIT", "10s"),
			MaxFrameSize: getIntOrDefault("MAX_FRAME_SIZE", 65536),
		},
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		NATS: NATSConfig{
			URL:           os.Getenv("NATS_URL"),
			SubjectPrefix: getEnvOrDefault("NATS_SUBJECT_PREFIX", "campus.presence"),
		},
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationOrDefault(key, defaultValue string) time.Duration {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		log.Fatalf("Invalid duration for %s: %v", key, err)
	}
	return duration
}

func getIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Fatalf("Invalid integer for %s: %v", key, err)
	}
	return intValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		log.Fatalf("Invalid boolean for %s: %v", key, err)
	}
	return boolValue
}
