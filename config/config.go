package config

import (
	"log"
	"os"
	"strconv"
)

type Config struct {
	HTTPAddr    string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	MongoURI    string
	JWTSecret   string
	ChatHistory int
}

func LoadConfig() *Config {
	return &Config{
		HTTPAddr:    getEnv("HTTP_ADDR", ":8000"),
		DBHost:      getEnv("DB_HOST", "localhost"),
		DBPort:      getEnv("DB_PORT", "5432"),
		DBUser:      getEnv("DB_USER", "user"),
		DBPassword:  getEnv("DB_PASSWORD", "password"),
		DBName:      getEnv("DB_NAME", "holospace"),
		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017"),
		JWTSecret:   getEnv("JWT_SECRET", "secret"),
		ChatHistory: getEnvInt("CHAT_HISTORY_SIZE", 100),
	}
}

// getEnv reads an environment variable and returns its value or a default value
func getEnv(key, defaultValue string) string {
	value, exists := os.LookupEnv(key)
	if !exists {
		value = defaultValue
		log.Printf("Environment variable %s not set, using default value: %s", key, defaultValue)
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	raw, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		log.Printf("Environment variable %s has invalid value %q, using default: %d", key, raw, defaultValue)
		return defaultValue
	}
	return value
}
