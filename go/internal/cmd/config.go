package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the host server configuration file.
type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	NATS struct {
		Enabled       bool   `yaml:"enabled"`
		URL           string `yaml:"url"`
		Stream        string `yaml:"stream"`
		SubjectPrefix string `yaml:"subject_prefix"`
	} `yaml:"nats"`

	Database struct {
		Enabled bool   `yaml:"enabled"`
		DSN     string `yaml:"dsn"`
	} `yaml:"database"`

	Catalog struct {
		Path string `yaml:"path"` // empty = built-in role set
	} `yaml:"catalog"`

	Rooms []RoomConfig `yaml:"rooms"`
}

// RoomConfig seeds one room session at startup.
type RoomConfig struct {
	ID    string       `yaml:"id"`
	Seed  int64        `yaml:"seed"`
	Seats []SeatConfig `yaml:"seats"`
}

// SeatConfig is one pre-assigned chair.
type SeatConfig struct {
	Number   int    `yaml:"number"`
	PlayerID string `yaml:"player_id"`
	Role     string `yaml:"role"`
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func loadConfig(path string) (*Config, error) {
	var config Config
	config.Server.Port = getEnv("PORT", "8080")
	config.NATS.URL = getEnv("NATS_URL", "nats://localhost:4222")
	config.NATS.Stream = "ROOM_PATCHES"
	config.NATS.SubjectPrefix = "room.patches"
	config.Database.DSN = getEnv("DATABASE_URL", "")

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &config, nil
}
