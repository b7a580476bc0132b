package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/example/room-booking/internal/logging"
	"github.com/example/room-booking/internal/scheduler"
)

// Config captures configuration values for the booking service.
type Config struct {
	HTTPPort          int
	SQLitePath        string
	SQLiteBusyTimeout time.Duration
	Window            scheduler.Window
	CORSOrigins       []string
	LogLevel          string
	LogFormat         string
	SeedRooms         []SeedRoom
}

// SeedRoom is a catalog entry inserted by `bookingd --seed`.
type SeedRoom struct {
	Name         string   `yaml:"name"`
	Description  string   `yaml:"description"`
	Capacity     int      `yaml:"capacity"`
	PricePerHour float64  `yaml:"price_per_hour"`
	Amenities    []string `yaml:"amenities"`
}

type fileConfig struct {
	HTTP struct {
		Port        int      `yaml:"port"`
		CORSOrigins []string `yaml:"cors_origins"`
	} `yaml:"http"`
	SQLite struct {
		Path        string `yaml:"path"`
		BusyTimeout string `yaml:"busy_timeout"`
	} `yaml:"sqlite"`
	Window struct {
		Open  string `yaml:"open"`
		Close string `yaml:"close"`
	} `yaml:"window"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Seed struct {
		Rooms []SeedRoom `yaml:"rooms"`
	} `yaml:"seed"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		HTTPPort:          8080,
		SQLitePath:        "booking.db",
		SQLiteBusyTimeout: 5 * time.Second,
		Window:            scheduler.DefaultWindow(),
		CORSOrigins:       []string{"http://localhost:3000"},
		LogLevel:          "info",
		LogFormat:         "json",
	}
}

// Load builds the configuration from, in increasing precedence, defaults,
// the YAML file at path (or BOOKING_CONFIG when path is empty) and the
// environment. Variables from .env are loaded first without overriding the
// real environment; a missing .env is not an error.
func Load(path string, envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", file, err)
		}
	}

	if path == "" {
		path = strings.TrimSpace(os.Getenv("BOOKING_CONFIG"))
	}

	var file fileConfig
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &file); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	return resolve(file)
}

func resolve(file fileConfig) (Config, error) {
	cfg := Default()
	var invalid []string

	port, portKey := strconv.Itoa(file.HTTP.Port), "http.port"
	if file.HTTP.Port == 0 {
		port = ""
	}
	if v, ok := lookup("BOOKING_HTTP_PORT"); ok {
		port, portKey = v, "BOOKING_HTTP_PORT"
	}
	if port != "" {
		n, err := strconv.Atoi(port)
		if err != nil || n <= 0 || n > 65535 {
			invalid = append(invalid, portKey)
		} else {
			cfg.HTTPPort = n
		}
	}

	if file.SQLite.Path != "" {
		cfg.SQLitePath = file.SQLite.Path
	}
	if v, ok := lookup("BOOKING_SQLITE_PATH"); ok {
		cfg.SQLitePath = v
	}

	timeout, timeoutKey := file.SQLite.BusyTimeout, "sqlite.busy_timeout"
	if v, ok := lookup("BOOKING_SQLITE_BUSY_TIMEOUT"); ok {
		timeout, timeoutKey = v, "BOOKING_SQLITE_BUSY_TIMEOUT"
	}
	if timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil || d < 0 {
			invalid = append(invalid, timeoutKey)
		} else {
			cfg.SQLiteBusyTimeout = d
		}
	}

	open, openKey := file.Window.Open, "window.open"
	if v, ok := lookup("BOOKING_WINDOW_OPEN"); ok {
		open, openKey = v, "BOOKING_WINDOW_OPEN"
	}
	closeAt, closeKey := file.Window.Close, "window.close"
	if v, ok := lookup("BOOKING_WINDOW_CLOSE"); ok {
		closeAt, closeKey = v, "BOOKING_WINDOW_CLOSE"
	}
	windowOK := true
	if open != "" {
		t, err := scheduler.ParseTimeOfDay(open)
		if err != nil {
			invalid = append(invalid, openKey)
			windowOK = false
		} else {
			cfg.Window.Open = t
		}
	}
	if closeAt != "" {
		t, err := scheduler.ParseTimeOfDay(closeAt)
		if err != nil {
			invalid = append(invalid, closeKey)
			windowOK = false
		} else {
			cfg.Window.Close = t
		}
	}
	if windowOK && cfg.Window.Open >= cfg.Window.Close {
		if open != "" {
			invalid = append(invalid, openKey)
		} else {
			invalid = append(invalid, closeKey)
		}
	}

	if len(file.HTTP.CORSOrigins) > 0 {
		cfg.CORSOrigins = file.HTTP.CORSOrigins
	}
	if v, ok := lookup("BOOKING_CORS_ORIGINS"); ok {
		cfg.CORSOrigins = splitList(v)
	}

	level, levelKey := file.Log.Level, "log.level"
	if v, ok := lookup("BOOKING_LOG_LEVEL"); ok {
		level, levelKey = v, "BOOKING_LOG_LEVEL"
	}
	if level != "" {
		if _, err := logging.ParseLevel(level); err != nil {
			invalid = append(invalid, levelKey)
		} else {
			cfg.LogLevel = strings.ToLower(level)
		}
	}

	format, formatKey := file.Log.Format, "log.format"
	if v, ok := lookup("BOOKING_LOG_FORMAT"); ok {
		format, formatKey = v, "BOOKING_LOG_FORMAT"
	}
	if format != "" {
		switch f := strings.ToLower(format); f {
		case "json", "text":
			cfg.LogFormat = f
		default:
			invalid = append(invalid, formatKey)
		}
	}

	for i, room := range file.Seed.Rooms {
		if strings.TrimSpace(room.Name) == "" || room.Capacity <= 0 || room.PricePerHour < 0 {
			invalid = append(invalid, fmt.Sprintf("seed.rooms[%d]", i))
		}
	}
	cfg.SeedRooms = file.Seed.Rooms

	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid configuration values: %s", strings.Join(invalid, ", "))
	}
	return cfg, nil
}

func lookup(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	return v, v != ""
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
