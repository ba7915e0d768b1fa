package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/orbvoice/orb/usecase"
)

const (
	settingsFile    = "settings.json"
	credentialsFile = "credentials.json"
)

// Config carries daemon wiring read from the environment. Session
// settings live in their own JSON file and are saved explicitly.
type Config struct {
	Port      string
	DataDir   string
	DeltaMode usecase.DeltaMode

	SupabaseURL string
	SupabaseKey string
	MongoURI    string
	MongoDB     string

	DeepgramKey string
	STTEngine   string // "google" or "deepgram"

	SampleRate int
}

// Load reads .env (when present) and the environment.
func Load(logger *zap.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file loaded", zap.Error(err))
	}

	dataDir := getenv("ORB_DATA_DIR", ".orb")
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data dir %s: %w", dataDir, err)
	}

	mode := usecase.DeltaModeLatest
	if getenv("ORB_DELTA_MODE", "latest") == "events" {
		mode = usecase.DeltaModeEvents
	}

	sampleRate := 24000
	if raw := os.Getenv("ORB_SAMPLE_RATE"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("invalid ORB_SAMPLE_RATE %q", raw)
		}
		sampleRate = parsed
	}

	return &Config{
		Port:        getenv("PORT", "8080"),
		DataDir:     dataDir,
		DeltaMode:   mode,
		SupabaseURL: os.Getenv("SUPABASE_URL"),
		SupabaseKey: os.Getenv("SUPABASE_ANON_KEY"),
		MongoURI:    os.Getenv("MONGODB_URI"),
		MongoDB:     getenv("MONGODB_DATABASE", "orb"),
		DeepgramKey: os.Getenv("DEEPGRAM_API_KEY"),
		STTEngine:   getenv("ORB_STT_ENGINE", "deepgram"),
		SampleRate:  sampleRate,
	}, nil
}

// SettingsPath returns the session settings file location.
func (c *Config) SettingsPath() string {
	return filepath.Join(c.DataDir, settingsFile)
}

// CredentialsPath returns the credential pool file location.
func (c *Config) CredentialsPath() string {
	return filepath.Join(c.DataDir, credentialsFile)
}

// LoadSettings reads persisted session settings; a missing file yields
// zero settings without error.
func (c *Config) LoadSettings() (usecase.SessionSettings, error) {
	var settings usecase.SessionSettings

	data, err := os.ReadFile(c.SettingsPath())
	if os.IsNotExist(err) {
		return settings, nil
	}
	if err != nil {
		return settings, fmt.Errorf("failed to read settings: %w", err)
	}
	if err := json.Unmarshal(data, &settings); err != nil {
		return settings, fmt.Errorf("failed to parse settings: %w", err)
	}
	return settings, nil
}

// SaveSettings persists session settings. Called only on explicit save.
func (c *Config) SaveSettings(settings usecase.SessionSettings) error {
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	if err := os.WriteFile(c.SettingsPath(), data, 0o600); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	return nil
}

func getenv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
