package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration
type Config struct {
	Port              string
	StoreRoot         string
	DBPath            string
	TempDir           string
	MapillaryBaseURL  string
	MapillaryClientID string
	MTPBaseURL        string
	UploadTimeout     time.Duration
}

// Load reads configuration from the environment with sensible defaults
func Load() *Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = ":8080"
	}

	storeRoot := os.Getenv("STORE_ROOT")
	if storeRoot == "" {
		storeRoot = "./data/sequences"
	}

	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "./data/tokens.db"
	}

	mapillaryURL := os.Getenv("MAPILLARY_API_URL")
	if mapillaryURL == "" {
		mapillaryURL = "https://a.mapillary.com"
	}

	mtpURL := os.Getenv("MTP_WEB_URL")
	if mtpURL == "" {
		mtpURL = "https://mtp.trekview.org"
	}

	// Image uploads are large; allow ten minutes per request by default.
	timeout := 600 * time.Second
	if raw := os.Getenv("UPLOAD_TIMEOUT_SECONDS"); raw != "" {
		if seconds, err := strconv.Atoi(raw); err == nil && seconds > 0 {
			timeout = time.Duration(seconds) * time.Second
		}
	}

	return &Config{
		Port:              port,
		StoreRoot:         storeRoot,
		DBPath:            dbPath,
		TempDir:           os.Getenv("TEMP_DIR"),
		MapillaryBaseURL:  mapillaryURL,
		MapillaryClientID: os.Getenv("MAPILLARY_APP_ID"),
		MTPBaseURL:        mtpURL,
		UploadTimeout:     timeout,
	}
}
