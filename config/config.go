package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultAdminUsername = "KOASADMIN"
	DefaultAdminPassword = "Koas.123!"

	DefaultSessionSecret = "koas-secret-key-change-in-production"

	DefaultPhotosSubDir   = "photos/team"
	DefaultSessionsSubDir = "sessions"
)

const (
	defaultJpegQuality     = 85
	defaultMaxUploadBytes  = 10 << 20 // 10 MiB
	defaultAuthRateLimit   = 100
	defaultUploadRateLimit = 60
)

// defaultMemberFileMap maps public member handles to the canonical base
// filename used for their photo. overridable via MEMBER_FILE_MAP_PATH.
var defaultMemberFileMap = map[string]string{
	"jack":      "JACK G",
	"michael":   "Michael Koch",
	"alexander": "Alex",
	"oliver":    "Fenghao Hu Oliver",
	"elena":     "Elena Luquero",
	"ain":       "Ain Kyell",
	"enrico":    "Enrico Spera",
	"tina":      "Tina",
	"rin":       "Rin Arakaki",
	"jarad":     "Jarad",
	"anna":      "Anna",
	"dominik":   "dominik-nikolic",
	"haokai":    "Haokai",
	"shot":      "Shot",
	"sam":       "Sam",
	"david":     "David",
	"mahdi":     "Mahdi",
	"rico":      "Rico",
}

type Config struct {
	// database path
	DatabasePath string

	// storage configuration
	DataPath     string // primary root for runtime data (db, sessions, photos)
	PhotosPath   string // full-calculated path for converted member photos
	SessionsPath string // full-calculated path for the file-backed session store

	// URL prefix under which converted photos are served (e.g. "/Pics")
	PublicPhotoPrefix string

	// admin seed account, used only when the admin table is empty
	AdminUsername string
	AdminPassword string

	// session settings
	SessionSecret string
	CookieSecure  bool

	// "production" enables the default-credential warning
	Environment string

	// allowed CORS origins
	CORSOrigins []string

	// listeners
	Port        string
	HTTPSPort   string
	TLSCertPath string
	TLSKeyPath  string

	// upload settings
	JpegQuality    int
	MaxUploadBytes int64

	// rate limiting (requests per window, per client address)
	AuthRateLimit   int
	UploadRateLimit int
	RateLimitWindow time.Duration

	// member handle -> canonical photo base name
	MemberFileMap map[string]string
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvIntOrDefault(envVar string, defaultVal int) int {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil || val <= 0 {
		log.Printf("Warning: Invalid %s '%s'. Using default %d. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

// cookieSecure resolves the secure flag for the session cookie: an explicit
// SESSION_COOKIE_SECURE wins, otherwise production implies secure. plain-HTTP
// deployments behind an IP address need the explicit "false" override.
func cookieSecure(environment string) bool {
	switch strings.ToLower(os.Getenv("SESSION_COOKIE_SECURE")) {
	case "true":
		return true
	case "false":
		return false
	}
	return environment == "production"
}

// loadMemberFileMap returns the built-in member map, optionally extended or
// overridden by a JSON object file pointed at by MEMBER_FILE_MAP_PATH.
func loadMemberFileMap() map[string]string {
	mapping := make(map[string]string, len(defaultMemberFileMap))
	for k, v := range defaultMemberFileMap {
		mapping[k] = v
	}

	path := os.Getenv("MEMBER_FILE_MAP_PATH")
	if path == "" {
		return mapping
	}

	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("Warning: could not read member file map %s: %v. Using built-in map.", path, err)
		return mapping
	}
	var custom map[string]string
	if err := json.Unmarshal(data, &custom); err != nil {
		log.Printf("Warning: invalid member file map %s: %v. Using built-in map.", path, err)
		return mapping
	}
	for k, v := range custom {
		mapping[strings.ToLower(k)] = v
	}
	return mapping
}

func LoadConfig() (Config, error) {
	dataPath := getEnvOrDefault("DATA_PATH", filepath.Join(".", "data"))
	absDataPath, err := filepath.Abs(dataPath)
	if err != nil {
		return Config{}, fmt.Errorf("failed to get absolute path for data directory '%s': %w", dataPath, err)
	}

	dbPath := getEnvOrDefault("DATABASE_PATH", filepath.Join(absDataPath, "koas.db"))

	photosDir := getEnvOrDefault("PHOTOS_SUBDIR", DefaultPhotosSubDir)
	absPhotosPath := filepath.Join(absDataPath, photosDir)

	sessionsDir := getEnvOrDefault("SESSIONS_SUBDIR", DefaultSessionsSubDir)
	absSessionsPath := filepath.Join(absDataPath, sessionsDir)

	publicPrefix := getEnvOrDefault("PUBLIC_PHOTO_PREFIX", "/Pics")
	if !strings.HasPrefix(publicPrefix, "/") {
		publicPrefix = "/" + publicPrefix
	}
	publicPrefix = strings.TrimSuffix(publicPrefix, "/")

	environment := getEnvOrDefault("APP_ENV", "development")

	var origins []string
	if raw := os.Getenv("CORS_ORIGIN"); raw != "" {
		for _, o := range strings.Split(raw, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				origins = append(origins, trimmed)
			}
		}
	} else {
		origins = []string{"*"}
	}

	windowMinutes := getEnvIntOrDefault("RATE_LIMIT_WINDOW_MINUTES", 15)

	cfg := Config{
		DatabasePath:      dbPath,
		DataPath:          absDataPath,
		PhotosPath:        absPhotosPath,
		SessionsPath:      absSessionsPath,
		PublicPhotoPrefix: publicPrefix,
		AdminUsername:     getEnvOrDefault("ADMIN_USERNAME", DefaultAdminUsername),
		AdminPassword:     getEnvOrDefault("ADMIN_PASSWORD", DefaultAdminPassword),
		SessionSecret:     getEnvOrDefault("SESSION_SECRET", DefaultSessionSecret),
		CookieSecure:      cookieSecure(environment),
		Environment:       environment,
		CORSOrigins:       origins,
		Port:              getEnvOrDefault("PORT", "3000"),
		HTTPSPort:         getEnvOrDefault("HTTPS_PORT", "1025"),
		TLSCertPath:       getEnvOrDefault("TLS_CERT_PATH", "cloudflare-origin.crt"),
		TLSKeyPath:        getEnvOrDefault("TLS_KEY_PATH", "cloudflare-origin.key"),
		JpegQuality:       getEnvIntOrDefault("PHOTO_JPEG_QUALITY", defaultJpegQuality),
		MaxUploadBytes:    int64(getEnvIntOrDefault("MAX_UPLOAD_BYTES", defaultMaxUploadBytes)),
		AuthRateLimit:     getEnvIntOrDefault("AUTH_RATE_LIMIT", defaultAuthRateLimit),
		UploadRateLimit:   getEnvIntOrDefault("UPLOAD_RATE_LIMIT", defaultUploadRateLimit),
		RateLimitWindow:   time.Duration(windowMinutes) * time.Minute,
		MemberFileMap:     loadMemberFileMap(),
	}

	return cfg, nil
}
