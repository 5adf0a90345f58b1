package config

import (
	"os"
	"strings"
	"time"
)

type S3Config struct {
	Endpoint      string
	Bucket        string
	Region        string
	AccessKey     string
	SecretKey     string
	PublicBaseURL string // e.g. https://cdn.example.com; defaults to endpoint/bucket
}

type CloudinaryConfig struct {
	CloudName string
	APIKey    string
	APISecret string
}

type Config struct {
	Port      string
	DBPath    string
	LogLevel  string
	LogFormat string

	DocStore string // "sqlite" or "mongo"
	MongoURI string
	MongoDB  string
	RedisURI string // empty disables the care-data cache

	PlantNetAPIKey  string
	PlantNetURL     string
	CareDataURL     string // empty disables the remote species lookup
	CareDataAPIKey  string
	ImageBackend    string // "s3", "cloudinary" or "none"
	S3              S3Config
	Cloudinary      CloudinaryConfig
	VAPIDPublicKey  string
	VAPIDPrivateKey string

	ReminderInterval time.Duration
	SessionTTL       time.Duration
	AllowedOrigins   []string
}

// Load reads configuration from the environment. Callers load any .env file
// before calling Load.
func Load() *Config {
	return &Config{
		Port:      getEnv("PLANTCARE_PORT", "8080"),
		DBPath:    getEnv("PLANTCARE_DB_PATH", "plantcare.db"),
		LogLevel:  getEnv("PLANTCARE_LOG_LEVEL", "info"),
		LogFormat: getEnv("PLANTCARE_LOG_FORMAT", "text"),

		DocStore: strings.ToLower(getEnv("PLANTCARE_DOCSTORE", "sqlite")),
		MongoURI: getEnv("PLANTCARE_MONGO_URI", "mongodb://localhost:27017/?replicaSet=rs0"),
		MongoDB:  getEnv("PLANTCARE_MONGO_DB", "plantcare"),
		RedisURI: getEnv("PLANTCARE_REDIS_URI", ""),

		PlantNetAPIKey: getEnv("PLANTCARE_PLANTNET_API_KEY", ""),
		PlantNetURL:    getEnv("PLANTCARE_PLANTNET_URL", "https://my-api.plantnet.org"),
		CareDataURL:    getEnv("PLANTCARE_CAREDATA_URL", ""),
		CareDataAPIKey: getEnv("PLANTCARE_CAREDATA_API_KEY", ""),
		ImageBackend:   strings.ToLower(getEnv("PLANTCARE_IMAGE_BACKEND", "none")),
		S3: S3Config{
			Endpoint:      getEnv("PLANTCARE_S3_ENDPOINT", ""),
			Bucket:        getEnv("PLANTCARE_S3_BUCKET", ""),
			Region:        getEnv("PLANTCARE_S3_REGION", "us-east-1"),
			AccessKey:     getEnv("PLANTCARE_S3_ACCESS_KEY", ""),
			SecretKey:     getEnv("PLANTCARE_S3_SECRET_KEY", ""),
			PublicBaseURL: getEnv("PLANTCARE_S3_PUBLIC_URL", ""),
		},
		Cloudinary: CloudinaryConfig{
			CloudName: getEnv("PLANTCARE_CLOUDINARY_CLOUD_NAME", ""),
			APIKey:    getEnv("PLANTCARE_CLOUDINARY_API_KEY", ""),
			APISecret: getEnv("PLANTCARE_CLOUDINARY_API_SECRET", ""),
		},
		VAPIDPublicKey:  getEnv("PLANTCARE_VAPID_PUBLIC_KEY", ""),
		VAPIDPrivateKey: getEnv("PLANTCARE_VAPID_PRIVATE_KEY", ""),

		ReminderInterval: getDuration("PLANTCARE_REMINDER_INTERVAL", 24*time.Hour),
		SessionTTL:       getDuration("PLANTCARE_SESSION_TTL", 90*24*time.Hour),
		AllowedOrigins:   parseList(getEnv("PLANTCARE_ALLOWED_ORIGINS", "http://localhost:3000")),
	}
}

// PushEnabled reports whether both VAPID keys are configured.
func (c *Config) PushEnabled() bool {
	return c.VAPIDPublicKey != "" && c.VAPIDPrivateKey != ""
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func parseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
