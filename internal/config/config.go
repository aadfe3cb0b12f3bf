package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr    string
	PostgresDSN string
	LogLevel    string

	// SourceSystem is the src token stamped into outbound file headers.
	SourceSystem string

	InboxPollInterval       int
	LicenceDataPollInterval int
	UsageDataPollInterval   int
	EmailAwaitingReplyTime  int
	LicencePollInterval     int
	LockInterval            int
	IncomingEmailCheckLimit int
	MaxAttempts             int

	NotifyUsers []string

	LiteAPIURL            string
	LiteAPIRequestTimeout int
	LiteHawkID            string
	LiteHawkKey           string

	IngressHawkID  string
	IngressHawkKey string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	SpireAddress string
	HMRCAddress  string

	MailboxesConfigPath string

	RateLimitRequests      int
	RateLimitWindowSeconds int
	RateLimitMaxKeys       int

	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

func FromEnv() Config {
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	return Config{
		HTTPAddr:                addr,
		PostgresDSN:             os.Getenv("POSTGRES_DSN"),
		LogLevel:                envDefault("LOG_LEVEL", "info"),
		SourceSystem:            envDefault("SOURCE_SYSTEM", "SPIRE"),
		InboxPollInterval:       envIntDefault("INBOX_POLL_INTERVAL", 600),
		LicenceDataPollInterval: envIntDefault("LICENCE_DATA_POLL_INTERVAL", 600),
		UsageDataPollInterval:   envIntDefault("USAGE_DATA_POLL_INTERVAL", 3600),
		EmailAwaitingReplyTime:  envIntDefault("EMAIL_AWAITING_REPLY_TIME", 3600),
		LicencePollInterval:     envIntDefault("LICENSE_POLL_INTERVAL", 300),
		LockInterval:            envIntDefault("LOCK_INTERVAL", 120),
		IncomingEmailCheckLimit: envIntDefault("INCOMING_EMAIL_CHECK_LIMIT", 100),
		MaxAttempts:             envIntDefault("MAX_ATTEMPTS", 3),
		NotifyUsers:             envList("NOTIFY_USERS"),
		LiteAPIURL:              os.Getenv("LITE_API_URL"),
		LiteAPIRequestTimeout:   envIntDefault("LITE_API_REQUEST_TIMEOUT", 60),
		LiteHawkID:              envDefault("LITE_HAWK_ID", "lite-hmrc-integration"),
		LiteHawkKey:             os.Getenv("LITE_HAWK_KEY"),
		IngressHawkID:           os.Getenv("INGRESS_HAWK_ID"),
		IngressHawkKey:          os.Getenv("INGRESS_HAWK_KEY"),
		SMTPHost:                os.Getenv("SMTP_HOST"),
		SMTPPort:                envIntDefault("SMTP_PORT", 587),
		SMTPUsername:            os.Getenv("SMTP_USERNAME"),
		SMTPPassword:            os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:                os.Getenv("SMTP_FROM"),
		SpireAddress:            os.Getenv("SPIRE_ADDRESS"),
		HMRCAddress:             os.Getenv("HMRC_ADDRESS"),
		MailboxesConfigPath:     envDefault("MAILBOXES_CONFIG_PATH", "mailboxes.yaml"),
		RateLimitRequests:       envIntDefault("RATE_LIMIT_REQUESTS", 0),
		RateLimitWindowSeconds:  envIntDefault("RATE_LIMIT_WINDOW_SECONDS", 60),
		RateLimitMaxKeys:        envIntDefault("RATE_LIMIT_MAX_KEYS", 10000),
		RedisAddr:               os.Getenv("REDIS_ADDR"),
		RedisPassword:           os.Getenv("REDIS_PASSWORD"),
		RedisDB:                 envIntDefault("REDIS_DB", 0),
	}
}

func envDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func envIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c Config) LockDuration() time.Duration {
	return time.Duration(c.LockInterval) * time.Second
}

func (c Config) LiteTimeout() time.Duration {
	return time.Duration(c.LiteAPIRequestTimeout) * time.Second
}

func (c Config) AwaitingReplyThreshold() time.Duration {
	return time.Duration(c.EmailAwaitingReplyTime) * time.Second
}

func (c Config) UnprocessedPayloadThreshold() time.Duration {
	return time.Duration(c.LicencePollInterval) * time.Second
}
