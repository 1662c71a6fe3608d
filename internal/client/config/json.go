package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/cofind/internal/flagx"
	"github.com/dmitrijs2005/cofind/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
// It relies on timex.Duration so JSON can specify intervals either as
// strings like "3s" or as integer nanoseconds. Pointer and zero values mean
// "not present" and leave the runtime Config untouched.
type JsonConfig struct {
	AuthURL          string `json:"auth_url"`
	AnonKey          string `json:"anon_key"`
	EmailDomain      string `json:"email_domain"`
	ResetRedirectURL string `json:"reset_redirect_url"`

	DatabaseDSN string `json:"database_dsn"`
	LocalDBPath string `json:"local_db_path"`

	S3Region        string          `json:"s3_region"`
	S3AccessKey     string          `json:"s3_access_key"`
	S3SecretKey     string          `json:"s3_secret_key"`
	S3BaseEndpoint  string          `json:"s3_base_endpoint"`
	S3Bucket        string          `json:"s3_bucket"`
	S3PublicBaseURL string          `json:"s3_public_base_url"`
	AvatarURLTTL    *timex.Duration `json:"avatar_url_ttl"`

	RetryMaxRetries *int            `json:"retry_max_retries"`
	RetryTimeout    *timex.Duration `json:"retry_timeout"`
	RetryBaseDelay  *timex.Duration `json:"retry_base_delay"`
	RetryMaxDelay   *timex.Duration `json:"retry_max_delay"`

	OnlineCheckInterval *timex.Duration `json:"online_check_interval"`
	RefreshInterval     *timex.Duration `json:"refresh_interval"`
	HealthAddr          string          `json:"health_addr"`
	ArtifactPrefixes    []string        `json:"artifact_prefixes"`
	LogLevel            string          `json:"log_level"`
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v *timex.Duration) {
	if v != nil {
		*dst = v.Duration
	}
}

// parseJson overlays Config with values loaded from a JSON file.
//
// The file path comes from the -c or -config flag (flagx.ConfigPath).
// Without it nothing is loaded. Read and unmarshal errors panic.
//
// Intended usage is: defaults -> parseJson -> parseEnv -> parseFlags, where
// later stages override earlier ones.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.ConfigPath(os.Args[1:])
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	setString(&cfg.AuthURL, jc.AuthURL)
	setString(&cfg.AnonKey, jc.AnonKey)
	setString(&cfg.EmailDomain, jc.EmailDomain)
	setString(&cfg.ResetRedirectURL, jc.ResetRedirectURL)
	setString(&cfg.DatabaseDSN, jc.DatabaseDSN)
	setString(&cfg.LocalDBPath, jc.LocalDBPath)
	setString(&cfg.S3Region, jc.S3Region)
	setString(&cfg.S3AccessKey, jc.S3AccessKey)
	setString(&cfg.S3SecretKey, jc.S3SecretKey)
	setString(&cfg.S3BaseEndpoint, jc.S3BaseEndpoint)
	setString(&cfg.S3Bucket, jc.S3Bucket)
	setString(&cfg.S3PublicBaseURL, jc.S3PublicBaseURL)
	setDuration(&cfg.AvatarURLTTL, jc.AvatarURLTTL)
	if jc.RetryMaxRetries != nil {
		cfg.RetryMaxRetries = *jc.RetryMaxRetries
	}
	setDuration(&cfg.RetryTimeout, jc.RetryTimeout)
	setDuration(&cfg.RetryBaseDelay, jc.RetryBaseDelay)
	setDuration(&cfg.RetryMaxDelay, jc.RetryMaxDelay)
	setDuration(&cfg.OnlineCheckInterval, jc.OnlineCheckInterval)
	setDuration(&cfg.RefreshInterval, jc.RefreshInterval)
	setString(&cfg.HealthAddr, jc.HealthAddr)
	if jc.ArtifactPrefixes != nil {
		cfg.ArtifactPrefixes = jc.ArtifactPrefixes
	}
	setString(&cfg.LogLevel, jc.LogLevel)
}
