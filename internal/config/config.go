package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the process-wide settings surface, loaded once at startup.
type Config struct {
	AWSRegion string

	Cognito CognitoConfig
	Chat    ChatConfig

	UserdataBucket    string
	DictionaryBuckets map[string]string

	APIGatewayURL string

	PollInterval time.Duration
}

type CognitoConfig struct {
	UserPoolID     string
	IdentityPoolID string
	ClientID       string
	Username       string
	Password       string
}

type ChatConfig struct {
	Endpoint string
	Token    string
}

// DictionaryBucket returns the dictionary bucket for a region, falling back to
// the default region's bucket when the region is unknown or empty.
func (c *Config) DictionaryBucket(region string) string {
	region = strings.TrimSpace(region)
	if b, ok := c.DictionaryBuckets[region]; ok {
		return b
	}
	return c.DictionaryBuckets[c.AWSRegion]
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		AWSRegion: firstNonEmpty(strings.TrimSpace(os.Getenv("NPK_AWS_REGION")), "us-west-2"),
		Cognito: CognitoConfig{
			UserPoolID:     strings.TrimSpace(os.Getenv("NPK_COGNITO_USER_POOL_ID")),
			IdentityPoolID: strings.TrimSpace(os.Getenv("NPK_COGNITO_IDENTITY_POOL_ID")),
			ClientID:       strings.TrimSpace(os.Getenv("NPK_COGNITO_CLIENT_ID")),
			Username:       strings.TrimSpace(os.Getenv("NPK_COGNITO_USERNAME")),
			Password:       os.Getenv("NPK_COGNITO_PASSWORD"),
		},
		Chat: ChatConfig{
			Endpoint: strings.TrimSpace(os.Getenv("NPK_CHAT_ENDPOINT")),
			Token:    strings.TrimSpace(os.Getenv("NPK_CHAT_TOKEN")),
		},
		UserdataBucket: strings.TrimSpace(os.Getenv("NPK_USERDATA_BUCKET")),
		DictionaryBuckets: map[string]string{
			"us-east-1": "npk-dictionary-east-1-20181029005812833000000004-2",
			"us-east-2": "npk-dictionary-east-2-20181029005812776500000003-2",
			"us-west-1": "npk-dictionary-west-1-20181029005812746900000001-2",
			"us-west-2": "npk-dictionary-west-2-20181029005812750900000002-2",
		},
		APIGatewayURL: strings.TrimSpace(os.Getenv("NPK_APIGATEWAY_URL")),
		PollInterval:  resolvePollInterval(),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	missing := make([]string, 0, 4)
	if c.Cognito.UserPoolID == "" {
		missing = append(missing, "NPK_COGNITO_USER_POOL_ID")
	}
	if c.Cognito.IdentityPoolID == "" {
		missing = append(missing, "NPK_COGNITO_IDENTITY_POOL_ID")
	}
	if c.Cognito.ClientID == "" {
		missing = append(missing, "NPK_COGNITO_CLIENT_ID")
	}
	if c.Cognito.Username == "" {
		missing = append(missing, "NPK_COGNITO_USERNAME")
	}
	if c.UserdataBucket == "" {
		missing = append(missing, "NPK_USERDATA_BUCKET")
	}
	if c.APIGatewayURL == "" {
		missing = append(missing, "NPK_APIGATEWAY_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}
	return nil
}

func resolvePollInterval() time.Duration {
	raw := strings.TrimSpace(os.Getenv("NPK_POLL_INTERVAL_SECONDS"))
	if raw == "" {
		return 30 * time.Second
	}
	secs, err := strconv.Atoi(raw)
	if err != nil || secs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(secs) * time.Second
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
