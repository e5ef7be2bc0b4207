// Package config loads the eight environment values the pipeline's
// adapters need (spec §6 "Configuration surface"). Grounded on the
// teacher's pkg/database.LoadConfigFromEnv: getEnvOrDefault helpers,
// validation of required values, and an umbrella struct returned to the
// caller — generalized from one subsystem's DB settings to every
// adapter's credentials.
package config

import (
	"fmt"
	"os"
)

// Config is the umbrella configuration object passed to adapter
// constructors at startup.
type Config struct {
	KnowledgeBaseBearerToken string
	KnowledgeBaseDatabaseID  string

	HelpdeskBearerToken string
	HelpdeskAdminID     string

	ChatBearerToken string

	LLMEndpoint string
	LLMAPIKey   string

	// DefaultDoneNotificationChannelID is optional and is only loaded
	// here (spec §6); no other package reads it. A ticket without a
	// chat_channel gets no chat notice from donenotifier.NotifyDone.
	DefaultDoneNotificationChannelID string
}

// LoadFromEnv reads every required value from the environment,
// returning an error naming every missing one at once rather than
// failing on the first (mirrors the teacher's validator.go "collect all
// errors" style).
func LoadFromEnv() (Config, error) {
	cfg := Config{
		KnowledgeBaseBearerToken:         os.Getenv("KNOWLEDGEBASE_BEARER_TOKEN"),
		KnowledgeBaseDatabaseID:          os.Getenv("KNOWLEDGEBASE_DATABASE_ID"),
		HelpdeskBearerToken:              os.Getenv("HELPDESK_BEARER_TOKEN"),
		HelpdeskAdminID:                  os.Getenv("HELPDESK_ADMIN_ID"),
		ChatBearerToken:                  os.Getenv("CHAT_BEARER_TOKEN"),
		LLMEndpoint:                      getEnvOrDefault("LLM_ENDPOINT", ""),
		LLMAPIKey:                        os.Getenv("LLM_API_KEY"),
		DefaultDoneNotificationChannelID: os.Getenv("DEFAULT_DONE_NOTIFICATION_CHANNEL_ID"),
	}

	var missing []string
	for name, value := range map[string]string{
		"KNOWLEDGEBASE_BEARER_TOKEN": cfg.KnowledgeBaseBearerToken,
		"KNOWLEDGEBASE_DATABASE_ID":  cfg.KnowledgeBaseDatabaseID,
		"HELPDESK_BEARER_TOKEN":      cfg.HelpdeskBearerToken,
		"CHAT_BEARER_TOKEN":          cfg.ChatBearerToken,
		"LLM_API_KEY":                cfg.LLMAPIKey,
	} {
		if value == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variable(s): %v", missing)
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
