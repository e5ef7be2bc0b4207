// conductor wires the integration request pipeline together:
// knowledge-base, helpdesk, chat, and LLM adapters behind the Engine and
// Coordinator. It does not run an HTTP server — the web layer that
// receives helpdesk events and the done-webhook is out of scope (see
// DESIGN.md); this binary is the illustrative bootstrap the teacher's
// cmd/tarsy/main.go shows for wiring a process's dependencies before a
// real transport layer is attached.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/jump-triage/conductor/internal/adapter/chat"
	"github.com/jump-triage/conductor/internal/adapter/helpdesk"
	"github.com/jump-triage/conductor/internal/adapter/knowledgebase"
	"github.com/jump-triage/conductor/internal/adapter/llm"
	"github.com/jump-triage/conductor/internal/config"
	"github.com/jump-triage/conductor/internal/coordinator"
	"github.com/jump-triage/conductor/internal/pipeline"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "."), "directory containing a .env file")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("no %s file loaded: %v", envPath, err)
		log.Printf("continuing with existing environment variables")
	} else {
		log.Printf("loaded environment from %s", envPath)
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	helpdeskBaseURL := getEnv("HELPDESK_BASE_URL", "https://api.helpdesk.example.com")
	knowledgeBaseURL := getEnv("KNOWLEDGEBASE_BASE_URL", "https://api.knowledgebase.example.com")
	chatWorkspace := getEnv("CHAT_WORKSPACE_SUBDOMAIN", "example")

	adapters := &pipeline.Adapters{
		Helpdesk:      helpdesk.NewHTTPClient(helpdeskBaseURL, cfg.HelpdeskBearerToken),
		KnowledgeBase: knowledgebase.NewHTTPClient(knowledgeBaseURL, cfg.KnowledgeBaseBearerToken, cfg.KnowledgeBaseDatabaseID),
		Chat:          chat.NewSlackClient(cfg.ChatBearerToken, chatWorkspace),
		LLM:           llm.NewAnthropicClient(cfg.LLMAPIKey, cfg.LLMEndpoint),
	}

	engine := pipeline.NewEngine(adapters)
	registry := coordinator.NewRegistry(engine)

	slog.Info("conductor ready",
		"knowledgebase_url", knowledgeBaseURL,
		"helpdesk_url", helpdeskBaseURL,
		"chat_workspace", chatWorkspace,
	)

	// A real process would start the (out-of-scope) HTTP server here,
	// routing inbound helpdesk events to registry.Register and the
	// knowledge base's completion webhook to internal/donewebhook.Handle.
	_ = registry
}
