package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// MailboxSpec maps a logical mailbox id to its external account address and
// the tenant that owns it.
type MailboxSpec struct {
	ID       string
	Address  string
	TenantID string
}

type Config struct {
	Port        string
	DatabaseURL string
	JWTSecret   string

	// Gmail service account (domain-wide delegation). Empty values mean the
	// provider runs in offline mode and syncs return stored data only.
	GmailClientEmail string
	GmailPrivateKey  string

	// Pub/Sub push notifications
	GoogleProjectID string
	PubSubTopic     string
	PushAudience    string
	WebhookSecret   string

	// AI triage
	AITriageEnabled bool
	OpenAIAPIKey    string
	OpenAIModel     string
	OpenAIBaseURL   string
	CostPer1MInput  float64
	CostPer1MOutput float64

	Mailboxes []MailboxSpec
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		Port:             getEnv("PORT", "8080"),
		DatabaseURL:      getEnv("DATABASE_URL", "host=localhost user=postgres dbname=deskmail port=5432 sslmode=disable"),
		JWTSecret:        getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		GmailClientEmail: getEnv("GMAIL_CLIENT_EMAIL", ""),
		GmailPrivateKey:  strings.ReplaceAll(getEnv("GMAIL_PRIVATE_KEY", ""), `\n`, "\n"),
		GoogleProjectID:  getEnv("GOOGLE_PROJECT_ID", ""),
		PubSubTopic:      getEnv("GMAIL_PUBSUB_TOPIC", "gmail-updates"),
		PushAudience:     getEnv("GMAIL_PUSH_AUDIENCE", ""),
		WebhookSecret:    getEnv("GMAIL_WEBHOOK_SECRET", ""),
		AITriageEnabled:  getEnv("AI_TRIAGE_ENABLED", "") == "true",
		OpenAIAPIKey:     getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:      getEnv("OPENAI_MODEL", "gpt-4o"),
		OpenAIBaseURL:    getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		CostPer1MInput:   getFloat("OPENAI_COST_PER_1M_INPUT", 5),
		CostPer1MOutput:  getFloat("OPENAI_COST_PER_1M_OUTPUT", 15),
		Mailboxes:        parseMailboxes(getEnv("MAILBOXES", defaultMailboxes)),
	}
}

// defaultMailboxes keeps the service usable out of the box in demo mode.
const defaultMailboxes = "board=board@dream-x.app:dream-x,general=general@playerxchange.org:playerxchange"

// parseMailboxes reads "id=address:tenant" pairs separated by commas.
// Malformed entries are skipped.
func parseMailboxes(raw string) []MailboxSpec {
	var specs []MailboxSpec
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		id, rest, ok := strings.Cut(entry, "=")
		if !ok || strings.TrimSpace(id) == "" {
			continue
		}
		address, tenant, ok := strings.Cut(rest, ":")
		if !ok || address == "" || tenant == "" {
			continue
		}
		specs = append(specs, MailboxSpec{
			ID:       strings.TrimSpace(id),
			Address:  strings.TrimSpace(address),
			TenantID: strings.TrimSpace(tenant),
		})
	}
	return specs
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}
