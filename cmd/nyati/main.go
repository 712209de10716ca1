package main

import (
	"fmt"
	"os"

	"github.com/contessasoft/nyati/common/environment"
	"github.com/contessasoft/nyati/common/version"
	"github.com/contessasoft/nyati/internal/bot/app"
	"github.com/contessasoft/nyati/internal/bot/config"
)

func main() {
	fmt.Printf("Nyati Business Assistant\n")
	fmt.Printf("Version: %s\n", version.Version)
	fmt.Printf("Commit: %s\n", version.GitCommit)
	fmt.Printf("Build Time: %s\n", version.BuildTime)
	fmt.Println()

	cfgPath := environment.StringOr("NYATI_CONFIG", "./nyati.yaml")
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: read config %s: %v\n", cfgPath, err)
		os.Exit(1)
	}
	cfg, err := config.Parse(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	secrets := loadSecrets()
	switch cfg.Channel.Driver {
	case "whatsapp":
		if secrets.WhatsAppToken == "" {
			fmt.Fprintf(os.Stderr, "Error: WHATSAPP_ACCESS_TOKEN is required\n")
			os.Exit(1)
		}
		if secrets.WebhookVerifyToken == "" {
			fmt.Fprintf(os.Stderr, "Error: WEBHOOK_VERIFY_TOKEN is required\n")
			os.Exit(1)
		}
	case "matrix":
		if secrets.MatrixAccessToken == "" {
			fmt.Fprintf(os.Stderr, "Error: MATRIX_ACCESS_TOKEN is required\n")
			os.Exit(1)
		}
	}

	bot, err := app.New(cfg, secrets)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer bot.Stop()

	if err := bot.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running bot: %v\n", err)
		os.Exit(1)
	}
}

// loadSecrets reads credentials from the environment.  Secrets never live in
// the config file.
func loadSecrets() app.Secrets {
	return app.Secrets{
		WhatsAppToken:      environment.StringOr("WHATSAPP_ACCESS_TOKEN", ""),
		WebhookVerifyToken: environment.StringOr("WEBHOOK_VERIFY_TOKEN", ""),
		MatrixAccessToken:  environment.StringOr("MATRIX_ACCESS_TOKEN", ""),
		RedisPassword:      environment.StringOr("REDIS_PASSWORD", ""),
	}
}
