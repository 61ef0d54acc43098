// Command djamo-webhooks manages the Djamo transaction webhook
// subscriptions that point back at this API.
//
// With no flags it registers every topic against -base-url. Use -list to
// show the current subscriptions and -delete-all to remove them.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"pliz-ledger/config"
	"pliz-ledger/internal/adapter/gateway"
	"pliz-ledger/pkg/logger"

	"github.com/joho/godotenv"
)

func main() {
	configPath := flag.String("config", os.Getenv("PLZ_CONFIG"), "path to the config file")
	partner := flag.String("partner", "djamo", "configured partner id using the djamo driver")
	baseURL := flag.String("base-url", "https://core.plizmoney.com", "public base URL of this API")
	list := flag.Bool("list", false, "list registered webhooks")
	deleteAll := flag.Bool("delete-all", false, "delete every registered webhook")
	timeout := flag.Duration("timeout", time.Minute, "overall deadline for the run")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	pc, ok := cfg.Partners[*partner]
	if !ok || pc.Driver != "djamo" {
		log.Fatal().Str("partner", *partner).Msg("partner is not configured with the djamo driver")
	}
	djamo, err := gateway.NewDjamo(*partner, pc, gateway.Options{Timeout: cfg.Settlement.GatewayTimeout, Log: log})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize djamo client")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	switch {
	case *list:
		err = listWebhooks(ctx, djamo)
	case *deleteAll:
		err = deleteWebhooks(ctx, djamo)
	default:
		target := strings.TrimRight(*baseURL, "/") + "/api/v1/webhooks/" + *partner
		err = registerWebhooks(ctx, djamo, target)
	}
	if err != nil {
		log.Error().Err(err).Msg("djamo webhook command failed")
		stop()
		os.Exit(1)
	}
}

func listWebhooks(ctx context.Context, d *gateway.Djamo) error {
	hooks, err := d.ListWebhooks(ctx)
	if err != nil {
		return fmt.Errorf("list webhooks: %w", err)
	}
	if len(hooks) == 0 {
		fmt.Println("no webhooks registered")
		return nil
	}
	for _, h := range hooks {
		fmt.Printf("%s\t%s\t%s\n", h.ID, h.Topic, h.URL)
	}
	return nil
}

func deleteWebhooks(ctx context.Context, d *gateway.Djamo) error {
	hooks, err := d.ListWebhooks(ctx)
	if err != nil {
		return fmt.Errorf("list webhooks: %w", err)
	}
	for _, h := range hooks {
		if err := d.DeleteWebhook(ctx, h.ID); err != nil {
			return fmt.Errorf("delete webhook %s: %w", h.ID, err)
		}
		fmt.Printf("deleted %s (%s)\n", h.ID, h.Topic)
	}
	return nil
}

// registerWebhooks tries every topic and reports the ones that failed.
func registerWebhooks(ctx context.Context, d *gateway.Djamo, target string) error {
	var failed []string
	for _, topic := range gateway.DjamoWebhookTopics {
		hook, err := d.RegisterWebhook(ctx, topic, target)
		if err != nil {
			fmt.Fprintf(os.Stderr, "register %s: %v\n", topic, err)
			failed = append(failed, topic)
			continue
		}
		fmt.Printf("registered %s -> %s (%s)\n", topic, hook.URL, hook.ID)
	}
	if len(failed) > 0 {
		return fmt.Errorf("%d of %d topics not registered: %s", len(failed), len(gateway.DjamoWebhookTopics), strings.Join(failed, ", "))
	}
	return nil
}
