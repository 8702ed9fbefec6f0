package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"market-alerts/internal/adapters/messaging"
	"market-alerts/internal/domain"
	"market-alerts/internal/infra/config"
	applog "market-alerts/internal/infra/log"
	msgusecase "market-alerts/internal/usecase/messaging"
)

var (
	errNoBody        = errors.New("message body is required (-body)")
	errNoChat        = errors.New("WhatsApp is not configured (WHATSAPP_BASE_URL, WHATSAPP_INSTANCE)")
	errNotReady      = errors.New("WhatsApp instance is not connected")
	errNoProvider    = errors.New("no configured provider can reach this recipient")
	errAllSendFailed = errors.New("all send attempts failed")
)

type options struct {
	provider string
	email    string
	phone    string
	chat     string
	tgChat   int64
	subject  string
	body     string
	html     bool
	probe    bool
	instance string
}

func main() {
	var (
		opts    options
		timeout time.Duration
	)
	flag.StringVar(&opts.provider, "provider", "", "Provider name: Email, SMS, WhatsApp or Telegram (empty: send with fallback)")
	flag.StringVar(&opts.email, "email", "", "Recipient email")
	flag.StringVar(&opts.phone, "phone", "", "Recipient phone number")
	flag.StringVar(&opts.chat, "chat", "", "Recipient WhatsApp number")
	flag.Int64Var(&opts.tgChat, "telegram", 0, "Recipient Telegram chat id")
	flag.StringVar(&opts.subject, "subject", "Market Alerts test", "Message subject")
	flag.StringVar(&opts.body, "body", "", "Message body")
	flag.BoolVar(&opts.html, "html", false, "Treat body as HTML")
	flag.BoolVar(&opts.probe, "probe", false, "Only check WhatsApp instance readiness")
	flag.DurationVar(&timeout, "timeout", 30*time.Second, "Overall timeout")
	flag.Parse()

	cfg := config.Load()
	logger := applog.ForService(applog.NewLogger(cfg.AppEnv, cfg.LogLevel), "notify")
	opts.instance = cfg.WhatsApp.Instance

	configured, err := messaging.FromConfig(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("notify: failed to create providers")
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := run(ctx, logger, configured, cfg.Alerts.SendTimeout, opts, os.Stdout); err != nil {
		logger.Fatal().Err(err).Msg("notify: failed")
	}
}

func run(ctx context.Context, logger zerolog.Logger, configured messaging.Configured, attemptTimeout time.Duration, opts options, out io.Writer) error {
	if opts.probe {
		if configured.Chat == nil {
			return errNoChat
		}
		ready, err := configured.Chat.IsReady(ctx)
		if err != nil {
			return fmt.Errorf("readiness probe: %w", err)
		}
		fmt.Fprintf(out, "WhatsApp instance %q ready: %t\n", opts.instance, ready)
		if !ready {
			return errNotReady
		}
		return nil
	}

	if strings.TrimSpace(opts.body) == "" {
		return errNoBody
	}

	manager := msgusecase.NewManager(logger, attemptTimeout)
	for _, p := range configured.Providers {
		manager.RegisterProvider(p)
	}

	recipient := domain.MessageRecipient{ID: "cli", Email: opts.email, Phone: opts.phone, ChatHandle: opts.chat, TelegramChatID: opts.tgChat}
	content := domain.MessageContent{Format: domain.FormatText, Subject: opts.subject, Body: opts.body}
	if opts.html {
		content.Format = domain.FormatHTML
	}

	var results []domain.MessageResult
	if opts.provider != "" {
		results = []domain.MessageResult{manager.SendViaProvider(ctx, opts.provider, recipient, content)}
	} else {
		if len(manager.AvailableProviders(recipient)) == 0 {
			return errNoProvider
		}
		results = manager.Send(ctx, recipient, content, domain.SendOptions{FallbackEnabled: false})
	}

	failed := 0
	for _, res := range results {
		if res.Success {
			fmt.Fprintf(out, "%s: sent, id=%s\n", res.ProviderName, res.MessageID)
			continue
		}
		failed++
		fmt.Fprintf(out, "%s: failed: %s\n", res.ProviderName, res.Error)
	}
	if failed == len(results) {
		return errAllSendFailed
	}
	return nil
}
