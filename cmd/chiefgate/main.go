package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"chiefgate/internal/config"
	"chiefgate/internal/demux"
	"chiefgate/internal/infra/db"
	httpinfra "chiefgate/internal/infra/http"
	"chiefgate/internal/infra/liteapi"
	"chiefgate/internal/infra/mailbox"
	"chiefgate/internal/translator"
	"chiefgate/internal/usecase"
	"chiefgate/internal/worker"

	"github.com/google/uuid"
)

// inbox narrows the concrete POP3 client to the drainer's session
// interface.
type inbox struct {
	*mailbox.Client
}

func (i inbox) Connect() (usecase.InboxSession, error) {
	return i.Client.Connect()
}

func main() {
	cfg := config.FromEnv()
	log := newLogger(cfg.LogLevel)

	store, err := db.NewStore(cfg)
	if err != nil {
		log.Error("failed to init store", "error", err)
		os.Exit(1)
	}

	payloads := db.NewLicencePayloadRepository(store.DB)
	mails := db.NewMailRepository(store.DB)
	licenceData := db.NewLicenceDataRepository(store.DB)
	usageData := db.NewUsageDataRepository(store.DB)
	mappings := db.NewMappingRepository(store.DB)
	readStatus := db.NewReadStatusRepository(store.DB)
	outbox := db.NewOutboxRepository(store.DB)

	sender := mailbox.NewSender(cfg)
	lite := liteapi.NewClient(cfg)

	boxes, err := config.LoadMailboxes(cfg.MailboxesConfigPath)
	if err != nil {
		log.Error("failed to load mailbox config", "path", cfg.MailboxesConfigPath, "error", err)
		os.Exit(1)
	}
	inboxes := make([]usecase.Inbox, 0, len(boxes))
	for _, box := range boxes {
		inboxes = append(inboxes, inbox{mailbox.NewClient(box)})
	}

	processor := &usecase.InboundProcessor{
		Cfg:         cfg,
		WorkerID:    uuid.NewString(),
		Mails:       mails,
		LicenceData: licenceData,
		UsageData:   usageData,
		Outbox:      outbox,
		Demux:       &demux.Demux{Payloads: payloads, Mappings: mappings},
		Sender:      sender,
		Log:         log,
	}
	drainer := &usecase.InboxDrainer{
		Inboxes:    inboxes,
		ReadStatus: readStatus,
		Processor:  processor,
		CheckLimit: cfg.IncomingEmailCheckLimit,
		Log:        log,
	}
	dispatcher := &usecase.LicenceDispatcher{
		Cfg:        cfg,
		Payloads:   payloads,
		Outbox:     outbox,
		Mappings:   mappings,
		Sender:     sender,
		Translator: &translator.Translator{History: payloads, Goods: mappings},
		Log:        log,
	}
	delivery := &usecase.UsageDelivery{
		UsageData: usageData,
		Mails:     mails,
		Lite:      lite,
		Log:       log,
	}

	srv := httpinfra.NewServer(cfg, httpinfra.ServerDeps{
		Ingress: &usecase.LicenceIngress{Payloads: payloads, Log: log},
		Health:  &usecase.HealthReporter{Cfg: cfg, Mails: mails, Payloads: payloads},
		Log:     log,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go worker.RunAll(ctx,
		&worker.Loop{
			Name:         "inbox-drain",
			Interval:     seconds(cfg.InboxPollInterval),
			Tick:         drainer.Tick,
			Log:          log,
			BackoffLimit: cfg.MaxAttempts,
		},
		&worker.Loop{
			Name:         "licence-dispatch",
			Interval:     seconds(cfg.LicenceDataPollInterval),
			Tick:         dispatcher.Tick,
			Log:          log,
			BackoffLimit: cfg.MaxAttempts,
		},
		&worker.Loop{
			Name:         "lite-usage-delivery",
			Interval:     seconds(cfg.UsageDataPollInterval),
			Tick:         delivery.Tick,
			Log:          log,
			BackoffLimit: cfg.MaxAttempts,
		},
	)

	if err := srv.Run(); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
