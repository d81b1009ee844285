// Package commands wires the storybook CLI.
package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/book-expert/logger"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/book-expert/storybook-service/internal/config"
	"github.com/book-expert/storybook-service/internal/core"
	"github.com/book-expert/storybook-service/internal/generation"
	"github.com/book-expert/storybook-service/internal/ledger"
	"github.com/book-expert/storybook-service/internal/notify"
	"github.com/book-expert/storybook-service/internal/orchestrator"
	"github.com/book-expert/storybook-service/internal/prefs"
	"github.com/book-expert/storybook-service/internal/securestore"
	"github.com/book-expert/storybook-service/internal/service"
	"github.com/book-expert/storybook-service/internal/storage"
)

const bootstrapLogFile = "storybook-bootstrap.log"

var (
	appService *service.Service
	appLogger  *logger.Logger
	appPrefs   *prefs.Store
)

// Execute builds the command tree and runs it.
func Execute() error {
	root := &cobra.Command{
		Use:   "storybook",
		Short: "Generate, save and replay illustrated narrated stories",
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return bootstrap()
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return teardown()
		},
	}

	root.AddCommand(generateCmd(), listCmd(), deleteCmd(), balanceCmd(), creditCmd())

	execErr := root.Execute()
	if execErr != nil {
		return fmt.Errorf("command failed: %w", execErr)
	}

	return nil
}

// bootstrap loads configuration and assembles the service graph. It follows
// the two-stage logger pattern: a bootstrap logger in the temp directory
// until the configured logs directory is known.
func bootstrap() error {
	bootstrapLog, bootErr := logger.New(os.TempDir(), bootstrapLogFile)
	if bootErr != nil {
		return fmt.Errorf("failed to create bootstrap logger: %w", bootErr)
	}

	cfg, cfgErr := config.Load(bootstrapLog)
	if cfgErr != nil {
		return fmt.Errorf("failed to load configuration: %w", cfgErr)
	}

	dirErr := cfg.EnsureDirectories()
	if dirErr != nil {
		return fmt.Errorf("failed to prepare directories: %w", dirErr)
	}

	log, logErr := logger.New(cfg.Paths.BaseLogsDir, "storybook.log")
	if logErr != nil {
		return fmt.Errorf("failed to create logger: %w", logErr)
	}

	appLogger = log

	buildErr := buildService(cfg, log)
	if buildErr != nil {
		return buildErr
	}

	log.System("Storybook service initialized (data dir: %s)", cfg.Paths.DataDir)

	return nil
}

func buildService(cfg *config.Config, log *logger.Logger) error {
	apiKey, keyErr := cfg.APIKey()
	if keyErr != nil {
		return keyErr
	}

	client, clientErr := generation.NewClient(generation.Config{
		BaseURL:     cfg.OpenAI.BaseURL,
		APIKey:      apiKey,
		TextModel:   cfg.OpenAI.TextModel,
		ImageModel:  cfg.OpenAI.ImageModel,
		SpeechModel: cfg.OpenAI.SpeechModel,
		Timeout:     time.Duration(cfg.OpenAI.TimeoutSeconds) * time.Second,
	})
	if clientErr != nil {
		return fmt.Errorf("failed to create generation client: %w", clientErr)
	}

	notifier, notifyErr := buildNotifier(cfg, log)
	if notifyErr != nil {
		return notifyErr
	}

	secretStore, keyringErr := securestore.NewKeyring(cfg.SecureStore.Service)
	if keyringErr != nil {
		return fmt.Errorf("failed to open secure store: %w", keyringErr)
	}

	creditLedger := ledger.New(secretStore, notifier, log)

	initErr := creditLedger.Initialize()
	if initErr != nil {
		return fmt.Errorf("failed to initialize ledger: %w", initErr)
	}

	prefStore, prefsErr := prefs.Open(cfg.Paths.PrefsPath)
	if prefsErr != nil {
		return fmt.Errorf("failed to open preference store: %w", prefsErr)
	}

	appPrefs = prefStore

	manager, storageErr := storage.NewManager(cfg.Paths.DataDir, prefStore, log)
	if storageErr != nil {
		return fmt.Errorf("failed to create storage manager: %w", storageErr)
	}

	orch := orchestrator.New(creditLedger, client, client, notifier, log)
	appService = service.New(creditLedger, orch, manager, client, cfg.OpenAI.Voice, log)

	return nil
}

func buildNotifier(cfg *config.Config, log *logger.Logger) (core.Notifier, error) {
	if cfg.NATS.URL == "" {
		return notify.NewNop(), nil
	}

	conn, connErr := nats.Connect(cfg.NATS.URL)
	if connErr != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATS.URL, connErr)
	}

	notifier, notifierErr := notify.NewNatsNotifier(conn, notify.Subjects{
		Page:    cfg.NATS.PageSubject,
		Balance: cfg.NATS.BalanceSubject,
		Run:     cfg.NATS.RunSubject,
	}, log)
	if notifierErr != nil {
		return nil, fmt.Errorf("failed to create notifier: %w", notifierErr)
	}

	return notifier, nil
}

func teardown() error {
	if appPrefs != nil {
		closeErr := appPrefs.Close()
		if closeErr != nil && appLogger != nil {
			appLogger.Warn("Failed to close preference store: %v", closeErr)
		}
	}

	if appLogger != nil {
		closeErr := appLogger.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing logger: %v\n", closeErr)
		}
	}

	return nil
}
