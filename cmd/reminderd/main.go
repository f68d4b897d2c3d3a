package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"study_reminder_bot/internal/app"
	"study_reminder_bot/internal/domain/alarm"
	"study_reminder_bot/internal/domain/channel"
	"study_reminder_bot/internal/domain/recipient"
	"study_reminder_bot/internal/infra/cache"
	"study_reminder_bot/internal/infra/config"
	idb "study_reminder_bot/internal/infra/database"
	"study_reminder_bot/internal/infra/logger"
	"study_reminder_bot/internal/infra/scheduler"
	"study_reminder_bot/internal/infra/telegram"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

func main() {
	once := flag.Bool("once", false, "run a single dispatch batch and exit")
	testUser := flag.Int64("test-user", 0, "restrict the run to one recipient id (implies -once)")
	dryRun := flag.Bool("dry-run", false, "perform all steps except actual delivery (implies -once)")
	forceTime := flag.String("force-time", "", "override the time-of-day used for the tolerance match, HH:MM (implies -once)")
	forceNow := flag.Bool("force-now", false, "bypass the tolerance window entirely (implies -once)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(2)
	}
	logger.Init(cfg)
	log := logger.Get()

	if *forceTime != "" && *forceNow {
		fmt.Fprintln(os.Stderr, "configuration error: -force-time and -force-now are mutually exclusive")
		os.Exit(2)
	}

	opts := app.RunOptions{
		TestRecipientID: *testUser,
		DryRun:          *dryRun,
		ForceNow:        *forceNow,
	}
	if *forceTime != "" {
		tod, err := recipient.ParseTimeOfDay(*forceTime)
		if err != nil {
			fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
			os.Exit(2)
		}
		opts.Now = tod.On(time.Now())
	}
	oneShot := *once || *testUser != 0 || *dryRun || *forceTime != "" || *forceNow

	db, err := idb.Connect(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Could not connect to database: %v", err)
	}
	defer db.Close()

	recipientRepo := idb.NewSQLRecipientRepository(db)
	reviewRepo := idb.NewSQLReviewRepository(db)
	alarmRepo := idb.NewSQLAlarmRepository(db)
	lockRepo := idb.NewSQLRunLockRepository(db, cfg.RunLockStaleAfter)

	// A dry run never calls a channel, so skip the Telegram handshake and run
	// without network access.
	registry := channel.NewRegistry()
	if !*dryRun {
		bot, err := telebot.NewBot(telebot.Settings{
			Token:  cfg.TelegramToken,
			Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
			OnError: func(err error, c telebot.Context) {
				log.Errorf("telebot: %v", err)
			},
		})
		if err != nil {
			log.Fatalf("Could not create Telegram bot: %v", err)
		}

		// The engine only sends; the bot is never started as a poller.
		telegramChannel := telegram.NewTelebotChannel(bot, recipientRepo)
		registry.Register(alarm.KindNotification, telegramChannel)
		// Email delivery is deployment-provided. Route email-kind alarms to
		// the Telegram channel until a mail sender is wired so they are not
		// dropped.
		registry.Register(alarm.KindEmail, telegramChannel)
	}

	selector := app.NewDueWorkSelector(
		recipientRepo, reviewRepo, alarmRepo,
		cache.New(), cfg.PreferenceCacheTTL, log,
	)
	dispatch := app.NewDispatchService(
		recipientRepo, reviewRepo, alarmRepo, selector, registry, lockRepo,
		app.DispatchConfig{
			Workers:          cfg.DispatchWorkers,
			RatePerSec:       cfg.DispatchRatePerSec,
			RecipientTimeout: cfg.RecipientTimeout,
		},
		log,
	)

	if oneShot {
		runOnce(dispatch, opts, cfg.RunTimeout, log)
		return
	}

	dispatchScheduler := scheduler.NewDispatchScheduler(dispatch, log, cfg.CronSpecDispatch, cfg.RunTimeout)
	if err := dispatchScheduler.Start(); err != nil {
		log.Fatalf("Could not start dispatch scheduler: %v", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down...")
	dispatchScheduler.Stop()
	log.Info("Shut down gracefully")
}

// runOnce executes a single batch and prints the operator summary. A
// completed batch always exits 0, even when individual recipients errored;
// only a terminal failure (lock held, store unavailable) exits non-zero.
func runOnce(dispatch *app.DispatchService, opts app.RunOptions, timeout time.Duration, log *logrus.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	report, err := dispatch.Run(ctx, opts)
	if err != nil {
		log.Errorf("Dispatch run aborted: %v", err)
		os.Exit(1)
	}

	fmt.Println(report.Summary())
	for _, recErr := range report.Errors {
		fmt.Printf("recipient %d: %s\n", recErr.RecipientID, recErr.Message)
	}
}
