package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/revflowhq/revflow/app/repository"
	"github.com/revflowhq/revflow/internal/pkg/auditarchive"
	"github.com/revflowhq/revflow/internal/pkg/cache"
	"github.com/revflowhq/revflow/internal/pkg/database"
	"github.com/revflowhq/revflow/internal/pkg/env"
	"github.com/revflowhq/revflow/internal/pkg/executor"
	"github.com/revflowhq/revflow/internal/pkg/router"
	"github.com/revflowhq/revflow/internal/pkg/rules"
	"github.com/revflowhq/revflow/internal/pkg/taskqueue"
	"github.com/revflowhq/revflow/internal/pkg/webhook"
)

func main() {
	app, stop := NewApplication()

	// Graceful shutdown on SIGINT/SIGTERM: stop accepting requests, then
	// stop the queue and delivery workers.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("Shutting down...")
		if err := app.Shutdown(); err != nil {
			log.Printf("HTTP shutdown error: %v", err)
		}
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	stop()
	if err != nil {
		log.Fatal(err)
	}
}

// NewApplication wires the automation core and returns the Fiber app plus a
// stop function for the background workers.
func NewApplication() (*fiber.App, func()) {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	repository.InitializeFactory(database.GetDB())
	repos := repository.GetGlobalRepositories()

	// Domain wiring: rules engine, executor with action handlers, webhook
	// dispatcher for outbound notifications.
	engine := rules.NewEngine(repos.Rule, repos.Profile)
	dispatcher := webhook.NewDispatcher(repos.WebhookEndpoint, repos.WebhookDelivery)

	exec := executor.New(repos.ExecutionLog, repos.Review, repos.Escalation)
	exec.RegisterHandler(executor.ActionTypeNotifyWebhook, executor.NewWebhookNotifyHandler(dispatcher))
	for _, actionType := range []string{
		executor.ActionTypeResubmitClaim,
		executor.ActionTypeAdjustClaim,
		executor.ActionTypeRenewAuth,
		executor.ActionTypeFlagForBilling,
	} {
		exec.RegisterHandler(actionType, executor.NewStubHandler(actionType))
	}

	// Task queue processors.
	manager := taskqueue.GetManager()
	queue := manager.GetQueue()
	queue.RegisterProcessor(taskqueue.JobTypeEvaluateEvent, taskqueue.NewEvaluateEventProcessor(repos.Event, engine, exec))
	queue.RegisterProcessor(taskqueue.JobTypeDispatchWebhooks, taskqueue.NewDispatchWebhooksProcessor(repos.Event, dispatcher))
	queue.RegisterProcessor(taskqueue.JobTypeArchiveAuditLogs, newArchiveProcessor(repos))

	manager.Start()

	deliveryWorker := webhook.NewWorker(repos.WebhookDelivery, webhook.WorkerConfig{})
	deliveryWorker.Start()

	// init fiber app
	app := fiber.New(fiber.Config{
		AppName: "RevFlow Automation Core",
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// ROUTER
	router.InstallRouter(app)

	stop := func() {
		deliveryWorker.Stop()
		manager.Stop()
	}
	return app, stop
}

// newArchiveProcessor builds the audit archive processor. When archiving is
// disabled the scheduled sweeps complete as no-ops instead of failing.
func newArchiveProcessor(repos *repository.Repositories) taskqueue.Processor {
	cfg, err := auditarchive.LoadConfig()
	if err != nil {
		log.Fatalf("Invalid audit archive configuration: %v", err)
	}
	if !cfg.IsEnabled() {
		log.Println("Audit archiving disabled; archive sweeps will no-op")
		return func(ctx context.Context, job *taskqueue.Job) error { return nil }
	}

	client, err := auditarchive.NewClient(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize audit archive storage: %v", err)
	}
	archiver := auditarchive.NewArchiver(repos.ExecutionLog, client)
	return taskqueue.NewArchiveAuditLogsProcessor(archiver)
}
