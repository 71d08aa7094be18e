package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"recordsdesk/internal/config"
	"recordsdesk/internal/delivery"
	"recordsdesk/internal/handlers"
	"recordsdesk/internal/inbound"
	"recordsdesk/internal/models"
	"recordsdesk/internal/pdf"
	"recordsdesk/internal/realtime"
	"recordsdesk/internal/repositories"
	"recordsdesk/internal/routes"
	"recordsdesk/internal/services"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	_ "recordsdesk/docs"
)

// App is the assembled service: storage, delivery channels, services and
// the HTTP router.
type App struct {
	cfg    *config.Config
	Store  *repositories.Store
	Router *gin.Engine
	Intake services.IntakeService
	Hub    *realtime.TaskHub
}

// New opens the database (applying migrations) and wires every component.
func New(cfg *config.Config) (*App, error) {
	// === DB ===
	store, err := repositories.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}

	// === Delivery ===
	letters := pdf.NewLetterGenerator(cfg.Files.RootDir, cfg.Files.FontPath)
	gateway := delivery.NewRouter().
		Handle(models.ChannelEmail, delivery.NewSMTPEmailSender(
			cfg.Email.SMTPHost, cfg.Email.SMTPPort, cfg.Email.SMTPUser, cfg.Email.SMTPPassword,
			cfg.Email.FromEmail, cfg.Delivery.ReplyDomain,
		)).
		Handle(models.ChannelFax, delivery.NewFaxSender(cfg.Fax.APIURL, cfg.Fax.APIKey, cfg.Fax.SenderID, cfg.Fax.DryRun)).
		Handle(models.ChannelMail, delivery.NewMailSender(letters, cfg.Delivery.ReturnName, cfg.Delivery.ReturnAddr)).
		Handle(models.ChannelPortal, delivery.PortalSender{})

	// === Notifications ===
	var notifier services.Notifier = services.NopNotifier{}
	if cfg.Email.SMTPHost != "" {
		if notifier, err = services.NewEmailNotifier(
			cfg.Email.SMTPHost, cfg.Email.SMTPPort, cfg.Email.SMTPUser, cfg.Email.SMTPPassword,
			cfg.Email.FromEmail, cfg.Notify.StaffEmail, cfg.Notify.SiteURL,
		); err != nil {
			store.Close()
			return nil, err
		}
	} else {
		log.Printf("[app][notify][skip] smtp host empty, user notifications disabled")
	}
	tg, err := services.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.StaffChatID, cfg.Notify.SiteURL)
	if err != nil {
		log.Printf("[app][tg][err] %v (continuing without telegram)", err)
		tg = &services.TelegramNotifier{}
	}
	hub := realtime.NewTaskHub()

	// === Services ===
	deps := services.Deps{
		Store:     store,
		Gateway:   gateway,
		Notifier:  notifier,
		Announcer: services.Announcers{hub, tg},
		Lifecycle: cfg.Lifecycle,
		Delivery:  cfg.Delivery,
		FilesRoot: cfg.Files.RootDir,
	}
	lifecycle := services.NewLifecycleService(deps)
	taskService := services.NewTaskService(deps)
	authService := services.NewAuthService(store)
	entitlements := services.NewEntitlements(store)
	deliveryService := services.NewDeliveryService(deps)
	intake := services.NewIntakeService(deps)
	crowdfunds := services.NewCrowdfundService(deps)

	// === Handlers ===
	h := routes.Handlers{
		Auth:           handlers.NewAuthHandler(authService, entitlements, lifecycle, []byte(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL),
		Requests:       handlers.NewRequestHandler(lifecycle),
		Communications: handlers.NewCommunicationHandler(lifecycle, deliveryService),
		Tasks:          handlers.NewTaskHandler(taskService, lifecycle, hub),
		Crowdfunds:     handlers.NewCrowdfundHandler(crowdfunds, lifecycle),
	}
	if tg.StaffChat() != 0 {
		h.Integrations = handlers.NewIntegrationsHandler(tg, taskService)
	}

	// === Gin ===
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	// Swagger
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	routes.SetupRoutes(router, h, routes.Options{
		JWTSecret:     []byte(cfg.Auth.JWTSecret),
		DeliveryToken: cfg.Delivery.WebhookToken,
	})

	return &App{cfg: cfg, Store: store, Router: router, Intake: intake, Hub: hub}, nil
}

func (a *App) Close() error { return a.Store.Close() }

// Poller reads the inbound mailbox and feeds each message to intake.
func (a *App) Poller() *inbound.Poller {
	return inbound.NewPoller(a.cfg.IMAP, func(ctx context.Context, msg *inbound.Message) error {
		_, err := a.Intake.Ingest(ctx, msg)
		return err
	})
}

// Serve runs the HTTP server, and the mailbox poller when IMAP is enabled,
// until ctx is cancelled.
func (a *App) Serve(ctx context.Context) error {
	if a.cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	if a.cfg.IMAP.Enabled {
		go a.Poller().Run(ctx)
		log.Printf("[app][imap] polling %s every %s", a.cfg.IMAP.Host, a.cfg.IMAP.PollInterval)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Printf("[app][http] listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	log.Printf("[app][http] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization, X-Access-Key")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
