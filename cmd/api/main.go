package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	config "github.com/dancehub/marketplace/configs"
	"github.com/dancehub/marketplace/database"
	"github.com/dancehub/marketplace/events"
	"github.com/dancehub/marketplace/handlers"
	"github.com/dancehub/marketplace/jobs"
	"github.com/dancehub/marketplace/media"
	"github.com/dancehub/marketplace/notifications"
	"github.com/dancehub/marketplace/payments"
	"github.com/dancehub/marketplace/repository"
	"github.com/dancehub/marketplace/routes"
	"github.com/dancehub/marketplace/services"
	"github.com/dancehub/marketplace/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg := config.Load()
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is not set")
	}

	db, err := database.ConnectDB(cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	if err := database.Migrate(db); err != nil {
		log.WithError(err).Fatal("failed to migrate database")
	}
	if err := database.SeedAdmin(db, log); err != nil {
		log.WithError(err).Fatal("failed to seed admin user")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var emitter events.Emitter = events.Discard{}
	if cfg.RabbitMQURL != "" {
		publisher, err := events.NewPublisher(cfg.RabbitMQURL, log)
		if err != nil {
			log.WithError(err).Warn("rabbitmq unavailable, domain events disabled")
		} else {
			defer publisher.Close()
			emitter = publisher
		}
	}

	var sender notifications.Sender = notifications.NoopSender{Log: log}
	if cfg.ResendAPIKey != "" {
		sender = notifications.NewResendSender(cfg.ResendAPIKey, cfg.EmailSender)
	}
	mailer := notifications.NewMailer(sender, log)

	var uploads handlers.UploadSigner
	var uploader media.Uploader
	if cfg.Cloudinary.Enabled() {
		cld, err := media.NewCloudinary(cfg.Cloudinary)
		if err != nil {
			log.WithError(err).Warn("cloudinary unavailable, QR codes stay inline")
		} else {
			uploads, uploader = cld, cld
		}
	}
	qrRenderer := media.NewPNGRenderer()
	images := media.NewImageStore(qrRenderer, uploader)

	hub := websocket.NewHub(log)
	go hub.Run(ctx)

	users := repository.NewUserRepository(db)
	courses := repository.NewCourseRepository(db)
	bookings := repository.NewBookingRepository(db)
	giftCards := repository.NewGiftCardRepository(db)
	discountCards := repository.NewDiscountCardRepository(db)
	tokenRepo := repository.NewTokenRepository(db)
	offerRepo := repository.NewOfferRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	checkoutData := repository.NewCheckoutDataRepository(db)
	reservationRepo := repository.NewReservationRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	referralRepo := repository.NewReferralRepository(db)
	settings := repository.NewSettingsRepository(db)

	if cfg.SettingsEncryptionKey == "" {
		log.Warn("SETTINGS_ENCRYPTION_KEY is not set, falling back to JWT_SECRET")
		cfg.SettingsEncryptionKey = cfg.JWTSecret
	}
	stripeKeys := payments.NewStripeKeyStore(settings, payments.NewSecretBox(cfg.SettingsEncryptionKey))
	builder := payments.NewCheckoutBuilder(stripeKeys, payments.StripeSessionCreator{}, checkoutData, cfg.BaseURL, cfg.Currency, log)
	checkout := services.NewCheckoutStarter(builder, paymentRepo, log)

	notifier := services.NewNotificationService(notificationRepo, hub, log)
	referrals := services.NewReferralService(users, referralRepo, emitter, log)
	giftCardService := services.NewGiftCardService(giftCards, checkout, mailer, emitter, log)
	discountService := services.NewDiscountCardService(discountCards, images, emitter, log)
	tokenService := services.NewTokenService(tokenRepo, users, checkout, notifier, referrals, emitter, log)
	offerService := services.NewOfferService(offerRepo, users, checkout, notifier, mailer, referrals, emitter, log)
	courseService := services.NewCourseService(courses, checkout, log)
	resolver := services.NewModeResolver(users, offerRepo, discountCards, tokenService)
	bookingService := services.NewBookingService(services.BookingDeps{
		Bookings:  bookings,
		Courses:   courses,
		Users:     users,
		Resolver:  resolver,
		Tokens:    tokenService,
		GiftCards: giftCardService,
		Discounts: discountService,
		Checkout:  checkout,
		Notifier:  notifier,
		Mailer:    mailer,
		Referrals: referrals,
		Events:    emitter,
		Log:       log,
	})
	reservationService := services.NewReservationService(reservationRepo, courses, users, qrRenderer, notifier, mailer, emitter, log)
	checkoutService := services.NewCheckoutService(services.CheckoutDeps{
		Payments:     paymentRepo,
		CheckoutData: checkoutData,
		Starter:      checkout,
		Bookings:     bookingService,
		Tokens:       tokenService,
		Offers:       offerService,
		Courses:      courseService,
		GiftCards:    giftCardService,
		Events:       emitter,
		Log:          log,
	})

	runner := &jobs.Runner{
		Reservations: reservationService,
		Checkouts:    checkoutService,
		Courses:      courseService,
		Log:          log,
	}
	scheduler := cron.New()
	if err := runner.Schedule(scheduler); err != nil {
		log.WithError(err).Fatal("failed to schedule jobs")
	}
	scheduler.Start()
	defer scheduler.Stop()
	log.Info("cron jobs scheduled")

	h := &handlers.Handler{
		Auth:          services.NewAuthService(users, cfg.JWTSecret, log),
		GiftCards:     giftCardService,
		Discounts:     discountService,
		Tokens:        tokenService,
		Offers:        offerService,
		Courses:       courseService,
		Resolver:      resolver,
		Bookings:      bookingService,
		Reservations:  reservationService,
		Checkouts:     checkoutService,
		Notifications: notifier,
		Referrals:     referrals,
		Verifier:      payments.NewWebhookVerifier(cfg.StripeWebhookSecret),
		StripeKeys:    stripeKeys,
		Uploads:       uploads,
		Hub:           hub,
		JWTSecret:     cfg.JWTSecret,
		Log:           log,
	}

	app := fiber.New(fiber.Config{
		AppName:       "Dance Hub",
		CaseSensitive: true,
		StrictRouting: true,
		ReadTimeout:   15 * time.Second,
		WriteTimeout:  15 * time.Second,
		IdleTimeout:   60 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			log.WithFields(logrus.Fields{"path": c.Path(), "method": c.Method(), "error": err}).Error("request error")
			return c.Status(code).JSON(fiber.Map{
				"status":  "error",
				"code":    code,
				"message": err.Error(),
			})
		},
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:  cfg.BaseURL,
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, Stripe-Signature, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowMethods:  "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		ExposeHeaders: "Content-Length, Authorization",
		MaxAge:        86400,
	}))
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		TimeFormat: "2006-01-02 15:04:05",
		TimeZone:   cfg.TimeZone,
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	routes.Setup(app, h)

	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.WithError(err).Error("server shutdown failed")
		}
	}()

	log.WithField("port", cfg.Port).Info("server starting")
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.WithError(err).Fatal("server failed to start")
	}
}
