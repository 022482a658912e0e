package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/admin"
	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/discount"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/user"
	"github.com/xenking/storefront/internal/domain/wishlist"
	"github.com/xenking/storefront/internal/handler"
	"github.com/xenking/storefront/internal/notify/email"
	"github.com/xenking/storefront/internal/oauth"
	"github.com/xenking/storefront/internal/payment/razorpay"
	"github.com/xenking/storefront/internal/storage/postgres"
	redisstore "github.com/xenking/storefront/internal/storage/redis"
	"github.com/xenking/storefront/pkg/health"
	"github.com/xenking/storefront/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr), zap.Bool("debug", cfg.Debug))

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	rdb, err := redisstore.Connect(ctx, cfg.RedisURL)
	if err != nil {
		return errors.Wrap(err, "connect redis")
	}
	defer func() { _ = rdb.Close() }()

	gateway := razorpay.New(razorpay.Config{
		KeyID:     cfg.Razorpay.KeyID,
		KeySecret: cfg.Razorpay.KeySecret,
		BaseURL:   cfg.Razorpay.BaseURL,
		Timeout:   cfg.Razorpay.Timeout,
	}, lg.Named("razorpay"))
	if cfg.Razorpay.KeyID == "" {
		lg.Warn("Razorpay credentials missing, checkout will fail")
	}
	mailer, err := email.New(email.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})
	if err != nil {
		return errors.Wrap(err, "create mailer")
	}
	if !mailer.Enabled() {
		lg.Warn("SMTP host missing, confirmation emails will be logged only")
	}

	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck("postgres", pool))
	healthSvc.AddReadinessCheck("redis", 2*time.Second, health.PingCheck("redis", health.PingFunc(func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})))
	healthSvc.Register(health.Check{
		Name:     "razorpay",
		Kind:     health.Readiness,
		Timeout:  time.Second,
		Func:     health.PingCheck("razorpay", gateway),
		Optional: true,
	})
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	defer healthSvc.Stop()

	// Repositories.
	productRepo := postgres.NewProductRepository(pool)
	discountRepo := postgres.NewDiscountRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	userRepo := postgres.NewUserRepository(pool)
	cartRepo := postgres.NewCartRepository(pool)
	wishlistRepo := postgres.NewWishlistRepository(pool)
	statsRepo := postgres.NewStatsRepository(pool)

	// Domain services.
	sessions := auth.NewSessions(redisstore.NewSessionStore(rdb), userRepo, []byte(cfg.Session.Pepper), cfg.Session.TTL)
	evaluator := discount.NewEvaluator(discountRepo, productRepo)
	orderSvc := order.NewService(
		order.NewPricer(evaluator),
		orderRepo,
		productRepo,
		userRepo,
		gateway,
		mailer,
		order.ServiceConfig{Currency: cfg.Razorpay.Currency},
	)

	var google handler.SignIn
	if cfg.Google.ClientID != "" {
		google = oauth.NewGoogle(oauth.GoogleConfig{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			RedirectURL:  cfg.Google.RedirectURL,
		}, redisstore.NewStateStore(rdb))
	} else {
		lg.Info("Google client id missing, Google sign-in disabled")
	}

	h := handler.New(handler.Config{
		Debug:          cfg.Debug,
		ImageBaseURL:   cfg.ImageBaseURL,
		SignInRedirect: cfg.Google.FrontendURL,
	}, handler.Deps{
		Catalog:   product.NewService(productRepo, discountRepo),
		Discounts: evaluator,
		Orders:    orderSvc,
		Carts:     cart.NewService(cartRepo, productRepo),
		Wishlists: wishlist.NewService(wishlistRepo, productRepo),
		Accounts:  user.NewService(userRepo, sessions),
		Sessions:  sessions,
		Admin:     admin.NewService(statsRepo, userRepo, productRepo, orderRepo, discountRepo),
		Google:    google,
	})
	router := h.Router(handler.Probes{
		Live:  healthSvc.LiveEndpoint,
		Ready: healthSvc.ReadyEndpoint,
	})

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(router,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				Origins:          cfg.CORS.Origins,
				Headers:          []string{"Content-Type", "Authorization", httpmiddleware.HeaderRequestID},
				Expose:           []string{httpmiddleware.HeaderRequestID, "Retry-After"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
				Skip:   isInfraPath,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("storefront-api", m.TracerProvider(), m.MeterProvider()),
			httpmiddleware.LogRequests(),
			httpmiddleware.Timeout(cfg.RequestTimeout),
		),
	}

	healthSvc.SetReady(true)

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		// Confirmation emails still in flight.
		orderSvc.Wait()
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

func isInfraPath(r *http.Request) bool {
	switch r.URL.Path {
	case "/livez", "/readyz", "/metrics":
		return true
	}
	return false
}
