package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dukerupert/praisepoints/internal/auth"
	"github.com/dukerupert/praisepoints/internal/backup"
	"github.com/dukerupert/praisepoints/internal/config"
	"github.com/dukerupert/praisepoints/internal/handler"
	"github.com/dukerupert/praisepoints/internal/metrics"
	"github.com/dukerupert/praisepoints/internal/middleware"
	"github.com/dukerupert/praisepoints/internal/points"
	"github.com/dukerupert/praisepoints/internal/push"
	"github.com/dukerupert/praisepoints/internal/store"
	ws "github.com/dukerupert/praisepoints/internal/websocket"
)

type Server struct {
	db          *sql.DB
	hub         *ws.Hub
	tokens      *auth.Issuer
	svc         *points.Service
	authH       *handler.AuthHandler
	childH      *handler.ChildHandler
	rewardH     *handler.RewardHandler
	pointsH     *handler.PointsHandler
	purchaseH   *handler.PurchaseHandler
	dashboardH  *handler.DashboardHandler
	pushH       *handler.PushHandler
	pusher      *push.Notifier
	backups     *backup.Manager
	rateLimiter *middleware.RateLimiter
	wsOrigins   []string
	logger      *slog.Logger
}

func New(db *sql.DB, cfg *config.Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))
	tokens := auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL)

	userStore := store.NewUserStore(db)
	childStore := store.NewChildStore(db)
	rewardStore := store.NewRewardStore(db)
	purchaseStore := store.NewPurchaseStore(db)
	pushStore := store.NewPushStore(db)

	notifiers := points.Notifiers{hub}
	var pushH *handler.PushHandler
	var pusher *push.Notifier
	if cfg.PushEnabled() {
		sender := push.NewService(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey, cfg.VAPIDSubscriber)
		pusher = push.NewNotifier(sender, pushStore, purchaseStore, logger.With("component", "push"))
		pushH = handler.NewPushHandler(pushStore, sender.VAPIDPublicKey(), logger.With("component", "push_handler"))
		notifiers = append(notifiers, pusher)
	}

	svc := points.NewService(db, points.Options{
		LockTimeout: cfg.LockTimeout,
		Notifier:    notifiers,
		Logger:      logger,
	})
	bounds := handler.AwardBounds{Min: cfg.AwardMin, Max: cfg.AwardMax}

	backups := backup.NewManager(backup.Config{
		S3: backup.S3Config{
			Endpoint:  cfg.BackupEndpoint,
			Bucket:    cfg.BackupBucket,
			Region:    cfg.BackupRegion,
			AccessKey: cfg.BackupAccessKey,
			SecretKey: cfg.BackupSecretKey,
		},
		Prefix:     cfg.BackupPrefix,
		Passphrase: cfg.BackupPassphrase,
		Interval:   cfg.BackupInterval,
		Retention:  cfg.BackupRetention,
	}, db, logger.With("component", "backup"))

	return &Server{
		db:          db,
		hub:         hub,
		tokens:      tokens,
		svc:         svc,
		authH:       handler.NewAuthHandler(userStore, childStore, tokens, logger.With("component", "auth")),
		childH:      handler.NewChildHandler(childStore, svc, hub, logger.With("component", "child")),
		rewardH:     handler.NewRewardHandler(rewardStore, hub, logger.With("component", "reward")),
		pointsH:     handler.NewPointsHandler(svc, bounds, logger.With("component", "points_handler")),
		purchaseH:   handler.NewPurchaseHandler(svc, logger.With("component", "purchase")),
		dashboardH:  handler.NewDashboardHandler(svc, rewardStore, logger.With("component", "dashboard")),
		pushH:       pushH,
		pusher:      pusher,
		backups:     backups,
		rateLimiter: middleware.NewRateLimiter(cfg.LoginRateLimit, cfg.LoginRateWindow),
		wsOrigins:   cfg.WSOrigins,
		logger:      logger,
	}
}

// RateLimiter returns the login rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// Hub returns the websocket hub.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

// Backups returns the backup manager. It reports StateDisabled when no
// bucket is configured.
func (s *Server) Backups() *backup.Manager {
	return s.backups
}

// Drain waits for background push deliveries.
func (s *Server) Drain() {
	if s.pusher != nil {
		s.pusher.Wait()
	}
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	// Public routes (no auth required)
	mux.HandleFunc("POST /api/auth/signup", s.rateLimitedHandler(s.authH.Signup))
	mux.HandleFunc("POST /api/auth/login", s.rateLimitedHandler(s.authH.Login))
	mux.HandleFunc("POST /api/auth/child-login", s.rateLimitedHandler(s.authH.ChildLogin))
	mux.HandleFunc("GET /health", s.healthHandler)
	mux.Handle("GET /metrics", metrics.Handler())

	// Any signed-in caller
	mux.Handle("GET /api/me", s.authenticated(s.authH.Me))
	mux.Handle("GET /ws", s.authenticated(ws.HandleWebSocket(s.hub, s.wsOrigins, s.logger.With("component", "websocket"))))

	s.registerParentRoutes(mux)
	s.registerChildRoutes(mux)

	// Routes are registered flat on one mux so r.Pattern carries the full
	// route into the metrics label.
	var h http.Handler = metrics.InstrumentHandler(mux)
	return middleware.RequestLogger(s.logger.With("component", "http"))(h)
}

func (s *Server) authenticated(h http.HandlerFunc) http.Handler {
	return middleware.Authenticate(s.tokens)(h)
}

func (s *Server) parent(h http.HandlerFunc) http.Handler {
	return middleware.Authenticate(s.tokens)(middleware.RequireParent(h))
}

func (s *Server) child(h http.HandlerFunc) http.Handler {
	return middleware.Authenticate(s.tokens)(middleware.RequireChild(h))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if err := s.db.PingContext(r.Context()); err != nil {
		s.logger.Error("health check failed", "error", err)
		status, code = "unavailable", http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	return middleware.RateLimit(s.rateLimiter, middleware.RealIP)(h).ServeHTTP
}

func (s *Server) registerParentRoutes(mux *http.ServeMux) {
	// Children
	mux.Handle("GET /api/children", s.parent(s.childH.List))
	mux.Handle("POST /api/children", s.parent(s.childH.Create))
	mux.Handle("GET /api/children/{id}", s.parent(s.childH.Get))
	mux.Handle("PUT /api/children/{id}", s.parent(s.childH.Update))
	mux.Handle("DELETE /api/children/{id}", s.parent(s.childH.Delete))

	// Rewards
	mux.Handle("GET /api/rewards", s.parent(s.rewardH.List))
	mux.Handle("POST /api/rewards", s.parent(s.rewardH.Create))
	mux.Handle("GET /api/rewards/{id}", s.parent(s.rewardH.Get))
	mux.Handle("PUT /api/rewards/{id}", s.parent(s.rewardH.Update))
	mux.Handle("POST /api/rewards/{id}/toggle", s.parent(s.rewardH.Toggle))
	mux.Handle("DELETE /api/rewards/{id}", s.parent(s.rewardH.Delete))

	// Points
	mux.Handle("POST /api/points/award", s.parent(s.pointsH.Award))
	mux.Handle("GET /api/points/balance/{id}", s.parent(s.pointsH.Balance))
	mux.Handle("GET /api/points/history/{id}", s.parent(s.pointsH.History))
	mux.Handle("GET /api/points/audit/{id}", s.parent(s.pointsH.Audit))

	// Purchases
	mux.Handle("GET /api/purchases", s.parent(s.purchaseH.List))
	mux.Handle("POST /api/purchases", s.parent(s.purchaseH.Create))
	mux.Handle("POST /api/purchases/{id}/approve", s.parent(s.purchaseH.Approve))
	mux.Handle("POST /api/purchases/{id}/reject", s.parent(s.purchaseH.Reject))

	if s.pushH != nil {
		mux.Handle("GET /api/push/vapid-key", s.parent(s.pushH.VAPIDKey))
		mux.Handle("GET /api/push/subscriptions", s.parent(s.pushH.List))
		mux.Handle("POST /api/push/subscriptions", s.parent(s.pushH.Subscribe))
		mux.Handle("DELETE /api/push/subscriptions/{id}", s.parent(s.pushH.Unsubscribe))
	}
}

func (s *Server) registerChildRoutes(mux *http.ServeMux) {
	mux.Handle("GET /api/child-dashboard/profile", s.child(s.dashboardH.Profile))
	mux.Handle("GET /api/child-dashboard/history", s.child(s.dashboardH.History))
	mux.Handle("GET /api/child-dashboard/rewards", s.child(s.dashboardH.Rewards))
	mux.Handle("GET /api/child-dashboard/purchases", s.child(s.dashboardH.Purchases))
	mux.Handle("POST /api/child-dashboard/purchases", s.child(s.dashboardH.Request))
	mux.Handle("POST /api/child-dashboard/purchases/{id}/cancel", s.child(s.dashboardH.Cancel))
}
