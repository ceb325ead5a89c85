package router

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/anonto42/snapfeed/backend/internal/handlers"
	"github.com/anonto42/snapfeed/backend/internal/middleware"
	"github.com/anonto42/snapfeed/backend/internal/repositories"
	"github.com/anonto42/snapfeed/backend/internal/search"
	"github.com/anonto42/snapfeed/backend/internal/services"
	"github.com/anonto42/snapfeed/backend/pkg/config"
	"github.com/anonto42/snapfeed/backend/pkg/credentials"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

// Dependencies are the external resources the API is built on. Mongo and
// FirebaseAuth are optional.
type Dependencies struct {
	Config       *config.Config
	Postgres     *gorm.DB
	Mongo        *mongo.Client
	FirebaseAuth credentials.TokenVerifier
	// Indexer overrides the search backend picked from Mongo.
	Indexer search.Indexer
	Now     func() time.Time
}

// Services is the wired service graph. Timelines is nil in read mode.
type Services struct {
	Accounts      *services.AccountService
	Auth          *services.AuthService
	Engagement    *services.EngagementService
	Notifications *services.NotificationService
	Timelines     *services.TimelineService
	Feed          *services.FeedService
	Explore       *services.ExploreService
	Indexer       search.Indexer
	Tokens        *credentials.TokenIssuer
}

// NewServices migrates the schema and builds the service graph.
func NewServices(deps Dependencies) (*Services, error) {
	cfg := deps.Config
	if err := repositories.AutoMigrate(deps.Postgres); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	log.Info().Msg("PostgreSQL auto-migrations completed for all models.")

	now := deps.Now
	if now == nil {
		now = services.DefaultNow
	}
	store := repositories.NewGormStore(deps.Postgres, cfg.StoreMaxRetries)
	indexer := newIndexer(deps)

	var firebaseCreds *credentials.Firebase
	if deps.FirebaseAuth != nil {
		firebaseCreds = credentials.NewFirebase(deps.FirebaseAuth)
	} else {
		log.Warn().Msg("Firebase not configured, /auth/firebase will reject requests.")
	}

	svc := &Services{
		Notifications: services.NewNotificationService(store, now),
		Indexer:       indexer,
		Tokens:        credentials.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL),
	}

	var strategy services.FeedStrategy = services.NewReadTimeFeed(store)
	if cfg.FeedStrategy == config.FeedStrategyWrite {
		svc.Timelines = services.NewTimelineService(store, cfg.TimelineCap)
		strategy = services.NewWriteTimeFeed(store, svc.Timelines)
	}
	log.Info().Str("strategy", cfg.FeedStrategy).Int("timeline_cap", cfg.TimelineCap).Msg("Feed strategy selected.")

	svc.Accounts = services.NewAccountService(store, indexer, now)
	svc.Auth = services.NewAuthService(svc.Accounts, credentials.NewLocal(cfg.BcryptCost), firebaseCreds, svc.Tokens)
	svc.Engagement = services.NewEngagementService(store, svc.Notifications, svc.Timelines, indexer, now)
	svc.Feed = services.NewFeedService(store, strategy)
	svc.Explore = services.NewExploreService(store, now)
	return svc, nil
}

func newIndexer(deps Dependencies) search.Indexer {
	if deps.Indexer != nil {
		return deps.Indexer
	}
	if deps.Mongo == nil {
		return search.NopIndexer{}
	}

	indexer := search.NewMongoIndexer(deps.Mongo.Database(deps.Config.MongoDatabase))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := indexer.EnsureIndexes(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to ensure hashtag indexes.")
	}
	return indexer
}

// SetupRoutes configures all application routes and injects dependencies
func SetupRoutes(e *echo.Echo, db *gorm.DB, svc *Services) {
	// Health check - always accessible
	e.GET("/health", handlers.HealthCheck(db))
	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"message": "snapfeed api"})
	})

	// --- Unprotected routes for authentication ---
	authGroup := e.Group("/api/v1/auth")
	handlers.NewAuthHandler(svc.Auth).RegisterAuthRoutes(authGroup)
	log.Info().Msg("Auth routes configured.")

	// --- Protected routes (require JWT authentication) ---
	api := e.Group("/api/v1")
	api.Use(middleware.JWTAuthMiddleware(svc.Tokens))

	handlers.NewUserHandler(svc.Accounts).RegisterProfileRoutes(api)
	handlers.NewFollowHandler(svc.Engagement).RegisterFollowRoutes(api)
	handlers.NewPostHandler(svc.Engagement).RegisterPostRoutes(api)
	handlers.NewLikeHandler(svc.Engagement).RegisterLikeRoutes(api)
	handlers.NewCommentHandler(svc.Engagement).RegisterCommentRoutes(api)
	handlers.NewFeedHandler(svc.Feed, svc.Explore, svc.Indexer).RegisterFeedRoutes(api)
	handlers.NewNotificationHandler(svc.Notifications).RegisterNotificationRoutes(api)

	log.Info().Msg("All routes configured.")
}
