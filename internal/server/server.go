package server

import (
	"backend-strideup/internal/activity"
	"backend-strideup/internal/auth"
	"backend-strideup/internal/challenge"
	"backend-strideup/internal/community"
	"backend-strideup/internal/config"
	"backend-strideup/internal/events"
	"backend-strideup/internal/geocode"
	applog "backend-strideup/internal/logger"
	"backend-strideup/internal/privacy"
	"backend-strideup/internal/report"
	"backend-strideup/internal/social"
	"backend-strideup/internal/stream"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	App      *fiber.App
	Cfg      config.Config
	DB       *pgxpool.Pool
	Redis    *redis.Client
	Stream   *stream.Hub
	Events   events.Publisher
	Log      *applog.Logger
	Pipeline *challenge.Pipeline
}

func NewServer(cfg config.Config, db *pgxpool.Pool, redisClient *redis.Client, pub events.Publisher, log *applog.Logger) *Server {
	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	log = applog.OrNop(log)
	if pub == nil {
		pub = events.Noop{}
	}

	s := &Server{
		App:    app,
		Cfg:    cfg,
		DB:     db,
		Redis:  redisClient,
		Stream: stream.NewHub(redisClient, log),
		Events: pub,
		Log:    log,
	}

	registerRoutes(s)
	return s
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)

	zones := privacy.NewStore(s.DB)
	follows := social.NewService(s.DB)
	communities := community.NewService(s.DB)
	reports := report.NewService(s.DB, communities)
	challenges := challenge.NewService(s.DB, communities, s.Log.With("component", "challenge"))
	s.Pipeline = challenge.NewPipeline(s.DB, s.Events, s.Log.With("component", "contributions"), s.Cfg.ContributionWorkers)

	activities := activity.NewService(s.DB, activity.Deps{
		Zones:   zones,
		Follows: follows,
		Hook:    s.Pipeline,
		Events:  s.Events,
		Live:    s.Stream,
		Log:     s.Log.With("component", "activity"),
	})

	places := geocode.New(geocode.Config{
		BaseURL: s.Cfg.GeocoderURL,
		Timeout: s.Cfg.GeocoderTimeout,
	}, s.Redis, s.Log)

	auth.RegisterRoutes(s.App.Group("/auth"), auth.NewService(s.Cfg.JWTSecret, s.DB))

	// /activities/statistics has to win over /activities/:id
	activitiesGroup := s.App.Group("/activities")
	report.RegisterUserRoutes(activitiesGroup, reports, jwtMiddleware)
	activity.RegisterRoutes(activitiesGroup, activities, jwtMiddleware)

	communitiesGroup := s.App.Group("/communities")
	challenge.RegisterCommunityRoutes(communitiesGroup, challenges, jwtMiddleware)
	report.RegisterCommunityRoutes(communitiesGroup, reports, jwtMiddleware)
	community.RegisterRoutes(communitiesGroup, communities, jwtMiddleware)

	challenge.RegisterRoutes(s.App.Group("/challenges"), challenges, jwtMiddleware)
	privacy.RegisterRoutes(s.App.Group("/privacy-zones"), zones, jwtMiddleware)
	social.RegisterRoutes(s.App.Group("/social"), follows, jwtMiddleware)
	geocode.RegisterRoutes(s.App.Group("/places"), places, jwtMiddleware)
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream, jwtMiddleware, activities)
}
