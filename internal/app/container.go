package app

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/nekogravitycat/studyspace-booking/internal/api"
	"github.com/nekogravitycat/studyspace-booking/internal/auth"
	"github.com/nekogravitycat/studyspace-booking/internal/booking"
	"github.com/nekogravitycat/studyspace-booking/internal/space"
)

// Config holds the dependencies and settings required to start the application.
// Optional collaborators (Redis, Publisher) may be nil.
type Config struct {
	IsProduction   bool
	ProdOrigins    string
	RateLimitRPS   float64
	RateLimitBurst int

	Location *time.Location
	Logger   *logrus.Logger

	DBPool        *pgxpool.Pool
	Redis         *redis.Client
	RedisCacheTTL time.Duration
	Publisher     booking.EventPublisher

	JWTSecret string
	JWTTTL    time.Duration
}

// Container holds the initialized components that are needed externally.
type Container struct {
	Router         *gin.Engine
	JWTManager     *auth.JWTManager
	BookingService booking.Service
}

// NewContainer initializes all modules and returns the container.
func NewContainer(cfg Config) *Container {
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL)

	// Space Module
	spaceService := space.NewService(space.NewPgxRepository(cfg.DBPool))

	// Booking Module
	bookingService := newBookingService(cfg, spaceService)

	// API Router Config
	routerParams := api.Config{
		IsProduction:   cfg.IsProduction,
		ProdOrigins:    cfg.ProdOrigins,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		Logger:         cfg.Logger,
		DB:             cfg.DBPool,
		SpaceService:   spaceService,
		BookingService: bookingService,
		JWTManager:     jwtManager,
	}

	return &Container{
		Router:         api.NewRouter(routerParams),
		JWTManager:     jwtManager,
		BookingService: bookingService,
	}
}

// NewBookingService wires the booking engine alone. The sweeper batch uses it without the HTTP stack.
func NewBookingService(cfg Config) booking.Service {
	return newBookingService(cfg, space.NewService(space.NewPgxRepository(cfg.DBPool)))
}

func newBookingService(cfg Config, spaces space.Service) booking.Service {
	var cache booking.DayCache = booking.NopDayCache{}
	if cfg.Redis != nil {
		cache = booking.NewRedisDayCache(cfg.Redis, cfg.RedisCacheTTL)
	}

	return booking.NewService(booking.NewPgxRepository(cfg.DBPool), spaces, booking.Config{
		Location:  cfg.Location,
		Clock:     booking.SystemClock{},
		Cache:     cache,
		Publisher: cfg.Publisher,
		Logger:    cfg.Logger,
	})
}
