package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/victornm/edusync/internal/api"
	"github.com/victornm/edusync/internal/event"
	"github.com/victornm/edusync/internal/leaderboard"
	"github.com/victornm/edusync/internal/notify"
	"github.com/victornm/edusync/internal/result"
	"github.com/victornm/edusync/internal/store"
	"github.com/victornm/edusync/internal/telemetry"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type Config struct {
	HTTP struct {
		Port int32
	}

	GRPC struct {
		Port int32
	}

	Log telemetry.LogConfig

	Redis struct {
		Leaderboard struct {
			Addrs  []string
			Pass   string
			Prefix string
		}

		Pubsub struct {
			Addrs []string
			Pass  string
		}
	}

	Store struct {
		Driver string
	}

	Postgres struct {
		Addr    string
		User    string
		Pass    string
		Name    string
		Migrate bool
	}

	Notify notify.Config

	Result struct {
		NotifyTimeout time.Duration
	}

	EventBus struct {
		PoolSize int
		Timeout  time.Duration
	}
}

// DefaultConfig is a config that runs against local redis and postgres with notifications disabled.
func DefaultConfig() Config {
	var c Config

	c.HTTP.Port = 8080
	c.GRPC.Port = 9090

	c.Log.Level = "info"
	c.Log.Format = telemetry.LogFormatText

	c.Redis.Leaderboard.Addrs = []string{"localhost:6379"}
	c.Redis.Leaderboard.Prefix = "edusync"
	c.Redis.Pubsub.Addrs = []string{"localhost:6379"}

	c.Store.Driver = StoreDriverPostgres
	c.Postgres.Addr = "localhost:5432"
	c.Postgres.User = "postgres"
	c.Postgres.Pass = "postgres"
	c.Postgres.Name = "edusync"
	c.Postgres.Migrate = true

	c.Notify.Driver = notify.DriverNone
	c.Notify.Kafka.Topic = "assessment-results"
	c.Notify.Kafka.RequiredAcks = -1
	c.Notify.Kafka.MaxMessageBytes = 1024 * 1024
	c.Notify.Kafka.WriteTimeout = 10 * time.Second
	c.Notify.Redis.Prefix = "edusync"
	c.Notify.Redis.MaxMessageBytes = 1024 * 1024

	c.Result.NotifyTimeout = 10 * time.Second

	c.EventBus.PoolSize = 1000
	c.EventBus.Timeout = 10 * time.Second

	return c
}

type Server struct {
	c Config

	eb *event.Bus

	infra struct {
		redis struct {
			leaderboard redis.UniversalClient
			pubsub      redis.UniversalClient
		}

		postgres *pgxpool.Pool
		store    result.Store
	}

	publisher notify.Publisher

	service struct {
		result      *result.Service
		leaderboard *leaderboard.Service
	}

	http   *http.Server
	grpc   *grpc.Server
	health *health.Server
}

func Init(c Config) (*Server, error) {
	s := &Server{c: c}

	s.eb = event.NewBus(
		event.WithPoolSize(c.EventBus.PoolSize),
		event.WithTimeout(c.EventBus.Timeout),
	)

	if err := s.initInfra(); err != nil {
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	publisher, err := notify.New(c.Notify, s.infra.redis.pubsub)
	if err != nil {
		return nil, fmt.Errorf("server: init publisher: %w", err)
	}
	s.publisher = publisher

	s.initService()
	s.initAPI()
	return s, nil
}

func (s *Server) initInfra() error {
	if err := s.initRedis(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	if err := s.initStore(); err != nil {
		return fmt.Errorf("store: %w", err)
	}

	return nil
}

func (s *Server) initRedis() error {
	connect := func(addrs []string, pass string) (redis.UniversalClient, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		r := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    addrs,
			Password: pass,
		})

		if err := telemetry.MonitorRedis(r); err != nil {
			return nil, err
		}

		if err := r.Ping(ctx).Err(); err != nil {
			return nil, err
		}

		return r, nil
	}

	var err error
	s.infra.redis.leaderboard, err = connect(s.c.Redis.Leaderboard.Addrs, s.c.Redis.Leaderboard.Pass)
	if err != nil {
		return fmt.Errorf("leaderboard: %w", err)
	}

	if s.c.Notify.Driver != notify.DriverRedis {
		return nil
	}

	s.infra.redis.pubsub, err = connect(s.c.Redis.Pubsub.Addrs, s.c.Redis.Pubsub.Pass)
	if err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}

	return nil
}

func (s *Server) initStore() error {
	switch s.c.Store.Driver {
	case StoreDriverMemory:
		slog.Warn("server: using in-memory store, data is lost on restart")
		s.infra.store = store.NewMemory()
		return nil
	case StoreDriverPostgres, "":
	default:
		return fmt.Errorf("unsupported driver %q", s.c.Store.Driver)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	p := s.c.Postgres
	cc, err := pgxpool.ParseConfig(fmt.Sprintf("postgres://%s:%s@%s/%s", p.User, p.Pass, p.Addr, p.Name))
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}

	db, err := pgxpool.NewWithConfig(ctx, cc)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}

	if err := db.Ping(ctx); err != nil {
		db.Close()
		return fmt.Errorf("postgres: %w", err)
	}

	pg := store.NewPostgres(db)
	if p.Migrate {
		if err := pg.Migrate(ctx); err != nil {
			db.Close()
			return fmt.Errorf("postgres: %w", err)
		}
	}

	s.infra.postgres = db
	s.infra.store = pg
	return nil
}

func (s *Server) initService() {
	s.service.result = result.NewService(result.Config{
		Store:         s.infra.store,
		Publisher:     s.publisher,
		EventBus:      s.eb,
		NotifyTimeout: s.c.Result.NotifyTimeout,
	})

	s.service.leaderboard = leaderboard.NewService(leaderboard.Config{
		EventBus: s.eb,
		Redis:    s.infra.redis.leaderboard,
		Prefix:   s.c.Redis.Leaderboard.Prefix,
	})
}

func (s *Server) initAPI() {
	e := gin.New()
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	pprof.Register(e, "/debug/pprof")
	e.GET("/healthz", s.healthz)
	e.Use(gin.Recovery(), telemetry.GinLogger())

	api.New(api.Config{
		Router:      e,
		Result:      s.service.result,
		Leaderboard: s.service.leaderboard,
	})

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}

	s.health = health.NewServer()
	s.grpc = grpc.NewServer(telemetry.GRPCServerInterceptor())
	grpc_health_v1.RegisterHealthServer(s.grpc, s.health)
}

func (s *Server) healthz(c *gin.Context) {
	ctx := c.Request.Context()

	if err := s.infra.redis.leaderboard.Ping(ctx).Err(); err != nil {
		slog.ErrorContext(ctx, "server: health check failed", "dependency", "redis", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "dependency": "redis"})
		return
	}

	if s.infra.postgres != nil {
		if err := s.infra.postgres.Ping(ctx); err != nil {
			slog.ErrorContext(ctx, "server: health check failed", "dependency", "postgres", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "dependency": "postgres"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) Start() {
	ctx := context.TODO()

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.c.GRPC.Port))
	if err != nil {
		slog.ErrorContext(ctx, "grpc server: listen failed", "error", err)
		panic(err)
	}

	s.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)

	var eg errgroup.Group
	eg.Go(func() error {
		slog.InfoContext(ctx, "server: gRPC listening", "port", s.c.GRPC.Port)
		return s.grpc.Serve(lis)
	})

	eg.Go(func() error {
		slog.InfoContext(ctx, "server: HTTP listening", "port", s.c.HTTP.Port)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	err = eg.Wait()
	if err != nil {
		slog.ErrorContext(ctx, "server: shutdown with error", "error", err)
	}
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.health.Shutdown()
	s.grpc.GracefulStop()
	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	// Handlers still running may write to redis.
	s.eb.Stop()

	if err := s.publisher.Close(); err != nil {
		slog.ErrorContext(ctx, "server: close publisher failed", "error", err)
	}

	if s.infra.postgres != nil {
		s.infra.postgres.Close()
	}

	for _, r := range []redis.UniversalClient{s.infra.redis.leaderboard, s.infra.redis.pubsub} {
		if r == nil {
			continue
		}
		if err := r.Close(); err != nil {
			slog.ErrorContext(ctx, "server: close redis failed", "error", err)
		}
	}

	slog.InfoContext(ctx, "server: shutdown completed")
}
