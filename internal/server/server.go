package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/course-pilot/apiserver/config"
	"github.com/course-pilot/apiserver/internal/auth"
	"github.com/course-pilot/apiserver/internal/db"
	"github.com/course-pilot/apiserver/internal/events"
	"github.com/course-pilot/apiserver/internal/handlers"
	"github.com/course-pilot/apiserver/internal/logging"
	"github.com/course-pilot/apiserver/internal/services"
	"github.com/course-pilot/apiserver/internal/storage"
	"github.com/course-pilot/apiserver/internal/store"
	"github.com/course-pilot/apiserver/internal/store/memstore"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Repositories is the persistence layer the services run on.
type Repositories struct {
	Users       services.UserRepository
	Courses     services.CourseRepository
	Enrollments services.EnrollmentRepository
}

// Deps are the collaborators the HTTP layer is built from. Uploader may
// be nil to disable file uploads; Publisher may be nil to drop events.
type Deps struct {
	Repos     Repositories
	Uploader  storage.Uploader
	Publisher events.Publisher
	Logger    *zap.Logger
}

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	logger     *zap.Logger
	closers    []func() error
}

// New constructs a Server from cfg, opening the configured store, object
// storage and event broker.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	s := &Server{logger: logger}
	deps := Deps{Logger: logger}

	deps.Repos, err = s.openStore(ctx, cfg)
	if err != nil {
		_ = s.Shutdown(context.Background())
		return nil, err
	}

	if deps.Uploader, err = openStorage(ctx, cfg.Storage); err != nil {
		_ = s.Shutdown(context.Background())
		return nil, err
	}

	deps.Publisher, err = s.openEvents(ctx, cfg.MQ, logger)
	if err != nil {
		_ = s.Shutdown(context.Background())
		return nil, err
	}

	router, err := NewRouter(cfg, deps)
	if err != nil {
		_ = s.Shutdown(context.Background())
		return nil, err
	}

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	s.router = router
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

func (s *Server) openStore(ctx context.Context, cfg config.Config) (Repositories, error) {
	switch cfg.StoreBackend {
	case "memory":
		s.logger.Warn("using in-memory store; data is lost on restart")
		st := memstore.New()
		return Repositories{Users: st.Users(), Courses: st.Courses(), Enrollments: st.Enrollments()}, nil
	case "", "postgres":
		conn, err := db.Open(ctx, cfg)
		if err != nil {
			return Repositories{}, err
		}
		s.closers = append(s.closers, conn.Close)
		return Repositories{
			Users:       store.NewUserRepository(conn),
			Courses:     store.NewCourseRepository(conn),
			Enrollments: store.NewEnrollmentRepository(conn),
		}, nil
	default:
		return Repositories{}, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func openStorage(ctx context.Context, cfg config.StorageConfig) (storage.Uploader, error) {
	var backend storage.ObjectStorage
	switch cfg.Backend {
	case "":
		return nil, nil
	case "minio":
		client, err := storage.NewMinioClient(cfg.Minio)
		if err != nil {
			return nil, fmt.Errorf("minio client: %w", err)
		}
		backend = client
	case "gcs":
		client, err := storage.NewGCSClient(ctx, cfg.GCS)
		if err != nil {
			return nil, fmt.Errorf("gcs client: %w", err)
		}
		backend = client
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}

	st := storage.NewStorage(backend, cfg.PublicBaseURL)
	if err := st.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket %s: %w", st.Bucket(), err)
	}
	return st, nil
}

func (s *Server) openEvents(ctx context.Context, cfg config.MQConfig, logger *zap.Logger) (events.Publisher, error) {
	var broker events.Broker
	switch cfg.Backend {
	case "":
		return events.Nop{}, nil
	case "rabbitmq":
		b, err := events.NewRabbitMQBroker(cfg.RabbitMQ)
		if err != nil {
			return nil, fmt.Errorf("rabbitmq: %w", err)
		}
		broker = b
	case "pubsub":
		b, err := events.NewPubSubBroker(ctx, cfg.PubSub)
		if err != nil {
			return nil, fmt.Errorf("pubsub: %w", err)
		}
		broker = b
	default:
		return nil, fmt.Errorf("unknown event backend %q", cfg.Backend)
	}

	publisher := events.NewBrokerPublisher(broker, cfg.Channel, logger)
	s.closers = append(s.closers, publisher.Close)
	return publisher, nil
}

// NewRouter assembles services and handlers on top of deps and returns the
// routed handler.
func NewRouter(cfg config.Config, deps Deps) (*chi.Mux, error) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	codec, err := auth.NewCodec(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, err
	}
	cookies := auth.CookieConfig{
		Name:     cfg.Auth.CookieName,
		Secure:   cfg.Auth.CookieSecure,
		SameSite: cfg.Auth.CookieSameSite,
	}

	sessions := services.NewSessionService(deps.Repos.Users, deps.Repos.Enrollments, codec)
	accounts := services.NewAccountService(deps.Repos.Users, sessions)
	courses := services.NewCourseService(deps.Repos.Courses, deps.Publisher)
	enrollments := services.NewEnrollmentService(deps.Repos.Enrollments, deps.Repos.Courses, sessions, deps.Publisher)

	guard := handlers.NewGuard(codec, accounts, cookies, logger)
	authHandler := handlers.NewAuthHandler(accounts, guard, cookies, deps.Uploader, logger)
	courseHandler := handlers.NewCourseHandler(courses, enrollments, cookies, deps.Uploader, logger)
	userHandler := handlers.NewUserHandler(enrollments, accounts, cookies, logger)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		handlers.RequestLogger(logger),
		middleware.Timeout(60*time.Second),
	)
	if len(cfg.CORS.AllowedOrigins) > 0 {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORS.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	router.Get("/healthz", handlers.Healthz)
	router.Route("/api", func(r chi.Router) {
		handlers.AuthRouter(r, authHandler)
		r.Group(func(r chi.Router) {
			r.Use(guard.Authenticate)
			handlers.CourseRouter(r, courseHandler, guard)
			handlers.UserRouter(r, userHandler, guard)
		})
	})

	return router, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("http server listening", zap.String("addr", s.httpServer.Addr))
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and releases the store and broker.
func (s *Server) Shutdown(ctx context.Context) error {
	var errList []error
	if s.httpServer != nil {
		errList = append(errList, s.httpServer.Shutdown(ctx))
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		errList = append(errList, s.closers[i]())
	}
	_ = s.logger.Sync()
	return errors.Join(errList...)
}
