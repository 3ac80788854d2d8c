package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"quizcast-service/internal/app"
	"quizcast-service/internal/config"
	"quizcast-service/internal/domain"
	filesource "quizcast-service/internal/infra/file"
	"quizcast-service/internal/infra/memory"
	pgsource "quizcast-service/internal/infra/postgres"
	redisrepo "quizcast-service/internal/infra/redis"
	"quizcast-service/internal/transport/console"
	transport "quizcast-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var loader memory.SetLoader = memory.NewStaticSetLoader(sampleQuestionSets())
	if cfg.Questions.Path != "" {
		loader = filesource.NewSetLoader(cfg.Questions.Path)
	}
	if pool != nil {
		loader = pgsource.NewSetLoader(pool)
	}

	questionsTTL := config.Duration(cfg.Questions.TTL, 10*time.Minute)
	var sets interface {
		GetSet(ctx context.Context, setID string) (domain.QuestionSet, error)
	}
	if redisClient != nil {
		redisTTL := config.Duration(cfg.Redis.TTL, questionsTTL)
		sets = redisrepo.NewSetRepository(redisClient, loader, redisTTL)
	} else {
		sets = memory.NewSetRepository(loader, questionsTTL)
	}

	setID := cfg.Quiz.Set
	if setID == "" {
		setID = "default"
	}
	// A broken question source is fatal at startup; the server must not
	// serve without questions it can trust.
	set, err := sets.GetSet(ctx, setID)
	if err != nil {
		return err
	}

	window := config.Duration(cfg.Quiz.Window, 10*time.Second)
	session := app.NewSession(set, window, logger)
	wsHandler := transport.NewWSHandler(session, logger)

	operator := console.NewController(session, os.Stdin, logger)
	go operator.Run(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info().
			Str("port", finalPort).
			Str("set", set.ID).
			Int("questions", len(set.Questions)).
			Dur("window", window).
			Msg("starting quiz server, type 'start' to begin")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("failed to start server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info().Msg("shutting down server...")
	case <-ctx.Done():
		logger.Info().Msg("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuestionSets provides a built-in set for demos and local runs; point
// questions.path or postgres.url at real content in production.
func sampleQuestionSets() map[string]domain.QuestionSet {
	return map[string]domain.QuestionSet{
		"default": {
			ID: "default",
			Questions: []domain.Question{
				{
					Prompt:  "Capital of Japan?",
					Options: []string{"Tokyo", "Osaka", "Kyoto"},
					Answer:  "Tokyo",
				},
				{
					Prompt:  "What is 2 + 2?",
					Options: []string{"3", "4", "5"},
					Answer:  "4",
				},
				{
					Prompt:  "Largest planet in the solar system?",
					Options: []string{"Earth", "Saturn", "Jupiter"},
					Answer:  "Jupiter",
				},
			},
		},
	}
}
