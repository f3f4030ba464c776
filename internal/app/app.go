package app

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"wira/internal/ai"
	"wira/internal/api"
	"wira/internal/auth"
	"wira/internal/config"
	"wira/internal/provider"
	"wira/internal/queue"
	"wira/internal/store"
)

type App struct {
	Config config.Config
	Store  *store.Store
	Queue  *queue.Queue
	AI     *ai.Service
	API    *api.Handler
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	st, err := store.Open(cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx, st.DB()); err != nil {
		return nil, err
	}

	var q *queue.Queue
	if cfg.Redis.URL != "" {
		q, err = queue.New(cfg.Redis.URL)
		if err != nil {
			return nil, err
		}
	}

	aiSvc := ai.NewService(buildProviders(cfg))

	verifier := auth.NewVerifier(cfg.Auth.SigningKey, cfg.Auth.Issuer, cfg.Auth.Audience)

	var logger api.ConversationLogger
	if q != nil {
		logger = q
	}
	handler := api.NewHandler(aiSvc, st, logger, verifier, cfg.Chat.ContextItems)

	return &App{
		Config: cfg,
		Store:  st,
		Queue:  q,
		AI:     aiSvc,
		API:    handler,
	}, nil
}

// buildProviders constructs the tier clients. A client whose credentials
// are missing is reported as absent rather than aborting startup: the
// orchestrator degrades instead.
func buildProviders(cfg config.Config) (primary, secondary, fallback provider.Client) {
	if c, err := provider.NewReplicate(cfg.Replicate.Token, cfg.Replicate.Model, cfg.Replicate.FallbackModel); err != nil {
		log.Printf("app: primary AI client (Replicate) not configured: %v", err)
	} else {
		c.PollInterval = cfg.Replicate.PollInterval
		primary = c
		log.Printf("app: primary AI client (Replicate) initialized")
	}

	if c, err := provider.NewHuggingFace(cfg.HuggingFace.Token, cfg.HuggingFace.Model, cfg.HuggingFace.FallbackModel); err != nil {
		log.Printf("app: secondary AI client (Hugging Face) not configured: %v", err)
	} else {
		secondary = c
		log.Printf("app: secondary AI client (Hugging Face) initialized")
	}

	if c, err := provider.NewWatsonx(cfg.Watsonx.APIKey, cfg.Watsonx.BaseURL); err != nil {
		log.Printf("app: fallback AI client (IBM Watsonx) not configured: %v", err)
	} else {
		fallback = c
		log.Printf("app: fallback AI client (IBM Watsonx) initialized")
	}
	return primary, secondary, fallback
}

func (a *App) Close() error {
	var err error
	if a.Store != nil {
		err = a.Store.Close()
	}
	if a.Queue != nil {
		_ = a.Queue.Close()
	}
	return err
}

func (a *App) Serve(ctx context.Context) error {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   a.Config.CORS.AllowOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))
	a.API.RegisterRoutes(r)

	srv := &http.Server{
		Addr:              a.Config.HTTP.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()
	log.Printf("app: listening on %s", a.Config.HTTP.Addr)
	return srv.ListenAndServe()
}

// RunWorker drains conversation-log jobs into the store until the context
// is canceled. Failed writes are logged and dropped; the log is advisory,
// not transactional.
func (a *App) RunWorker(ctx context.Context) error {
	if a.Queue == nil {
		log.Printf("worker: no redis configured, nothing to drain")
		<-ctx.Done()
		return ctx.Err()
	}

	log.Printf("worker: draining conversation log jobs")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		job, err := a.Queue.PopConversationLog(ctx, 5*time.Second)
		if err != nil {
			if queue.IsEmpty(err) || ctx.Err() != nil {
				continue
			}
			log.Printf("worker: pop failed: %v", err)
			time.Sleep(time.Second)
			continue
		}

		writeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if _, err := a.Store.LogConversation(writeCtx, store.Conversation{
			ChatbotID:      job.ChatbotID,
			UserMessage:    job.UserMessage,
			BotResponse:    job.BotResponse,
			Sentiment:      job.Sentiment,
			Confidence:     job.Confidence,
			IsHoaxDetected: job.IsHoaxDetected,
			Tier:           job.Tier,
			Provider:       job.Provider,
		}); err != nil {
			log.Printf("worker: conversation write failed for chatbot %s: %v", job.ChatbotID, err)
		}
		cancel()
	}
}
