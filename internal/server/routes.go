package server

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"hideseek/internal/broadcast"
	"hideseek/internal/config"
	"hideseek/internal/db"
	"hideseek/internal/events"
	"hideseek/internal/gamedata"
	"hideseek/internal/games"
	"hideseek/internal/wshub"
)

func Run() error {
	appCfg := config.Load()

	bus := events.NewBus()
	hub := wshub.NewHub()
	broadcast.NewNotifier(bus, hub)

	policy := gamedata.Policy{
		AllowEndgameQuestions: appCfg.AllowEndgameQuestions,
		SilentEndgame:         appCfg.SilentEndgame,
	}

	srv := &Server{
		Games: games.NewStore(policy),
		Hub:   hub,
		Bus:   bus,
		Cfg:   appCfg,
	}

	// Optional database connection
	if appCfg.DatabaseURL != "" {
		database, err := db.Connect(appCfg.DatabaseURL)
		if err != nil {
			log.Printf("[DB] Failed to connect: %v (running without database)\n", err)
		} else {
			if err := database.Migrate(); err != nil {
				log.Printf("[DB] Migration failed: %v\n", err)
			}
			srv.DB = database
			srv.LocationBuffer = make(chan db.LocationEvent, 1000)
			go locationBatchWriter(database, srv.LocationBuffer)
			log.Println("[DB] Database connected and migrations applied")
		}
	} else {
		log.Println("[DB] DATABASE_URL not set, running without database")
	}

	addr := "0.0.0.0:" + appCfg.Port
	fmt.Printf("Server listening on http://localhost:%s\n", appCfg.Port)
	return http.ListenAndServe(addr, srv.Routes())
}

// Routes builds the full HTTP surface.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(30 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.Cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Client-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/games", func(r chi.Router) {
		r.Get("/", s.handleListGames)
		r.Post("/", s.handleCreateGame)
		r.Post("/join", s.handleJoinGame)

		r.Route("/{gameID}", func(r chi.Router) {
			r.Get("/", s.handleGetGame)
			r.Get("/qr", s.handleJoinQR)
			r.Patch("/players/{playerID}", s.handlePatchPlayer)
			r.Post("/start", s.handleStartGame)
			r.Post("/advance", s.handleAdvancePhase)
			r.Post("/end", s.handleEndGame)

			r.Post("/location", s.handleReportLocation)
			r.Get("/location/visible", s.handleVisibleLocations)
			r.Get("/location-history", s.handleLocationHistory)

			r.Post("/questions", s.handleAskQuestion)
			r.Get("/questions", s.handleListQuestions)
			r.Post("/questions/{questionID}/lock-in", s.handleLockIn)
			r.Get("/questions/{questionID}/preview", s.handlePreview)
			r.Post("/questions/{questionID}/answer", s.handleAnswer)

			r.Get("/ws", s.handleSubscribe)
		})
	})

	return r
}

func locationBatchWriter(database *db.DB, buffer chan db.LocationEvent) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	batch := make([]db.LocationEvent, 0, 50)

	for {
		select {
		case ev := <-buffer:
			batch = append(batch, ev)
			if len(batch) >= 50 {
				if err := database.BatchRecordLocations(batch); err != nil {
					log.Printf("[DB] BatchRecordLocations error: %v\n", err)
				}
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				if err := database.BatchRecordLocations(batch); err != nil {
					log.Printf("[DB] BatchRecordLocations error: %v\n", err)
				}
				batch = batch[:0]
			}
		}
	}
}
