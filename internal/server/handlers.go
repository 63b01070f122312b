package server

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/skip2/go-qrcode"

	"hideseek/internal/apperr"
	"hideseek/internal/config"
	"hideseek/internal/db"
	"hideseek/internal/events"
	"hideseek/internal/gamedata"
	"hideseek/internal/games"
	"hideseek/internal/geo"
	"hideseek/internal/players"
	"hideseek/internal/questions"
	"hideseek/internal/wshub"
)

type Server struct {
	Games *games.Store
	Hub   *wshub.Hub
	Bus   *events.Bus
	Cfg   config.Config

	DB             *db.DB                // nil if no database configured
	LocationBuffer chan db.LocationEvent // nil if no database configured
}

// gameState is the public snapshot returned by most game endpoints.
type gameState struct {
	ID           string               `json:"id"`
	JoinCode     string               `json:"join_code,omitempty"`
	Phase        gamedata.Phase       `json:"phase"`
	Timing       gamedata.TimingRules `json:"timing"`
	CreatedAt    time.Time            `json:"created_at"`
	Players      []*players.Player    `json:"players"`
	Radars       []questions.Slot     `json:"radars"`
	Thermometers []questions.Slot     `json:"thermometers"`
	Subscribers  int                  `json:"subscribers"`
	YourPlayerID string               `json:"your_player_id,omitempty"`
}

func (s *Server) stateFor(g *gamedata.Game, clientID string) gameState {
	st := gameState{
		ID:           g.ID(),
		JoinCode:     g.JoinCode(),
		Phase:        g.Phase(),
		Timing:       g.Timing(),
		CreatedAt:    g.CreatedAt(),
		Players:      g.Players.GetList(),
		Radars:       g.Questions.Inventory().Slots(questions.TypeRadar),
		Thermometers: g.Questions.Inventory().Slots(questions.TypeThermometer),
		Subscribers:  s.Hub.Subscribers(g.ID()),
	}
	if p := g.Players.GetByClient(clientID); p != nil {
		st.YourPlayerID = p.ID
	}
	return st
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[Respond] Failed to encode response: %v\n", err)
	}
}

// writeError maps domain error kinds onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if kind, ok := apperr.KindOf(err); ok {
		switch kind {
		case apperr.Validation:
			status = http.StatusUnprocessableEntity
		case apperr.Conflict:
			status = http.StatusConflict
		case apperr.NotAvailable:
			status = http.StatusTooEarly
		case apperr.Authorization:
			status = http.StatusForbidden
		case apperr.NotFound:
			status = http.StatusNotFound
		}
	}
	writeJSON(w, status, map[string]string{"detail": err.Error()})
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.Validationf("invalid request body: %v", err)
	}
	return nil
}

func clientID(r *http.Request) (string, error) {
	id := r.Header.Get("X-Client-Id")
	if id == "" {
		return "", apperr.Validationf("X-Client-Id header is required")
	}
	return id, nil
}

// getGame resolves the {gameID} URL parameter.
func (s *Server) getGame(r *http.Request) (*gamedata.Game, error) {
	g := s.Games.Get(chi.URLParam(r, "gameID"))
	if g == nil {
		return nil, apperr.NotFoundf("game not found")
	}
	return g, nil
}

// getCaller resolves the requesting client to their player in the game.
func getCaller(g *gamedata.Game, r *http.Request) (*players.Player, error) {
	cid, err := clientID(r)
	if err != nil {
		return nil, err
	}
	p := g.Players.GetByClient(cid)
	if p == nil {
		return nil, apperr.Authorizationf("you are not a player in this game")
	}
	return p, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "ok", "database": "not configured"}
	if s.DB != nil {
		if err := s.DB.Ping(); err != nil {
			status["database"] = "unreachable"
		} else {
			status["database"] = "ok"
		}
	}
	writeJSON(w, http.StatusOK, status)
}

// gameSummary is the per-game row in the listing endpoint. It carries no
// join code: codes are only handed to the creating host.
type gameSummary struct {
	ID        string         `json:"id"`
	Phase     gamedata.Phase `json:"phase"`
	Players   int            `json:"players"`
	CreatedAt time.Time      `json:"created_at"`
}

func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	all := s.Games.List()
	out := make([]gameSummary, 0, len(all))
	for _, g := range all {
		out = append(out, gameSummary{
			ID:        g.ID(),
			Phase:     g.Phase(),
			Players:   len(g.Players.GetList()),
			CreatedAt: g.CreatedAt(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"games": out})
}

type createGameRequest struct {
	Name             string                `json:"name"`
	Color            string                `json:"color"`
	HidingTimeMin    *int                  `json:"hiding_time_min"`
	QuestionDelayMin *int                  `json:"location_question_delay_min"`
	RestPeriods      []gamedata.RestPeriod `json:"rest_periods"`
}

func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	cid, err := clientID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req createGameRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Name == "" {
		writeError(w, apperr.Validationf("name is required"))
		return
	}

	timing := gamedata.TimingRules{
		HidingTimeMin:    s.Cfg.HidingTimeMin,
		QuestionDelayMin: s.Cfg.QuestionDelayMin,
		RestPeriods:      req.RestPeriods,
	}
	if req.HidingTimeMin != nil {
		timing.HidingTimeMin = *req.HidingTimeMin
	}
	if req.QuestionDelayMin != nil {
		timing.QuestionDelayMin = *req.QuestionDelayMin
	}

	g, err := s.Games.Create(cid, timing, questions.DefaultInventory(), s.Bus)
	if err != nil {
		writeError(w, err)
		return
	}
	p, err := g.Players.Add(cid, req.Name, req.Color)
	if err != nil {
		writeError(w, err)
		return
	}
	log.Printf("[Handle:CreateGame] Game %s created with code %s\n", g.ID(), g.JoinCode())

	if s.DB != nil {
		if err := s.DB.InsertGame(g.ID(), g.JoinCode(), cid, g.Timing()); err != nil {
			log.Printf("[DB] InsertGame error: %v\n", err)
		}
		s.persistPlayer(g, p)
	}
	writeJSON(w, http.StatusCreated, s.stateFor(g, cid))
}

type joinGameRequest struct {
	JoinCode string `json:"join_code"`
	Name     string `json:"name"`
	Color    string `json:"color"`
}

func (s *Server) handleJoinGame(w http.ResponseWriter, r *http.Request) {
	cid, err := clientID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req joinGameRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Name == "" {
		writeError(w, apperr.Validationf("name is required"))
		return
	}

	g := s.Games.GetByCode(req.JoinCode)
	if g == nil {
		writeError(w, apperr.NotFoundf("no game found for that join code"))
		return
	}
	if g.Phase() != gamedata.PhaseLobby {
		writeError(w, apperr.Conflictf("game has already started"))
		return
	}

	// Rejoining with a known client ID returns the existing player.
	if p := g.Players.GetByClient(cid); p != nil {
		writeJSON(w, http.StatusOK, s.stateFor(g, cid))
		return
	}

	p, err := g.Players.Add(cid, req.Name, req.Color)
	if err != nil {
		writeError(w, err)
		return
	}
	log.Printf("[Handle:JoinGame] Player %s joined game %s\n", p.ID, g.ID())
	s.persistPlayer(g, p)
	writeJSON(w, http.StatusOK, s.stateFor(g, cid))
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	g, err := s.getGame(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.stateFor(g, r.Header.Get("X-Client-Id")))
}

// handleJoinQR renders the game's join code as a QR code PNG.
func (s *Server) handleJoinQR(w http.ResponseWriter, r *http.Request) {
	g, err := s.getGame(r)
	if err != nil {
		writeError(w, err)
		return
	}
	code := g.JoinCode()
	if code == "" {
		writeError(w, apperr.Conflictf("game is finished, join code is no longer valid"))
		return
	}
	png, err := qrcode.Encode(code, qrcode.Medium, 256)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		log.Printf("[Handle:JoinQR] Failed to write PNG: %v\n", err)
	}
}

type patchPlayerRequest struct {
	Name  *string `json:"name"`
	Color *string `json:"color"`
	Role  *string `json:"role"`
}

func (s *Server) handlePatchPlayer(w http.ResponseWriter, r *http.Request) {
	g, err := s.getGame(r)
	if err != nil {
		writeError(w, err)
		return
	}
	caller, err := getCaller(g, r)
	if err != nil {
		writeError(w, err)
		return
	}

	targetID := chi.URLParam(r, "playerID")
	if caller.ID != targetID && caller.ClientID != g.HostClient() {
		writeError(w, apperr.Authorizationf("only the player or the host can modify a player"))
		return
	}

	var req patchPlayerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	var role *players.Role
	if req.Role != nil {
		parsed, ok := players.ParseRole(*req.Role)
		if !ok {
			writeError(w, apperr.Validationf("invalid role %q", *req.Role))
			return
		}
		role = &parsed
	}

	p, err := g.Players.Update(targetID, req.Name, req.Color, role)
	if err != nil {
		writeError(w, err)
		return
	}
	s.persistPlayer(g, p)
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleStartGame(w http.ResponseWriter, r *http.Request) {
	g, err := s.getGame(r)
	if err != nil {
		writeError(w, err)
		return
	}
	cid, err := clientID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if cid != g.HostClient() {
		writeError(w, apperr.Authorizationf("only the host can start the game"))
		return
	}
	if len(g.Players.WithRole(players.RoleHider)) == 0 || len(g.Players.WithRole(players.RoleSeeker)) == 0 {
		writeError(w, apperr.Conflictf("game needs at least one hider and one seeker"))
		return
	}
	if err := g.Start(); err != nil {
		writeError(w, err)
		return
	}
	log.Printf("[Handle:StartGame] Game %s started\n", g.ID())
	s.persistPhase(g)
	writeJSON(w, http.StatusOK, s.stateFor(g, cid))
}

type advancePhaseRequest struct {
	Phase string `json:"phase"`
}

func (s *Server) handleAdvancePhase(w http.ResponseWriter, r *http.Request) {
	g, err := s.getGame(r)
	if err != nil {
		writeError(w, err)
		return
	}
	cid, err := clientID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if cid != g.HostClient() {
		writeError(w, apperr.Authorizationf("only the host can advance the phase"))
		return
	}
	var req advancePhaseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	target := gamedata.Phase(req.Phase)
	switch target {
	case gamedata.PhaseSeeking, gamedata.PhaseEndgame:
	default:
		writeError(w, apperr.Validationf("cannot advance to phase %q", req.Phase))
		return
	}
	if err := g.AdvanceTo(target); err != nil {
		writeError(w, err)
		return
	}
	s.persistPhase(g)
	writeJSON(w, http.StatusOK, s.stateFor(g, cid))
}

func (s *Server) handleEndGame(w http.ResponseWriter, r *http.Request) {
	g, err := s.getGame(r)
	if err != nil {
		writeError(w, err)
		return
	}
	cid, err := clientID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if cid != g.HostClient() {
		writeError(w, apperr.Authorizationf("only the host can end the game"))
		return
	}
	code := g.JoinCode()
	if err := g.End(); err != nil {
		writeError(w, err)
		return
	}
	s.Games.ReleaseCode(code)
	log.Printf("[Handle:EndGame] Game %s ended\n", g.ID())
	s.persistPhase(g)
	writeJSON(w, http.StatusOK, s.stateFor(g, cid))
}

type reportLocationRequest struct {
	Longitude float64    `json:"longitude"`
	Latitude  float64    `json:"latitude"`
	Timestamp *time.Time `json:"timestamp"`
}

func (s *Server) handleReportLocation(w http.ResponseWriter, r *http.Request) {
	g, err := s.getGame(r)
	if err != nil {
		writeError(w, err)
		return
	}
	caller, err := getCaller(g, r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req reportLocationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	ts := time.Now()
	if req.Timestamp != nil {
		ts = *req.Timestamp
	}

	visible, err := g.ReportLocation(caller.ID, geo.NewPoint(req.Longitude, req.Latitude), ts)
	if err != nil {
		writeError(w, err)
		return
	}
	if s.LocationBuffer != nil {
		ev := db.LocationEvent{
			GameID:     g.ID(),
			PlayerID:   caller.ID,
			Lng:        req.Longitude,
			Lat:        req.Latitude,
			ReportedAt: ts,
		}
		select {
		case s.LocationBuffer <- ev:
		default:
			// Buffer full; write this one sample synchronously so the
			// replay log stays gap-free.
			if err := s.DB.RecordLocation(ev); err != nil {
				log.Printf("[DB] RecordLocation error: %v\n", err)
			}
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"visible_players": visible})
}

func (s *Server) handleVisibleLocations(w http.ResponseWriter, r *http.Request) {
	g, err := s.getGame(r)
	if err != nil {
		writeError(w, err)
		return
	}
	caller, err := getCaller(g, r)
	if err != nil {
		writeError(w, err)
		return
	}
	visible, err := g.VisiblePlayers(caller.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"visible_players": visible})
}

func (s *Server) handleLocationHistory(w http.ResponseWriter, r *http.Request) {
	g, err := s.getGame(r)
	if err != nil {
		writeError(w, err)
		return
	}
	history, err := g.LocationHistory()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"samples": history})
}

type askQuestionRequest struct {
	QuestionType    string   `json:"question_type"`
	SlotIndex       int      `json:"slot_index"`
	CustomDistanceM *float64 `json:"custom_distance_m"`
}

func (s *Server) handleAskQuestion(w http.ResponseWriter, r *http.Request) {
	g, err := s.getGame(r)
	if err != nil {
		writeError(w, err)
		return
	}
	caller, err := getCaller(g, r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req askQuestionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	qtype, ok := questions.ParseType(req.QuestionType)
	if !ok {
		writeError(w, apperr.Validationf("invalid question type %q", req.QuestionType))
		return
	}

	q, err := g.AskQuestion(caller.ID, qtype, req.SlotIndex, req.CustomDistanceM)
	if err != nil {
		writeError(w, err)
		return
	}
	log.Printf("[Handle:AskQuestion] Game %s question %d (%s) asked\n", g.ID(), q.Sequence, q.Type)
	s.persistQuestion(g, q)
	writeJSON(w, http.StatusCreated, q)
}

func (s *Server) handleListQuestions(w http.ResponseWriter, r *http.Request) {
	g, err := s.getGame(r)
	if err != nil {
		writeError(w, err)
		return
	}
	caller, err := getCaller(g, r)
	if err != nil {
		writeError(w, err)
		return
	}
	list, err := g.ListQuestions(caller.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"questions": list})
}

func (s *Server) handleLockIn(w http.ResponseWriter, r *http.Request) {
	g, err := s.getGame(r)
	if err != nil {
		writeError(w, err)
		return
	}
	caller, err := getCaller(g, r)
	if err != nil {
		writeError(w, err)
		return
	}
	q, err := g.LockInQuestion(caller.ID, chi.URLParam(r, "questionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	s.persistQuestion(g, q)
	writeJSON(w, http.StatusOK, q)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	g, err := s.getGame(r)
	if err != nil {
		writeError(w, err)
		return
	}
	caller, err := getCaller(g, r)
	if err != nil {
		writeError(w, err)
		return
	}
	outcome, err := g.PreviewQuestion(caller.ID, chi.URLParam(r, "questionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	g, err := s.getGame(r)
	if err != nil {
		writeError(w, err)
		return
	}
	caller, err := getCaller(g, r)
	if err != nil {
		writeError(w, err)
		return
	}
	q, err := g.AnswerQuestion(caller.ID, chi.URLParam(r, "questionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	log.Printf("[Handle:Answer] Game %s question %d answered %s\n", g.ID(), q.Sequence, q.Answer)
	s.persistQuestion(g, q)
	writeJSON(w, http.StatusOK, q)
}

// handleSubscribe upgrades to a WebSocket and streams game notifications.
func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	g, err := s.getGame(r)
	if err != nil {
		writeError(w, err)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.Cfg.CORSOrigins,
	})
	if err != nil {
		log.Printf("[Handle:Subscribe] WebSocket accept failed: %v\n", err)
		return
	}

	client := &wshub.Client{
		GameID: g.ID(),
		Conn:   conn,
		Send:   make(chan []byte, 32),
	}
	s.Hub.Register(client)
	defer s.Hub.Unregister(client)

	ctx := r.Context()
	go client.WritePump(ctx)

	// Drain reads so pings and close frames are processed; subscribers
	// never send application messages.
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			return
		}
	}
}

func (s *Server) persistPlayer(g *gamedata.Game, p *players.Player) {
	if s.DB == nil {
		return
	}
	var role *string
	if p.Role != nil {
		r := string(*p.Role)
		role = &r
	}
	if err := s.DB.UpsertPlayer(p.ID, g.ID(), p.ClientID, p.Name, p.Color, role); err != nil {
		log.Printf("[DB] UpsertPlayer error: %v\n", err)
	}
}

func (s *Server) persistPhase(g *gamedata.Game) {
	if s.DB == nil {
		return
	}
	if err := s.DB.UpdateGamePhase(g.ID(), string(g.Phase())); err != nil {
		log.Printf("[DB] UpdateGamePhase error: %v\n", err)
	}
}

func (s *Server) persistQuestion(g *gamedata.Game, q *questions.Question) {
	if s.DB == nil {
		return
	}
	if err := s.DB.UpsertQuestion(g.ID(), q); err != nil {
		log.Printf("[DB] UpsertQuestion error: %v\n", err)
	}
}
