package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"hideseek/internal/config"
	"hideseek/internal/events"
	"hideseek/internal/gamedata"
	"hideseek/internal/games"
	"hideseek/internal/wshub"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	cfg := config.Config{
		Port:             "0",
		CORSOrigins:      []string{"*"},
		HidingTimeMin:    30,
		QuestionDelayMin: 5,
	}
	srv := &Server{
		Games: games.NewStore(gamedata.Policy{}),
		Hub:   wshub.NewHub(),
		Bus:   events.NewBus(),
		Cfg:   cfg,
	}
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return srv, ts
}

// doJSON sends a request with the given client ID and decodes the JSON
// response body into a generic map.
func doJSON(t *testing.T, method, url, clientID string, body any) (int, map[string]any) {
	t.Helper()
	var buf io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		buf = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, buf)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if clientID != "" {
		req.Header.Set("X-Client-Id", clientID)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return resp.StatusCode, out
}

func createGame(t *testing.T, baseURL, clientID, name string) map[string]any {
	t.Helper()
	status, body := doJSON(t, http.MethodPost, baseURL+"/games", clientID, map[string]any{"name": name})
	if status != http.StatusCreated {
		t.Fatalf("create game: got status %d, body %v", status, body)
	}
	return body
}

func joinGame(t *testing.T, baseURL, clientID, code, name string) map[string]any {
	t.Helper()
	status, body := doJSON(t, http.MethodPost, baseURL+"/games/join", clientID, map[string]any{
		"join_code": code,
		"name":      name,
	})
	if status != http.StatusOK {
		t.Fatalf("join game: got status %d, body %v", status, body)
	}
	return body
}

func setRole(t *testing.T, baseURL, gameID, clientID, playerID, role string) {
	t.Helper()
	status, body := doJSON(t, http.MethodPatch,
		fmt.Sprintf("%s/games/%s/players/%s", baseURL, gameID, playerID),
		clientID, map[string]any{"role": role})
	if status != http.StatusOK {
		t.Fatalf("set role %s: got status %d, body %v", role, status, body)
	}
}

func reportLocation(t *testing.T, baseURL, gameID, clientID string, lng, lat float64) map[string]any {
	t.Helper()
	status, body := doJSON(t, http.MethodPost,
		fmt.Sprintf("%s/games/%s/location", baseURL, gameID),
		clientID, map[string]any{"longitude": lng, "latitude": lat})
	if status != http.StatusOK {
		t.Fatalf("report location: got status %d, body %v", status, body)
	}
	return body
}

// startedGame creates a host (hider) plus one seeker, assigns roles, and
// starts the game. Returns the game ID.
func startedGame(t *testing.T, baseURL string) string {
	t.Helper()
	state := createGame(t, baseURL, "host-client", "Ada")
	gameID := state["id"].(string)
	code := state["join_code"].(string)
	hostPlayer := state["your_player_id"].(string)

	joined := joinGame(t, baseURL, "seeker-client", code, "Grace")
	seekerPlayer := joined["your_player_id"].(string)

	setRole(t, baseURL, gameID, "host-client", hostPlayer, "hider")
	setRole(t, baseURL, gameID, "seeker-client", seekerPlayer, "seeker")

	status, body := doJSON(t, http.MethodPost, baseURL+"/games/"+gameID+"/start", "host-client", nil)
	if status != http.StatusOK {
		t.Fatalf("start game: got status %d, body %v", status, body)
	}
	if body["phase"] != "hiding" {
		t.Fatalf("expected phase hiding after start, got %v", body["phase"])
	}
	return gameID
}

func advancePhase(t *testing.T, baseURL, gameID, phase string) {
	t.Helper()
	status, body := doJSON(t, http.MethodPost, baseURL+"/games/"+gameID+"/advance",
		"host-client", map[string]any{"phase": phase})
	if status != http.StatusOK {
		t.Fatalf("advance to %s: got status %d, body %v", phase, status, body)
	}
}

func TestCreateGame(t *testing.T) {
	_, ts := newTestServer(t)

	state := createGame(t, ts.URL, "host-client", "Ada")

	if state["phase"] != "lobby" {
		t.Errorf("expected phase lobby, got %v", state["phase"])
	}
	code, _ := state["join_code"].(string)
	if len(code) != 4 {
		t.Errorf("expected 4-character join code, got %q", code)
	}
	if state["your_player_id"] == "" {
		t.Error("expected your_player_id to be set")
	}
	radars, _ := state["radars"].([]any)
	if len(radars) != 4 {
		t.Errorf("expected 4 radar slots, got %d", len(radars))
	}
	thermos, _ := state["thermometers"].([]any)
	if len(thermos) != 3 {
		t.Errorf("expected 3 thermometer slots, got %d", len(thermos))
	}
	if subs, ok := state["subscribers"].(float64); !ok || subs != 0 {
		t.Errorf("expected 0 subscribers on a fresh game, got %v", state["subscribers"])
	}
}

func TestListGames(t *testing.T) {
	_, ts := newTestServer(t)

	status, body := doJSON(t, http.MethodGet, ts.URL+"/games", "", nil)
	if status != http.StatusOK {
		t.Fatal(status)
	}
	if list := body["games"].([]any); len(list) != 0 {
		t.Fatalf("expected no games initially, got %d", len(list))
	}

	createGame(t, ts.URL, "host-client", "Ada")
	createGame(t, ts.URL, "other-client", "Bob")

	_, body = doJSON(t, http.MethodGet, ts.URL+"/games", "", nil)
	list := body["games"].([]any)
	if len(list) != 2 {
		t.Fatalf("expected 2 games, got %d", len(list))
	}
	first := list[0].(map[string]any)
	if first["phase"] != "lobby" {
		t.Errorf("expected phase lobby, got %v", first["phase"])
	}
	if first["players"] != float64(1) {
		t.Errorf("expected 1 player, got %v", first["players"])
	}
	if _, leaked := first["join_code"]; leaked {
		t.Error("listing must not expose join codes")
	}
}

func TestCreateGame_RequiresClientID(t *testing.T) {
	_, ts := newTestServer(t)

	status, _ := doJSON(t, http.MethodPost, ts.URL+"/games", "", map[string]any{"name": "Ada"})
	if status != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 without X-Client-Id, got %d", status)
	}
}

func TestJoinGame(t *testing.T) {
	_, ts := newTestServer(t)

	state := createGame(t, ts.URL, "host-client", "Ada")
	code := state["join_code"].(string)

	joined := joinGame(t, ts.URL, "seeker-client", code, "Grace")
	playerList, _ := joined["players"].([]any)
	if len(playerList) != 2 {
		t.Fatalf("expected 2 players after join, got %d", len(playerList))
	}

	// Rejoining with the same client is idempotent.
	again := joinGame(t, ts.URL, "seeker-client", code, "Grace")
	playerList, _ = again["players"].([]any)
	if len(playerList) != 2 {
		t.Errorf("expected rejoin to keep 2 players, got %d", len(playerList))
	}

	status, _ := doJSON(t, http.MethodPost, ts.URL+"/games/join", "x-client", map[string]any{
		"join_code": "ZZZZ", "name": "Eve",
	})
	if status != http.StatusNotFound {
		t.Errorf("expected 404 for unknown code, got %d", status)
	}
}

func TestJoinGame_ClosedAfterStart(t *testing.T) {
	_, ts := newTestServer(t)
	gameID := startedGame(t, ts.URL)

	status, body := doJSON(t, http.MethodGet, ts.URL+"/games/"+gameID, "host-client", nil)
	if status != http.StatusOK {
		t.Fatal(status)
	}
	code := body["join_code"].(string)

	status, _ = doJSON(t, http.MethodPost, ts.URL+"/games/join", "late-client", map[string]any{
		"join_code": code, "name": "Eve",
	})
	if status != http.StatusConflict {
		t.Errorf("expected 409 joining a started game, got %d", status)
	}
}

func TestStartGame_Authorization(t *testing.T) {
	_, ts := newTestServer(t)

	state := createGame(t, ts.URL, "host-client", "Ada")
	gameID := state["id"].(string)
	code := state["join_code"].(string)
	joinGame(t, ts.URL, "seeker-client", code, "Grace")

	status, _ := doJSON(t, http.MethodPost, ts.URL+"/games/"+gameID+"/start", "seeker-client", nil)
	if status != http.StatusForbidden {
		t.Errorf("expected 403 for non-host start, got %d", status)
	}

	// Roles not assigned yet.
	status, _ = doJSON(t, http.MethodPost, ts.URL+"/games/"+gameID+"/start", "host-client", nil)
	if status != http.StatusConflict {
		t.Errorf("expected 409 starting without roles, got %d", status)
	}
}

func TestStartGame_NeedsBothRoles(t *testing.T) {
	_, ts := newTestServer(t)

	state := createGame(t, ts.URL, "host-client", "Ada")
	gameID := state["id"].(string)
	hostPlayer := state["your_player_id"].(string)

	setRole(t, ts.URL, gameID, "host-client", hostPlayer, "seeker")

	status, _ := doJSON(t, http.MethodPost, ts.URL+"/games/"+gameID+"/start", "host-client", nil)
	if status != http.StatusConflict {
		t.Errorf("expected 409 with no hider, got %d", status)
	}
}

func TestPhaseTransitions(t *testing.T) {
	_, ts := newTestServer(t)
	gameID := startedGame(t, ts.URL)

	// Skipping seeking is rejected.
	status, _ := doJSON(t, http.MethodPost, ts.URL+"/games/"+gameID+"/advance",
		"host-client", map[string]any{"phase": "endgame"})
	if status != http.StatusConflict {
		t.Errorf("expected 409 advancing hiding->endgame, got %d", status)
	}

	advancePhase(t, ts.URL, gameID, "seeking")
	// Re-delivery of the same transition is a no-op.
	advancePhase(t, ts.URL, gameID, "seeking")
	advancePhase(t, ts.URL, gameID, "endgame")

	status, _ = doJSON(t, http.MethodPost, ts.URL+"/games/"+gameID+"/advance",
		"host-client", map[string]any{"phase": "finished"})
	if status != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 advancing to finished, got %d", status)
	}
}

func TestEndGame_BurnsJoinCode(t *testing.T) {
	_, ts := newTestServer(t)

	state := createGame(t, ts.URL, "host-client", "Ada")
	gameID := state["id"].(string)
	code := state["join_code"].(string)
	hostPlayer := state["your_player_id"].(string)

	joined := joinGame(t, ts.URL, "seeker-client", code, "Grace")
	seekerPlayer := joined["your_player_id"].(string)
	setRole(t, ts.URL, gameID, "host-client", hostPlayer, "hider")
	setRole(t, ts.URL, gameID, "seeker-client", seekerPlayer, "seeker")

	doJSON(t, http.MethodPost, ts.URL+"/games/"+gameID+"/start", "host-client", nil)

	status, body := doJSON(t, http.MethodPost, ts.URL+"/games/"+gameID+"/end", "host-client", nil)
	if status != http.StatusOK {
		t.Fatalf("end game: got status %d, body %v", status, body)
	}
	if body["phase"] != "finished" {
		t.Errorf("expected phase finished, got %v", body["phase"])
	}
	if _, hasCode := body["join_code"]; hasCode {
		t.Errorf("expected join code to be cleared, got %v", body["join_code"])
	}

	status, _ = doJSON(t, http.MethodPost, ts.URL+"/games/join", "late-client", map[string]any{
		"join_code": code, "name": "Eve",
	})
	if status != http.StatusNotFound {
		t.Errorf("expected 404 joining with a burned code, got %d", status)
	}
}

func TestEndGame_FromLobbyRejected(t *testing.T) {
	_, ts := newTestServer(t)

	state := createGame(t, ts.URL, "host-client", "Ada")
	gameID := state["id"].(string)

	status, _ := doJSON(t, http.MethodPost, ts.URL+"/games/"+gameID+"/end", "host-client", nil)
	if status != http.StatusConflict {
		t.Errorf("expected 409 ending a lobby game, got %d", status)
	}
}

func TestRadarQuestionFlow(t *testing.T) {
	_, ts := newTestServer(t)
	gameID := startedGame(t, ts.URL)
	advancePhase(t, ts.URL, gameID, "seeking")

	// Seeker at the origin, hider 300m north.
	reportLocation(t, ts.URL, gameID, "seeker-client", 0, 0)
	reportLocation(t, ts.URL, gameID, "host-client", 0, 0.0027)

	status, q := doJSON(t, http.MethodPost, ts.URL+"/games/"+gameID+"/questions",
		"seeker-client", map[string]any{"question_type": "radar", "slot_index": 0})
	if status != http.StatusCreated {
		t.Fatalf("ask radar: got status %d, body %v", status, q)
	}
	if q["status"] != "answerable" {
		t.Errorf("expected radar to be immediately answerable, got %v", q["status"])
	}
	questionID := q["id"].(string)

	// A second ask while one is open conflicts.
	status, _ = doJSON(t, http.MethodPost, ts.URL+"/games/"+gameID+"/questions",
		"seeker-client", map[string]any{"question_type": "radar", "slot_index": 1})
	if status != http.StatusConflict {
		t.Errorf("expected 409 asking with an open question, got %d", status)
	}

	// Hiders cannot ask, seekers cannot answer.
	status, _ = doJSON(t, http.MethodPost, ts.URL+"/games/"+gameID+"/questions",
		"host-client", map[string]any{"question_type": "radar", "slot_index": 1})
	if status != http.StatusForbidden {
		t.Errorf("expected 403 for hider ask, got %d", status)
	}
	status, _ = doJSON(t, http.MethodPost,
		ts.URL+"/games/"+gameID+"/questions/"+questionID+"/answer", "seeker-client", nil)
	if status != http.StatusForbidden {
		t.Errorf("expected 403 for seeker answer, got %d", status)
	}

	// Preview is repeatable and does not commit.
	for i := 0; i < 2; i++ {
		status, preview := doJSON(t, http.MethodGet,
			ts.URL+"/games/"+gameID+"/questions/"+questionID+"/preview", "host-client", nil)
		if status != http.StatusOK {
			t.Fatalf("preview: got status %d, body %v", status, preview)
		}
		if preview["answer"] != "yes" {
			t.Errorf("expected preview answer yes at 300m inside 500m radar, got %v", preview["answer"])
		}
	}

	status, answered := doJSON(t, http.MethodPost,
		ts.URL+"/games/"+gameID+"/questions/"+questionID+"/answer", "host-client", nil)
	if status != http.StatusOK {
		t.Fatalf("answer: got status %d, body %v", status, answered)
	}
	if answered["answer"] != "yes" {
		t.Errorf("expected answer yes, got %v", answered["answer"])
	}
	if answered["exclusion"] == nil {
		t.Error("expected an exclusion zone on the answered question")
	}

	// Answering twice conflicts.
	status, _ = doJSON(t, http.MethodPost,
		ts.URL+"/games/"+gameID+"/questions/"+questionID+"/answer", "host-client", nil)
	if status != http.StatusConflict {
		t.Errorf("expected 409 answering twice, got %d", status)
	}
}

func TestThermometerLockIn(t *testing.T) {
	_, ts := newTestServer(t)
	gameID := startedGame(t, ts.URL)
	advancePhase(t, ts.URL, gameID, "seeking")

	reportLocation(t, ts.URL, gameID, "seeker-client", 0, 0)
	reportLocation(t, ts.URL, gameID, "host-client", 0.02, 0)

	status, q := doJSON(t, http.MethodPost, ts.URL+"/games/"+gameID+"/questions",
		"seeker-client", map[string]any{"question_type": "thermometer", "slot_index": 0})
	if status != http.StatusCreated {
		t.Fatalf("ask thermometer: got status %d, body %v", status, q)
	}
	if q["status"] != "in_progress" {
		t.Errorf("expected thermometer to start in_progress, got %v", q["status"])
	}
	questionID := q["id"].(string)

	// Answering before lock-in is too early.
	status, _ = doJSON(t, http.MethodPost,
		ts.URL+"/games/"+gameID+"/questions/"+questionID+"/answer", "host-client", nil)
	if status != http.StatusTooEarly {
		t.Errorf("expected 425 answering an in-progress thermometer, got %d", status)
	}

	// Lock-in before travelling 500m fails without state change.
	status, _ = doJSON(t, http.MethodPost,
		ts.URL+"/games/"+gameID+"/questions/"+questionID+"/lock-in", "seeker-client", nil)
	if status != http.StatusConflict {
		t.Errorf("expected 409 locking in without travel, got %d", status)
	}

	// Move ~560m north and lock in.
	reportLocation(t, ts.URL, gameID, "seeker-client", 0, 0.005)
	status, locked := doJSON(t, http.MethodPost,
		ts.URL+"/games/"+gameID+"/questions/"+questionID+"/lock-in", "seeker-client", nil)
	if status != http.StatusOK {
		t.Fatalf("lock-in: got status %d, body %v", status, locked)
	}
	if locked["status"] != "answerable" {
		t.Errorf("expected answerable after lock-in, got %v", locked["status"])
	}

	status, answered := doJSON(t, http.MethodPost,
		ts.URL+"/games/"+gameID+"/questions/"+questionID+"/answer", "host-client", nil)
	if status != http.StatusOK {
		t.Fatalf("answer: got status %d, body %v", status, answered)
	}
	// Hider is due east; moving north takes the seeker farther away.
	if answered["answer"] != "farther" {
		t.Errorf("expected answer farther, got %v", answered["answer"])
	}
}

func TestAskOutsideSeekingPhase(t *testing.T) {
	_, ts := newTestServer(t)
	gameID := startedGame(t, ts.URL)

	reportLocation(t, ts.URL, gameID, "seeker-client", 0, 0)

	status, _ := doJSON(t, http.MethodPost, ts.URL+"/games/"+gameID+"/questions",
		"seeker-client", map[string]any{"question_type": "radar", "slot_index": 0})
	if status != http.StatusConflict {
		t.Errorf("expected 409 asking during hiding, got %d", status)
	}
}

func TestQuestionListRedaction(t *testing.T) {
	_, ts := newTestServer(t)
	gameID := startedGame(t, ts.URL)
	advancePhase(t, ts.URL, gameID, "seeking")

	reportLocation(t, ts.URL, gameID, "seeker-client", 0, 0)
	reportLocation(t, ts.URL, gameID, "host-client", 0, 0.0027)

	_, q := doJSON(t, http.MethodPost, ts.URL+"/games/"+gameID+"/questions",
		"seeker-client", map[string]any{"question_type": "radar", "slot_index": 0})
	questionID := q["id"].(string)
	doJSON(t, http.MethodPost,
		ts.URL+"/games/"+gameID+"/questions/"+questionID+"/answer", "host-client", nil)

	_, seekerView := doJSON(t, http.MethodGet, ts.URL+"/games/"+gameID+"/questions", "seeker-client", nil)
	seekerQs := seekerView["questions"].([]any)
	if len(seekerQs) != 1 {
		t.Fatalf("expected 1 question, got %d", len(seekerQs))
	}
	if _, ok := seekerQs[0].(map[string]any)["hider_location"]; ok {
		t.Error("seeker view must not include the hider's location")
	}

	_, hiderView := doJSON(t, http.MethodGet, ts.URL+"/games/"+gameID+"/questions", "host-client", nil)
	hiderQs := hiderView["questions"].([]any)
	if _, ok := hiderQs[0].(map[string]any)["hider_location"]; !ok {
		t.Error("hider view should include the hider's location")
	}
}

func TestLocationVisibility(t *testing.T) {
	_, ts := newTestServer(t)
	gameID := startedGame(t, ts.URL)

	reportLocation(t, ts.URL, gameID, "host-client", 13.4, 52.5)
	body := reportLocation(t, ts.URL, gameID, "seeker-client", 13.41, 52.51)

	// The only other player is a hider, so the seeker sees nobody.
	visible := body["visible_players"].([]any)
	if len(visible) != 0 {
		t.Errorf("expected no visible players for the seeker, got %d", len(visible))
	}

	// The hider sees the seeker.
	status, view := doJSON(t, http.MethodGet,
		ts.URL+"/games/"+gameID+"/location/visible", "host-client", nil)
	if status != http.StatusOK {
		t.Fatal(status)
	}
	visible = view["visible_players"].([]any)
	if len(visible) != 1 {
		t.Fatalf("expected the hider to see 1 seeker, got %d", len(visible))
	}
	if visible[0].(map[string]any)["role"] != "seeker" {
		t.Errorf("expected visible player to be a seeker, got %v", visible[0])
	}
}

func TestLocationHistory_OnlyAfterFinish(t *testing.T) {
	_, ts := newTestServer(t)
	gameID := startedGame(t, ts.URL)

	reportLocation(t, ts.URL, gameID, "seeker-client", 0, 0)

	status, _ := doJSON(t, http.MethodGet, ts.URL+"/games/"+gameID+"/location-history", "host-client", nil)
	if status != http.StatusConflict {
		t.Errorf("expected 409 for history mid-game, got %d", status)
	}

	doJSON(t, http.MethodPost, ts.URL+"/games/"+gameID+"/end", "host-client", nil)

	status, body := doJSON(t, http.MethodGet, ts.URL+"/games/"+gameID+"/location-history", "host-client", nil)
	if status != http.StatusOK {
		t.Fatalf("history after finish: got status %d, body %v", status, body)
	}
	samples := body["samples"].([]any)
	if len(samples) != 1 {
		t.Errorf("expected 1 sample in history, got %d", len(samples))
	}
}

func TestJoinQR(t *testing.T) {
	_, ts := newTestServer(t)
	state := createGame(t, ts.URL, "host-client", "Ada")
	gameID := state["id"].(string)

	resp, err := http.Get(ts.URL + "/games/" + gameID + "/qr")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("expected image/png, got %s", ct)
	}
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t)

	status, body := doJSON(t, http.MethodGet, ts.URL+"/health", "", nil)
	if status != http.StatusOK {
		t.Fatal(status)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %v", body["status"])
	}
	if body["database"] != "not configured" {
		t.Errorf("expected database not configured, got %v", body["database"])
	}
}
