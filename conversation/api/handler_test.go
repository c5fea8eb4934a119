package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"tabletop-chat/backend/ai"
	"tabletop-chat/backend/conversation/models"
	crepo "tabletop-chat/backend/conversation/repository"
	cservice "tabletop-chat/backend/conversation/service"
	"tabletop-chat/backend/conversation/workflow"
	grepo "tabletop-chat/backend/game/repository"
	gservice "tabletop-chat/backend/game/service"
	"tabletop-chat/backend/internal/database"
	apperrors "tabletop-chat/backend/pkg/errors"
	"tabletop-chat/backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sink struct {
	mu   sync.Mutex
	sent []models.Message
}

func (s *sink) EmitMessageCreated(m *models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, *m)
}

type env struct {
	router *gin.Engine
	games  *gservice.GameService
	sink   *sink
}

// every persona answers with its own name, the coach abstains
func setup(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := database.NewTestDB(t)
	gameRepo := grepo.NewGormGameRepository(db)
	messages := cservice.NewMessageService(crepo.NewGormMessageRepository(db))

	engine := ai.EngineFunc(func(_ context.Context, prompt string) (string, error) {
		if strings.HasPrefix(prompt, "You are the coach") {
			return ai.NoReaction, nil
		}
		name := strings.SplitN(strings.TrimPrefix(prompt, "You are "), ",", 2)[0]
		return name + " reacts", nil
	})
	s := &sink{}
	wf := workflow.New(messages, gameRepo, s, ai.NewReactionGenerator(engine, nil), workflow.DefaultConfig(),
		workflow.WithLogger(logger.Nop()))

	r := gin.New()
	r.Use(apperrors.ErrorHandler())
	RegisterRoutes(r, NewMessageHandler(wf, messages, gameRepo))

	return &env{router: r, games: gservice.NewGameService(gameRepo), sink: s}
}

func do(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body.Error.Code
}

func createGame(t *testing.T, e *env) (string, string, string) {
	t.Helper()
	game, err := e.games.Create(context.Background(), gservice.CreateGameInput{
		Name: "Valdor",
		Lore: "Dragons.",
		Gamers: []gservice.GamerInput{
			{Name: "Alice", Color: "red", Age: 27},
			{Name: "Bob", Color: "blue", Age: 40},
		},
	})
	require.NoError(t, err)
	require.Len(t, game.Gamers, 2)
	return game.ID, game.Gamers[0].ID, game.Gamers[1].ID
}

func TestPostMessageRunsTheTurn(t *testing.T) {
	e := setup(t)
	gameID, _, _ := createGame(t, e)

	w := do(e.router, http.MethodPost, "/messages", map[string]any{
		"content": "A dragon lands.",
		"gameId":  gameID,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var inbound models.Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &inbound))
	assert.Equal(t, "A dragon lands.", inbound.Content)
	assert.Nil(t, inbound.SenderID)
	assert.False(t, inbound.IsCoaching)

	w = do(e.router, http.MethodGet, "/messages/"+gameID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history []models.Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))

	var contents []string
	for _, m := range history {
		contents = append(contents, m.Content)
	}
	assert.Equal(t, []string{"A dragon lands.", "Alice reacts", "Bob reacts"}, contents)
	assert.Len(t, e.sink.sent, 3)
}

func TestPostMessageFromGamerSkipsSender(t *testing.T) {
	e := setup(t)
	gameID, aliceID, _ := createGame(t, e)

	w := do(e.router, http.MethodPost, "/messages", map[string]any{
		"content":  "I open the door.",
		"gameId":   gameID,
		"senderId": aliceID,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(e.router, http.MethodGet, "/messages/"+gameID, nil)
	var history []models.Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	require.Len(t, history, 2)
	assert.Equal(t, "Bob reacts", history[1].Content)
}

func TestPostMessageValidation(t *testing.T) {
	e := setup(t)
	gameID, _, _ := createGame(t, e)

	w := do(e.router, http.MethodPost, "/messages", map[string]any{"gameId": gameID})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperrors.CodeValidation, errorCode(t, w))

	w = do(e.router, http.MethodPost, "/messages", map[string]any{"content": "   ", "gameId": gameID})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(e.router, http.MethodPost, "/messages", map[string]any{
		"content": "hi", "gameId": gameID, "senderId": "stranger",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperrors.CodeInvalidSender, errorCode(t, w))
}

func TestPostMessageUnknownGame(t *testing.T) {
	e := setup(t)

	w := do(e.router, http.MethodPost, "/messages", map[string]any{"content": "hi", "gameId": "missing"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, apperrors.CodeGameNotFound, errorCode(t, w))
	assert.Empty(t, e.sink.sent)

	w = do(e.router, http.MethodGet, "/messages/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCoachSenderIsAccepted(t *testing.T) {
	e := setup(t)
	gameID, _, _ := createGame(t, e)

	w := do(e.router, http.MethodPost, "/messages", map[string]any{
		"content":    "Note to self.",
		"gameId":     gameID,
		"senderId":   models.CoachSenderID,
		"isCoaching": true,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestEmptyHistoryIsAnArray(t *testing.T) {
	e := setup(t)
	gameID, _, _ := createGame(t, e)

	w := do(e.router, http.MethodGet, "/messages/"+gameID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}
