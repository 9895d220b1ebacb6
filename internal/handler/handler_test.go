package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"personal-assistant-api/internal/auth"
	"personal-assistant-api/internal/handler"
	"personal-assistant-api/internal/mail"
	"personal-assistant-api/internal/meeting"
	"personal-assistant-api/internal/middleware"
	"personal-assistant-api/internal/model"
	"personal-assistant-api/internal/store"
)

const testSecret = "test-secret"

type fakeChatAgent struct {
	reply   meeting.Reply
	err     error
	gotUser string
	gotMsg  string
}

func (f *fakeChatAgent) ProcessMessage(_ context.Context, userEmail, message string, _ []model.ChatTurn) (meeting.Reply, error) {
	f.gotUser = userEmail
	f.gotMsg = message
	return f.reply, f.err
}

type fakeMailAgent struct {
	analysis  mail.Analysis
	rewritten string
	answer    string
}

func (f *fakeMailAgent) Analyze(context.Context, mail.EmailInput) mail.Analysis {
	return f.analysis
}

func (f *fakeMailAgent) Rewrite(context.Context, string, string) (string, error) {
	return f.rewritten, nil
}

func (f *fakeMailAgent) QueryInbox(context.Context, mail.EmailLister, string, string) (string, error) {
	return f.answer, nil
}

func newServer(t *testing.T, st *store.Store, chat *fakeChatAgent, mailAgent *fakeMailAgent) *echo.Echo {
	t.Helper()
	e := echo.New()
	h := handler.New(st, chat, mailAgent, testSecret, nil)
	h.Register(e, middleware.NewRateLimiter(100, 100))
	return e
}

func authedRequest(t *testing.T, method, path string, body any, uid, email string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if uid != "" {
		tok, err := auth.MakeToken(uid, email, testSecret)
		require.NoError(t, err)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok)
	}
	return req
}

func TestHealth(t *testing.T) {
	e := newServer(t, nil, &fakeChatAgent{}, &fakeMailAgent{})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestChatRequiresToken(t *testing.T) {
	e := newServer(t, nil, &fakeChatAgent{}, &fakeMailAgent{})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, authedRequest(t, http.MethodPost, "/api/meeting-agent/chat",
		map[string]string{"message": "hi"}, "", ""))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestChatRejectsWrongSecret(t *testing.T) {
	e := newServer(t, nil, &fakeChatAgent{}, &fakeMailAgent{})
	tok, err := auth.MakeToken("u1", "ada@test.com", "some-other-secret")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/meeting-agent/chat", bytes.NewBufferString(`{"message":"hi"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestChatReturnsAgentReply(t *testing.T) {
	chat := &fakeChatAgent{reply: meeting.Reply{Response: "Scheduled: Standup on 2026-09-01 at 10:00 AM.", Action: "CREATE_MEETING"}}
	e := newServer(t, nil, chat, &fakeMailAgent{})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, authedRequest(t, http.MethodPost, "/api/meeting-agent/chat",
		map[string]any{"message": "schedule standup", "conversation_history": []model.ChatTurn{{Sender: "user", Text: "hi"}}},
		"u1", "ada@test.com"))

	require.Equal(t, http.StatusOK, rec.Code)
	var out meeting.Reply
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "CREATE_MEETING", out.Action)
	assert.Equal(t, "ada@test.com", chat.gotUser)
	assert.Equal(t, "schedule standup", chat.gotMsg)
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	e := newServer(t, nil, &fakeChatAgent{}, &fakeMailAgent{})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, authedRequest(t, http.MethodPost, "/api/meeting-agent/chat",
		map[string]string{"message": "   "}, "u1", "ada@test.com"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyzeEndpoint(t *testing.T) {
	mailAgent := &fakeMailAgent{analysis: mail.Analysis{Intent: "Meeting Request", UrgencyScore: 4, Priority: "P2"}}
	e := newServer(t, nil, &fakeChatAgent{}, mailAgent)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, authedRequest(t, http.MethodPost, "/api/analyze",
		map[string]string{"subject": "Board meeting", "body": "Friday 3pm"}, "u1", "ada@test.com"))

	require.Equal(t, http.StatusOK, rec.Code)
	var out mail.Analysis
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "Meeting Request", out.Intent)
	assert.Equal(t, 4, out.UrgencyScore)
}

func TestRewriteEndpoint(t *testing.T) {
	mailAgent := &fakeMailAgent{rewritten: "Dear team,"}
	e := newServer(t, nil, &fakeChatAgent{}, mailAgent)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, authedRequest(t, http.MethodPost, "/api/agent/rewrite",
		map[string]string{"text": "yo team", "style": "formal"}, "u1", "ada@test.com"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"result": "Dear team,"}`, rec.Body.String())
}

func TestQueryInboxRequiresQuery(t *testing.T) {
	e := newServer(t, nil, &fakeChatAgent{}, &fakeMailAgent{})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, authedRequest(t, http.MethodPost, "/api/agent/query_inbox",
		map[string]string{"query": ""}, "u1", "ada@test.com"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// Integration tests below need a database.

func setupDB(t *testing.T) *store.Store {
	t.Helper()
	_ = godotenv.Load("../../.env")
	dbURL := os.Getenv("DB_URL")
	if dbURL == "" {
		t.Skip("DB_URL not set")
	}
	pool, err := pgxpool.New(context.Background(), dbURL)
	if err != nil {
		t.Fatalf("db: %v", err)
	}
	t.Cleanup(pool.Close)
	return store.New(pool)
}

func registerUser(t *testing.T, e *echo.Echo) (userID, email, token string) {
	t.Helper()
	email = fmt.Sprintf("test-%s@test.com", uuid.New().String()[:8])
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, authedRequest(t, http.MethodPost, "/auth/register",
		map[string]string{"email": email, "password": "password123", "name": "Test User"}, "", ""))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var out map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out["userId"], email, out["token"]
}

func TestRegisterAndLogin(t *testing.T) {
	st := setupDB(t)
	e := newServer(t, st, &fakeChatAgent{}, &fakeMailAgent{})

	_, email, _ := registerUser(t, e)

	// duplicate email
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, authedRequest(t, http.MethodPost, "/auth/register",
		map[string]string{"email": email, "password": "password123", "name": "Test User"}, "", ""))
	assert.Equal(t, http.StatusConflict, rec.Code)

	// wrong password
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, authedRequest(t, http.MethodPost, "/auth/login",
		map[string]string{"email": email, "password": "wrongpassword"}, "", ""))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// right password
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, authedRequest(t, http.MethodPost, "/auth/login",
		map[string]string{"email": email, "password": "password123"}, "", ""))
	require.Equal(t, http.StatusOK, rec.Code)

	cookies := rec.Result().Cookies()
	var names []string
	for _, ck := range cookies {
		names = append(names, ck.Name)
	}
	assert.Contains(t, names, "access_token")
	assert.Contains(t, names, "refresh_token")
}

func TestRefreshRotation(t *testing.T) {
	st := setupDB(t)
	e := newServer(t, st, &fakeChatAgent{}, &fakeMailAgent{})

	_, email, _ := registerUser(t, e)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, authedRequest(t, http.MethodPost, "/auth/login",
		map[string]string{"email": email, "password": "password123"}, "", ""))
	require.Equal(t, http.StatusOK, rec.Code)

	var refresh *http.Cookie
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == "refresh_token" {
			refresh = ck
		}
	}
	require.NotNil(t, refresh)

	// first use succeeds
	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	req.AddCookie(refresh)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// replaying the same token fails
	req = httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	req.AddCookie(refresh)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMeetingEndpoints(t *testing.T) {
	st := setupDB(t)
	e := newServer(t, st, &fakeChatAgent{}, &fakeMailAgent{})

	_, email, _ := registerUser(t, e)

	m := &model.Meeting{
		ID:        uuid.New().String(),
		Title:     "Standup",
		StartTime: time.Now().Add(24 * time.Hour).Truncate(time.Second),
		EndTime:   time.Now().Add(25 * time.Hour).Truncate(time.Second),
		Status:    model.StatusScheduled,
		UserEmail: email,
	}
	conflicts, err := st.CreateMeetingIfFree(context.Background(), m)
	require.NoError(t, err)
	require.Empty(t, conflicts)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, authedRequest(t, http.MethodGet, "/api/meetings", nil, "u1", email))
	require.Equal(t, http.StatusOK, rec.Code)

	var list []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "Standup", list[0]["title"])

	// another user sees nothing
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, authedRequest(t, http.MethodGet, "/api/meetings", nil, "u2", "other@test.com"))
	require.Equal(t, http.StatusOK, rec.Code)
	var otherList []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &otherList))
	assert.Empty(t, otherList)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, authedRequest(t, http.MethodDelete, "/api/meetings/"+m.ID, nil, "u1", email))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, authedRequest(t, http.MethodDelete, "/api/meetings/"+m.ID, nil, "u1", email))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestIngestAndListEmails(t *testing.T) {
	st := setupDB(t)
	mailAgent := &fakeMailAgent{analysis: mail.Analysis{
		Intent: "Newsletter", UrgencyScore: 1, Priority: "P4", Summary: "Weekly digest.",
	}}
	e := newServer(t, st, &fakeChatAgent{}, mailAgent)

	uid, email, _ := registerUser(t, e)

	body := map[string]string{
		"message_id":    uuid.New().String(),
		"subject":       "Weekly digest",
		"sender":        "news@letter.com",
		"received_time": time.Now().UTC().Format(time.RFC3339),
		"body":          "This week in Go.",
	}

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, authedRequest(t, http.MethodPost, "/api/emails", body, uid, email))
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// same message id is a no-op
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, authedRequest(t, http.MethodPost, "/api/emails", body, uid, email))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, authedRequest(t, http.MethodGet, "/api/emails", nil, uid, email))
	require.Equal(t, http.StatusOK, rec.Code)

	var list []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "Weekly digest", list[0]["subject"])
	assert.Equal(t, "Weekly digest.", list[0]["summary"])
}
