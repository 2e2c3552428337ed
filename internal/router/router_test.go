package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	adminh "github.com/mindease/mindease-api/internal/handler/admin"
	authh "github.com/mindease/mindease-api/internal/handler/auth"
	bookingh "github.com/mindease/mindease-api/internal/handler/booking"
	chath "github.com/mindease/mindease-api/internal/handler/chat"
	"github.com/mindease/mindease-api/internal/handler/health"
	journalh "github.com/mindease/mindease-api/internal/handler/journal"
	moodh "github.com/mindease/mindease-api/internal/handler/mood"
	prometheush "github.com/mindease/mindease-api/internal/handler/prometheus"
	therapisth "github.com/mindease/mindease-api/internal/handler/therapist"
	"github.com/mindease/mindease-api/internal/handler/ws"
	"github.com/mindease/mindease-api/internal/middleware"
	"github.com/mindease/mindease-api/internal/model"
	"github.com/mindease/mindease-api/internal/realtime"
	"github.com/mindease/mindease-api/internal/repository/memory"
	"github.com/mindease/mindease-api/internal/service/admin"
	authsvc "github.com/mindease/mindease-api/internal/service/auth"
	"github.com/mindease/mindease-api/internal/service/booking"
	"github.com/mindease/mindease-api/internal/service/chat"
	"github.com/mindease/mindease-api/internal/service/companion"
	"github.com/mindease/mindease-api/internal/service/journal"
	"github.com/mindease/mindease-api/internal/service/mood"
	"github.com/mindease/mindease-api/internal/service/notification"
	"github.com/mindease/mindease-api/internal/service/therapist"
	"github.com/mindease/mindease-api/pkg/auth"
	"github.com/mindease/mindease-api/pkg/metrics"
	"github.com/mindease/mindease-api/pkg/security"
)

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Code    int             `json:"code"`
	Data    json.RawMessage `json:"data"`
}

type testAPI struct {
	server *httptest.Server
	hub    *realtime.Hub
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	log := zerolog.Nop()
	store := memory.NewStore()
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics("test", reg)

	hub := realtime.NewHub(log, m)
	notifier := notification.NewService(realtime.NewLocalEmitter(hub), log)
	jwtSvc := auth.NewJWTService("router-test-secret-0123456789", "mindease", time.Hour)

	directory := therapist.NewService(store.Users, store.Therapists, time.Minute, log)
	authSvc := authsvc.NewService(store.Users, store.Therapists, directory, jwtSvc, security.NewBcryptHasher(bcrypt.MinCost), log)
	bookingSvc := booking.NewService(store.Bookings, store.Users, store.Therapists, notifier, nil, m, log, booking.Options{})
	chatSvc := chat.NewService(store.Chat, store.Users, notifier, log)
	companionSvc := companion.NewService(store.Companion, nil, log)
	authMW := middleware.NewAuthMiddleware(jwtSvc)

	authHandler := authh.NewHandler(authSvc)
	therapistHandler := therapisth.NewHandler(directory)
	wsHandler := ws.NewHandler(hub, jwtSvc, chatSvc, ws.Config{Client: realtime.DefaultClientConfig()}, log)

	r, err := NewRouter(authMW, Handlers{
		Health:  health.NewHandler(nil),
		Metrics: prometheush.New(reg),
		Public:  []Handler{authHandler, therapistHandler, wsHandler},
		Protected: []Handler{
			bookingh.NewHandler(bookingSvc),
			journalh.NewHandler(journal.NewService(store.Journal)),
			moodh.NewHandler(mood.NewService(store.Mood)),
			chath.NewHandler(chatSvc, companionSvc),
			adminh.NewHandler(admin.NewService(store.Users, directory, log), authMW),
		},
	}, RouterConfig{
		Mode:          gin.TestMode,
		CORS:          middleware.DefaultCORSConfig(),
		MetricsPrefix: "test",
	}, reg)
	require.NoError(t, err)
	r.Setup()

	srv := httptest.NewServer(r.Engine())
	t.Cleanup(srv.Close)
	return &testAPI{server: srv, hub: hub}
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, a.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := a.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

// signup registers and logs in, returning the user id and token.
func (a *testAPI) signup(t *testing.T, email string, role model.Role) (string, string) {
	t.Helper()
	status, env := a.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]any{
		"email": email, "password": "password123", "firstName": "Test", "lastName": string(role), "role": role,
	})
	require.Equal(t, http.StatusCreated, status, env.Message)

	status, env = a.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]any{
		"email": email, "password": "password123",
	})
	require.Equal(t, http.StatusOK, status, env.Message)

	var login model.LoginResponse
	require.NoError(t, json.Unmarshal(env.Data, &login))
	return login.User.ID, login.AccessToken
}

func (a *testAPI) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(a.server.URL, "http") + "/api/v1/ws?token=" + token
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) realtime.Frame {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var f realtime.Frame
	require.NoError(t, wsjson.Read(ctx, conn, &f))
	return f
}

func send(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, wsjson.Write(ctx, conn, realtime.Frame{Event: event, Data: raw}))
}

func join(t *testing.T, conn *websocket.Conn, userID string) {
	t.Helper()
	send(t, conn, model.EventJoin, userID)
	f := read(t, conn)
	require.Equal(t, model.EventJoined, f.Event, string(f.Data))
}

func TestBookingLifecycleWithNotifications(t *testing.T) {
	api := newTestAPI(t)
	patientID, patientToken := api.signup(t, "pat@example.com", model.RolePatient)
	therapistID, therapistToken := api.signup(t, "ther@example.com", model.RoleTherapist)

	therapistConn := api.dial(t, therapistToken)
	join(t, therapistConn, therapistID)
	patientConn := api.dial(t, patientToken)
	join(t, patientConn, patientID)

	status, env := api.do(t, http.MethodPost, "/api/v1/bookings", patientToken, map[string]any{
		"therapistId": therapistID,
		"sessionDate": time.Now().Add(48 * time.Hour).UTC().Format(time.RFC3339),
		"duration":    60,
		"notes":       "first session",
	})
	require.Equal(t, http.StatusCreated, status, env.Message)
	var created model.Booking
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, model.BookingStatusPending, created.Status)

	f := read(t, therapistConn)
	require.Equal(t, model.EventNewBooking, f.Event)
	var notice model.BookingNotice
	require.NoError(t, json.Unmarshal(f.Data, &notice))
	assert.Equal(t, "booking", notice.Type)
	assert.Equal(t, "You have a new booking!", notice.Message)
	assert.Equal(t, created.ID, notice.Booking.ID)
	assert.Equal(t, "Test patient", notice.PatientName)

	status, env = api.do(t, http.MethodPatch, "/api/v1/bookings/"+created.ID, therapistToken, map[string]any{"status": "confirmed"})
	require.Equal(t, http.StatusOK, status, env.Message)

	f = read(t, patientConn)
	require.Equal(t, model.EventBookingUpdated, f.Event)
	require.NoError(t, json.Unmarshal(f.Data, &notice))
	assert.Equal(t, "Your booking is now confirmed", notice.Message)

	status, env = api.do(t, http.MethodPatch, "/api/v1/bookings/"+created.ID, therapistToken, map[string]any{"status": "pending"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "error", env.Status)
	assert.Equal(t, "cannot change status from confirmed to pending", env.Message)

	status, env = api.do(t, http.MethodGet, "/api/v1/bookings/"+created.ID, patientToken, nil)
	require.Equal(t, http.StatusOK, status)
	var current model.Booking
	require.NoError(t, json.Unmarshal(env.Data, &current))
	assert.Equal(t, model.BookingStatusConfirmed, current.Status)
}

func TestBookingRequestErrors(t *testing.T) {
	api := newTestAPI(t)
	_, patientToken := api.signup(t, "pat@example.com", model.RolePatient)
	therapistID, therapistToken := api.signup(t, "ther@example.com", model.RoleTherapist)

	status, _ := api.do(t, http.MethodGet, "/api/v1/bookings", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, env := api.do(t, http.MethodPost, "/api/v1/bookings", patientToken, map[string]any{
		"therapistId": therapistID,
		"sessionDate": "2000-01-01T10:00:00Z",
		"duration":    60,
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, http.StatusBadRequest, env.Code)

	status, _ = api.do(t, http.MethodPost, "/api/v1/bookings", therapistToken, map[string]any{
		"therapistId": therapistID,
		"sessionDate": time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
		"duration":    60,
	})
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = api.do(t, http.MethodPatch, "/api/v1/bookings/missing", therapistToken, map[string]any{"status": "done"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = api.do(t, http.MethodGet, "/api/v1/bookings/missing", patientToken, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, env = api.do(t, http.MethodGet, "/api/v1/bookings?upcoming=true", patientToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[]`, string(env.Data))
}

func TestSocketJoinRules(t *testing.T) {
	api := newTestAPI(t)
	patientID, patientToken := api.signup(t, "pat@example.com", model.RolePatient)
	therapistID, _ := api.signup(t, "ther@example.com", model.RoleTherapist)

	conn := api.dial(t, patientToken)

	send(t, conn, model.EventPrivateMessage, model.PrivateMessagePayload{RecipientID: therapistID, Message: "hi"})
	assert.Equal(t, model.EventError, read(t, conn).Event)

	send(t, conn, model.EventJoin, therapistID)
	assert.Equal(t, model.EventError, read(t, conn).Event)
	assert.False(t, api.hub.IsOnline(therapistID))

	join(t, conn, patientID)
	assert.True(t, api.hub.IsOnline(patientID))
}

func TestSocketRejectsMissingToken(t *testing.T) {
	api := newTestAPI(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(api.server.URL, "http") + "/api/v1/ws"
	_, resp, err := websocket.Dial(ctx, url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestPrivateMessageRouting(t *testing.T) {
	api := newTestAPI(t)
	patientID, patientToken := api.signup(t, "pat@example.com", model.RolePatient)
	therapistID, therapistToken := api.signup(t, "ther@example.com", model.RoleTherapist)

	patientConn := api.dial(t, patientToken)
	join(t, patientConn, patientID)
	therapistConn := api.dial(t, therapistToken)
	join(t, therapistConn, therapistID)

	send(t, patientConn, model.EventTyping, map[string]any{"recipientId": therapistID})
	f := read(t, therapistConn)
	require.Equal(t, model.EventUserTyping, f.Event)
	assert.Contains(t, string(f.Data), patientID)

	send(t, patientConn, model.EventPrivateMessage, model.PrivateMessagePayload{RecipientID: therapistID, Message: "see you soon"})
	f = read(t, therapistConn)
	require.Equal(t, model.EventNewMessage, f.Event)
	var msg model.ChatMessage
	require.NoError(t, json.Unmarshal(f.Data, &msg))
	assert.Equal(t, "see you soon", msg.Content)
	assert.Equal(t, patientID, msg.SenderID)

	status, env := api.do(t, http.MethodGet, "/api/v1/chat/messages/"+patientID, therapistToken, nil)
	require.Equal(t, http.StatusOK, status)
	var conv []model.ChatMessage
	require.NoError(t, json.Unmarshal(env.Data, &conv))
	require.Len(t, conv, 1)
	assert.Equal(t, msg.ID, conv[0].ID)
}

func TestHealthAndMetrics(t *testing.T) {
	api := newTestAPI(t)

	resp, err := api.server.Client().Get(api.server.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = api.server.Client().Get(api.server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body bytes.Buffer
	_, err = body.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, body.String(), "test_http_requests_total")
}

func TestDirectoryListsNewlyRegisteredTherapist(t *testing.T) {
	api := newTestAPI(t)

	status, env := api.do(t, http.MethodGet, "/api/v1/therapists", "", nil)
	require.Equal(t, http.StatusOK, status)
	var list []model.Therapist
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Empty(t, list)

	therapistID, _ := api.signup(t, "new-ther@example.com", model.RoleTherapist)

	status, env = api.do(t, http.MethodGet, "/api/v1/therapists", "", nil)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, therapistID, list[0].ID)
}
