package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"recordsdesk/internal/config"
	"recordsdesk/internal/delivery"
	"recordsdesk/internal/handlers"
	"recordsdesk/internal/middleware"
	"recordsdesk/internal/models"
	"recordsdesk/internal/realtime"
	"recordsdesk/internal/services"
	"recordsdesk/internal/testutil"
)

var secret = []byte("routes-test-secret")

type stubGateway struct{ n int }

func (g *stubGateway) Send(_ context.Context, out delivery.Outbound) (delivery.Receipt, error) {
	g.n++
	return delivery.Receipt{ID: fmt.Sprintf("stub-%d", g.n), Status: models.DeliveryPending}, nil
}

type api struct {
	t      *testing.T
	router *gin.Engine
	fx     *testutil.Fixture
}

func newAPI(t *testing.T) *api {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := testutil.NewTestStore(t)
	fx := testutil.Seed(t, store)

	auth := services.NewAuthService(store)
	hash, err := auth.HashPassword("hunter22")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.DB().Exec("UPDATE users SET password_hash = ? WHERE id = ?", hash, fx.Owner.ID); err != nil {
		t.Fatal(err)
	}

	deps := services.Deps{
		Store:     store,
		Gateway:   &stubGateway{},
		Delivery:  config.DeliveryConfig{ReplyDomain: "desk.example", ReplyPrefix: "requests"},
		FilesRoot: t.TempDir(),
	}
	life := services.NewLifecycleService(deps)
	tasks := services.NewTaskService(deps)
	h := Handlers{
		Auth:           handlers.NewAuthHandler(auth, services.NewEntitlements(store), life, secret, time.Hour),
		Requests:       handlers.NewRequestHandler(life),
		Communications: handlers.NewCommunicationHandler(life, services.NewDeliveryService(deps)),
		Tasks:          handlers.NewTaskHandler(tasks, life, realtime.NewTaskHub()),
		Crowdfunds:     handlers.NewCrowdfundHandler(services.NewCrowdfundService(deps), life),
	}
	r := gin.New()
	SetupRoutes(r, h, Options{JWTSecret: secret, DeliveryToken: "hook-token"})
	return &api{t: t, router: r, fx: fx}
}

func (a *api) do(method, path, token string, body any, header ...string) (*httptest.ResponseRecorder, map[string]any) {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			a.t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	var out map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func (a *api) token(u *models.User) string {
	a.t.Helper()
	tok, _, err := middleware.IssueToken(secret, u.ID, u.RoleID, time.Hour)
	if err != nil {
		a.t.Fatal(err)
	}
	return tok
}

func TestLoginAndSubmitFlow(t *testing.T) {
	a := newAPI(t)

	w, _ := a.do(http.MethodPost, "/login", "", map[string]string{"username": "owner", "password": "wrong"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad password: code = %d", w.Code)
	}
	w, _ = a.do(http.MethodPost, "/login", "", map[string]string{"username": "owner"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing password: code = %d", w.Code)
	}
	w, body := a.do(http.MethodPost, "/login", "", map[string]string{"username": "owner", "password": "hunter22"})
	if w.Code != http.StatusOK {
		t.Fatalf("login: code = %d body=%s", w.Code, w.Body)
	}
	token, _ := body["access_token"].(string)
	if token == "" {
		t.Fatalf("no token in %v", body)
	}

	w, body = a.do(http.MethodPost, "/requests", token, services.DraftInput{Title: "Stop data", AgencyID: a.fx.Agency.ID})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: code = %d body=%s", w.Code, w.Body)
	}
	id := int64(body["id"].(float64))

	if w, _ := a.do(http.MethodGet, fmt.Sprintf("/requests/%d", id), "", nil); w.Code != http.StatusForbidden {
		t.Fatalf("anonymous draft read: code = %d", w.Code)
	}
	w, body = a.do(http.MethodPatch, fmt.Sprintf("/requests/%d", id), token, map[string]string{"title": "Stop data 2025"})
	if w.Code != http.StatusOK || body["title"] != "Stop data 2025" {
		t.Fatalf("edit draft: code = %d body=%s", w.Code, w.Body)
	}

	w, body = a.do(http.MethodPost, fmt.Sprintf("/requests/%d/submit", id), token, nil)
	if w.Code != http.StatusOK || body["status"] != string(models.StatusSubmitted) {
		t.Fatalf("submit: code = %d body=%s", w.Code, w.Body)
	}
	w, body = a.do(http.MethodPost, fmt.Sprintf("/requests/%d/submit", id), token, nil)
	if w.Code != http.StatusOK || body["applied"] != false {
		t.Fatalf("repeat submit: code = %d body=%s", w.Code, w.Body)
	}

	w, body = a.do(http.MethodGet, fmt.Sprintf("/requests/%d", id), "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("public get: code = %d body=%s", w.Code, w.Body)
	}
	comms, _ := body["communications"].([]any)
	if len(comms) != 1 || body["status_label"] != "Processing" {
		t.Errorf("detail = %v", body)
	}
	receipt := comms[0].(map[string]any)["receipt"]

	w, _ = a.do(http.MethodPost, "/delivery/events", "", map[string]any{"receipt": receipt, "status": "good"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("unsigned delivery event: code = %d", w.Code)
	}
	w, body = a.do(http.MethodPost, fmt.Sprintf("/requests/%d/notes", id), token, map[string]string{"text": "follow up in May"})
	if w.Code != http.StatusCreated || body["note"] != "follow up in May" {
		t.Fatalf("add note: code = %d body=%s", w.Code, w.Body)
	}

	w, body = a.do(http.MethodPost, "/delivery/events", "", map[string]any{"receipt": receipt, "status": "good"}, "X-Delivery-Token", "hook-token")
	if w.Code != http.StatusOK || body["status"] != "good" {
		t.Fatalf("delivery event: code = %d body=%s", w.Code, w.Body)
	}
	w, _ = a.do(http.MethodPost, "/delivery/events", "", map[string]any{"receipt": receipt, "status": "pending"}, "X-Delivery-Token", "hook-token")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("non-final status: code = %d", w.Code)
	}
}

func TestProtectedRoutes(t *testing.T) {
	a := newAPI(t)
	owner := a.token(a.fx.Owner)
	staff := a.token(a.fx.Staff)

	if w, _ := a.do(http.MethodPost, "/requests", "", services.DraftInput{Title: "x"}); w.Code != http.StatusUnauthorized {
		t.Errorf("anonymous create: code = %d", w.Code)
	}
	if w, _ := a.do(http.MethodGet, "/tasks", owner, nil); w.Code != http.StatusForbidden {
		t.Errorf("owner task list: code = %d", w.Code)
	}
	w, body := a.do(http.MethodGet, "/tasks?kind=flagged", staff, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("staff task list: code = %d body=%s", w.Code, w.Body)
	}
	if _, ok := body["items"]; !ok {
		t.Errorf("task list body = %v", body)
	}
	if w, _ := a.do(http.MethodGet, "/tasks?kind=bogus", staff, nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad kind: code = %d", w.Code)
	}
	if w, _ := a.do(http.MethodPost, "/requests/abc/submit", owner, nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad id: code = %d", w.Code)
	}
	if w, _ := a.do(http.MethodGet, "/requests/999", owner, nil); w.Code != http.StatusNotFound {
		t.Errorf("missing request: code = %d", w.Code)
	}
	if w, _ := a.do(http.MethodPost, "/users", owner, services.NewUserInput{Username: "x", Password: "longenough"}); w.Code != http.StatusForbidden {
		t.Errorf("owner creates user: code = %d", w.Code)
	}
	w, body = a.do(http.MethodGet, "/me", owner, nil)
	if w.Code != http.StatusOK || int64(body["UserID"].(float64)) != a.fx.Owner.ID {
		t.Errorf("me: code = %d body=%s", w.Code, w.Body)
	}
}
