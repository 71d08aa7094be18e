package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

var testSecret = []byte("test-secret")

func newRouter(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", append(mw, func(c *gin.Context) {
		uid, _ := c.Get(CtxUserID)
		key, _ := c.Get(CtxAccessKey)
		c.JSON(http.StatusOK, gin.H{"user_id": uid, "key": key})
	})...)
	return r
}

func do(r *gin.Engine, token string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	r := newRouter(AuthMiddleware(testSecret))

	if w := do(r, "", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("no token: code = %d", w.Code)
	}
	tok, _, err := IssueToken(testSecret, 5, 10, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if w := do(r, tok, nil); w.Code != http.StatusOK {
		t.Errorf("valid token: code = %d body=%s", w.Code, w.Body)
	}
	other, _, _ := IssueToken([]byte("other"), 5, 10, time.Hour)
	if w := do(r, other, nil); w.Code != http.StatusUnauthorized {
		t.Errorf("foreign token: code = %d", w.Code)
	}
	expired, _, _ := IssueToken(testSecret, 5, 10, -time.Hour)
	if w := do(r, expired, nil); w.Code != http.StatusUnauthorized {
		t.Errorf("expired token: code = %d", w.Code)
	}
}

func TestOptionalAuth(t *testing.T) {
	r := newRouter(OptionalAuth(testSecret))

	w := do(r, "", map[string]string{"X-Access-Key": "abc"})
	if w.Code != http.StatusOK {
		t.Fatalf("anonymous: code = %d", w.Code)
	}
	if body := w.Body.String(); body != `{"key":"abc","user_id":null}` {
		t.Errorf("anonymous body = %s", body)
	}
	if w := do(r, "garbage", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("bad token: code = %d", w.Code)
	}
}

func TestRequireSharedToken(t *testing.T) {
	r := newRouter(RequireSharedToken("hook"))
	if w := do(r, "", map[string]string{"X-Delivery-Token": "hook"}); w.Code != http.StatusOK {
		t.Errorf("good token: code = %d", w.Code)
	}
	if w := do(r, "", map[string]string{"X-Delivery-Token": "nope"}); w.Code != http.StatusUnauthorized {
		t.Errorf("bad token: code = %d", w.Code)
	}
	open := newRouter(RequireSharedToken(""))
	if w := do(open, "", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("unconfigured: code = %d", w.Code)
	}
}
