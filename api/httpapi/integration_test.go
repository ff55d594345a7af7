package httpapi

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/wishory-lab/aiworkground/internal/identity"
	"github.com/wishory-lab/aiworkground/internal/store"
	"go.uber.org/zap"
)

// staticResolver accepts a single token for tests.
type staticResolver struct {
	token string
	user  *store.User
}

func (r *staticResolver) ResolveCaller(_ context.Context, credential string) (*store.User, error) {
	if r.user != nil && credential == r.token {
		return r.user, nil
	}
	return nil, identity.ErrUnauthorized
}

func testUser() *store.User {
	return &store.User{
		ID:               uuid.New(),
		Email:            "dev@example.com",
		SubscriptionTier: "free",
	}
}

func startTestServer(t *testing.T, st *store.Store, resolver identity.Resolver) (string, *http.Client) {
	t.Helper()

	logger := zap.NewNop()
	s := NewServer(Config{Port: "0"}, logger, st, nil, resolver)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		_ = s.httpServer.Serve(ln)
	}()

	return fmt.Sprintf("http://%s", ln.Addr().String()), &http.Client{Timeout: 2 * time.Second}
}

func TestHealthEndpoint(t *testing.T) {
	baseURL, client := startTestServer(t, nil, &staticResolver{})

	resp, err := client.Get(baseURL + "/api/v1/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if string(body) != "ok" {
		t.Fatalf("expected body 'ok', got %q", string(body))
	}
}
