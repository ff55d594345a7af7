package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/wishory-lab/aiworkground/internal/identity"
	"github.com/wishory-lab/aiworkground/internal/store"
)

// Needs a migrated Postgres via TEST_DATABASE_URL.
func TestTasksAPI_CreateThenGet(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	st, err := store.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	defer st.Close()

	token := "tok-" + uuid.NewString()
	owner, err := st.CreateUser(context.Background(), store.CreateUserParams{
		Email:    fmt.Sprintf("api-%s@example.com", uuid.NewString()),
		APIToken: token,
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	baseURL, client := startTestServer(t, st, identity.NewStoreResolver(st))

	// ---- Create ----
	createBody := []byte(`{"type":"marketing","category":"blog_post","title":"launch post","input_data":{"tone":"casual"},"priority":"high"}`)
	req, _ := http.NewRequest(http.MethodPost, baseURL+"/api/v1/tasks", bytes.NewReader(createBody))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("POST /tasks: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected 201, got %d body=%s", resp.StatusCode, string(b))
	}

	var created struct {
		Task store.Task `json:"task"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if created.Task.ID == uuid.Nil {
		t.Fatalf("expected non-empty task.id")
	}
	if created.Task.UserID != owner.ID {
		t.Fatalf("expected owner %s, got %s", owner.ID, created.Task.UserID)
	}
	if created.Task.Status != store.StatusPending {
		t.Fatalf("expected status pending, got %q", created.Task.Status)
	}
	if created.Task.Progress != 0 {
		t.Fatalf("expected progress 0, got %d", created.Task.Progress)
	}

	// ---- Get ----
	getReq, _ := http.NewRequest(http.MethodGet, baseURL+"/api/v1/tasks/"+created.Task.ID.String(), nil)
	getReq.Header.Set("Authorization", "Bearer "+token)

	getResp, err := client.Do(getReq)
	if err != nil {
		t.Fatalf("GET /tasks/{id}: %v", err)
	}
	defer getResp.Body.Close()

	if getResp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(getResp.Body)
		t.Fatalf("expected 200, got %d body=%s", getResp.StatusCode, string(b))
	}

	var got struct {
		Task store.Task `json:"task"`
	}
	if err := json.NewDecoder(getResp.Body).Decode(&got); err != nil {
		t.Fatalf("decode get response: %v", err)
	}
	if got.Task.ID != created.Task.ID {
		t.Fatalf("expected same id %s got %s", created.Task.ID, got.Task.ID)
	}
	if got.Task.Type != store.TypeMarketing || got.Task.Category != "blog_post" {
		t.Fatalf("unexpected task identity: %+v", got.Task)
	}
	if got.Task.Priority != store.PriorityHigh {
		t.Fatalf("expected priority high, got %q", got.Task.Priority)
	}

	// ---- Other users cannot see it ----
	otherToken := "tok-" + uuid.NewString()
	if _, err := st.CreateUser(context.Background(), store.CreateUserParams{
		Email:    fmt.Sprintf("other-%s@example.com", uuid.NewString()),
		APIToken: otherToken,
	}); err != nil {
		t.Fatalf("CreateUser (other): %v", err)
	}

	foreignReq, _ := http.NewRequest(http.MethodGet, baseURL+"/api/v1/tasks/"+created.Task.ID.String(), nil)
	foreignReq.Header.Set("Authorization", "Bearer "+otherToken)

	foreignResp, err := client.Do(foreignReq)
	if err != nil {
		t.Fatalf("GET /tasks/{id} as other user: %v", err)
	}
	defer foreignResp.Body.Close()

	if foreignResp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign task, got %d", foreignResp.StatusCode)
	}

	// ---- No results while pending ----
	resReq, _ := http.NewRequest(http.MethodGet, baseURL+"/api/v1/tasks/"+created.Task.ID.String()+"/results", nil)
	resReq.Header.Set("Authorization", "Bearer "+token)

	resResp, err := client.Do(resReq)
	if err != nil {
		t.Fatalf("GET /tasks/{id}/results: %v", err)
	}
	defer resResp.Body.Close()

	var results struct {
		Items []store.Result `json:"items"`
	}
	if err := json.NewDecoder(resResp.Body).Decode(&results); err != nil {
		t.Fatalf("decode results: %v", err)
	}
	if len(results.Items) != 0 {
		t.Fatalf("expected zero results for a pending task, got %d", len(results.Items))
	}
}
