package httpapi

import (
	"bytes"
	"net/http"
	"testing"
)

func TestTasksRequireAuth(t *testing.T) {
	baseURL, client := startTestServer(t, nil, &staticResolver{token: "secret", user: testUser()})

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic secret"},
		{"bad token", "Bearer wrong"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodGet, baseURL+"/api/v1/tasks", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			resp, err := client.Do(req)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", resp.StatusCode)
			}
		})
	}
}

func TestCreateTaskValidation(t *testing.T) {
	// nil store: every case here must be rejected before persistence
	baseURL, client := startTestServer(t, nil, &staticResolver{token: "secret", user: testUser()})

	tests := []struct {
		name string
		body string
	}{
		{"bad json", `{`},
		{"unknown type", `{"type":"finance","category":"forecast","title":"q3"}`},
		{"missing category", `{"type":"marketing","title":"q3"}`},
		{"missing title", `{"type":"marketing","category":"blog_post"}`},
		{"bad priority", `{"type":"marketing","category":"blog_post","title":"q3","priority":"asap"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodPost, baseURL+"/api/v1/tasks", bytes.NewReader([]byte(tt.body)))
			req.Header.Set("Authorization", "Bearer secret")
			req.Header.Set("Content-Type", "application/json")

			resp, err := client.Do(req)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", resp.StatusCode)
			}
		})
	}
}
