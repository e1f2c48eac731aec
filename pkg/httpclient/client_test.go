package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHTTPClient_SetsProfileHeaders(t *testing.T) {
	tests := []struct {
		name       string
		clientType ClientType
		wantUA     string
	}{
		{name: "browser", clientType: BrowserClient, wantUA: "Mozilla/5.0"},
		{name: "cloudflare", clientType: CloudflareClient, wantUA: "curl/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotUA string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotUA = r.Header.Get("User-Agent")
				w.Write([]byte("ok"))
			}))
			defer server.Close()

			body, err := NewClient(tt.clientType).GetBody(context.Background(), server.URL)
			if err != nil {
				t.Fatalf("GetBody error: %v", err)
			}
			if string(body) != "ok" {
				t.Errorf("body = %q, want ok", body)
			}
			if !strings.HasPrefix(gotUA, tt.wantUA) {
				t.Errorf("User-Agent = %q, want prefix %q", gotUA, tt.wantUA)
			}
		})
	}
}

func TestHTTPClient_GetBody_NonOK(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := NewClient(BrowserClient).GetBody(context.Background(), server.URL)
	if err == nil {
		t.Fatal("Expected error for 404 status, got nil")
	}
	if !strings.Contains(err.Error(), "unexpected status code") {
		t.Errorf("Expected error about status code, got: %v", err)
	}
}

func TestHTTPClient_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte("late"))
	}))
	defer server.Close()

	client := NewClientWithTimeout(BrowserClient, 20*time.Millisecond)
	if _, err := client.GetBody(context.Background(), server.URL); err == nil {
		t.Fatal("Expected timeout error, got nil")
	}
}
