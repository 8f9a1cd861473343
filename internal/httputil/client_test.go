package httputil

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClientSetsUserAgent(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{Timeout: 5 * time.Second})
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if gotUA != "vidfetch" {
		t.Errorf("User-Agent = %q, want vidfetch", gotUA)
	}
}

func TestClientTimeoutDefaults(t *testing.T) {
	client := NewClient(ClientConfig{})
	if client.client.Timeout != 60*time.Second {
		t.Errorf("timeout = %v, want 60s", client.client.Timeout)
	}
	client = NewClient(ClientConfig{Timeout: 3 * time.Minute})
	if client.client.Timeout != 3*time.Minute {
		t.Errorf("timeout = %v, want 3m", client.client.Timeout)
	}
}
