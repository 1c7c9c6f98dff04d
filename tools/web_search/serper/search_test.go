package serper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSearchMapsOrganicResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-KEY") != "k" {
			t.Errorf("missing api key header")
		}
		_, _ = w.Write([]byte(`{"organic":[
			{"title":"One","link":"https://one.example","snippet":"first"},
			{"title":"Two","link":"https://two.example","snippet":"second"}
		]}`))
	}))
	defer srv.Close()

	out, err := Search{ApiKey: "k", Endpoint: srv.URL}.Search(context.Background(), "acme", "advanced", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(out) != 2 || out[0].URL != "https://one.example" || out[1].Content != "second" {
		t.Fatalf("unexpected results %+v", out)
	}
	if out[0].Score == nil || out[1].Score == nil || *out[0].Score <= *out[1].Score {
		t.Fatalf("expected descending position scores")
	}
}

func TestSearchStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()
	if _, err := (Search{ApiKey: "k", Endpoint: srv.URL}).Search(context.Background(), "q", "", 3); err == nil {
		t.Fatalf("expected error on 403")
	}
}
