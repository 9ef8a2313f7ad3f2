package assistant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/camarena/rifamaster/internal/domain"
	"github.com/camarena/rifamaster/internal/observability"
)

func testSnapshot() domain.Snapshot {
	return domain.Snapshot{
		AvailableCount: 95,
		ReservedCount:  2,
		PaidCount:      3,
		Price:          5000,
		TotalRaised:    15000,
		TotalPending:   10000,
		TopBuyers:      []domain.BuyerCount{{Name: "Carlos", Count: 3}},
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	c := New("test-key", "test-model", observability.NewLogger())
	c.baseURL = server.URL
	c.httpClient = server.Client()
	return c
}

func TestAskSuccess(t *testing.T) {
	var gotPath, gotKey string
	var gotReq generateRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		json.NewDecoder(r.Body).Decode(&gotReq)
		json.NewEncoder(w).Encode(generateResponse{
			Candidates: []struct {
				Content content `json:"content"`
			}{{Content: content{Parts: []part{{Text: "  95 tickets are still available.  "}}}}},
		})
	})

	answer := c.Ask(context.Background(), testSnapshot(), "how many left?")
	if answer != "95 tickets are still available." {
		t.Errorf("unexpected answer %q", answer)
	}
	if gotPath != "/models/test-model:generateContent" {
		t.Errorf("unexpected path %q", gotPath)
	}
	if gotKey != "test-key" {
		t.Errorf("unexpected api key %q", gotKey)
	}

	if gotReq.SystemInstruction == nil || len(gotReq.SystemInstruction.Parts) == 0 {
		t.Fatal("expected a system instruction")
	}
	prompt := gotReq.SystemInstruction.Parts[0].Text
	for _, want := range []string{"Available: 95", "Ticket price: $5000", "Carlos (3)"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("expected prompt to contain %q:\n%s", want, prompt)
		}
	}
	if len(gotReq.Contents) != 1 || gotReq.Contents[0].Parts[0].Text != "how many left?" {
		t.Errorf("unexpected contents: %+v", gotReq.Contents)
	}
}

func TestAskFallsBack(t *testing.T) {
	t.Run("no api key", func(t *testing.T) {
		c := New("", "test-model", observability.NewLogger())
		if got := c.Ask(context.Background(), testSnapshot(), "q"); got != Fallback {
			t.Errorf("expected fallback, got %q", got)
		}
	})

	t.Run("server error", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "quota exceeded", http.StatusTooManyRequests)
		})
		if got := c.Ask(context.Background(), testSnapshot(), "q"); got != Fallback {
			t.Errorf("expected fallback, got %q", got)
		}
	})

	t.Run("no candidates", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"candidates":[]}`))
		})
		if got := c.Ask(context.Background(), testSnapshot(), "q"); got != Fallback {
			t.Errorf("expected fallback, got %q", got)
		}
	})

	t.Run("blank answer", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"   "}]}}]}`))
		})
		if got := c.Ask(context.Background(), testSnapshot(), "q"); got != Fallback {
			t.Errorf("expected fallback, got %q", got)
		}
	})

	t.Run("unreachable server", func(t *testing.T) {
		c := New("test-key", "test-model", observability.NewLogger())
		c.baseURL = "http://127.0.0.1:1"
		if got := c.Ask(context.Background(), testSnapshot(), "q"); got != Fallback {
			t.Errorf("expected fallback, got %q", got)
		}
	})
}
