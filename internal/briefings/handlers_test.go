package briefings

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jimdaga/localbrief/internal/models"
)

type stubGenerator struct {
	mu      sync.Mutex
	result  *Result
	err     error
	view    *View
	peeks   int
	created SnapshotInput
}

func (g *stubGenerator) CreateSnapshot(_ context.Context, in SnapshotInput) (*models.Snapshot, error) {
	g.created = in
	if g.err != nil {
		return nil, g.err
	}
	return &models.Snapshot{ID: "snap-1", City: in.City, Timezone: in.Timezone}, nil
}

func (g *stubGenerator) Get(context.Context, string) (*Result, error) {
	return g.result, g.err
}

func (g *stubGenerator) Peek(context.Context, string) (*View, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.peeks++
	// The first peek sees nothing; later peeks see the view.
	if g.peeks == 1 {
		return nil, g.err
	}
	return g.view, g.err
}

type chanWaiter struct {
	ch chan struct{}
}

func (w *chanWaiter) Subscribe(string) (<-chan struct{}, func()) {
	return w.ch, func() {}
}

func newRouter(svc Generator, waiter ReadyWaiter, maxWait time.Duration) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/snapshots", CreateSnapshotHandler(svc))
	r.GET("/briefings/:snapshot_id", GetBriefingHandler(svc))
	r.GET("/briefings/:snapshot_id/wait", WaitBriefingHandler(svc, waiter, maxWait))
	return r
}

func serve(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateSnapshotHandler(t *testing.T) {
	g := &stubGenerator{}
	r := newRouter(g, nil, time.Second)

	w := serve(r, http.MethodPost, "/snapshots", `{"city":"Frisco","state":"TX","timezone":"America/Chicago"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if g.created.City != "Frisco" {
		t.Errorf("bound input = %+v", g.created)
	}

	w = serve(r, http.MethodPost, "/snapshots", `{"state":"TX"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing city status = %d", w.Code)
	}

	g.err = &PreconditionError{Field: "timezone", Reason: "is not valid"}
	w = serve(r, http.MethodPost, "/snapshots", `{"city":"Frisco","timezone":"Nowhere"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("precondition status = %d", w.Code)
	}
}

func TestGetBriefingHandlerStatuses(t *testing.T) {
	view := &View{SnapshotID: "snap-1", News: CategoryResult{Items: []byte(`[{"headline":"x"}]`)}}

	tests := []struct {
		name       string
		result     *Result
		err        error
		wantStatus int
		wantHeader string
	}{
		{"ready", &Result{Status: StatusReady, SnapshotID: "snap-1", Briefing: view}, nil, http.StatusOK, ""},
		{"in progress", &Result{Status: StatusInProgress, SnapshotID: "snap-1", RetryAfter: 2 * time.Second}, nil, http.StatusAccepted, "2"},
		{"not found", nil, ErrSnapshotNotFound, http.StatusNotFound, ""},
		{"precondition", nil, &PreconditionError{SnapshotID: "snap-1", Field: "city", Reason: "is missing"}, http.StatusBadRequest, ""},
		{"persist failed", &Result{Status: StatusReady, SnapshotID: "snap-1", Briefing: view}, &PersistenceError{SnapshotID: "snap-1", Err: errors.New("db")}, http.StatusInternalServerError, ""},
		{"internal", nil, errors.New("boom"), http.StatusInternalServerError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRouter(&stubGenerator{result: tt.result, err: tt.err}, nil, time.Second)
			w := serve(r, http.MethodGet, "/briefings/snap-1", "")
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantHeader != "" && w.Header().Get("Retry-After") != tt.wantHeader {
				t.Errorf("Retry-After = %q", w.Header().Get("Retry-After"))
			}
		})
	}
}

func TestGetBriefingHandlerBody(t *testing.T) {
	view := buildView("snap-1", nil, map[string]CategoryResult{
		models.ColumnNews: {Items: []byte(`[{"headline":"x"}]`), Provider: "news-a"},
	}, time.Date(2026, 10, 17, 15, 0, 0, 0, time.UTC))
	r := newRouter(&stubGenerator{result: &Result{Status: StatusReady, SnapshotID: "snap-1", Briefing: view}}, nil, time.Second)

	w := serve(r, http.MethodGet, "/briefings/snap-1", "")
	var body struct {
		Status   string                     `json:"status"`
		Briefing map[string]json.RawMessage `json:"briefing"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ready" {
		t.Errorf("status = %q", body.Status)
	}
	for _, key := range []string{"traffic_conditions", "events", "news", "school_closures", "weather_current", "weather_forecast", "airport_conditions"} {
		if _, ok := body.Briefing[key]; !ok {
			t.Errorf("briefing is missing %q", key)
		}
	}
}

func TestWaitBriefingHandler(t *testing.T) {
	view := &View{SnapshotID: "snap-1"}

	t.Run("ready notification", func(t *testing.T) {
		waiter := &chanWaiter{ch: make(chan struct{})}
		g := &stubGenerator{view: view}
		r := newRouter(g, waiter, 5*time.Second)

		go func() {
			time.Sleep(20 * time.Millisecond)
			close(waiter.ch)
		}()
		w := serve(r, http.MethodGet, "/briefings/snap-1/wait", "")
		if w.Code != http.StatusOK {
			t.Errorf("status = %d, body %s", w.Code, w.Body.String())
		}
	})

	t.Run("timeout", func(t *testing.T) {
		g := &stubGenerator{}
		r := newRouter(g, &chanWaiter{ch: make(chan struct{})}, 5*time.Second)

		w := serve(r, http.MethodGet, "/briefings/snap-1/wait?timeout=0s", "")
		if w.Code != http.StatusAccepted {
			t.Errorf("status = %d, want 202", w.Code)
		}
	})

	t.Run("bad timeout", func(t *testing.T) {
		r := newRouter(&stubGenerator{}, nil, time.Second)
		w := serve(r, http.MethodGet, "/briefings/snap-1/wait?timeout=soon", "")
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})
}
