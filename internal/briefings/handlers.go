package briefings

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jimdaga/localbrief/internal/models"
)

// Generator is the service surface the HTTP handlers use.
type Generator interface {
	CreateSnapshot(ctx context.Context, in SnapshotInput) (*models.Snapshot, error)
	Get(ctx context.Context, snapshotID string) (*Result, error)
	Peek(ctx context.Context, snapshotID string) (*View, error)
}

// ReadyWaiter delivers ready notifications for a snapshot.
type ReadyWaiter interface {
	Subscribe(key string) (<-chan struct{}, func())
}

// DefaultMaxWait caps how long the wait endpoint holds a request open.
const DefaultMaxWait = 25 * time.Second

// RegisterRoutes mounts the snapshot and briefing endpoints.
func RegisterRoutes(r gin.IRouter, svc Generator, waiter ReadyWaiter) {
	r.POST("/snapshots", CreateSnapshotHandler(svc))
	r.GET("/briefings/:snapshot_id", GetBriefingHandler(svc))
	r.GET("/briefings/:snapshot_id/wait", WaitBriefingHandler(svc, waiter, DefaultMaxWait))
}

// CreateSnapshotHandler records a snapshot and returns its id.
func CreateSnapshotHandler(svc Generator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in SnapshotInput
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		snap, err := svc.CreateSnapshot(c.Request.Context(), in)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, snap)
	}
}

// GetBriefingHandler returns the briefing, generating it if needed. While
// another process holds the generation it answers 202 with Retry-After. A
// failed write answers 500 with the fetched data still in the body.
func GetBriefingHandler(svc Generator) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := svc.Get(c.Request.Context(), c.Param("snapshot_id"))
		var perr *PersistenceError
		if errors.As(err, &perr) && res != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": perr.Error(), "result": res})
			return
		}
		if err != nil {
			writeError(c, err)
			return
		}
		writeResult(c, res)
	}
}

// WaitBriefingHandler long-polls until the briefing is ready or the wait
// expires. The timeout query parameter ("25s" or bare seconds) is capped at maxWait.
func WaitBriefingHandler(svc Generator, waiter ReadyWaiter, maxWait time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("snapshot_id")
		wait := maxWait
		if v := c.Query("timeout"); v != "" {
			d, err := parseWait(v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "timeout must be a duration such as 25s"})
				return
			}
			if d < wait {
				wait = d
			}
		}

		var ready <-chan struct{}
		if waiter != nil {
			ch, cancel := waiter.Subscribe(id)
			defer cancel()
			ready = ch
		}

		// Subscribe before the first read so a publish in between is not lost.
		if view, err := svc.Peek(c.Request.Context(), id); err != nil {
			writeError(c, err)
			return
		} else if view != nil {
			c.JSON(http.StatusOK, &Result{Status: StatusReady, SnapshotID: id, Briefing: view})
			return
		}

		timer := time.NewTimer(wait)
		defer timer.Stop()

		select {
		case <-ready:
		case <-timer.C:
		case <-c.Request.Context().Done():
			return
		}

		view, err := svc.Peek(c.Request.Context(), id)
		if err != nil {
			writeError(c, err)
			return
		}
		if view == nil {
			writeResult(c, &Result{Status: StatusInProgress, SnapshotID: id, RetryAfter: 2 * time.Second})
			return
		}
		c.JSON(http.StatusOK, &Result{Status: StatusReady, SnapshotID: id, Briefing: view})
	}
}

func parseWait(v string) (time.Duration, error) {
	if d, err := time.ParseDuration(v); err == nil && d >= 0 {
		return d, nil
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0, errors.New("invalid timeout")
	}
	return time.Duration(secs) * time.Second, nil
}

func writeResult(c *gin.Context, res *Result) {
	if res.Status == StatusInProgress {
		if res.RetryAfter > 0 {
			c.Header("Retry-After", strconv.Itoa(int(res.RetryAfter.Round(time.Second)/time.Second)))
		}
		c.JSON(http.StatusAccepted, res)
		return
	}
	c.JSON(http.StatusOK, res)
}

func writeError(c *gin.Context, err error) {
	var pre *PreconditionError
	switch {
	case errors.Is(err, ErrSnapshotNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &pre):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "field": pre.Field})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "request ended before the briefing was ready"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
