package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mikey/phish-alert/internal/adapters/notify"
	"github.com/mikey/phish-alert/internal/adapters/store"
	"github.com/mikey/phish-alert/internal/adapters/watcher"
	"github.com/mikey/phish-alert/internal/core"
	"github.com/mikey/phish-alert/internal/presentation"
)

type handlers struct {
	deps   Dependencies
	logger *zap.Logger
}

// ScanURLRequest is the body of POST /api/scan/url
type ScanURLRequest struct {
	URL string `json:"url" binding:"required"`
}

// ScanEmailRequest is the body of POST /api/scan/email. When HTML is set the
// fields are extracted from it, otherwise the given fields are used.
type ScanEmailRequest struct {
	HTML    string `json:"html"`
	Sender  string `json:"sender"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// LookupResponse answers the active tab alert query
type LookupResponse struct {
	Record *core.Record `json:"record"`
	Alert  bool         `json:"alert"`
}

// detach returns the request context without its cancellation. A scan that
// has started always runs to completion, even when the client goes away.
func detach(c *gin.Context) context.Context {
	return context.WithoutCancel(c.Request.Context())
}

func errorJSON(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}

// health reports service and classifier status
// GET /health
func (h *handlers) health(c *gin.Context) {
	resp := gin.H{"status": "ok"}
	if h.deps.Health != nil {
		if err := h.deps.Health(c.Request.Context()); err != nil {
			resp["classifier"] = "unavailable"
			resp["classifier_error"] = err.Error()
		} else {
			resp["classifier"] = "ok"
		}
	}
	c.JSON(http.StatusOK, resp)
}

// navigation accepts a tab update and classifies it in the background
// POST /api/events/navigation
func (h *handlers) navigation(c *gin.Context) {
	var update watcher.TabUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		errorJSON(c, http.StatusBadRequest, "invalid tab update: "+err.Error())
		return
	}

	dispatched := h.deps.Navigation.HandleTabUpdate(update)
	c.JSON(http.StatusAccepted, gin.H{"dispatched": dispatched})
}

// scanURL classifies a URL and waits for the outcome
// POST /api/scan/url
func (h *handlers) scanURL(c *gin.Context) {
	var req ScanURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "url is required")
		return
	}

	out := h.deps.Pipeline.ProcessURL(detach(c), req.URL)
	c.JSON(http.StatusOK, out)
}

// scanEmail classifies the email shown on a captured page
// POST /api/scan/email
func (h *handlers) scanEmail(c *gin.Context) {
	var req ScanEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "invalid scan request: "+err.Error())
		return
	}

	var (
		out *core.Outcome
		err error
	)
	ctx := detach(c)
	if req.HTML != "" {
		out, err = h.deps.Content.Scan(ctx, req.HTML)
	} else {
		out, err = h.deps.Content.ScanFields(ctx, &core.EmailCandidate{
			Sender:  req.Sender,
			Subject: req.Subject,
			Body:    req.Body,
		})
	}

	if errors.Is(err, watcher.ErrNoContent) {
		c.JSON(http.StatusUnprocessableEntity, presentation.Toast{Message: presentation.ToastNoContent})
		return
	}
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, out)
}

// lists returns the four classification lists
// GET /api/lists
func (h *handlers) lists(c *gin.Context) {
	c.JSON(http.StatusOK, h.deps.Presenter.Lists())
}

// streamLists sends a lists event now and after every rebuild
// GET /api/lists/stream
func (h *handlers) streamLists(c *gin.Context) {
	ch, stop := h.deps.Presenter.Watch()
	defer stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case lists, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent("lists", lists)
			return true
		case <-ctx.Done():
			return false
		}
	})
}

// lookup returns the record for a URL and whether the popup should alert
// GET /api/records/lookup?url=
func (h *handlers) lookup(c *gin.Context) {
	url := c.Query("url")
	if url == "" {
		errorJSON(c, http.StatusBadRequest, "url is required")
		return
	}

	record, err := h.deps.Presenter.Lookup(c.Request.Context(), url)
	if errors.Is(err, store.ErrNotFound) {
		errorJSON(c, http.StatusNotFound, "no record for url")
		return
	}
	if err != nil {
		h.logger.Error("Lookup failed", zap.Error(err), zap.String("url", url))
		errorJSON(c, http.StatusInternalServerError, "lookup failed")
		return
	}

	c.JSON(http.StatusOK, LookupResponse{
		Record: record,
		Alert:  record.Verdict == core.VerdictBlacklist,
	})
}

// clearRecords removes every record, or those with the given verdict
// DELETE /api/records[?verdict=]
func (h *handlers) clearRecords(c *gin.Context) {
	ctx := c.Request.Context()

	var (
		toast presentation.Toast
		err   error
	)
	if v := c.Query("verdict"); v != "" {
		verdict, perr := core.ParseVerdict(v)
		if perr != nil {
			errorJSON(c, http.StatusBadRequest, perr.Error())
			return
		}
		toast, err = h.deps.Presenter.ClearVerdict(ctx, verdict)
	} else {
		toast, err = h.deps.Presenter.ClearAll(ctx)
	}

	if err != nil {
		h.logger.Error("Clear failed", zap.Error(err))
		errorJSON(c, http.StatusInternalServerError, "clear failed")
		return
	}
	c.JSON(http.StatusOK, toast)
}

// notifications returns notifications not yet clicked
// GET /api/notifications
func (h *handlers) notifications(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"notifications": h.deps.Inbox.Pending()})
}

// clickNotification acknowledges a notification and points at the popup
// POST /api/notifications/:id/click
func (h *handlers) clickNotification(c *gin.Context) {
	n, ok := h.deps.Inbox.Click(c.Param("id"))
	if !ok {
		errorJSON(c, http.StatusNotFound, "notification not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"open": notify.PopupPath, "notification": n})
}
