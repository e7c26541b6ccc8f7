package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bnema/webview-content-blocker/internal/blocker"
	"github.com/bnema/webview-content-blocker/internal/logging"
	"github.com/bnema/webview-content-blocker/internal/models"
	"github.com/bnema/webview-content-blocker/internal/registry"
)

const maxPayloadSize = 16 << 20

// SessionView is the wire form of a session
type SessionView struct {
	ID      string    `json:"id"`
	Label   string    `json:"label,omitempty"`
	Target  string    `json:"target,omitempty"`
	Rules   int       `json:"rules"`
	Created time.Time `json:"created"`
}

// CreateSessionRequest is the body of POST /sessions
type CreateSessionRequest struct {
	Label string                  `json:"label"`
	Rules []models.RuleDefinition `json:"rules"`
}

// CheckRequest is the body of POST /sessions/:id/check. ResourceType wins
// over ContentType; with neither the request is classified by a HEAD probe.
type CheckRequest struct {
	URL          string              `json:"url" binding:"required"`
	Method       string              `json:"method"`
	Headers      map[string]string   `json:"headers"`
	ResourceType models.ResourceType `json:"resource_type"`
	ContentType  string              `json:"content_type"`
	// Body is base64 in JSON
	Body []byte `json:"body"`
}

// CheckResult is the answer of POST /sessions/:id/check
type CheckResult struct {
	Terminal bool              `json:"terminal"`
	Response *blocker.Response `json:"response,omitempty"`
}

func view(s *registry.Session) SessionView {
	return SessionView{
		ID:      s.ID,
		Label:   s.Label,
		Target:  s.Target,
		Rules:   s.Handler.Len(),
		Created: s.Created,
	}
}

func abort(c *gin.Context, status int, err error) {
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": len(s.registry.List())})
}

func (s *Server) session(c *gin.Context) (*registry.Session, bool) {
	sess, err := s.registry.Get(c.Param("id"))
	if err != nil {
		abort(c, http.StatusNotFound, err)
		return nil, false
	}
	return sess, true
}

func (s *Server) listSessions(c *gin.Context) {
	sessions := s.registry.List()
	out := make([]SessionView, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, view(sess))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) createSession(c *gin.Context) {
	var req CreateSessionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			abort(c, http.StatusBadRequest, err)
			return
		}
	}

	sess, err := s.registry.Create(req.Label, "", nil, nil)
	if err != nil {
		abort(c, http.StatusServiceUnavailable, err)
		return
	}
	if err := sess.Load(req.Rules); err != nil {
		_ = s.registry.Remove(sess.ID)
		abort(c, http.StatusBadRequest, err)
		return
	}
	c.JSON(http.StatusCreated, view(sess))
}

func (s *Server) getSession(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, view(sess))
}

func (s *Server) deleteSession(c *gin.Context) {
	err := s.registry.Remove(c.Param("id"))
	switch {
	case errors.Is(err, registry.ErrNotFound):
		abort(c, http.StatusNotFound, err)
	case err != nil:
		// the session is gone, only its cleanup failed
		s.log.Warn().Err(err).Str("session", c.Param("id")).Msg("session cleanup failed")
		c.Status(http.StatusNoContent)
	default:
		c.Status(http.StatusNoContent)
	}
}

func (s *Server) getRules(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sess.Handler.Definitions())
}

// putRules replaces the rule list wholesale. The body is a JSON payload, or
// YAML when the content type says so.
func (s *Server) putRules(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPayloadSize))
	if err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	format := models.FormatJSON
	if strings.Contains(c.ContentType(), "yaml") {
		format = models.FormatYAML
	}

	defs, err := models.DecodeRuleDefinitions(body, format)
	if err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	if err := sess.Load(defs); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	c.JSON(http.StatusOK, view(sess))
}

func (s *Server) check(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}

	var req CheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	if req.ResourceType != "" && !req.ResourceType.Valid() {
		abort(c, http.StatusBadRequest, fmt.Errorf("%w: %s", blocker.ErrUnknownResourceType, req.ResourceType))
		return
	}

	// the evaluation ends with the call or with the session
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	stop := context.AfterFunc(sess.Context(), cancel)
	defer stop()
	ctx = logging.WithSession(logging.WithContext(ctx, s.log), sess.ID)

	in := blocker.Request{URL: req.URL, Method: req.Method, Headers: req.Headers, Body: req.Body}
	var resp *blocker.Response
	var err error
	switch {
	case req.ResourceType != "":
		resp, err = sess.Handler.CheckURL(ctx, in, req.ResourceType)
	case req.ContentType != "":
		resp, err = sess.Handler.CheckResponse(ctx, in, req.ContentType)
	default:
		resp, err = sess.Handler.CheckRequest(ctx, in)
	}
	if err != nil {
		abort(c, http.StatusUnprocessableEntity, err)
		return
	}
	c.JSON(http.StatusOK, CheckResult{Terminal: resp != nil, Response: resp})
}
