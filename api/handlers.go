package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	entitle "github.com/xraph/entitle"
	"github.com/xraph/entitle/entitlement"
	"github.com/xraph/entitle/generate"
	"github.com/xraph/entitle/history"
	"github.com/xraph/entitle/identity"
	"github.com/xraph/entitle/plan"
)

// subscriptionResponse is the flat subscription shape the extension reads.
type subscriptionResponse struct {
	SubjectID           string      `json:"subject_id"`
	Email               string      `json:"email,omitempty"`
	PlanID              string      `json:"plan_id"`
	PlanName            string      `json:"plan_name"`
	RequestsUsed        int         `json:"requests_used"`
	MaxRequests         int         `json:"max_requests"`
	RequestsRemaining   int         `json:"requests_remaining"`
	MaxChars            int         `json:"max_chars"`
	AISettingsEnabled   bool        `json:"ai_settings_enabled"`
	HistoryEnabled      bool        `json:"history_enabled"`
	Modes               []plan.Mode `json:"modes,omitempty"`
	CycleAnchor         string      `json:"cycle_anchor"`
	SubscriptionExpires *time.Time  `json:"subscription_expires"`
}

func newSubscriptionResponse(v *entitlement.View) subscriptionResponse {
	return subscriptionResponse{
		SubjectID:           v.SubjectID,
		Email:               v.Email,
		PlanID:              v.Plan.ID,
		PlanName:            v.Plan.Name,
		RequestsUsed:        v.RequestsUsed,
		MaxRequests:         v.Plan.MaxRequests,
		RequestsRemaining:   v.Remaining,
		MaxChars:            v.Plan.MaxChars,
		AISettingsEnabled:   v.Plan.AISettingsEnabled,
		HistoryEnabled:      v.HistoryEnabled,
		Modes:               v.Plan.Modes,
		CycleAnchor:         v.CycleAnchor,
		SubscriptionExpires: v.SubscriptionExpires,
	}
}

// settingsPayload uses the field names of the extension's settings page.
type settingsPayload struct {
	SimpleLevel   int `json:"simple_level"`
	ShortLevel    int `json:"short_level"`
	PointsCount   int `json:"points_count"`
	ExamplesCount int `json:"examples_count"`
}

func newSettingsPayload(s entitlement.Settings) settingsPayload {
	return settingsPayload{
		SimpleLevel:   s.SimplifyLevel,
		ShortLevel:    s.ShortenLevel,
		PointsCount:   s.BulletCount,
		ExamplesCount: s.ExampleCount,
	}
}

func (p settingsPayload) settings() entitlement.Settings {
	return entitlement.Settings{
		SimplifyLevel: p.SimpleLevel,
		ShortenLevel:  p.ShortLevel,
		BulletCount:   p.PointsCount,
		ExampleCount:  p.ExamplesCount,
	}
}

type upgradeRequest struct {
	PlanID string `json:"plan_id"`
}

type simplifyRequest struct {
	Text      string `json:"text"`
	Mode      string `json:"mode"`
	SourceURL string `json:"source_url"`
}

func caller(c *gin.Context) *identity.Identity {
	id, _ := identity.FromContext(c.Request.Context())
	return id
}

func invalidBody(err error) error {
	return entitle.ValidationError{Kind: entitle.ErrInvalidInput, Field: "body", Message: err.Error()}
}

// ──────────────────────────────────────────────────
// Handlers
// ──────────────────────────────────────────────────

func (s *Server) health(c *gin.Context) {
	if err := s.engine.Ping(c.Request.Context()); err != nil {
		s.logger.Warn("health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) listPlans(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"plans": s.engine.Plans()})
}

func (s *Server) me(c *gin.Context) {
	id := caller(c)
	v, err := s.engine.Resolve(c.Request.Context(), id.SubjectID, id.Email)
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, newSubscriptionResponse(v))
}

func (s *Server) upgrade(c *gin.Context) {
	var req upgradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.abort(c, invalidBody(err))
		return
	}

	v, err := s.engine.Upgrade(c.Request.Context(), caller(c).SubjectID, req.PlanID)
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, newSubscriptionResponse(v))
}

func (s *Server) getSettings(c *gin.Context) {
	settings, err := s.engine.Settings(c.Request.Context(), caller(c).SubjectID)
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, newSettingsPayload(settings))
}

func (s *Server) updateSettings(c *gin.Context) {
	var req settingsPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		s.abort(c, invalidBody(err))
		return
	}

	settings, err := s.engine.UpdateSettings(c.Request.Context(), caller(c).SubjectID, req.settings())
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, newSettingsPayload(settings))
}

func (s *Server) listHistory(c *gin.Context) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		s.abort(c, err)
		return
	}
	offset, err := queryInt(c, "offset")
	if err != nil {
		s.abort(c, err)
		return
	}

	items, err := s.engine.ListHistory(c.Request.Context(), caller(c).SubjectID, limit, offset)
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func queryInt(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, entitle.ValidationError{Kind: entitle.ErrInvalidInput, Field: key, Message: "must be a non-negative integer"}
	}
	return n, nil
}

// simplify admits the action, then streams the provider's output as plain
// text. An upstream failure before the first byte is reported as 502; a
// later one ends the stream. The action stays charged either way.
func (s *Server) simplify(c *gin.Context) {
	var req simplifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.abort(c, invalidBody(err))
		return
	}
	mode := plan.Mode(strings.TrimSpace(req.Mode))
	if mode == "" {
		mode = plan.ModeSimple
	}

	id := caller(c)
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	v, err := s.engine.Authorize(ctx, id.SubjectID, id.Email, req.Text, mode)
	if err != nil {
		s.abort(c, err)
		return
	}

	genReq := generate.Request{Mode: mode, Text: req.Text}
	if v.Plan.AISettingsEnabled {
		settings := v.Settings
		genReq.Settings = &settings
	}

	start := time.Now()
	ch, err := s.provider.Stream(ctx, genReq)
	if err != nil {
		s.engine.ReportGeneration(context.WithoutCancel(ctx), v, mode, time.Since(start), err)
		s.abort(c, err)
		return
	}

	var (
		out    strings.Builder
		genErr error
	)
	for f := range ch {
		if genErr != nil {
			continue
		}
		if f.Err != nil {
			genErr = f.Err
			continue
		}
		if !c.Writer.Written() {
			c.Header("Content-Type", "text/plain; charset=utf-8")
			c.Header(RemainingHeader, strconv.Itoa(v.Remaining))
			c.Status(http.StatusOK)
		}
		if _, err := c.Writer.WriteString(f.Text); err != nil {
			genErr = fmt.Errorf("write response: %w", err)
			cancel()
			continue
		}
		c.Writer.Flush()
		out.WriteString(f.Text)
	}
	if genErr == nil && ctx.Err() != nil {
		genErr = ctx.Err()
	}

	bg := context.WithoutCancel(ctx)
	s.engine.ReportGeneration(bg, v, mode, time.Since(start), genErr)

	if genErr != nil {
		if !c.Writer.Written() {
			s.abort(c, genErr)
		}
		return
	}
	if !c.Writer.Written() {
		c.Header(RemainingHeader, strconv.Itoa(v.Remaining))
		c.Data(http.StatusOK, "text/plain; charset=utf-8", nil)
	}

	item := &history.Item{
		InputText:  req.Text,
		OutputText: out.String(),
		Mode:       string(mode),
		SourceURL:  req.SourceURL,
	}
	if err := s.engine.AppendHistory(bg, v, item); err != nil {
		s.logger.Warn("history append failed", "subject_id", v.SubjectID, "error", err)
	}
}
