package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"examprep/internal/connectivity"
	"examprep/internal/core"
	"examprep/internal/offline"
)

// ConnectivitySwitch reads and sets the online state.
type ConnectivitySwitch interface {
	Online() bool
	Set(online bool) bool
}

// NoticeBoard returns the connectivity notice currently on display.
type NoticeBoard interface {
	Current() (connectivity.Notice, bool)
}

// Handler holds the HTTP handlers
type Handler struct {
	offline *offline.Controller
	conn    ConnectivitySwitch
	notices NoticeBoard
}

// NewHandler creates a new handler
func NewHandler(ctrl *offline.Controller, conn ConnectivitySwitch, notices NoticeBoard) *Handler {
	return &Handler{
		offline: ctrl,
		conn:    conn,
		notices: notices,
	}
}

// SubjectSummary is the cache summary for one subject.
type SubjectSummary struct {
	Subject  core.Subject `json:"subject"`
	Count    int          `json:"count"`
	HasCache bool         `json:"has_cache"`
}

// StatusResponse is returned by GET /v1/offline/status.
type StatusResponse struct {
	Online   bool             `json:"online"`
	Total    int              `json:"total"`
	Subjects []SubjectSummary `json:"subjects"`
}

// QuestionsResponse is returned by GET /v1/offline/subjects/:subject/questions.
type QuestionsResponse struct {
	Subject   core.Subject    `json:"subject"`
	Count     int             `json:"count"`
	Questions []core.Question `json:"questions"`
}

// ConnectivityRequest is the body of PUT /v1/connectivity.
type ConnectivityRequest struct {
	Online *bool `json:"online"`
}

// ConnectivityResponse reports the online state.
type ConnectivityResponse struct {
	Online  bool `json:"online"`
	Changed bool `json:"changed,omitempty"`
}

// Health handles GET /health
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Status handles GET /v1/offline/status
func (h *Handler) Status(c echo.Context) error {
	stats := h.offline.RefreshStats(c.Request().Context())

	resp := StatusResponse{
		Online:   h.conn.Online(),
		Total:    stats.Total(),
		Subjects: make([]SubjectSummary, 0, len(stats)),
	}
	for _, subject := range core.Subjects() {
		resp.Subjects = append(resp.Subjects, SubjectSummary{
			Subject:  subject,
			Count:    stats[subject],
			HasCache: stats[subject] > 0,
		})
	}
	return c.JSON(http.StatusOK, resp)
}

// SubjectStatus handles GET /v1/offline/subjects/:subject
func (h *Handler) SubjectStatus(c echo.Context) error {
	subject, err := subjectParam(c)
	if err != nil {
		return handleError(c, err)
	}

	count := h.offline.CachedCount(c.Request().Context(), subject)
	return c.JSON(http.StatusOK, SubjectSummary{
		Subject:  subject,
		Count:    count,
		HasCache: count > 0,
	})
}

// Questions handles GET /v1/offline/subjects/:subject/questions
func (h *Handler) Questions(c echo.Context) error {
	subject, err := subjectParam(c)
	if err != nil {
		return handleError(c, err)
	}

	qs, err := h.offline.Questions(c.Request().Context(), subject)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, QuestionsResponse{
		Subject:   subject,
		Count:     len(qs),
		Questions: qs,
	})
}

// CacheSubject handles POST /v1/offline/subjects/:subject/cache
func (h *Handler) CacheSubject(c echo.Context) error {
	subject, err := subjectParam(c)
	if err != nil {
		return handleError(c, err)
	}

	res := h.offline.CacheSubject(c.Request().Context(), subject)
	return c.JSON(resultStatus(res), res)
}

// CacheAll handles POST /v1/offline/cache
func (h *Handler) CacheAll(c echo.Context) error {
	batch := h.offline.CacheAllSubjects(c.Request().Context())

	status := http.StatusOK
	if !batch.Success {
		status = http.StatusMultiStatus
		if batch.Total == 0 && len(batch.Results) > 0 {
			status = resultStatus(batch.Results[0])
		}
	}
	return c.JSON(status, batch)
}

// Purge handles POST /v1/offline/purge
func (h *Handler) Purge(c echo.Context) error {
	removed, err := h.offline.PurgeExpired(c.Request().Context())
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]int{"removed": removed})
}

// Connectivity handles GET /v1/connectivity
func (h *Handler) Connectivity(c echo.Context) error {
	return c.JSON(http.StatusOK, ConnectivityResponse{Online: h.conn.Online()})
}

// SetConnectivity handles PUT /v1/connectivity. Clients report platform
// online/offline events here.
func (h *Handler) SetConnectivity(c echo.Context) error {
	var req ConnectivityRequest
	if err := c.Bind(&req); err != nil {
		return handleError(c, core.NewInvalidRequestError("invalid request body: "+err.Error(), err))
	}
	if req.Online == nil {
		return handleError(c, core.NewInvalidRequestError("online is required", nil))
	}

	changed := h.conn.Set(*req.Online)
	return c.JSON(http.StatusOK, ConnectivityResponse{Online: *req.Online, Changed: changed})
}

// Notice handles GET /v1/notices
func (h *Handler) Notice(c echo.Context) error {
	if h.notices == nil {
		return c.NoContent(http.StatusNoContent)
	}
	notice, ok := h.notices.Current()
	if !ok {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, notice)
}

func subjectParam(c echo.Context) (core.Subject, error) {
	subject, err := core.ParseSubject(c.Param("subject"))
	if err != nil {
		return "", core.NewInvalidRequestError(err.Error(), err)
	}
	return subject, nil
}

func resultStatus(res offline.Result) int {
	if res.Success {
		return http.StatusOK
	}
	var cacheErr *core.CacheError
	if errors.As(res.Err, &cacheErr) {
		return cacheErr.HTTPStatusCode()
	}
	return http.StatusInternalServerError
}

// handleError converts cache errors to appropriate HTTP responses
func handleError(c echo.Context, err error) error {
	var cacheErr *core.CacheError
	if errors.As(err, &cacheErr) {
		return c.JSON(cacheErr.HTTPStatusCode(), cacheErr.ToJSON())
	}

	// Fallback for unexpected errors
	return c.JSON(http.StatusInternalServerError, map[string]interface{}{
		"error": map[string]interface{}{
			"type":    "internal_error",
			"message": "an unexpected error occurred",
		},
	})
}
