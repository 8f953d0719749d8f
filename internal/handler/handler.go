package handler

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"rollcall/internal/attendance"
	"rollcall/internal/auth"
	"rollcall/internal/config"
	"rollcall/internal/identity"
	"rollcall/internal/imagestore"
	"rollcall/internal/metrics"
	"rollcall/internal/queue"
	"rollcall/internal/store"
)

// IdentityService is the slice of the identity layer the handlers use.
type IdentityService interface {
	Register(ctx context.Context, in identity.RegisterInput) (identity.User, error)
	Authenticate(ctx context.Context, email, password string) (*identity.User, error)
	UserByID(ctx context.Context, id int64) (*identity.User, error)
}

// AttendanceService is the slice of the session/ledger layer the handlers use.
type AttendanceService interface {
	StartSession(ctx context.Context, professorID int64) (attendance.Session, error)
	StopSession(ctx context.Context, sessionID int64) (int64, error)
	ActiveSession(ctx context.Context) (*attendance.Session, error)
	MarkPresent(ctx context.Context, sessionID, studentID int64) (attendance.MarkResult, error)
	Records(ctx context.Context, sessionID int64) ([]attendance.RecordView, error)
	LatestForStudent(ctx context.Context, studentID int64) (*attendance.StudentRecord, error)
	CountsFor(ctx context.Context, sessionID int64) (attendance.Counts, error)
}

// Resolver turns a captured image into a student id, or reports no match.
type Resolver interface {
	Resolve(ctx context.Context, image []byte) (int64, bool, error)
}

// Handler wires the HTTP surface to the domain services.
type Handler struct {
	cfg    config.App
	users  IdentityService
	ledger AttendanceService
	faces  Resolver
	events queue.Queue
	db     *store.DB
	cache  *store.Redis
}

// New creates a handler. db and cache may be nil in tests; events may not.
func New(cfg config.App, users IdentityService, ledger AttendanceService, faces Resolver, events queue.Queue, db *store.DB, cache *store.Redis) *Handler {
	return &Handler{cfg: cfg, users: users, ledger: ledger, faces: faces, events: events, db: db, cache: cache}
}

// Register mounts all routes on the engine.
func (h *Handler) Register(r *gin.Engine) {
	r.GET("/healthz", h.Healthz)

	v1 := r.Group("/v1")
	v1.POST("/auth/register", h.RegisterUser)
	v1.POST("/auth/login", h.Login)

	prof := v1.Group("/prof", auth.RequireRole(h.cfg.JWTSigningKey, h.cfg.JWTIssuer, string(identity.RoleProfessor)))
	prof.POST("/sessions/start", h.StartSession)
	prof.POST("/sessions/stop", h.StopSession)
	prof.GET("/sessions/active", h.ActiveSession)
	prof.GET("/records", h.SessionRecords)

	v1.POST("/attendance/recognize",
		auth.RequireRole(h.cfg.JWTSigningKey, h.cfg.JWTIssuer, string(identity.RoleProfessor)),
		h.Recognize)

	student := v1.Group("/student", auth.RequireRole(h.cfg.JWTSigningKey, h.cfg.JWTIssuer, string(identity.RoleStudent)))
	student.GET("/records/latest", h.LatestRecord)
}

// Healthz reports DB and Redis reachability.
func (h *Handler) Healthz(c *gin.Context) {
	dbHealthy := h.db.Healthy(c.Request.Context())
	redisHealthy := h.cache.Healthy(c.Request.Context())
	status := http.StatusOK
	if !dbHealthy || !redisHealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"status": "ok", "db": dbHealthy, "redis": redisHealthy})
}

type registerRequest struct {
	FirstName string   `json:"first_name" binding:"required"`
	LastName  string   `json:"last_name" binding:"required"`
	Email     string   `json:"email" binding:"required,email"`
	Password  string   `json:"password" binding:"required"`
	Role      string   `json:"role" binding:"required"`
	Captures  []string `json:"captures"`
}

// RegisterUser creates a professor or student account. Students must
// supply at least five camera captures as base64 data URLs.
func (h *Handler) RegisterUser(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	}

	user, err := h.users.Register(c.Request.Context(), identity.RegisterInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
		Role:      identity.Role(req.Role),
		Captures:  req.Captures,
	})
	if err != nil {
		h.writeIdentityError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"status": "success", "message": "account created", "user": user})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login verifies credentials and issues a token pair.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.serverError(c, "login", err)
		return
	}
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "message": "invalid email or password"})
		return
	}

	tokens, err := auth.Issue(user.ID, string(user.Role), h.cfg.JWTIssuer, h.cfg.JWTSigningKey, h.cfg.AccessTTL, h.cfg.RefreshTTL)
	if err != nil {
		h.serverError(c, "token issue", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":        "success",
		"message":       "logged in",
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"expires_at":    tokens.AccessExp.Unix(),
		"role":          user.Role,
		"name":          user.DisplayName(),
	})
}

// StartSession opens a new attendance session for the calling professor.
func (h *Handler) StartSession(c *gin.Context) {
	professorID, ok := callerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "message": "invalid token"})
		return
	}

	sess, err := h.ledger.StartSession(c.Request.Context(), professorID)
	if err != nil {
		h.writeLedgerError(c, err)
		return
	}

	metrics.SessionsStarted.Inc()
	c.JSON(http.StatusCreated, gin.H{"status": "success", "message": "session started", "session": sess})
}

// StopSession closes the active session and backfills absences.
func (h *Handler) StopSession(c *gin.Context) {
	active, err := h.ledger.ActiveSession(c.Request.Context())
	if err != nil {
		h.serverError(c, "active session lookup", err)
		return
	}
	if active == nil {
		c.JSON(http.StatusConflict, gin.H{"status": "error", "message": "no active session"})
		return
	}

	backfilled, err := h.ledger.StopSession(c.Request.Context(), active.ID)
	if err != nil {
		h.writeLedgerError(c, err)
		return
	}

	metrics.SessionsStopped.Inc()
	metrics.AbsencesBackfilled.Add(float64(backfilled))
	if err := h.events.Publish(c.Request.Context(), queue.NewSessionClosedMessage(queue.SessionClosedEvent{
		SessionID:  active.ID,
		Backfilled: backfilled,
	})); err != nil {
		log.Printf("queue publish failed: %v", err)
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "success",
		"message":    "session closed, absences marked",
		"session_id": active.ID,
		"backfilled": backfilled,
	})
}

// ActiveSession returns the active session with present/absent counts, or
// an empty payload when none is active.
func (h *Handler) ActiveSession(c *gin.Context) {
	active, err := h.ledger.ActiveSession(c.Request.Context())
	if err != nil {
		h.serverError(c, "active session lookup", err)
		return
	}
	if active == nil {
		c.JSON(http.StatusOK, gin.H{"status": "success", "message": "no active session", "session": nil})
		return
	}

	counts := h.sessionCounts(c.Request.Context(), active.ID)
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "session active",
		"session": active,
		"counts":  counts,
	})
}

// sessionCounts prefers the worker-maintained Redis counters and falls
// back to counting ledger rows.
func (h *Handler) sessionCounts(ctx context.Context, sessionID int64) attendance.Counts {
	if cached, err := h.cache.SessionCounts(ctx, sessionID); err == nil && len(cached) > 0 {
		return attendance.Counts{
			Present: cached[string(attendance.StatusPresent)],
			Absent:  cached[string(attendance.StatusAbsent)],
		}
	}
	counts, err := h.ledger.CountsFor(ctx, sessionID)
	if err != nil {
		log.Printf("session counts failed: %v", err)
		return attendance.Counts{}
	}
	return counts
}

// SessionRecords returns the active session's ledger for the dashboard,
// newest first. No active session yields an empty list.
func (h *Handler) SessionRecords(c *gin.Context) {
	active, err := h.ledger.ActiveSession(c.Request.Context())
	if err != nil {
		h.serverError(c, "active session lookup", err)
		return
	}
	if active == nil {
		c.JSON(http.StatusOK, gin.H{"status": "success", "records": []attendance.RecordView{}})
		return
	}

	records, err := h.ledger.Records(c.Request.Context(), active.ID)
	if err != nil {
		h.serverError(c, "record listing", err)
		return
	}
	if records == nil {
		records = []attendance.RecordView{}
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "records": records})
}

// Recognize accepts a captured frame, resolves it to a student through the
// face matcher, and marks presence in the active session. A confident
// no-match is a normal 200 response, not an error.
func (h *Handler) Recognize(c *gin.Context) {
	active, err := h.ledger.ActiveSession(c.Request.Context())
	if err != nil {
		h.serverError(c, "active session lookup", err)
		return
	}
	if active == nil {
		c.JSON(http.StatusConflict, gin.H{"status": "error", "message": "no active session"})
		return
	}

	image, ok := h.readImage(c)
	if !ok {
		return
	}

	studentID, matched, err := h.faces.Resolve(c.Request.Context(), image)
	if err != nil {
		metrics.Recognitions.WithLabelValues("error").Inc()
		log.Printf("recognition failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"status": "error", "message": "recognition failed"})
		return
	}
	if !matched {
		metrics.Recognitions.WithLabelValues("no_match").Inc()
		c.JSON(http.StatusOK, gin.H{"status": "no_match", "message": "no student recognized"})
		return
	}
	metrics.Recognitions.WithLabelValues("match").Inc()

	result, err := h.ledger.MarkPresent(c.Request.Context(), active.ID, studentID)
	if err != nil {
		h.writeLedgerError(c, err)
		return
	}
	metrics.Marks.WithLabelValues(strconv.FormatBool(result.Created)).Inc()

	if result.Created {
		if err := h.events.Publish(c.Request.Context(), queue.NewMarkMessage(queue.MarkEvent{
			SessionID: active.ID,
			StudentID: studentID,
			Status:    string(result.Record.Status),
		})); err != nil {
			log.Printf("queue publish failed: %v", err)
		}
	}

	name := ""
	if user, err := h.users.UserByID(c.Request.Context(), studentID); err == nil && user != nil {
		name = user.DisplayName()
	}

	message := "attendance marked"
	if !result.Created {
		message = "attendance already marked"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": message,
		"student": name,
		"created": result.Created,
		"record":  result.Record,
	})
}

// readImage pulls the frame out of either a multipart "image" file or a
// JSON body with a base64 data URL. Writes the error response itself.
func (h *Handler) readImage(c *gin.Context) ([]byte, bool) {
	if file, header, err := c.Request.FormFile("image"); err == nil {
		defer file.Close()
		if !imagestore.AllowedExtension(header.Filename) {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "unsupported image format"})
			return nil, false
		}
		data, err := io.ReadAll(io.LimitReader(file, int64(h.cfg.MaxImageBytes)+1))
		if err != nil {
			h.serverError(c, "read image", err)
			return nil, false
		}
		if len(data) == 0 || len(data) > h.cfg.MaxImageBytes {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "image missing or too large"})
			return nil, false
		}
		return data, true
	}

	var body struct {
		Image string `json:"image" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "image file or base64 data URL required"})
		return nil, false
	}
	data, err := imagestore.DecodeDataURL(body.Image)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid image data"})
		return nil, false
	}
	if len(data) > h.cfg.MaxImageBytes {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "image too large"})
		return nil, false
	}
	return data, true
}

// LatestRecord returns the calling student's most recent attendance record.
func (h *Handler) LatestRecord(c *gin.Context) {
	studentID, ok := callerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "message": "invalid token"})
		return
	}

	record, err := h.ledger.LatestForStudent(c.Request.Context(), studentID)
	if err != nil {
		h.serverError(c, "latest record lookup", err)
		return
	}
	if record == nil {
		c.JSON(http.StatusOK, gin.H{"status": "success", "message": "no records yet", "record": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "record": record})
}

func callerID(c *gin.Context) (int64, bool) {
	claims, ok := auth.ClaimsFrom(c)
	if !ok {
		return 0, false
	}
	id, err := claims.UserID()
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (h *Handler) writeLedgerError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, attendance.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"status": "error", "message": err.Error()})
	case errors.Is(err, attendance.ErrInvalidState):
		c.JSON(http.StatusConflict, gin.H{"status": "error", "message": err.Error()})
	case errors.Is(err, attendance.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "message": err.Error()})
	default:
		h.serverError(c, "ledger", err)
	}
}

func (h *Handler) writeIdentityError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, identity.ErrEmailExists):
		c.JSON(http.StatusConflict, gin.H{"status": "error", "message": err.Error()})
	case errors.Is(err, identity.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
	case errors.Is(err, identity.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "message": err.Error()})
	default:
		h.serverError(c, "identity", err)
	}
}

// serverError logs the detail and returns a generic failure to the caller.
func (h *Handler) serverError(c *gin.Context, op string, err error) {
	log.Printf("%s failed: %v", op, err)
	c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "internal error"})
}
