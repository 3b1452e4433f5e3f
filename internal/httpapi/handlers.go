package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"rollcall/internal/attendance"
	"rollcall/internal/device"
	"rollcall/internal/metrics"
	"rollcall/internal/queue"
	"rollcall/internal/roster"
	"rollcall/internal/schedule"
)

type scanRequest struct {
	BiometricID string `json:"biometric_id"`
	Timestamp   string `json:"timestamp"`
}

func (s *server) pushScan(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id := roster.NormalizeBiometricID(req.BiometricID)
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "biometric_id is required"})
		return
	}
	ts := s.now()
	if strings.TrimSpace(req.Timestamp) != "" {
		if ts = device.ParseTime(req.Timestamp, s.loc); ts.IsZero() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable timestamp"})
			return
		}
	}

	body, err := json.Marshal(device.RawScan{BiometricID: id, RecordTime: ts})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "encode scan failed"})
		return
	}
	msg := queue.Message{ID: uuid.NewString(), Type: queue.TypeScan, Body: body}
	if err := s.queue.Publish(c.Request.Context(), msg); err != nil {
		metrics.ScansPublished.WithLabelValues("failed").Inc()
		s.logger.Error("queue publish failed", "scan_id", msg.ID, "err", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "queue unavailable"})
		return
	}
	metrics.ScansPublished.WithLabelValues("ok").Inc()
	c.JSON(http.StatusAccepted, gin.H{"scan_id": msg.ID, "record_time": ts.In(s.loc)})
}

type dayRequest struct {
	PersonID string  `json:"person_id" binding:"required"`
	Date     string  `json:"date" binding:"required"`
	Status   string  `json:"status" binding:"required"`
	Note     *string `json:"note"`
}

func (s *server) setDay(c *gin.Context) {
	var req dayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	day, err := schedule.ParseDayKey(req.Date)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
		return
	}
	status, err := attendance.ParseStatus(req.Status)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rec, err := s.admin.SetDay(c.Request.Context(), req.PersonID, day, status, req.Note)
	if errors.Is(err, attendance.ErrUnknownPerson) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown person_id"})
		return
	}
	if err != nil {
		s.logger.Error("set day failed", "person_id", req.PersonID, "date", req.Date, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
		return
	}
	c.JSON(http.StatusOK, recordJSON(rec))
}

func (s *server) clearDay(c *gin.Context) {
	personID := strings.TrimSpace(c.Query("person_id"))
	if personID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "person_id is required"})
		return
	}
	day, err := schedule.ParseDayKey(c.Query("date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
		return
	}
	switch err := s.admin.ClearDay(c.Request.Context(), personID, day); {
	case errors.Is(err, attendance.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
	case err != nil:
		s.logger.Error("clear day failed", "person_id", personID, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
	default:
		c.Status(http.StatusNoContent)
	}
}

func (s *server) monthSummary(c *gin.Context) {
	now := s.now().In(s.loc)
	year, month := now.Year(), int(now.Month())
	if v := c.Query("year"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid year"})
			return
		}
		year = parsed
	}
	if v := c.Query("month"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 || parsed > 12 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid month"})
			return
		}
		month = parsed
	}

	people, err := s.admin.MonthSummary(c.Request.Context(), year, time.Month(month))
	if err != nil {
		s.logger.Error("month summary failed", "year", year, "month", month, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "summary failed"})
		return
	}
	recs, err := s.admin.MonthRecords(c.Request.Context(), year, time.Month(month))
	if err != nil {
		s.logger.Error("month records failed", "year", year, "month", month, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "summary failed"})
		return
	}
	records := make([]gin.H, 0, len(recs))
	for _, rec := range recs {
		records = append(records, recordJSON(rec))
	}
	c.JSON(http.StatusOK, gin.H{"year": year, "month": month, "people": people, "records": records})
}

func recordJSON(rec attendance.Record) gin.H {
	out := gin.H{
		"person_id":  rec.PersonID,
		"date":       rec.Day.Format(schedule.DayLayout),
		"status":     rec.Status,
		"updated_at": rec.UpdatedAt,
	}
	if rec.Note != nil {
		out["note"] = *rec.Note
	}
	return out
}
