package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"currencyconv/internal/converter"
	"currencyconv/internal/rates"
	"currencyconv/internal/recorder"
	"currencyconv/internal/storage"
)

const (
	defaultListLimit = 50
	maxListLimit     = 1000
)

func (s *Server) healthz(c *gin.Context) {
	state := s.deps.Session.State()
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"rates":       state.Status.String(),
		"rates_as_of": asOf(state.Rates),
	})
}

func (s *Server) getRates(c *gin.Context) {
	state := s.deps.Session.State()
	resp := RatesResponse{
		Status: state.Status.String(),
		Units:  []string{},
	}
	if snap := state.Rates; snap != nil {
		resp.Base = snap.Base
		resp.Date = snap.Date
		if !snap.Timestamp.IsZero() {
			ts := snap.Timestamp
			resp.Timestamp = &ts
		}
		resp.Units = snap.Units()
		resp.Rates = snap.Rates
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) convert(c *gin.Context) {
	logger := LoggerFrom(c)

	var req ConvertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn().Err(err).Msg("invalid convert request")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	if req.Amount.IsNegative() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must not be negative"})
		return
	}

	precision := s.opts.DefaultPrecision
	if req.Precision != nil {
		precision = *req.Precision
	}
	if precision < 0 || precision > converter.MaxPrecision {
		c.JSON(http.StatusBadRequest, gin.H{"error": "precision must be between 0 and 10"})
		return
	}

	state := s.deps.Session.State()
	snap := state.Rates
	if snap == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":  "rates not loaded",
			"status": state.Status.String(),
		})
		return
	}

	from := strings.ToUpper(strings.TrimSpace(req.From))
	to := strings.ToUpper(strings.TrimSpace(req.To))
	for _, unit := range []string{from, to} {
		if !snap.Known(unit) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown currency " + unit})
			return
		}
	}

	converted := converter.Convert(req.Amount, snap.Rate(from), snap.Rate(to))
	logger.Debug().Str("from", from).Str("to", to).Str("amount", req.Amount.String()).Msg("converted")

	c.JSON(http.StatusOK, ConvertResponse{
		From:      from,
		To:        to,
		Amount:    req.Amount,
		Rate:      snap.CrossRate(from, to),
		Converted: converted,
		Display:   converter.FormatAmount(converted, precision),
		Precision: precision,
		AsOf:      snap.Date,
	})
}

// refresh starts an asynchronous refresh. With ?wait=true it blocks until the
// refresh settles and reports the resulting status.
func (s *Server) refresh(c *gin.Context) {
	// the refresh outlives the request
	s.deps.Session.Refresh(context.Background())

	if wait, _ := strconv.ParseBool(c.Query("wait")); wait {
		s.deps.Session.Wait()
		state := s.deps.Session.State()
		code := http.StatusOK
		if state.Status != converter.StatusReady {
			code = http.StatusBadGateway
		}
		c.JSON(code, gin.H{"status": state.Status.String(), "rates_as_of": asOf(state.Rates)})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": s.deps.Session.State().Status.String()})
}

func (s *Server) history(c *gin.Context) {
	if s.deps.Snapshots == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "history storage not configured"})
		return
	}

	pair, err := recorder.ParsePair(c.DefaultQuery("pair", ""))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	limit, err := parseLimit(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	records, err := s.deps.Snapshots.ListRecentSnapshots(c.Request.Context(), limit)
	if err != nil {
		s.internalError(c, err, "list snapshots failed")
		return
	}

	points := make([]HistoryPoint, 0, len(records))
	for _, rec := range records {
		points = append(points, HistoryPoint{
			SnapshotID: rec.ID,
			Date:       rec.AsOfDate,
			SourceTS:   rec.SourceTS,
			Rate:       rec.Snapshot().CrossRate(pair.Source, pair.Target),
		})
	}
	c.JSON(http.StatusOK, gin.H{"pair": pair.String(), "points": points})
}

func (s *Server) alerts(c *gin.Context) {
	if s.deps.Alerts == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "alert storage not configured"})
		return
	}
	limit, err := parseLimit(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	records, err := s.deps.Alerts.ListRecentAlerts(c.Request.Context(), limit)
	if err != nil {
		s.internalError(c, err, "list alerts failed")
		return
	}

	out := make([]AlertResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, AlertResponse{
			ID:           rec.ID,
			Pair:         rec.Pair,
			PreviousRate: rec.PreviousRate,
			CurrentRate:  rec.CurrentRate,
			ChangePct:    rec.ChangePct,
			ThresholdPct: rec.ThresholdPct,
			Direction:    rec.Direction,
			CreatedAt:    rec.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"alerts": out})
}

func (s *Server) internalError(c *gin.Context, err error, msg string) {
	_ = c.Error(err)
	if errors.Is(err, storage.ErrNotConfigured) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage not configured"})
		return
	}
	logger := LoggerFrom(c)
	logger.Error().Err(err).Msg(msg)
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}

func parseLimit(c *gin.Context) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return defaultListLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 || limit > maxListLimit {
		return 0, errors.New("limit must be between 1 and 1000")
	}
	return limit, nil
}

func asOf(snap *rates.Snapshot) string {
	if snap == nil {
		return ""
	}
	return snap.Date
}
