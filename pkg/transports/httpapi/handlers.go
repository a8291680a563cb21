package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/harunnryd/voxa/pkg/cost"
	"github.com/harunnryd/voxa/pkg/dispatch"
	"github.com/harunnryd/voxa/pkg/errorsx"
	"github.com/harunnryd/voxa/pkg/segment"
)

const defaultHistoryWindow = 30 * 24 * time.Hour

var errBadRequest = errors.New("bad request")

type badRequestError struct{ msg string }

func (e badRequestError) Error() string { return e.msg }
func (e badRequestError) Unwrap() error { return errBadRequest }

func badRequest(format string, args ...any) error {
	return badRequestError{msg: fmt.Sprintf(format, args...)}
}

type audioRequest struct {
	Text         string          `json:"text"`
	Mode         string          `json:"mode"`
	Voice        string          `json:"voice"`
	Provider     string          `json:"provider"`
	SessionID    string          `json:"session_id"`
	SSMLFallback *bool           `json:"ssml_fallback,omitempty"`
	Segmentation json.RawMessage `json:"segmentation,omitempty"`
}

// parseMode defaults to full mode.
func parseMode(v string) (segment.Mode, error) {
	if strings.TrimSpace(v) == "" {
		return segment.ModeFull, nil
	}
	return segment.ParseMode(v)
}

// segmentationOverride layers a partial JSON config over the service defaults.
func (s *Server) segmentationOverride(raw json.RawMessage) (*segment.Config, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	cfg := s.svc.SegmentationDefaults()
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, badRequest("invalid segmentation: %v", err)
	}
	return &cfg, nil
}

func (s *Server) toLongAudio(in audioRequest) (dispatch.LongAudioRequest, error) {
	mode, err := parseMode(in.Mode)
	if err != nil {
		return dispatch.LongAudioRequest{}, err
	}
	cfg, err := s.segmentationOverride(in.Segmentation)
	if err != nil {
		return dispatch.LongAudioRequest{}, err
	}
	return dispatch.LongAudioRequest{
		Text:         in.Text,
		Mode:         mode,
		Voice:        in.Voice,
		Provider:     in.Provider,
		SessionID:    in.SessionID,
		Config:       cfg,
		SSMLFallback: in.SSMLFallback,
	}, nil
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return badRequest("request body exceeds %d bytes", tooLarge.Limit)
		}
		return badRequest("invalid json: %v", err)
	}
	return nil
}

func (s *Server) handleLongAudio(w http.ResponseWriter, r *http.Request) {
	var in audioRequest
	if err := decodeBody(r, &in); err != nil {
		writeError(w, err)
		return
	}
	req, err := s.toLongAudio(in)
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := s.svc.GenerateLongAudio(r.Context(), req)
	if err != nil {
		s.log.Warn("long_audio_failed", "reason", errorsx.Reason(err), "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type streamMessage struct {
	Type     string             `json:"type"`
	Index    int                `json:"index,omitempty"`
	AudioURL string             `json:"audio_url,omitempty"`
	Cached   bool               `json:"cached,omitempty"`
	Provider string             `json:"provider,omitempty"`
	Seconds  float64            `json:"estimated_seconds,omitempty"`
	Metadata *dispatch.Metadata `json:"metadata,omitempty"`
	Error    string             `json:"error,omitempty"`
	Reason   errorsx.ReasonCode `json:"reason,omitempty"`
	Status   int                `json:"status,omitempty"`
	Retry    bool               `json:"retryable,omitempty"`
}

// handleStream upgrades to a websocket. Each inbound message is an audio
// request; replies are one segment message per segment in index order, then
// done or error.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("stream_upgrade_failed", "error", err)
		return
	}
	s.track(conn)
	defer func() {
		s.untrack(conn)
		_ = conn.Close()
	}()

	for {
		var in audioRequest
		if err := conn.ReadJSON(&in); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("stream_read_closed", "error", err)
			}
			return
		}
		if err := s.streamOne(conn, r, in); err != nil {
			s.log.Debug("stream_write_failed", "error", err)
			return
		}
	}
}

func (s *Server) streamOne(conn *websocket.Conn, r *http.Request, in audioRequest) error {
	req, err := s.toLongAudio(in)
	if err == nil {
		var out dispatch.LongAudio
		out, err = s.svc.GenerateLongAudio(r.Context(), req)
		if err == nil {
			for _, res := range out.Results {
				if werr := conn.WriteJSON(streamMessage{
					Type:     "segment",
					Index:    res.Segment.Index,
					AudioURL: res.AudioURL,
					Cached:   res.Cached,
					Provider: res.Provider,
					Seconds:  res.Segment.EstimatedSeconds,
				}); werr != nil {
					return werr
				}
			}
			meta := out.Metadata
			return conn.WriteJSON(streamMessage{Type: "done", Metadata: &meta})
		}
	}
	body := newErrorBody(err)
	return conn.WriteJSON(streamMessage{
		Type:   "error",
		Error:  body.Error,
		Reason: body.Reason,
		Status: statusFor(err),
		Retry:  body.Retryable,
	})
}

type segmentRequest struct {
	Text         string          `json:"text"`
	Mode         string          `json:"mode"`
	Segmentation json.RawMessage `json:"segmentation,omitempty"`
}

func (s *Server) handleSegments(w http.ResponseWriter, r *http.Request) {
	var in segmentRequest
	if err := decodeBody(r, &in); err != nil {
		writeError(w, err)
		return
	}
	mode, err := parseMode(in.Mode)
	if err != nil {
		writeError(w, err)
		return
	}
	cfg, err := s.segmentationOverride(in.Segmentation)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := s.svc.Segment(in.Text, mode, cfg)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type costRequest struct {
	Profile      cost.UsageProfile `json:"profile"`
	MonthlyUsers int               `json:"monthly_users"`
}

func wantsText(r *http.Request) bool {
	return strings.EqualFold(r.URL.Query().Get("format"), "text")
}

func writeText(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	var in costRequest
	if err := decodeBody(r, &in); err != nil {
		writeError(w, err)
		return
	}
	est, err := s.svc.Estimate(in.Profile, in.MonthlyUsers)
	if err != nil {
		writeError(w, err)
		return
	}
	if wantsText(r) {
		writeText(w, cost.GenerateCostReport(est))
		return
	}
	writeJSON(w, http.StatusOK, est)
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	var in costRequest
	if err := decodeBody(r, &in); err != nil {
		writeError(w, err)
		return
	}
	cmp, err := s.svc.Compare(in.Profile, in.MonthlyUsers)
	if err != nil {
		writeError(w, err)
		return
	}
	if wantsText(r) {
		writeText(w, cost.GenerateComparisonReport(cmp))
		return
	}
	writeJSON(w, http.StatusOK, cmp)
}

func parseTime(q, name string, fallback time.Time) (time.Time, error) {
	if strings.TrimSpace(q) == "" {
		return fallback, nil
	}
	t, err := time.Parse(time.RFC3339, q)
	if err != nil {
		return time.Time{}, badRequest("%s must be RFC 3339: %v", name, err)
	}
	return t, nil
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	end, err := parseTime(q.Get("end"), "end", time.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	start, err := parseTime(q.Get("start"), "start", end.Add(-defaultHistoryWindow))
	if err != nil {
		writeError(w, err)
		return
	}
	summary, err := s.svc.History(r.Context(), start, end)
	if err != nil {
		writeError(w, err)
		return
	}
	if wantsText(r) {
		writeText(w, cost.GenerateHistoryReport(summary))
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	vars := make(map[string]string)
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			vars[k] = v[0]
		}
	}
	text, err := s.svc.RenderTemplate(r.PathValue("key"), vars)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.draining.Load() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "draining"})
		return
	}
	if err := s.svc.Health(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "uptime_s": strconv.FormatInt(int64(time.Since(s.started).Seconds()), 10)})
}
