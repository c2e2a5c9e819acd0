package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"remoteq/internal/core"
)

// notFound is the status value the web client expects for unknown ids.
const notFound = -1

// ReqID is a job id that may arrive as a JSON number or string.
type ReqID uint64

func (id *ReqID) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return errors.Errorf("invalid req_id %s", string(data))
	}
	*id = ReqID(v)
	return nil
}

type enqueueRequest struct {
	TargetBoard string `json:"target_board"`
	ResultEmail string `json:"result_email"`
	Assembly    string `json:"assembly"`
}

type enqueueResponse struct {
	enqueueRequest
	Status any `json:"status"`
}

type idRequest struct {
	ReqID ReqID `json:"req_id"`
}

type idResponse struct {
	ReqID  ReqID  `json:"req_id"`
	Status any    `json:"status"`
	Device string `json:"device,omitempty"`
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

type queueView struct {
	Queue []core.Job `json:"queue"`
	Size  int        `json:"size"`
}

type overviewResponse struct {
	Incoming queueView         `json:"incoming"`
	Outgoing queueView         `json:"outgoing"`
	InFlight int               `json:"in_flight"`
	Devices  []core.DeviceInfo `json:"devices"`
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	ov := s.svc.Overview()
	writeJSON(w, http.StatusOK, overviewResponse{
		Incoming: queueView{Queue: ov.Pending, Size: len(ov.Pending)},
		Outgoing: queueView{Queue: ov.Completed, Size: len(ov.Completed)},
		InFlight: ov.Inflight,
		Devices:  ov.Devices,
	})
}

func (s *Server) handleTargetBoards(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.ListBoards())
}

func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, enqueueResponse{Status: "invalid request: " + err.Error()})
		return
	}

	id, err := s.svc.Submit(core.Submission{
		TargetBoard:       req.TargetBoard,
		Payload:           req.Assembly,
		ResultDestination: req.ResultEmail,
	})
	if err != nil {
		writeJSON(w, statusFor(err), enqueueResponse{enqueueRequest: req, Status: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, enqueueResponse{enqueueRequest: req, Status: id})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeID(w, r)
	if !ok {
		return
	}
	if err := s.svc.Cancel(uint64(req.ReqID)); err != nil {
		writeJSON(w, statusFor(err), idResponse{ReqID: req.ReqID, Status: notFound})
		return
	}
	writeJSON(w, http.StatusOK, idResponse{ReqID: req.ReqID, Status: 0})
}

func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeID(w, r)
	if !ok {
		return
	}
	pos, err := s.svc.PositionOf(uint64(req.ReqID))
	if err != nil {
		writeJSON(w, statusFor(err), idResponse{ReqID: req.ReqID, Status: notFound})
		return
	}
	writeJSON(w, http.StatusOK, idResponse{ReqID: req.ReqID, Status: pos})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeID(w, r)
	if !ok {
		return
	}
	report, err := s.svc.StatusOf(uint64(req.ReqID))
	if err != nil {
		writeJSON(w, statusFor(err), idResponse{ReqID: req.ReqID, Status: notFound})
		return
	}

	resp := idResponse{ReqID: req.ReqID, Device: report.Device}
	switch report.Status {
	case core.StatusQueued:
		resp.Status = report.Position
	case core.StatusDispatched:
		resp.Status = report.Status.String()
	default:
		resp.Status = report.Status.String()
		resp.Result = report.Result
		resp.Error = report.Error
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	if s.results == nil {
		http.Error(w, "result storage disabled", http.StatusNotFound)
		return
	}
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	out, err := s.results.LoadResult(id)
	if err != nil {
		http.Error(w, "result not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(out))
}

func decodeID(w http.ResponseWriter, r *http.Request) (idRequest, bool) {
	var req idRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, idResponse{Status: "invalid request: " + err.Error()})
		return req, false
	}
	return req, true
}

// statusFor maps core errors to HTTP status codes.
func statusFor(err error) int {
	var subErr *core.SubmissionError
	var nfErr *core.NotFoundError
	switch {
	case errors.As(err, &subErr):
		return http.StatusBadRequest
	case errors.As(err, &nfErr):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("Failed to encode response")
	}
}
