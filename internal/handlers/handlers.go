package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Brownie44l1/chillbot/internal/capture"
	"github.com/Brownie44l1/chillbot/internal/classifier"
	"github.com/Brownie44l1/chillbot/internal/report"
	"github.com/Brownie44l1/chillbot/internal/status"
)

// Cycles is the orchestrator as seen by the control API.
type Cycles interface {
	Trigger() bool
	Current() classifier.State
	LastResult() (classifier.Result, bool)
	Stats() classifier.Stats
}

// Uploads accepts pushed photos for a waiting capture request.
type Uploads interface {
	Pending() bool
	Deliver(img image.Image) error
}

// History lists stored fact reports, newest first.
type History interface {
	Recent(ctx context.Context, limit int) ([]report.Report, error)
}

// Options wires the optional collaborators.
type Options struct {
	Uploads       Uploads
	History       History
	Status        *status.Recorder
	DispatchStats func() report.Stats
	Logger        *slog.Logger
}

type Handler struct {
	cycles Cycles
	opts   Options
	logger *slog.Logger
}

func NewHandler(cycles Cycles, opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Handler{
		cycles: cycles,
		opts:   opts,
		logger: logger,
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"state":  h.cycles.Current().String(),
	})
}

// Trigger starts a cycle: 202 when accepted, 409 while one is in flight or
// when the capture source refused the request.
func (h *Handler) Trigger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !h.cycles.Trigger() {
		msg := classifier.MsgStillProcessing
		if h.opts.Status != nil {
			if last, ok := h.opts.Status.Last(); ok {
				msg = last.Text
			}
		}
		state := "busy"
		if msg != classifier.MsgStillProcessing {
			state = "failed"
		}
		writeJSON(w, http.StatusConflict, map[string]string{
			"status":  state,
			"message": msg,
		})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

type statusResponse struct {
	State      string             `json:"state"`
	Message    *status.Message    `json:"message,omitempty"`
	LastResult *classifier.Result `json:"last_result,omitempty"`
	Cycles     classifier.Stats   `json:"cycles"`
	Reports    *report.Stats      `json:"reports,omitempty"`
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := statusResponse{
		State:  h.cycles.Current().String(),
		Cycles: h.cycles.Stats(),
	}
	if h.opts.Status != nil {
		if msg, ok := h.opts.Status.Last(); ok {
			resp.Message = &msg
		}
	}
	if res, ok := h.cycles.LastResult(); ok {
		resp.LastResult = &res
	}
	if h.opts.DispatchStats != nil {
		st := h.opts.DispatchStats()
		resp.Reports = &st
	}

	writeJSON(w, http.StatusOK, resp)
}

// Capture hands an uploaded photo to the cycle waiting for one.
func (h *Handler) Capture(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.opts.Uploads == nil {
		http.Error(w, "Capture source does not accept uploads", http.StatusNotFound)
		return
	}
	if !h.opts.Uploads.Pending() {
		http.Error(w, "No capture requested. POST /trigger first", http.StatusConflict)
		return
	}

	// Parse multipart form (10MB max)
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		http.Error(w, "No image file provided. Use 'image' as the form field name", http.StatusBadRequest)
		return
	}
	defer file.Close()

	img, format, err := image.Decode(file)
	if err != nil {
		http.Error(w, "Invalid image format. Supported: JPEG, PNG, BMP, WebP", http.StatusBadRequest)
		return
	}

	h.logger.Debug("photo uploaded",
		"filename", header.Filename,
		"size", header.Size,
		"format", format,
		"width", img.Bounds().Dx(),
		"height", img.Bounds().Dy(),
	)

	if err := h.opts.Uploads.Deliver(img); err != nil {
		if errors.Is(err, capture.ErrNoPendingRequest) {
			http.Error(w, "Capture request expired", http.StatusConflict)
			return
		}
		h.logger.Error("deliver upload failed", "error", err)
		http.Error(w, "Failed to deliver image", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "delivered"})
}

// History returns stored fact reports; ?limit= caps the count (default 20).
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.opts.History == nil {
		http.Error(w, "Report history is not enabled", http.StatusNotFound)
		return
	}

	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > 1000 {
			http.Error(w, "limit must be between 1 and 1000", http.StatusBadRequest)
			return
		}
		limit = n
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	reports, err := h.opts.History.Recent(ctx, limit)
	if err != nil {
		h.logger.Error("history query failed", "error", err)
		http.Error(w, "History query failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, reports)
}
