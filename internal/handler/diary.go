package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/sakif/weather-diary/internal/apperror"
	"github.com/sakif/weather-diary/internal/model"
)

// DiaryService is what the HTTP layer needs from the service layer.
type DiaryService interface {
	CreateDiary(ctx context.Context, date model.Date, text string) (*model.DiaryEntry, error)
	ReadDiary(ctx context.Context, date model.Date) ([]model.DiaryEntry, error)
	ReadDiaries(ctx context.Context, start, end model.Date) ([]model.DiaryEntry, error)
	UpdateDiary(ctx context.Context, date model.Date, text string) (*model.DiaryEntry, error)
	DeleteDiary(ctx context.Context, date model.Date) (int64, error)
	DateWeather(ctx context.Context, date model.Date) (model.WeatherSnapshot, error)
}

type createDiaryRequest struct {
	Date string `json:"date" validate:"required,datetime=2006-01-02"`
	Text string `json:"text" validate:"max=10000"`
}

type updateDiaryRequest struct {
	Text string `json:"text" validate:"max=10000"`
}

// DiaryHandler serves the diary and weather endpoints.
type DiaryHandler struct {
	svc      DiaryService
	validate *validator.Validate
	logger   *slog.Logger
}

// NewDiaryHandler creates a DiaryHandler.
func NewDiaryHandler(svc DiaryService, logger *slog.Logger) *DiaryHandler {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON names ("date") rather than Go field names ("Date").
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &DiaryHandler{
		svc:      svc,
		validate: v,
		logger:   logger,
	}
}

// Routes mounts the handler's endpoints on r.
func (h *DiaryHandler) Routes(r chi.Router) {
	r.Post("/diaries", h.HandleCreate)
	r.Get("/diaries", h.HandleRead)
	r.Put("/diaries/{date}", h.HandleUpdate)
	r.Delete("/diaries/{date}", h.HandleDelete)
	r.Get("/weather/{date}", h.HandleWeather)
}

func parseDate(field, value string) (model.Date, error) {
	if value == "" {
		return model.Date{}, apperror.ValidationFailed(field, field+" is required")
	}
	d, err := model.ParseDate(value)
	if err != nil {
		return model.Date{}, apperror.ValidationFailed(field, field+" must be a date in YYYY-MM-DD format")
	}
	return d, nil
}

// decode reads a JSON body into dst and validates it.
func (h *DiaryHandler) decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.logger.Warn("invalid diary JSON", slog.String("error", err.Error()))
		return apperror.ValidationFailed("", "request body must be valid JSON")
	}
	if err := h.validate.Struct(dst); err != nil {
		return validationError(err)
	}
	return nil
}

// HandleCreate writes a new entry.
//
// HTTP: POST /api/diaries
// REQUEST BODY: {"date": "2024-06-01", "text": "..."}
func (h *DiaryHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createDiaryRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	date, err := parseDate("date", req.Date)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	entry, err := h.svc.CreateDiary(r.Context(), date, req.Text)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, entry)
}

// HandleRead lists entries for one date or for an inclusive range.
//
// HTTP: GET /api/diaries?date=2024-06-01
//
//	GET /api/diaries?start=2024-06-01&end=2024-06-30
func (h *DiaryHandler) HandleRead(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var (
		entries []model.DiaryEntry
		err     error
	)
	if q.Has("date") {
		var date model.Date
		if date, err = parseDate("date", q.Get("date")); err == nil {
			entries, err = h.svc.ReadDiary(r.Context(), date)
		}
	} else {
		var start, end model.Date
		if start, err = parseDate("start", q.Get("start")); err == nil {
			if end, err = parseDate("end", q.Get("end")); err == nil {
				entries, err = h.svc.ReadDiaries(r.Context(), start, end)
			}
		}
	}
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, entries)
}

// HandleUpdate replaces the text of the first entry for the date.
//
// HTTP: PUT /api/diaries/{date}
// REQUEST BODY: {"text": "..."}
func (h *DiaryHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	date, err := parseDate("date", chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req updateDiaryRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	entry, err := h.svc.UpdateDiary(r.Context(), date, req.Text)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, entry)
}

// HandleDelete removes every entry for the date. Deleting an empty date is
// still a 204.
//
// HTTP: DELETE /api/diaries/{date}
func (h *DiaryHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	date, err := parseDate("date", chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if _, err := h.svc.DeleteDiary(r.Context(), date); err != nil {
		writeError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleWeather returns the weather a new entry for the date would get.
//
// HTTP: GET /api/weather/{date}
func (h *DiaryHandler) HandleWeather(w http.ResponseWriter, r *http.Request) {
	date, err := parseDate("date", chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	snapshot, err := h.svc.DateWeather(r.Context(), date)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, snapshot)
}
