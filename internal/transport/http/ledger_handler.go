package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	apierrors "nsecli/internal/errors"
	"nsecli/internal/services"
)

// yearCtxKey carries the parsed year through the request context
type yearCtxKey struct{}

// LedgerHandler handles ledger-related HTTP requests
type LedgerHandler struct {
	service      *services.LedgerService
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewLedgerHandler creates a new ledger handler
func NewLedgerHandler(service *services.LedgerService, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *LedgerHandler {
	return &LedgerHandler{
		service:      service,
		logger:       logger.With(slog.String("component", "ledger_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the ledger routes, mounted under /api/years
func (h *LedgerHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Route("/{year}", func(r chi.Router) {
		r.Use(h.YearCtx)
		r.Post("/", h.EnsureYear)
		r.Get("/calendar", h.GetCalendar)
		r.Route("/ledger", func(r chi.Router) {
			r.Post("/", h.EnsureLedger)
			r.Get("/", h.ListLedger)
			r.Get("/{date}", h.GetStatus)
			r.Post("/{date}", h.UpdateStatus)
		})
	})

	return r
}

// YearCtx middleware parses and validates the year parameter
func (h *LedgerHandler) YearCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := chi.URLParam(r, "year")
		year, err := strconv.Atoi(raw)
		if err != nil || len(raw) != 4 {
			h.errorHandler.HandleError(w, r, apierrors.ErrInvalidYear)
			return
		}

		ctx := context.WithValue(r.Context(), yearCtxKey{}, year)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// yearFrom extracts the validated year from the request context
func yearFrom(ctx context.Context) int {
	year, _ := ctx.Value(yearCtxKey{}).(int)
	return year
}

// EnsureYear handles POST /api/years/{year}
func (h *LedgerHandler) EnsureYear(w http.ResponseWriter, r *http.Request) {
	year := yearFrom(r.Context())

	created, err := h.service.EnsureYear(r.Context(), year)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	if created {
		render.Status(r, http.StatusCreated)
	}
	render.JSON(w, r, map[string]interface{}{
		"status":  "success",
		"created": created,
		"year":    year,
	})
}

// EnsureLedger handles POST /api/years/{year}/ledger
func (h *LedgerHandler) EnsureLedger(w http.ResponseWriter, r *http.Request) {
	year := yearFrom(r.Context())

	created, err := h.service.EnsureLedger(r.Context(), year)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	if created {
		render.Status(r, http.StatusCreated)
	}
	render.JSON(w, r, map[string]interface{}{
		"status":  "success",
		"created": created,
		"year":    year,
	})
}

// ListLedger handles GET /api/years/{year}/ledger
func (h *LedgerHandler) ListLedger(w http.ResponseWriter, r *http.Request) {
	year := yearFrom(r.Context())
	reqID := middleware.GetReqID(r.Context())

	h.logger.InfoContext(r.Context(), "listing ledger",
		slog.Int("year", year),
		slog.String("request_id", reqID),
	)

	rows, err := h.service.ListLedger(r.Context(), year)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	data := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		data = append(data, flattenRow(row.Date, row.Slots))
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   data,
		"count":  len(data),
	})
}

// GetStatus handles GET /api/years/{year}/ledger/{date}
func (h *LedgerHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	year := yearFrom(r.Context())
	date := chi.URLParam(r, "date")

	row, err := h.service.GetStatus(r.Context(), year, date)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   flattenRow(row.Date, row.Slots),
	})
}

// UpdateStatus handles POST /api/years/{year}/ledger/{date}
func (h *LedgerHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	year := yearFrom(r.Context())
	date := chi.URLParam(r, "date")

	var updates map[string]string
	if err := render.DecodeJSON(r.Body, &updates); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	if len(updates) == 0 {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("body", "at least one slot must be named"))
		return
	}

	created, err := h.service.UpdateStatus(r.Context(), year, date, updates)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	if created {
		render.Status(r, http.StatusCreated)
	}
	render.JSON(w, r, map[string]interface{}{
		"status":  "success",
		"created": created,
		"date":    date,
	})
}

// GetCalendar handles GET /api/years/{year}/calendar
func (h *LedgerHandler) GetCalendar(w http.ResponseWriter, r *http.Request) {
	year := yearFrom(r.Context())

	cal, err := h.service.GenerateCalendar(r.Context(), year)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status":      "success",
		"year":        cal.Year,
		"range_start": cal.RangeStart,
		"range_end":   cal.RangeEnd,
		"dates":       cal.Dates,
		"count":       len(cal.Dates),
	})
}

// flattenRow produces the wire shape: date plus file_1..file_11 keys
func flattenRow(date string, slots map[string]string) map[string]string {
	out := make(map[string]string, len(slots)+1)
	out["date"] = date
	for slot, value := range slots {
		out[slot] = value
	}
	return out
}

// handleServiceError maps service sentinels onto API errors
func (h *LedgerHandler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidYear):
		h.errorHandler.HandleError(w, r, apierrors.ErrInvalidYear)
	case errors.Is(err, services.ErrInvalidDate):
		h.errorHandler.HandleError(w, r, apierrors.ErrInvalidDate)
	case errors.Is(err, services.ErrInvalidSlot):
		h.errorHandler.HandleError(w, r, apierrors.ErrInvalidSlot)
	case errors.Is(err, services.ErrLedgerNotFound):
		h.errorHandler.HandleError(w, r, apierrors.ErrLedgerNotFound)
	case errors.Is(err, services.ErrDateNotFound):
		h.errorHandler.HandleError(w, r, apierrors.ErrDateNotFound)
	default:
		h.errorHandler.HandleError(w, r, err)
	}
}
