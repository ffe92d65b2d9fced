package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"tzevents/pkg/timezone"
)

const SharePath = "/api/events/share/"

type Handlers interface {
	GetEvents(gctx *gin.Context)
	GetEventById(gctx *gin.Context)
	GetEventByShareableId(gctx *gin.Context)
	GetEventCalendar(gctx *gin.Context)
	PostEvents(gctx *gin.Context)
	GetTimezones(gctx *gin.Context)
	GetConversion(gctx *gin.Context)
	GetHealth(gctx *gin.Context)
}

type ZoneCatalog interface {
	Zones() []timezone.Zone
}

type HandlersOption func(*handlers)

// WithErrorDetails includes the underlying error in 500 responses.
func WithErrorDetails(enabled bool) HandlersOption {
	return func(h *handlers) {
		h.errorDetails = enabled
	}
}

type handlers struct {
	repository   Repository
	catalog      ZoneCatalog
	errorDetails bool
}

func NewHandlers(repository Repository, catalog ZoneCatalog, opts ...HandlersOption) Handlers {
	h := &handlers{repository: repository, catalog: catalog}
	for _, opt := range opts {
		opt(h)
	}

	return h
}

// Register mounts every route on router.
func Register(router gin.IRouter, h Handlers) {
	router.GET("/health", h.GetHealth)

	api := router.Group("/api")
	api.GET("/events", h.GetEvents)
	api.POST("/events", h.PostEvents)
	api.GET("/events/:id", h.GetEventById)
	api.GET("/events/share/:shareableId", h.GetEventByShareableId)
	api.GET("/events/share/:shareableId/calendar.ics", h.GetEventCalendar)
	api.GET("/timezone/list", h.GetTimezones)
	api.GET("/timezone/convert", h.GetConversion)
}

func (h *handlers) GetEvents(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	events, err := h.repository.ListEvents(ctx)
	if err != nil {
		h.abort(gctx, "listing events failed", err)
		return
	}

	gctx.JSON(http.StatusOK, events)
}

func (h *handlers) GetEventById(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	// Only UUIDs name events; anything else cannot exist.
	id := gctx.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		log.Ctx(ctx).Info().Str("id", id).Msg("event id is not a uuid")
		eventLookupsTotal.WithLabelValues("id", "not_found").Inc()
		gctx.AbortWithStatus(http.StatusNotFound)

		return
	}

	event, err := h.repository.GetEventById(ctx, id)
	if !h.found(gctx, "id", err) {
		return
	}

	gctx.JSON(http.StatusOK, event)
}

func (h *handlers) GetEventByShareableId(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	event, err := h.repository.GetEventByShareableId(ctx, gctx.Param("shareableId"))
	if !h.found(gctx, "share", err) {
		return
	}

	gctx.JSON(http.StatusOK, event)
}

func (h *handlers) GetEventCalendar(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	event, err := h.repository.GetEventByShareableId(ctx, gctx.Param("shareableId"))
	if !h.found(gctx, "calendar", err) {
		return
	}

	gctx.Header("Content-Disposition", `attachment; filename="event.ics"`)
	gctx.Data(http.StatusOK, "text/calendar; charset=utf-8", []byte(EventCalendar(event, shareURL(gctx.Request, event.ShareableId))))
}

func (h *handlers) PostEvents(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	var request CreateEventRequest

	// Unknown fields and trailing data are rejected.
	decoder := json.NewDecoder(gctx.Request.Body)
	decoder.DisallowUnknownFields()

	err := decoder.Decode(&request)
	if err == nil {
		if _, trailing := decoder.Token(); !errors.Is(trailing, io.EOF) {
			err = errors.New("request body must contain a single JSON object")
		}
	}

	if err != nil {
		log.Ctx(ctx).Info().Err(err).Msg("failed to decode request body")
		gctx.AbortWithStatusJSON(http.StatusBadRequest, NewError("invalid request body", err))

		return
	}

	event, err := ValidateEvent(request)
	if err != nil {
		log.Ctx(ctx).Info().Err(err).Msg("event validation failed")
		gctx.AbortWithStatusJSON(http.StatusBadRequest, NewError("event validation failed", err))

		return
	}

	savedEvent, err := h.repository.SaveEvent(ctx, event)
	if err != nil {
		h.abort(gctx, "saving event failed", err)
		return
	}

	eventsCreatedTotal.Inc()
	log.Ctx(ctx).Info().Str("id", savedEvent.Id).Str("shareable_id", savedEvent.ShareableId).Msg("event created")

	gctx.Header("Location", SharePath+url.PathEscape(savedEvent.ShareableId))
	gctx.JSON(http.StatusCreated, savedEvent)
}

func (h *handlers) GetTimezones(gctx *gin.Context) {
	gctx.JSON(http.StatusOK, h.catalog.Zones())
}

func (h *handlers) GetConversion(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	from, to, dateTime := gctx.Query("fromTimezone"), gctx.Query("toTimezone"), gctx.Query("dateTime")
	if from == "" || to == "" || dateTime == "" {
		conversionsTotal.WithLabelValues("invalid").Inc()
		gctx.AbortWithStatusJSON(http.StatusBadRequest, NewError("fromTimezone, toTimezone and dateTime are required"))

		return
	}

	conversion, err := ConvertText(from, to, dateTime)
	if err != nil {
		switch {
		case errors.Is(err, timezone.ErrUnknownTimezone):
			conversionsTotal.WithLabelValues("invalid").Inc()
			log.Ctx(ctx).Info().Err(err).Msg("conversion with unknown timezone")
			gctx.AbortWithStatusJSON(http.StatusBadRequest, NewError("invalid timezone id", err))
		case errors.Is(err, timezone.ErrInvalidDateTime):
			conversionsTotal.WithLabelValues("invalid").Inc()
			log.Ctx(ctx).Info().Err(err).Msg("conversion with invalid date time")
			gctx.AbortWithStatusJSON(http.StatusBadRequest, NewError("invalid dateTime", err))
		default:
			conversionsTotal.WithLabelValues("error").Inc()
			h.abort(gctx, "error converting time", err)
		}

		return
	}

	conversionsTotal.WithLabelValues("ok").Inc()
	log.Ctx(ctx).Debug().Str("from", from).Str("to", to).Str("date_time", dateTime).Msg("time converted")

	gctx.JSON(http.StatusOK, conversion)
}

func (h *handlers) GetHealth(gctx *gin.Context) {
	gctx.String(http.StatusOK, "Healthy")
}

// found answers 404 or an error response when err is set, and reports
// whether the handler can go on.
func (h *handlers) found(gctx *gin.Context, kind string, err error) bool {
	ctx := gctx.Request.Context()

	switch {
	case err == nil:
		eventLookupsTotal.WithLabelValues(kind, "ok").Inc()
		return true
	case errors.Is(err, ErrEventNotFound):
		eventLookupsTotal.WithLabelValues(kind, "not_found").Inc()
		log.Ctx(ctx).Info().Str("lookup", kind).Msg("event not found")
		gctx.AbortWithStatus(http.StatusNotFound)

		return false
	default:
		eventLookupsTotal.WithLabelValues(kind, "error").Inc()
		h.abort(gctx, "getting event failed", err)

		return false
	}
}

func (h *handlers) abort(gctx *gin.Context, message string, err error) {
	ctx := gctx.Request.Context()

	status := StatusOf(err)
	if status < http.StatusInternalServerError {
		log.Ctx(ctx).Info().Err(err).Int("status", status).Msg(message)
		gctx.AbortWithStatusJSON(status, NewError(message, err))

		return
	}

	log.Ctx(ctx).Error().Err(err).Msg(message)

	if h.errorDetails {
		gctx.AbortWithStatusJSON(status, NewError("internal server error", fmt.Errorf("%s: %w", message, err)))
		return
	}

	gctx.AbortWithStatusJSON(status, NewError("internal server error"))
}

func shareURL(request *http.Request, shareableId string) string {
	scheme := "http"
	if request.TLS != nil {
		scheme = "https"
	}

	if forwarded := request.Header.Get("X-Forwarded-Proto"); forwarded != "" {
		scheme = forwarded
	}

	return (&url.URL{Scheme: scheme, Host: request.Host, Path: SharePath + shareableId}).String()
}
