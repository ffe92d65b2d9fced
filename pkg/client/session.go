package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"tzevents/core"
	"tzevents/pkg/storage"
)

type Source int

const (
	FromCache Source = iota
	FromServer
)

func (s Source) String() string {
	if s == FromServer {
		return "server"
	}
	return "cache"
}

// ShowFunc receives each copy of an event as it becomes available.
type ShowFunc func(event storage.EventSummary, source Source)

// Created is the outcome of Session.Create. An Offline event only lives in
// the local cache; Err holds the failure that kept it from the server.
type Created struct {
	Event   storage.EventSummary
	Remote  *core.Event
	Offline bool
	Err     error
}

// Session combines the API with the local event cache. Cached entries are
// keyed by shareable id, so a shared link works offline once it has been
// opened.
type Session struct {
	api   *Client
	cache *storage.EventCache
	now   func() time.Time
}

type SessionOption func(*Session)

func WithSessionClock(now func() time.Time) SessionOption {
	return func(s *Session) {
		s.now = now
	}
}

func NewSession(api *Client, cache *storage.EventCache, opts ...SessionOption) *Session {
	session := &Session{
		api:   api,
		cache: cache,
		now:   time.Now,
	}

	for _, opt := range opts {
		opt(session)
	}

	return session
}

// Load shows the cached copy of shareableId right away, then the server
// copy. A server answer that arrives after ctx is done is dropped. When the
// server cannot be asked the cached copy stands. When the server answers that
// it has no such event the cached copy is still returned, together with an
// error matching ErrNotFound, so callers can tell a local-only or deleted
// event from an offline one. With no copy at all the result is
// core.ErrEventNotFound.
func (s *Session) Load(ctx context.Context, shareableId string, show ShowFunc) (storage.EventSummary, error) {
	cached, ok, err := s.cache.Get(shareableId)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("shareable_id", shareableId).Msg("event cache unreadable")
	}

	if ok {
		show(cached, FromCache)
	}

	event, err := s.api.GetEventByShareableId(ctx, shareableId)
	if ctx.Err() != nil {
		return cached, ctx.Err()
	}

	if err != nil {
		if ok {
			log.Ctx(ctx).Warn().Err(err).Str("shareable_id", shareableId).Msg("showing cached event")
			if errors.Is(err, ErrNotFound) {
				return cached, fmt.Errorf("event %s: %w", shareableId, err)
			}
			return cached, nil
		}

		if errors.Is(err, ErrNotFound) {
			return storage.EventSummary{}, core.ErrEventNotFound
		}

		return storage.EventSummary{}, fmt.Errorf("%w: %w", core.ErrEventNotFound, err)
	}

	fresh, err := storage.NewEventSummary(event.ShareableId, event.Title, event.StartTime, event.Timezone, event.CreatedAt)
	if err != nil {
		return storage.EventSummary{}, fmt.Errorf("event %s: %w", shareableId, err)
	}

	if err := s.cache.Upsert(fresh); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("shareable_id", shareableId).Msg("unable to cache event")
	}

	show(fresh, FromServer)

	return fresh, nil
}

// Create posts request and mirrors the result into the cache. When the
// server is unreachable or failing the event is kept locally instead and
// returned Offline; rejected requests are returned as errors.
func (s *Session) Create(ctx context.Context, request core.CreateEventRequest) (Created, error) {
	event, err := s.api.CreateEvent(ctx, request)
	if err == nil {
		summary, err := storage.NewEventSummary(event.ShareableId, event.Title, event.StartTime, event.Timezone, event.CreatedAt)
		if err != nil {
			return Created{}, fmt.Errorf("created event %s: %w", event.ShareableId, err)
		}

		if err := s.cache.Upsert(summary); err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("shareable_id", event.ShareableId).Msg("unable to cache event")
		}

		return Created{Event: summary, Remote: event}, nil
	}

	if !Retryable(err) {
		return Created{}, err
	}

	local, verr := core.ValidateEvent(request)
	if verr != nil {
		return Created{}, verr
	}

	summary, serr := storage.NewEventSummary(uuid.NewString(), local.Title, local.StartTime, local.Timezone, s.now())
	if serr != nil {
		return Created{}, serr
	}

	if cerr := s.cache.Upsert(summary); cerr != nil {
		return Created{}, errors.Join(err, cerr)
	}

	log.Ctx(ctx).Warn().Err(err).Str("id", summary.Id).Msg("event saved locally only")

	return Created{Event: summary, Offline: true, Err: err}, nil
}

func (s *Session) Cached() ([]storage.EventSummary, error) {
	return s.cache.All()
}

func (s *Session) Forget(id string) (bool, error) {
	return s.cache.Delete(id)
}
