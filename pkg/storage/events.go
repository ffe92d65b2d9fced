package storage

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"tzevents/pkg/timezone"
)

const (
	EventsKey = "events"

	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// EventSummary is the cached form of an event: the wall clock date and time
// it is shown with, the zone they are expressed in, and the start instant
// itself. Entries written without Start only have the wall clock text.
type EventSummary struct {
	Id        string    `json:"id"`
	Name      string    `json:"name"`
	Date      string    `json:"date"`
	Time      string    `json:"time"`
	Timezone  string    `json:"timezone"`
	Start     time.Time `json:"start,omitzero"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewEventSummary renders start as wall clock text in zone.
func NewEventSummary(id string, name string, start time.Time, zone string, createdAt time.Time) (EventSummary, error) {
	local, err := timezone.In(start, zone)
	if err != nil {
		return EventSummary{}, err
	}

	return EventSummary{
		Id:        id,
		Name:      name,
		Date:      local.Format(DateLayout),
		Time:      local.Format(TimeLayout),
		Timezone:  zone,
		Start:     start.UTC(),
		CreatedAt: createdAt.UTC(),
	}, nil
}

// StartTime is the start instant. Only entries without one fall back to
// resolving the wall clock text in the event's zone.
func (e EventSummary) StartTime() (time.Time, error) {
	if !e.Start.IsZero() {
		return e.Start, nil
	}

	return timezone.ResolveText(e.Date+"T"+e.Time, e.Timezone)
}

// EventCache keeps every summary under the single EventsKey entry, as an
// object keyed by event id.
type EventCache struct {
	store Store
}

func NewEventCache(store Store) *EventCache {
	return &EventCache{store: store}
}

func (c *EventCache) Upsert(event EventSummary) error {
	if event.Id == "" {
		return errors.New("upsert event: id is required")
	}

	events, err := c.read()
	if err != nil {
		return err
	}

	events[event.Id] = event
	return c.write(events)
}

func (c *EventCache) Delete(id string) (bool, error) {
	events, err := c.read()
	if err != nil {
		return false, err
	}

	if _, ok := events[id]; !ok {
		return false, nil
	}

	delete(events, id)
	return true, c.write(events)
}

func (c *EventCache) Get(id string) (EventSummary, bool, error) {
	events, err := c.read()
	if err != nil {
		return EventSummary{}, false, err
	}

	event, ok := events[id]
	return event, ok, nil
}

// All returns every cached event, newest first.
func (c *EventCache) All() ([]EventSummary, error) {
	events, err := c.read()
	if err != nil {
		return nil, err
	}

	all := slices.Collect(maps.Values(events))
	slices.SortFunc(all, func(a, b EventSummary) int {
		if n := b.CreatedAt.Compare(a.CreatedAt); n != 0 {
			return n
		}
		return cmp.Compare(a.Id, b.Id)
	})

	return all, nil
}

func (c *EventCache) read() (map[string]EventSummary, error) {
	raw, ok, err := c.store.Get(EventsKey)
	if err != nil {
		return nil, err
	}

	events := make(map[string]EventSummary)
	if !ok {
		return events, nil
	}

	if err := json.Unmarshal(raw, &events); err != nil {
		return nil, fmt.Errorf("decode cached events: %w", err)
	}

	if events == nil {
		events = make(map[string]EventSummary)
	}

	return events, nil
}

func (c *EventCache) write(events map[string]EventSummary) error {
	raw, err := json.Marshal(events)
	if err != nil {
		return fmt.Errorf("encode cached events: %w", err)
	}

	return c.store.Put(EventsKey, raw)
}
