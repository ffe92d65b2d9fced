package countdown

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"tzevents/pkg/timezone"
)

const DefaultLocalTimeEvery = time.Minute

type Target struct {
	Title    string
	Start    time.Time
	Timezone string
}

type LocalTime struct {
	Event      time.Time `json:"event"`
	EventZone  string    `json:"eventZone"`
	Viewer     time.Time `json:"viewer"`
	ViewerZone string    `json:"viewerZone"`
}

type Renderer interface {
	RenderCountdown(target Target, snapshot Snapshot)
	RenderLocalTime(target Target, local LocalTime)
}

type ViewOption func(*View)

// WithViewerZone overrides the detected zone of the viewer.
func WithViewerZone(zone string) ViewOption {
	return func(v *View) {
		v.viewerZone = zone
	}
}

func WithLocalTimeEvery(every time.Duration) ViewOption {
	return func(v *View) {
		v.localEvery = every
	}
}

func WithClock(now func() time.Time) ViewOption {
	return func(v *View) {
		v.now = now
	}
}

func WithCountdownOptions(opts ...Option) ViewOption {
	return func(v *View) {
		v.countdownOpts = append(v.countdownOpts, opts...)
	}
}

// View keeps a countdown and a local time display for one event on screen.
// It owns a single scheduler whose tasks live exactly as long as Run.
type View struct {
	target        Target
	viewerZone    string
	localEvery    time.Duration
	now           func() time.Time
	countdownOpts []Option

	countdown *Countdown
	scheduler *Scheduler
	renderer  Renderer

	mu            sync.Mutex
	countdownTask *Task
}

func NewView(target Target, renderer Renderer, opts ...ViewOption) (*View, error) {
	v := &View{
		target:     target,
		localEvery: DefaultLocalTimeEvery,
		now:        time.Now,
		renderer:   renderer,
	}

	for _, opt := range opts {
		opt(v)
	}

	if v.viewerZone == "" {
		v.viewerZone = timezone.LocalZone()
	}

	if _, err := timezone.Load(v.target.Timezone); err != nil {
		return nil, fmt.Errorf("event timezone: %w", err)
	}

	if _, err := timezone.Load(v.viewerZone); err != nil {
		return nil, fmt.Errorf("viewer timezone: %w", err)
	}

	v.countdown = New(target.Start, v.countdownOpts...)
	v.scheduler = NewScheduler(v.now)

	return v, nil
}

func (v *View) ViewerZone() string {
	return v.viewerZone
}

func (v *View) State() State {
	return v.countdown.State()
}

// Run renders immediately, then keeps both displays fresh until ctx is
// done. Cancelling ctx removes the view's tasks before Run returns.
func (v *View) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	v.tick(v.now())
	v.refreshLocalTime(v.now())

	countdownTask, err := v.scheduler.Every(time.Second, v.tick)
	if err != nil {
		return err
	}

	localTask, err := v.scheduler.Every(v.localEvery, v.refreshLocalTime)
	if err != nil {
		countdownTask.Cancel()
		return err
	}

	v.mu.Lock()
	v.countdownTask = countdownTask
	complete := v.countdown.State() == Complete
	v.mu.Unlock()

	if complete {
		countdownTask.Cancel()
	}

	v.scheduler.Start()
	log.Ctx(ctx).Debug().Str("event", v.target.Title).Str("viewer_zone", v.viewerZone).Msg("view mounted")

	<-ctx.Done()

	countdownTask.Cancel()
	localTask.Cancel()
	<-v.scheduler.Stop().Done()

	log.Ctx(ctx).Debug().Str("event", v.target.Title).Msg("view unmounted")

	return nil
}

func (v *View) tick(now time.Time) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.countdown.State() == Complete {
		return
	}

	snapshot := v.countdown.Tick(now)
	v.renderer.RenderCountdown(v.target, snapshot)

	if snapshot.State == Complete && v.countdownTask != nil {
		v.countdownTask.Cancel()
	}
}

func (v *View) refreshLocalTime(_ time.Time) {
	conversion, err := timezone.ConvertInstant(v.target.Start, v.target.Timezone, v.viewerZone)
	if err != nil {
		log.Error().Err(err).Str("event", v.target.Title).Msg("local time conversion failed")
		return
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	v.renderer.RenderLocalTime(v.target, LocalTime{
		Event:      conversion.Input,
		EventZone:  conversion.InputZone,
		Viewer:     conversion.Output,
		ViewerZone: conversion.OutputZone,
	})
}
