package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"tzevents/core"
	"tzevents/pkg/client"
	"tzevents/pkg/countdown"
	"tzevents/pkg/storage"
	"tzevents/pkg/timezone"
)

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, c *cli, args []string) error
}

var commands = []command{
	{name: "zones", summary: "list the supported timezones", run: zonesCommand},
	{name: "convert", summary: "convert a date and time between two timezones", run: convertCommand},
	{name: "list", summary: "list the events stored on the server", run: listCommand},
	{name: "create", summary: "create an event and get its share link", run: createCommand},
	{name: "show", summary: "show a shared event with a live countdown", run: showCommand},
	{name: "cached", summary: "list the events kept on this machine", run: cachedCommand},
	{name: "forget", summary: "remove an event from this machine", run: forgetCommand},
}

func lookupCommand(name string) (command, bool) {
	for _, cmd := range commands {
		if cmd.name == name {
			return cmd, true
		}
	}

	return command{}, false
}

func zonesCommand(ctx context.Context, c *cli, args []string) error {
	flags := c.flags("zones")
	local := flags.Bool("local", false, "list the zones known to this machine instead of asking the API")
	filter := flags.String("filter", "", "only zones whose id contains this text")

	if err := parse(flags, args); err != nil {
		return err
	}

	var zones []timezone.Zone
	if *local {
		zones = timezone.NewCatalog().Zones()
	} else {
		var err error
		if zones, err = c.api.ListTimezones(ctx); err != nil {
			return fmt.Errorf("list timezones: %w", err)
		}
	}

	if *filter != "" {
		needle := strings.ToLower(*filter)
		matching := zones[:0:0]
		for _, zone := range zones {
			if strings.Contains(strings.ToLower(zone.Id), needle) {
				matching = append(matching, zone)
			}
		}
		zones = matching
	}

	return c.printer.print(zones, func(w io.Writer) {
		for _, zone := range zones {
			fmt.Fprintf(w, "%s\t%s\n", zone.Id, zone.DisplayName)
		}
	})
}

func convertCommand(ctx context.Context, c *cli, args []string) error {
	flags := c.flags("convert")
	from := flags.String("from", "", "zone the time is read in")
	to := flags.String("to", "", "zone to express the time in")
	at := flags.String("at", "", "date and time, YYYY-MM-DDTHH:MM or RFC 3339")
	local := flags.Bool("local", false, "convert on this machine instead of asking the API")

	if err := parse(flags, args); err != nil {
		return err
	}

	if *from == "" || *to == "" || *at == "" {
		return fmt.Errorf("%w: --from, --to and --at are required", errUsage)
	}

	var (
		conversion *core.ConvertResponse
		err        error
	)

	if *local {
		conversion, err = core.ConvertText(*from, *to, *at)
	} else {
		conversion, err = c.api.Convert(ctx, *from, *to, *at)
	}

	if err != nil {
		return fmt.Errorf("convert: %w", err)
	}

	return c.printer.print(conversion, func(w io.Writer) {
		fmt.Fprintf(w, "%s\t%s\n", conversion.InputTime, conversion.InputTimezone)
		fmt.Fprintf(w, "%s\t%s\n", conversion.OutputTime, conversion.OutputTimezone)
		fmt.Fprintf(w, "%s\tUTC\n", conversion.UtcTime)
	})
}

func listCommand(ctx context.Context, c *cli, args []string) error {
	if err := parse(c.flags("list"), args); err != nil {
		return err
	}

	events, err := c.api.ListEvents(ctx)
	if err != nil {
		return fmt.Errorf("list events: %w", err)
	}

	return c.printer.print(events, func(w io.Writer) {
		fmt.Fprintln(w, "SHAREABLE ID\tTITLE\tSTART\tTIMEZONE")
		for _, event := range events {
			start, err := timezone.In(event.StartTime, event.Timezone)
			if err != nil {
				start = event.StartTime
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", event.ShareableId, event.Title, start.Format(storage.DateLayout+" "+storage.TimeLayout), event.Timezone)
		}
	})
}

func createCommand(ctx context.Context, c *cli, args []string) error {
	flags := c.flags("create")
	title := flags.String("title", "", "event title")
	date := flags.String("date", "", "start date, YYYY-MM-DD")
	clock := flags.String("time", "", "start time, HH:MM")
	zone := flags.String("timezone", timezone.LocalZone(), "zone the date and time are read in")
	description := flags.String("description", "", "optional description")

	if err := parse(flags, args); err != nil {
		return err
	}

	if *title == "" || *date == "" || *clock == "" {
		return fmt.Errorf("%w: --title, --date and --time are required", errUsage)
	}

	request := core.CreateEventRequest{
		Title:     *title,
		StartTime: *date + "T" + *clock,
		Timezone:  *zone,
	}

	if *description != "" {
		request.Description = description
	}

	created, err := c.session.Create(ctx, request)
	if err != nil {
		return fmt.Errorf("create event: %w", err)
	}

	if created.Offline {
		fmt.Fprintf(c.stderr, "warning: the server could not be reached, the event was saved on this machine only and cannot be shared (%v)\n", created.Err)
	}

	return c.printer.print(created.Event, func(w io.Writer) {
		event := created.Event
		fmt.Fprintf(w, "Created\t%s\n", event.Name)
		fmt.Fprintf(w, "Starts\t%s %s %s\n", event.Date, event.Time, event.Timezone)
		fmt.Fprintf(w, "Id\t%s\n", event.Id)
		if !created.Offline {
			fmt.Fprintf(w, "Share\t%s%s%s\n", c.api.BaseURL, core.SharePath, event.Id)
		}
	})
}

type shownEvent struct {
	Source string               `json:"source"`
	Event  storage.EventSummary `json:"event"`
}

func showCommand(ctx context.Context, c *cli, args []string) error {
	flags := c.flags("show")
	viewer := flags.String("zone", timezone.LocalZone(), "your timezone")
	once := flags.Bool("once", false, "print the event and exit without a countdown")

	if err := parse(flags, args); err != nil {
		return err
	}

	if flags.NArg() != 1 {
		return fmt.Errorf("%w: show takes exactly one shareable id", errUsage)
	}

	var printErr error
	event, err := c.session.Load(ctx, flags.Arg(0), func(event storage.EventSummary, source client.Source) {
		printErr = errors.Join(printErr, c.printer.print(shownEvent{Source: source.String(), Event: event}, func(w io.Writer) {
			fmt.Fprintf(w, "%s\t%s %s %s\t(%s)\n", event.Name, event.Date, event.Time, event.Timezone, source)
		}))
	})
	switch {
	case err == nil:
	case errors.Is(err, client.ErrNotFound) && event.Id != "":
		fmt.Fprintf(c.stderr, "warning: the server does not know event %s, showing the copy kept on this machine\n", flags.Arg(0))
	case errors.Is(err, core.ErrEventNotFound):
		return fmt.Errorf("event %s not found", flags.Arg(0))
	default:
		return err
	}

	if printErr != nil || *once {
		return printErr
	}

	start, err := event.StartTime()
	if err != nil {
		return fmt.Errorf("event %s: %w", event.Id, err)
	}

	viewCtx, unmount := context.WithCancel(ctx)
	defer unmount()

	renderer := &countdownPrinter{printer: c.printer}
	view, err := countdown.NewView(
		countdown.Target{Title: event.Name, Start: start, Timezone: event.Timezone},
		renderer,
		countdown.WithViewerZone(*viewer),
		countdown.WithCountdownOptions(countdown.OnComplete(unmount)),
	)
	if err != nil {
		return err
	}

	if err := view.Run(viewCtx); err != nil {
		return err
	}

	return renderer.err
}

func cachedCommand(_ context.Context, c *cli, args []string) error {
	if err := parse(c.flags("cached"), args); err != nil {
		return err
	}

	events, err := c.session.Cached()
	if err != nil {
		return fmt.Errorf("read cache: %w", err)
	}

	return c.printer.print(events, func(w io.Writer) {
		fmt.Fprintln(w, "ID\tNAME\tDATE\tTIME\tTIMEZONE")
		for _, event := range events {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", event.Id, event.Name, event.Date, event.Time, event.Timezone)
		}
	})
}

func forgetCommand(_ context.Context, c *cli, args []string) error {
	flags := c.flags("forget")
	if err := parse(flags, args); err != nil {
		return err
	}

	if flags.NArg() != 1 {
		return fmt.Errorf("%w: forget takes exactly one id", errUsage)
	}

	removed, err := c.session.Forget(flags.Arg(0))
	if err != nil {
		return fmt.Errorf("update cache: %w", err)
	}

	if !removed {
		return fmt.Errorf("no cached event %s", flags.Arg(0))
	}

	return nil
}
