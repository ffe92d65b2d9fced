package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"tzevents/pkg/countdown"
)

// printer writes values as aligned text, indented JSON or YAML documents.
type printer struct {
	mu     sync.Mutex
	out    io.Writer
	format string
	docs   int
}

func newPrinter(out io.Writer, format string) (*printer, error) {
	switch format {
	case "text", "json", "yaml":
		return &printer{out: out, format: format}, nil
	default:
		return nil, fmt.Errorf("%w: unknown output format %q", errUsage, format)
	}
}

func (p *printer) print(value any, text func(w io.Writer)) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.format {
	case "json":
		encoder := json.NewEncoder(p.out)
		encoder.SetIndent("", "  ")

		return encoder.Encode(value)
	case "yaml":
		node, err := yamlNode(value)
		if err != nil {
			return err
		}

		if p.docs > 0 {
			if _, err := io.WriteString(p.out, "---\n"); err != nil {
				return err
			}
		}
		p.docs++

		encoder := yaml.NewEncoder(p.out)
		encoder.SetIndent(2)

		if err := encoder.Encode(node); err != nil {
			return err
		}

		return encoder.Close()
	default:
		w := tabwriter.NewWriter(p.out, 0, 4, 2, ' ', 0)
		text(w)

		return w.Flush()
	}
}

// yamlNode goes through JSON so YAML output keeps the JSON field names and
// order, then drops the JSON flow style.
func yamlNode(value any) (*yaml.Node, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}

	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, err
	}

	blockStyle(&node)

	return &node, nil
}

func blockStyle(node *yaml.Node) {
	node.Style = 0
	for _, child := range node.Content {
		blockStyle(child)
	}
}

// countdownPrinter renders a countdown.View one line per update.
type countdownPrinter struct {
	printer *printer

	mu  sync.Mutex
	err error
}

type countdownLine struct {
	Event     string              `json:"event"`
	State     string              `json:"state"`
	Remaining countdown.Remaining `json:"remaining"`
}

type localTimeLine struct {
	Event      string `json:"event"`
	EventTime  string `json:"eventTime"`
	EventZone  string `json:"eventZone"`
	ViewerTime string `json:"viewerTime"`
	ViewerZone string `json:"viewerZone"`
}

const localTimeLayout = "Mon, 02 Jan 2006 15:04 MST"

func (r *countdownPrinter) RenderCountdown(target countdown.Target, snapshot countdown.Snapshot) {
	line := countdownLine{Event: target.Title, State: snapshot.State.String(), Remaining: snapshot.Remaining}

	r.record(r.printer.print(line, func(w io.Writer) {
		if snapshot.State == countdown.Complete {
			fmt.Fprintf(w, "%s is happening now!\n", target.Title)
			return
		}

		left := snapshot.Remaining
		fmt.Fprintf(w, "%s starts in %dd %02dh %02dm %02ds\n", target.Title, left.Days, left.Hours, left.Minutes, left.Seconds)
	}))
}

func (r *countdownPrinter) RenderLocalTime(target countdown.Target, local countdown.LocalTime) {
	line := localTimeLine{
		Event:      target.Title,
		EventTime:  local.Event.Format(time.RFC3339),
		EventZone:  local.EventZone,
		ViewerTime: local.Viewer.Format(time.RFC3339),
		ViewerZone: local.ViewerZone,
	}

	r.record(r.printer.print(line, func(w io.Writer) {
		fmt.Fprintf(w, "Event time\t%s\t(%s)\n", local.Event.Format(localTimeLayout), local.EventZone)
		fmt.Fprintf(w, "Your time\t%s\t(%s)\n", local.Viewer.Format(localTimeLayout), local.ViewerZone)
	}))
}

func (r *countdownPrinter) record(err error) {
	if err == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err == nil {
		r.err = err
	}
}
