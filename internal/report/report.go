// Package report renders a recorded client session into diagnostic
// artifacts: an SVG timeline, a latency scatter plot, and a PDF summary that
// lists the events and embeds the plot. None of it sits on the protocol's critical path —
// it is a consumer of session.ConnectionEvent, wired through an EventSink.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/ajstarks/svgo"
	"github.com/jung-kurt/gofpdf"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/solvik/mqttc/session"
)

// Timeline accumulates the ConnectionEvents emitted by a session.Client
// over its lifetime, in arrival order.
type Timeline struct {
	start  time.Time
	events []session.ConnectionEvent
}

// NewTimeline returns an empty Timeline anchored at the current time; every
// recorded event's offset is measured from here.
func NewTimeline() *Timeline {
	return &Timeline{start: time.Now()}
}

// Record is a session.EventSink: pass t.Record to session.WithEventSink to
// have a Client feed this Timeline directly.
func (t *Timeline) Record(ev session.ConnectionEvent) {
	t.events = append(t.events, ev)
}

// Len reports how many events have been recorded.
func (t *Timeline) Len() int { return len(t.events) }

const (
	svgWidth   = 800
	svgHeight  = 120
	svgMargin  = 20
	markerStep = 12
)

// RenderSVG draws a horizontal timeline: one marker per event, positioned by
// elapsed time since the Timeline started, labeled with its kind.
func RenderSVG(w io.Writer, t *Timeline) error {
	canvas := svg.New(w)
	canvas.Start(svgWidth, svgHeight)
	canvas.Line(svgMargin, svgHeight/2, svgWidth-svgMargin, svgHeight/2, "stroke:black;stroke-width:1")

	if len(t.events) == 0 {
		canvas.Text(svgWidth/2, svgHeight/2-10, "no events recorded", "text-anchor:middle;font-size:12px")
		canvas.End()
		return nil
	}

	span := t.events[len(t.events)-1].At.Sub(t.start)
	if span <= 0 {
		span = time.Second
	}
	usableWidth := float64(svgWidth - 2*svgMargin)

	for i, ev := range t.events {
		offset := ev.At.Sub(t.start)
		x := svgMargin + int(usableWidth*float64(offset)/float64(span))
		y := svgHeight/2 - (markerStep * (i % 3))
		canvas.Circle(x, svgHeight/2, 4, "fill:steelblue")
		canvas.Text(x, y, ev.Kind.String(), "text-anchor:middle;font-size:10px")
	}
	canvas.End()
	return nil
}

// RenderLatencyPlot draws a scatter plot of round-trip latencies (in
// milliseconds) for every event that carries one — currently PINGREQ/
// PINGRESP round trips — and saves it as a PNG at path.
func RenderLatencyPlot(path string, t *Timeline) error {
	p, err := plot.New()
	if err != nil {
		return fmt.Errorf("report: new plot: %w", err)
	}
	p.Title.Text = "Round-trip latency"
	p.X.Label.Text = "event index"
	p.Y.Label.Text = "latency (ms)"

	var pts plotter.XYs
	for i, ev := range t.events {
		if !ev.HasLatency {
			continue
		}
		pts = append(pts, plotter.XY{X: float64(i), Y: float64(ev.RoundTrip) / float64(time.Millisecond)})
	}

	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return fmt.Errorf("report: new scatter: %w", err)
	}
	p.Add(scatter)

	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("report: save plot: %w", err)
	}
	return nil
}

// RenderPDF writes a PDF session report at path: one text line per recorded
// event (timestamp, kind, and round trip where present), followed by the
// latency plot, which it first saves as a PNG beside path. The SVG timeline
// is not included (gofpdf has no native SVG renderer).
func RenderPDF(path string, t *Timeline) error {
	latencyPNG := path + ".latency.png"
	if err := RenderLatencyPlot(latencyPNG, t); err != nil {
		return err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(0, 10, "MQTT session report")
	pdf.Ln(14)

	pdf.SetFont("Arial", "", 11)
	pdf.Cell(0, 8, fmt.Sprintf("Events recorded: %d", t.Len()))
	pdf.Ln(8)
	for _, ev := range t.events {
		line := fmt.Sprintf("%s  %s", ev.At.Format(time.RFC3339Nano), ev.Kind.String())
		if ev.HasLatency {
			line += fmt.Sprintf("  (%v)", ev.RoundTrip)
		}
		pdf.Cell(0, 6, line)
		pdf.Ln(6)
	}

	pdf.Ln(4)
	pdf.ImageOptions(latencyPNG, 10, pdf.GetY(), 180, 0, false, gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")

	if err := pdf.OutputFileAndClose(path); err != nil {
		return fmt.Errorf("report: write pdf: %w", err)
	}
	return nil
}
