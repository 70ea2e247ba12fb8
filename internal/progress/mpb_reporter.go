package progress

import (
	"io"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// BarReporter renders a real terminal progress bar with ETA and rate, backed
// by mpb. It samples the shared Counter on a fixed interval; the bar's own
// render loop never touches the counter directly, keeping the reporter out
// of the builder's critical path per spec §4.6.
type BarReporter struct {
	Out      io.Writer
	interval time.Duration

	progress *mpb.Progress
	bar      *mpb.Bar
	ticker   *TickerReporter
}

// NewBarReporter constructs a BarReporter writing to out.
func NewBarReporter(out io.Writer) *BarReporter {
	return &BarReporter{Out: out, interval: 200 * time.Millisecond}
}

// Start implements Reporter.
func (r *BarReporter) Start(counter *Counter, total uint64) {
	opts := []mpb.ContainerOption{mpb.WithWidth(40)}
	if r.Out != nil {
		opts = append(opts, mpb.WithOutput(r.Out))
	}
	r.progress = mpb.New(opts...)
	r.bar = r.progress.AddBar(int64(total),
		mpb.PrependDecorators(
			decor.Name("build "),
			decor.CountersNoUnit("%d / %d"),
		),
		mpb.AppendDecorators(
			decor.Percentage(),
			decor.Name(" "),
			decor.AverageETA(decor.ET_STYLE_MMSS),
		),
	)

	r.ticker = &TickerReporter{
		Interval: r.interval,
		OnSample: func(current, _ uint64) {
			r.bar.SetCurrent(int64(current))
		},
		// Render the final count; a bar left short of total (a failed or
		// cancelled build) is aborted so progress.Wait in Finish returns.
		OnFinish: func() {
			r.bar.SetCurrent(int64(counter.Load()))
			if !r.bar.Completed() {
				r.bar.Abort(false)
			}
		},
	}
	r.ticker.Start(counter, total)
}

// Finish implements Reporter.
func (r *BarReporter) Finish() {
	if r.ticker != nil {
		r.ticker.Finish()
	}
	if r.progress != nil {
		r.progress.Wait()
	}
}
