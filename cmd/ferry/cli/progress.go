package cli

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/meigma/ferry"
)

// progressMode returns the effective progress mode: "tty" or "plain".
// The configured "auto" resolves to "tty" when stderr is a terminal.
func progressMode() string {
	switch mode := viper.GetString("progress"); mode {
	case "tty", "plain":
		return mode
	default:
		if term.IsTerminal(int(os.Stderr.Fd())) {
			return "tty"
		}
		return "plain"
	}
}

// newProgressBar creates a new progress bar for byte-based operations.
func newProgressBar(w io.Writer, total int64, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions64(
		total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(w),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionUseANSICodes(true),
	)
}

// uploadSink renders batch progress. In tty mode it drives one aggregate
// byte bar; in plain mode it prints a line per 10% step.
type uploadSink struct {
	w   io.Writer
	tty bool

	mu    sync.Mutex
	bar   *progressbar.ProgressBar
	total int64
	sent  map[string]int64
	steps map[string]int
}

func newUploadSink(w io.Writer, mode string) *uploadSink {
	return &uploadSink{
		w:     w,
		tty:   mode == "tty",
		sent:  make(map[string]int64),
		steps: make(map[string]int),
	}
}

// Progress implements ferry.Sink.
func (s *uploadSink) Progress(job ferry.JobInfo, ev ferry.ProgressEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tty {
		if ev.TotalBytes > 0 {
			s.advanceBar(job.ID, ev)
		}
		return
	}

	step := int(ev.Percent()) / 10
	if last, seen := s.steps[job.ID]; seen && step <= last {
		return
	}
	s.steps[job.ID] = step
	fmt.Fprintf(s.w, "%s: %d%%\n", job.Path, step*10)
}

func (s *uploadSink) advanceBar(id string, ev ferry.ProgressEvent) {
	prev, seen := s.sent[id]
	if !seen {
		s.total += ev.TotalBytes
		if s.bar == nil {
			s.bar = newProgressBar(s.w, s.total, "Uploading")
		} else {
			s.bar.ChangeMax64(s.total)
		}
	}
	s.sent[id] = ev.BytesTransferred
	//nolint:errcheck // progress bar errors are not critical
	s.bar.Add64(ev.BytesTransferred - prev)
}

// Finished implements ferry.Sink.
func (s *uploadSink) Finished(job ferry.JobInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bar != nil {
		//nolint:errcheck // progress bar errors are not critical
		s.bar.Clear()
	}

	switch job.State {
	case ferry.JobDone:
		fmt.Fprintf(s.w, "%s: done (%s)\n", job.Path, humanize.Bytes(uint64(max(job.Size, 0))))
	case ferry.JobCancelled:
		fmt.Fprintf(s.w, "%s: cancelled\n", job.Path)
	default:
		fmt.Fprintf(s.w, "%s: failed: %v\n", job.Path, job.Err)
	}
}

// Close finishes the progress bar, if any.
func (s *uploadSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bar != nil {
		//nolint:errcheck // progress bar errors are not critical
		s.bar.Finish()
	}
}
