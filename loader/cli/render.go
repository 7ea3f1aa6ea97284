package cli

import (
	"fmt"
	"io"
	"sync"

	"github.com/cheggaaa/pb/v3"
	"github.com/fatih/color"

	"github.com/prawnloader/prawnloader/loader/engine"
	"github.com/prawnloader/prawnloader/loader/events"
)

const barTemplate = `{{ string . "prefix" }} {{ counters . }} {{ bar . }} {{ string . "status" }}`

type tracked struct {
	req    engine.DownloadRequest
	label  string
	bar    *pb.ProgressBar
	failed int
}

// renderer prints progress events. On a terminal it keeps one bar per
// request and prints results once the bars are gone. It is safe for one
// goroutine handling events while another tracks new requests.
type renderer struct {
	out     io.Writer
	settled chan struct{}

	mu       sync.Mutex
	pool     *pb.Pool
	requests map[string]*tracked
	results  []string
	failed   int
	sealed   bool
}

func newRenderer(out io.Writer, tty bool) *renderer {
	r := &renderer{out: out, requests: make(map[string]*tracked), settled: make(chan struct{})}
	if tty {
		pool, err := pb.StartPool()
		if err != nil {
			colorWarning.Fprintf(out, "progress bars unavailable: %v\n", err)
		} else {
			r.pool = pool
		}
	}
	return r
}

// Track registers req before it is submitted so no event is missed.
func (r *renderer) Track(req engine.DownloadRequest) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := &tracked{req: req, label: label(req.Item)}
	if r.pool != nil {
		t.bar = pb.New(req.Item.Tracks())
		t.bar.SetTemplateString(barTemplate)
		t.bar.Set("prefix", truncate(t.label, 40))
		t.bar.Set("status", "waiting")
		r.pool.Add(t.bar)
	}
	r.requests[req.ID.String()] = t
}

// Forget drops a request that was never accepted.
func (r *renderer) Forget(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.requests[id]; ok && t.bar != nil {
		t.bar.Set("status", "rejected")
		t.bar.Finish()
	}
	delete(r.requests, id)
	r.checkSettled()
}

// Seal marks the end of tracking. Settled closes once every tracked request
// has finished.
func (r *renderer) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed = true
	r.checkSettled()
}

func (r *renderer) Settled() <-chan struct{} { return r.settled }

func (r *renderer) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}

func (r *renderer) Failed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failed
}

func (r *renderer) Handle(ev events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.requests[ev.RequestID]
	if !ok {
		return
	}

	switch ev.Kind() {
	case events.KindWaiting:
		r.status(t, "waiting", colorMuted)
	case events.KindStart:
		r.status(t, "downloading", colorInfo)
	case events.KindAlbumTrackComplete:
		if t.bar != nil {
			t.bar.Increment()
		}
	case events.KindAlbumTrackError:
		t.failed++
		if t.bar != nil {
			t.bar.Increment()
		}
		line := fmt.Sprintf("  ! %s: %s", trackLabel(t.req.Item, ev.TrackIndex), ev.Message)
		r.emit(colorWarning.Sprint(line))
	case events.KindFinish:
		if t.bar != nil {
			t.bar.SetCurrent(t.bar.Total())
			t.bar.Set("status", "done")
			t.bar.Finish()
		}
		msg := "✓ " + t.label
		if t.failed > 0 {
			msg += fmt.Sprintf(" (%d of %d tracks failed)", t.failed, t.req.Item.Tracks())
		}
		r.emit(colorSuccess.Sprint(msg))
		delete(r.requests, ev.RequestID)
		r.checkSettled()
	case events.KindDownloadError:
		r.failed++
		if t.bar != nil {
			t.bar.Set("status", "failed")
			t.bar.Finish()
		}
		r.emit(colorError.Sprintf("✗ %s: %s", t.label, ev.Message))
		delete(r.requests, ev.RequestID)
		r.checkSettled()
	}
}

// Close stops the bars and prints the collected results.
func (r *renderer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pool == nil {
		return
	}
	_ = r.pool.Stop()
	r.pool = nil
	for _, line := range r.results {
		fmt.Fprintln(r.out, line)
	}
	r.results = nil
}

// Println prints a line outside of any event, deferring it while bars are shown.
func (r *renderer) Println(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emit(line)
}

func (r *renderer) checkSettled() {
	if !r.sealed || len(r.requests) > 0 {
		return
	}
	select {
	case <-r.settled:
	default:
		close(r.settled)
	}
}

func (r *renderer) status(t *tracked, status string, c *color.Color) {
	if t.bar != nil {
		t.bar.Set("status", status)
		return
	}
	fmt.Fprintf(r.out, "%s %s\n", c.Sprint("•"), t.label+": "+status)
}

func (r *renderer) emit(line string) {
	if r.pool != nil {
		r.results = append(r.results, line)
		return
	}
	fmt.Fprintln(r.out, line)
}

func label(item engine.Item) string {
	text := item.Title()
	if artist := item.Artist(); artist != "" {
		text = artist + " - " + text
	}
	return fmt.Sprintf("[%s] %s", item.Kind, text)
}

func trackLabel(item engine.Item, index *int) string {
	if index == nil || item.Album == nil || *index < 0 || *index >= len(item.Album.Songs) {
		return "track"
	}
	song := item.Album.Songs[*index]
	return fmt.Sprintf("%02d %s", *index+1, song.Title)
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
