// Package dashboard renders channel progress snapshots as a console table.
// It is a pure observer of the pipeline and owns no pipeline state.
package dashboard

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"cloudmon/internal/model"
)

const tableWidth = 80

// Frame is one progress snapshot for a channel pass.
type Frame struct {
	Channel string
	Total   int // -1 when not applicable
	Current int
	Stats   model.StatsSnapshot
	Elapsed time.Duration
	Final   bool
}

// Observer consumes progress snapshots. Implementations must not panic into
// the pipeline.
type Observer interface {
	Header()
	Frame(f Frame)
}

// Nop is an Observer that discards everything.
type Nop struct{}

// Header implements Observer.
func (Nop) Header() {}

// Frame implements Observer.
func (Nop) Frame(Frame) {}

// Printer renders frames as an 80-column table, rewinding the cursor between
// non-final frames so a channel's block redraws in place. Push tasks frame
// concurrently with the batch loop, so rendering is serialized by a mutex.
type Printer struct {
	w         io.Writer
	ruleNames []string

	mu        sync.Mutex
	lastLines int
}

// NewPrinter creates a Printer writing to w, labelling rule rows with the
// given names.
func NewPrinter(w io.Writer, ruleNames []string) *Printer {
	return &Printer{w: w, ruleNames: ruleNames}
}

// Header prints the table header.
func (p *Printer) Header() {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, strings.Repeat("=", tableWidth))
	fmt.Fprintf(p.w, "%-16s | %13s | %13s | %13s | %13s\n", "Channel/Project", "Progress", "Found", "Added", "Time")
	fmt.Fprintln(p.w, strings.Repeat("-", tableWidth))
}

// Frame renders one snapshot.
func (p *Printer) Frame(f Frame) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var lines []string

	progress := "-"
	if f.Total >= 0 {
		progress = fmt.Sprintf("%d/%d", f.Current, f.Total)
	}
	elapsed := "-"
	if f.Elapsed > 0 {
		mm := int(f.Elapsed.Minutes())
		ss := int(f.Elapsed.Seconds()) % 60
		elapsed = fmt.Sprintf("%02dm %02ds", mm, ss)
	}

	lines = append(lines, p.row(clip(f.Channel, 16), clip(progress, 13),
		fmt.Sprint(f.Stats.TotalFound()), fmt.Sprint(f.Stats.TotalAdded()), elapsed))

	for i, rs := range f.Stats.Rules {
		if rs.Found == 0 && rs.Added == 0 {
			continue
		}
		name := fmt.Sprintf("rule %d", i)
		if i < len(p.ruleNames) {
			name = clip(p.ruleNames[i], 12)
		}
		lines = append(lines, p.row("  |_ "+name, "-", fmt.Sprint(rs.Found), fmt.Sprint(rs.Added), "-"))
	}
	if f.Stats.Priority.Found > 0 || f.Stats.Priority.Added > 0 {
		lines = append(lines, p.row("  |_ Priority", "-",
			fmt.Sprint(f.Stats.Priority.Found), fmt.Sprint(f.Stats.Priority.Added), "-"))
	}

	// Rewind over the previous frame's block so the table redraws in place.
	for i := 0; i < p.lastLines; i++ {
		fmt.Fprint(p.w, "\033[F\033[K")
	}
	fmt.Fprint(p.w, strings.Join(lines, "\n"), "\n")

	if f.Final {
		p.lastLines = 0
		fmt.Fprintln(p.w, strings.Repeat("-", tableWidth))
	} else {
		p.lastLines = len(lines)
	}
}

func (p *Printer) row(name, progress, found, added, elapsed string) string {
	return fmt.Sprintf("%-16s | %13s | %13s | %13s | %13s", name, progress, found, added, elapsed)
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		return string(r[:n])
	}
	return s
}
