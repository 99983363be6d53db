package dashboard

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"cloudmon/internal/model"
)

func TestPrinterHeader(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, nil)
	p.Header()

	out := buf.String()
	if !strings.Contains(out, "Channel/Project") {
		t.Errorf("header missing column titles:\n%s", out)
	}
	if !strings.Contains(out, strings.Repeat("=", 80)) {
		t.Errorf("header missing top rule:\n%s", out)
	}
}

func TestPrinterFrame(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, []string{"Movies", "Shows"})

	p.Frame(Frame{
		Channel: "testchan",
		Total:   100,
		Current: 40,
		Stats: model.StatsSnapshot{
			Rules:    []model.RuleStats{{Found: 3, Added: 2}, {}},
			Priority: model.RuleStats{Found: 1, Added: 1},
		},
		Elapsed: 75 * time.Second,
		Final:   true,
	})

	out := buf.String()
	if !strings.Contains(out, "40/100") {
		t.Errorf("frame missing progress:\n%s", out)
	}
	if !strings.Contains(out, "01m 15s") {
		t.Errorf("frame missing elapsed time:\n%s", out)
	}
	if !strings.Contains(out, "|_ Movies") {
		t.Errorf("frame missing active rule row:\n%s", out)
	}
	if strings.Contains(out, "|_ Shows") {
		t.Errorf("frame shows a zero-count rule row:\n%s", out)
	}
	if !strings.Contains(out, "|_ Priority") {
		t.Errorf("frame missing priority row:\n%s", out)
	}
}

func TestPrinterRewindsBetweenFrames(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, nil)

	f := Frame{Channel: "chan", Total: 10, Current: 1}
	p.Frame(f)
	f.Current = 2
	p.Frame(f)

	if !strings.Contains(buf.String(), "\033[F\033[K") {
		t.Error("second frame did not rewind over the first")
	}
}

func TestPrinterConcurrentFrames(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, []string{"Default"})
	p.Header()

	// Push tasks frame concurrently with the batch loop; rendering and the
	// rewind bookkeeping must stay serialized.
	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			p.Frame(Frame{
				Channel: "chan",
				Total:   30,
				Current: n,
				Stats:   model.StatsSnapshot{Rules: []model.RuleStats{{Found: n, Added: n}}},
			})
		}(i)
	}
	wg.Wait()

	p.Frame(Frame{Channel: "chan", Total: 30, Current: 30, Final: true})
	if !strings.HasSuffix(strings.TrimRight(buf.String(), "\n"), strings.Repeat("-", 80)) {
		t.Error("final frame did not close the table")
	}
}

func TestPrinterNoProgressWhenUnknown(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, nil)

	p.Frame(Frame{Channel: "chan", Total: -1, Final: true})

	line := strings.SplitN(buf.String(), "\n", 2)[0]
	if !strings.Contains(line, "chan") || !strings.Contains(line, "-") {
		t.Errorf("unexpected row: %q", line)
	}
}
