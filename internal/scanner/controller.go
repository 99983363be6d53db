// Package scanner orchestrates full channel passes: pull messages, extract
// candidates, match rules, dispatch pushes, and record dedup state.
package scanner

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"cloudmon/internal/config"
	"cloudmon/internal/dashboard"
	"cloudmon/internal/extract"
	"cloudmon/internal/model"
	"cloudmon/internal/pusher"
	"cloudmon/internal/rules"
	"cloudmon/internal/source"
	"cloudmon/internal/storage"
)

const (
	// prioritySearchLimit bounds each server-side keyword search in the
	// priority phase.
	prioritySearchLimit = 500

	frameEveryFetched   = 50
	frameEveryProcessed = 20
)

var reChannelKey = regexp.MustCompile(`[^a-zA-Z0-9_\-]`)

// Controller runs the extraction-classification-dedup-push pipeline over
// configured channels.
type Controller struct {
	src   source.Source
	ext   *extract.Extractor
	disp  *pusher.Dispatcher
	store storage.Storage
	board dashboard.Observer
	cfg   *config.Config
	log   *slog.Logger
}

// New creates a Controller.
func New(src source.Source, ext *extract.Extractor, disp *pusher.Dispatcher, store storage.Storage, board dashboard.Observer, cfg *config.Config, log *slog.Logger) *Controller {
	if board == nil {
		board = dashboard.Nop{}
	}
	return &Controller{
		src:   src,
		ext:   ext,
		disp:  disp,
		store: store,
		board: board,
		cfg:   cfg,
		log:   log,
	}
}

// Run executes scan cycles until ctx is cancelled: one cycle when looping is
// disabled, otherwise a cycle every configured interval. The session dedup
// set resets at the start of each cycle; the durable store does not.
func (c *Controller) Run(ctx context.Context) {
	c.runCycle(ctx)
	if !c.cfg.Monitoring.Loop {
		return
	}

	ticker := time.NewTicker(time.Duration(c.cfg.Monitoring.IntervalHours) * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.runCycle(ctx)
		}
	}
}

func (c *Controller) runCycle(ctx context.Context) {
	if days := c.cfg.Monitoring.RetentionDays; days > 0 {
		cutoff := time.Now().Add(-time.Duration(days) * 24 * time.Hour)
		if n, err := c.store.PurgeScannedBefore(ctx, cutoff); err != nil {
			c.log.Error("purge old scan records", "error", err)
		} else if n > 0 {
			c.log.Info("purged old scan records", "count", n)
		}
	}

	c.disp.ResetSession()
	c.header()

	for _, ref := range c.cfg.Monitoring.Channels {
		if ctx.Err() != nil {
			return
		}
		if err := c.ProcessChannel(ctx, ref); err != nil {
			c.log.Error("process channel", "channel", ref, "error", err)
		}
	}
}

// ProcessChannel runs one full pass over a channel: resolve, history scan
// with smart-stop, priority keyword search, final snapshot. Failures are
// isolated to this channel.
func (c *Controller) ProcessChannel(ctx context.Context, ref string) error {
	name := channelName(ref)
	key := channelKey(ref)

	st := newStats(len(c.cfg.Rules))
	start := time.Now()
	c.frame(name, 0, 0, st, start, false)

	ch, err := c.resolve(ctx, ref)
	if err != nil {
		c.frame(name, -1, -1, st, start, true)
		return err
	}

	// Phase 1: bounded history scan.
	minDate := time.Now().Add(-time.Duration(c.cfg.Monitoring.MonitorDays) * 24 * time.Hour)
	var msgs []model.Message
	fetched := 0
	consecutiveOld := 0

	err = c.src.History(ctx, ch, c.cfg.Monitoring.MonitorLimit, func(m model.Message) bool {
		if m.Date.Before(minDate) {
			return false
		}
		scanned, serr := c.store.WasMessageScanned(ctx, key, m.ID)
		if serr != nil {
			c.log.Error("check scanned", "channel", key, "msg", m.ID, "error", serr)
			scanned = false
		}
		if scanned {
			// Consecutive-run heuristic: a single new message resets the
			// counter, so interleaved old messages near the boundary can
			// keep the scan going. Inherited behavior, kept as is.
			consecutiveOld++
			if consecutiveOld >= c.cfg.Monitoring.SmartStopCount {
				return false
			}
		} else {
			consecutiveOld = 0
		}
		msgs = append(msgs, m)
		fetched++
		if fetched%frameEveryFetched == 0 {
			c.frame(name, c.cfg.Monitoring.MonitorLimit, fetched, st, start, false)
		}
		return true
	})
	if err != nil {
		// A mid-iteration failure (private channel, flood wait) still
		// leaves the collected prefix worth processing.
		c.log.Error("history scan", "channel", ref, "error", err)
	}

	if len(msgs) > 0 {
		c.processBatch(ctx, msgs, name, key, st, start, -1)
	}
	c.frame(name, c.cfg.Monitoring.MonitorLimit, fetched, st, start, false)

	// Phase 2: priority keyword search, outside the recency window the
	// history scan covers. Each search is restricted to its own rule.
	for idx, rule := range c.cfg.Rules {
		for _, kw := range rule.PriorityKeywords {
			var found []model.Message
			serr := c.src.Search(ctx, ch, kw, prioritySearchLimit, func(m model.Message) bool {
				found = append(found, m)
				return true
			})
			if serr != nil {
				c.log.Error("priority search", "channel", ref, "keyword", kw, "error", serr)
			}
			if len(found) > 0 {
				c.processBatch(ctx, found, name, key, st, start, idx)
			}
		}
	}

	c.frame(name, c.cfg.Monitoring.MonitorLimit, fetched, st, start, true)
	return nil
}

// resolve obtains the channel handle, attempting a one-shot invite join when
// resolution fails, any rule requests joining, and the reference carries an
// invite hash.
func (c *Controller) resolve(ctx context.Context, ref string) (source.Channel, error) {
	ch, err := c.src.Resolve(ctx, ref)
	if err == nil {
		return ch, nil
	}

	hash := source.InviteHash(ref)
	if hash == "" || !anyTryJoin(c.cfg.Rules) {
		return source.Channel{}, err
	}
	if jerr := c.src.JoinInvite(ctx, hash); jerr != nil {
		c.log.Error("join channel", "channel", ref, "error", jerr)
		return source.Channel{}, err
	}
	return c.src.Resolve(ctx, ref)
}

// processBatch runs one message batch through extraction, rule matching, and
// concurrent pushes, then bulk-records the batch as scanned. The record
// write happens only after every push task has settled, so an interrupted
// batch is rescanned rather than silently skipped. restrict limits matching
// to a single rule index; pass -1 to evaluate all rules.
func (c *Controller) processBatch(ctx context.Context, msgs []model.Message, name, key string, st *stats, start time.Time, restrict int) {
	var wg sync.WaitGroup
	var toSave []storage.ScannedMessage
	now := time.Now()
	total := len(msgs)
	pushes := 0

	for i, msg := range msgs {
		if (i+1)%frameEveryProcessed == 0 {
			c.frame(name, total, i+1, st, start, false)
		}
		if msg.Text == "" {
			continue
		}
		if containsAny(msg.Text, c.cfg.ExcludeKeywords) {
			continue
		}

		cands := c.ext.Extract(msg)
		if len(cands) == 0 {
			continue
		}
		toSave = append(toSave, storage.ScannedMessage{
			ChannelID: key,
			MessageID: msg.ID,
			RuleIndex: 0,
			ScannedAt: now,
		})

		for _, cand := range cands {
			for idx := range c.cfg.Rules {
				if restrict >= 0 && idx != restrict {
					continue
				}
				rule := c.cfg.Rules[idx]

				if c.disp.Seen(ctx, cand.Link, idx) {
					break
				}
				if !rules.KeywordsPass(msg.Text, rule) {
					continue
				}
				if !rules.ExcludesPass(cand.Description, rule) {
					continue
				}

				priority := rules.PriorityHit(msg.Text, rule)
				st.addFound(idx, priority)

				c.disp.Reserve(cand.Link, idx)
				pushes++
				wg.Add(1)
				go func(cand model.ShareCandidate, idx int, prefix string, priority bool, cur int) {
					defer wg.Done()
					if c.disp.Push(ctx, cand, idx, prefix) == pusher.OutcomeSent {
						st.addAdded(idx, priority)
						c.frame(name, total, cur, st, start, false)
					}
				}(cand, idx, rule.FolderPrefix, priority, i+1)
				break
			}
		}
	}

	if pushes > 0 {
		c.frame(name, total, total, st, start, false)
	}
	wg.Wait()

	if err := c.store.RecordScannedBulk(ctx, toSave); err != nil {
		c.log.Error("record scanned batch", "channel", key, "error", err)
	}
}

func anyTryJoin(rs []model.Rule) bool {
	for _, r := range rs {
		if r.TryJoin {
			return true
		}
	}
	return false
}

func containsAny(text string, kws []string) bool {
	for _, kw := range kws {
		if kw != "" && strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// channelName is the display name: the last path segment of the reference.
func channelName(ref string) string {
	parts := strings.Split(strings.TrimRight(ref, "/"), "/")
	return parts[len(parts)-1]
}

// channelKey is the dedup-store key: scheme stripped, non-word characters
// replaced, capped at 50 characters.
func channelKey(ref string) string {
	ref = strings.TrimPrefix(ref, "https://")
	ref = strings.TrimPrefix(ref, "http://")
	key := reChannelKey.ReplaceAllString(ref, "_")
	if len(key) > 50 {
		key = key[:50]
	}
	return key
}

func (c *Controller) header() {
	defer c.recoverObserver()
	c.board.Header()
}

// frame forwards a snapshot to the observer. Observer panics must not reach
// the pipeline.
func (c *Controller) frame(name string, total, current int, st *stats, start time.Time, final bool) {
	defer c.recoverObserver()
	c.board.Frame(dashboard.Frame{
		Channel: name,
		Total:   total,
		Current: current,
		Stats:   st.snapshot(),
		Elapsed: time.Since(start),
		Final:   final,
	})
}

func (c *Controller) recoverObserver() {
	if r := recover(); r != nil {
		c.log.Error("dashboard observer panic", "panic", r)
	}
}
