// Package pusher forwards matched share candidates to the indexing sink
// with bounded concurrency and retry.
package pusher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/semaphore"

	"cloudmon/internal/model"
	"cloudmon/internal/storage"
)

// Outcome is the result of a push attempt.
type Outcome int

// Push outcomes.
const (
	OutcomeSent Outcome = iota
	OutcomeExists
	OutcomeFailed
)

const (
	maxAttempts    = 3
	pushTimeout    = 20 * time.Second
	pushBackoff    = time.Second
	maxPathLen     = 200
	codeSuffixRune = 4
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type sessionKey struct {
	link    string
	ruleIdx int
}

// Dispatcher posts sink payloads for matched candidates. A global semaphore
// bounds outstanding HTTP requests across all callers, and a per-run session
// set suppresses repeat dispatches without a network call.
type Dispatcher struct {
	client  HTTPClient
	store   storage.Storage
	log     *slog.Logger
	url     string
	key     string
	sem     *semaphore.Weighted
	timeout time.Duration
	backoff time.Duration

	mu      sync.Mutex
	session map[sessionKey]struct{}
}

// New creates a Dispatcher posting to sinkURL with the given API key,
// allowing at most maxConcurrent in-flight requests.
func New(client HTTPClient, store storage.Storage, sinkURL, sinkKey string, maxConcurrent int64, log *slog.Logger) *Dispatcher {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Dispatcher{
		client:  client,
		store:   store,
		log:     log,
		url:     sinkURL,
		key:     sinkKey,
		sem:     semaphore.NewWeighted(maxConcurrent),
		timeout: pushTimeout,
		backoff: pushBackoff,
		session: make(map[sessionKey]struct{}),
	}
}

// ResetSession clears the in-memory dispatched set. Called at the start of
// each run cycle; the durable store is deliberately untouched.
func (d *Dispatcher) ResetSession() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.session = make(map[sessionKey]struct{})
}

// Seen reports whether the (link, rule) pair was already dispatched this
// session or recorded as sent in the durable store. A store read failure is
// treated as not seen, risking a duplicate push rather than halting the
// pipeline.
func (d *Dispatcher) Seen(ctx context.Context, link string, ruleIdx int) bool {
	d.mu.Lock()
	_, ok := d.session[sessionKey{link, ruleIdx}]
	d.mu.Unlock()
	if ok {
		return true
	}

	sent, err := d.store.WasLinkSent(ctx, link, ruleIdx)
	if err != nil {
		d.log.Error("check sent link", "link", link, "rule", ruleIdx, "error", err)
		return false
	}
	return sent
}

// Reserve adds the (link, rule) pair to the session set before its push task
// is launched, so later messages in the same batch cannot dispatch it again.
func (d *Dispatcher) Reserve(link string, ruleIdx int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.session[sessionKey{link, ruleIdx}] = struct{}{}
}

type sinkPayload struct {
	Path     string `json:"path"`
	ShareID  string `json:"shareId"`
	FolderID string `json:"folderId"`
	Password string `json:"password"`
	Type     int    `json:"type"`
}

// Push forwards one candidate under the given rule. It checks the durable
// store first, then posts the payload with up to maxAttempts attempts:
// HTTP 200 is Sent, 400 is the sink's own duplicate detection (Exists, not
// an error), 5xx and transport errors retry after a fixed backoff, any other
// status fails immediately. On success the pair is recorded in the store.
// Failures are logged here and never abort the caller's batch.
func (d *Dispatcher) Push(ctx context.Context, cand model.ShareCandidate, ruleIdx int, folderPrefix string) Outcome {
	sent, err := d.store.WasLinkSent(ctx, cand.Link, ruleIdx)
	if err != nil {
		d.log.Error("check sent link", "link", cand.Link, "rule", ruleIdx, "error", err)
	} else if sent {
		return OutcomeExists
	}

	payload := sinkPayload{
		Path:     taskName(cand, folderPrefix),
		ShareID:  cand.ShareCode,
		Password: cand.AccessCode,
		Type:     cand.SinkType,
	}

	if err := d.sem.Acquire(ctx, 1); err != nil {
		return OutcomeFailed
	}
	defer d.sem.Release(1)

	out, err := d.post(ctx, payload)
	if err != nil {
		d.log.Error("push failed", "desc", cand.Description, "link", cand.Link, "rule", ruleIdx, "error", err)
		return OutcomeFailed
	}
	if out == OutcomeSent {
		if err := d.store.RecordLinkSent(ctx, cand.Link, ruleIdx); err != nil {
			d.log.Error("record sent link", "link", cand.Link, "rule", ruleIdx, "error", err)
		}
	}
	return out
}

func (d *Dispatcher) post(ctx context.Context, payload sinkPayload) (Outcome, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("marshal payload: %w", err)
	}

	var out Outcome
	backoff := retry.WithMaxRetries(maxAttempts-1, retry.NewConstant(d.backoff))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(callCtx, http.MethodPost, d.url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-api-key", d.key)
		req.Header.Set("Authorization", d.key)

		resp, err := d.client.Do(req)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("post: %w", err))
		}
		defer func() { _ = resp.Body.Close() }()
		_, _ = io.Copy(io.Discard, resp.Body)

		switch {
		case resp.StatusCode == http.StatusOK:
			out = OutcomeSent
			return nil
		case resp.StatusCode == http.StatusBadRequest:
			out = OutcomeExists
			return nil
		case resp.StatusCode >= 500:
			return retry.RetryableError(fmt.Errorf("sink status %d", resp.StatusCode))
		default:
			return fmt.Errorf("sink status %d", resp.StatusCode)
		}
	})
	if err != nil {
		return OutcomeFailed, err
	}
	return out, nil
}

// taskName builds the sink path: prefix + description + "_" + the share
// code's last four characters, capped at maxPathLen.
func taskName(cand model.ShareCandidate, prefix string) string {
	code := []rune(cand.ShareCode)
	if len(code) > codeSuffixRune {
		code = code[len(code)-codeSuffixRune:]
	}
	name := []rune(prefix + cand.Description + "_" + string(code))
	if len(name) > maxPathLen {
		name = name[:maxPathLen]
	}
	return string(name)
}
