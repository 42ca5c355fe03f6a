package clock

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const DefaultPollInterval = 500 * time.Millisecond

type timeResponse struct {
	CurrentTime int64 `json:"current_time"`
}

// RemoteClock follows a clock server. Now never blocks: it returns the last
// time observed by the poll loop, and observations that would move time
// backwards are ignored.
type RemoteClock struct {
	baseURL  string
	client   *http.Client
	interval time.Duration
	current  atomic.Int64
	logger   *zap.Logger
}

func NewRemoteClock(baseURL string, interval time.Duration, logger *zap.Logger) *RemoteClock {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RemoteClock{
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: 2 * time.Second},
		interval: interval,
		logger:   logger,
	}
}

func (r *RemoteClock) Now() int64 {
	return r.current.Load()
}

// Fetch asks the server for its current time without recording it.
func (r *RemoteClock) Fetch(ctx context.Context) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/time", nil)
	if err != nil {
		return 0, fmt.Errorf("build clock request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch clock: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("fetch clock: status %d", resp.StatusCode)
	}

	var body timeResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("decode clock response: %w", err)
	}
	return body.CurrentTime, nil
}

// Sync fetches the server time once and records it.
func (r *RemoteClock) Sync(ctx context.Context) error {
	t, err := r.Fetch(ctx)
	if err != nil {
		return err
	}
	r.observe(t)
	return nil
}

func (r *RemoteClock) observe(t int64) {
	for {
		cur := r.current.Load()
		if t <= cur {
			return
		}
		if r.current.CompareAndSwap(cur, t) {
			return
		}
	}
}

// Run polls until ctx is done.
func (r *RemoteClock) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Sync(ctx); err != nil && ctx.Err() == nil {
				r.logger.Warn("Clock poll failed", zap.String("url", r.baseURL), zap.Error(err))
			}
		}
	}
}
