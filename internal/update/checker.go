// Package update polls the release feed and remembers whether a newer
// build than the running one has been published. Advisory only: nothing
// here downloads or installs anything.
package update

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/dianalab/diana/internal/logger"
	"github.com/dianalab/diana/models"
)

// Checker fetches the release feed and compares versions.
type Checker struct {
	http    *resty.Client
	url     string
	current string
	logger  *logger.Logger

	mu     sync.RWMutex
	latest *models.UpdateInfo
}

// NewChecker builds a [Checker] for the given feed URL and running version.
func NewChecker(checkURL, currentVersion string, timeout time.Duration, logger *logger.Logger) *Checker {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Checker{
		http:    resty.New().SetTimeout(timeout),
		url:     checkURL,
		current: currentVersion,
		logger:  logger,
	}
}

// Check fetches the feed once. It returns the published release info and
// whether it is newer than the running version.
func (c *Checker) Check(ctx context.Context) (*models.UpdateInfo, bool, error) {
	resp, err := c.http.R().SetContext(ctx).Get(c.url)
	if err != nil {
		return nil, false, fmt.Errorf("update check request: %w", err)
	}
	if resp.IsError() {
		return nil, false, fmt.Errorf("update check http %d", resp.StatusCode())
	}

	var info models.UpdateInfo
	if err = json.Unmarshal(resp.Body(), &info); err != nil {
		return nil, false, fmt.Errorf("decode release feed: %w", err)
	}

	newer := versionNewer(info.Version, c.current)
	if newer {
		c.mu.Lock()
		c.latest = &info
		c.mu.Unlock()
	}

	return &info, newer, nil
}

// Available returns the newest release seen so far, when it is newer than
// the running version.
func (c *Checker) Available() *models.UpdateInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latest
}

// versionNewer reports whether a is a later dotted version than b.
// A leading "v" is ignored; missing segments count as zero; versions that
// do not parse never count as newer.
func versionNewer(a, b string) bool {
	as := splitVersion(a)
	bs := splitVersion(b)
	if as == nil || bs == nil {
		return false
	}

	for i := 0; i < len(as) || i < len(bs); i++ {
		var av, bv int
		if i < len(as) {
			av = as[i]
		}
		if i < len(bs) {
			bv = bs[i]
		}
		if av != bv {
			return av > bv
		}
	}
	return false
}

func splitVersion(v string) []int {
	v = strings.TrimPrefix(strings.TrimSpace(v), "v")
	if v == "" {
		return nil
	}

	parts := strings.Split(v, ".")
	nums := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return nil
		}
		nums[i] = n
	}
	return nums
}

// Worker polls the feed on a fixed interval until its context is
// cancelled. It satisfies the background worker contract used at startup.
type Worker struct {
	ctx      context.Context
	checker  *Checker
	interval time.Duration
	logger   *logger.Logger
}

// NewWorker builds a polling worker around checker.
func NewWorker(ctx context.Context, checker *Checker, interval time.Duration, logger *logger.Logger) *Worker {
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	return &Worker{
		ctx:      ctx,
		checker:  checker,
		interval: interval,
		logger:   logger,
	}
}

// Run spawns the polling loop. The first check runs immediately.
func (w *Worker) Run() {
	go func() {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			w.poll()
			select {
			case <-w.ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

func (w *Worker) poll() {
	info, newer, err := w.checker.Check(w.ctx)
	if err != nil {
		w.logger.Warn().Err(err).Msg("update check failed")
		return
	}
	if newer {
		w.logger.Info().
			Str("version", info.Version).
			Str("url", info.URL).
			Msg("newer release available")
	}
}
