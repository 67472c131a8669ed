package multiplex

import (
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

// sessionCache is the only process-wide mutable state in this module: a
// reader-writer-locked map from session name to its last-activity
// timestamp, refreshed on demand with a 2s TTL. It stays empty until the
// first RefreshSessionCache call; lookups never populate it.
type sessionCache struct {
	mu   sync.RWMutex
	data map[string]int64
	at   time.Time
}

var cache = &sessionCache{}

// RefreshSessionCache repopulates the listing map via a single
// `tmux list-sessions` call.
func RefreshSessionCache() {
	out, err := exec.Command("tmux", "list-sessions", "-F", "#{session_name}\t#{session_activity}").Output()
	cache.mu.Lock()
	defer cache.mu.Unlock()
	if err != nil {
		cache.data = nil
		cache.at = time.Time{}
		return
	}
	m := map[string]int64{}
	for _, line := range strings.Split(strings.TrimRight(string(out), "\n"), "\n") {
		if line == "" {
			continue
		}
		name, activityStr, ok := strings.Cut(line, "\t")
		if !ok {
			continue
		}
		activity, _ := strconv.ParseInt(activityStr, 10, 64)
		m[name] = activity
	}
	cache.data = m
	cache.at = time.Now()
}

// sessionExistsFromCache returns (exists, true) if the cache is fresh
// (< 2s old), or (false, false) to signal the caller should fall back to a
// live probe.
func sessionExistsFromCache(name string) (bool, bool) {
	cache.mu.RLock()
	defer cache.mu.RUnlock()
	if cache.data == nil || time.Since(cache.at) > 2*time.Second {
		return false, false
	}
	_, ok := cache.data[name]
	return ok, true
}
