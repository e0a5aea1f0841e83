package app

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// AlertCooldown is how long an identical alert message stays suppressed.
const AlertCooldown = 10 * time.Second

// throttle suppresses repeats of the same key within a cooldown window.
type throttle struct {
	cooldowns   map[string]time.Time // key -> last time it was let through
	cooldownMu  sync.RWMutex
	cooldownDur time.Duration
}

func newThrottle(cooldown time.Duration) *throttle {
	return &throttle{
		cooldowns:   make(map[string]time.Time),
		cooldownDur: cooldown,
	}
}

// Allow reports whether key is outside its cooldown, and starts a new
// cooldown when it is.
func (t *throttle) Allow(key string) bool {
	if t.cooldownDur <= 0 {
		return true
	}

	t.cooldownMu.Lock()
	defer t.cooldownMu.Unlock()

	if last, ok := t.cooldowns[key]; ok && time.Since(last) < t.cooldownDur {
		log.Debugf("Suppressing repeated alert: %s", key)
		return false
	}
	t.cooldowns[key] = time.Now()

	// Expired entries are only useful until their window closes.
	for k, last := range t.cooldowns {
		if time.Since(last) >= t.cooldownDur {
			delete(t.cooldowns, k)
		}
	}
	return true
}

func (t *throttle) Clear(key string) {
	t.cooldownMu.Lock()
	delete(t.cooldowns, key)
	t.cooldownMu.Unlock()
}

// Remaining returns how long key stays suppressed.
func (t *throttle) Remaining(key string) time.Duration {
	t.cooldownMu.RLock()
	defer t.cooldownMu.RUnlock()
	last, exists := t.cooldowns[key]
	if !exists {
		return 0
	}
	remaining := t.cooldownDur - time.Since(last)
	if remaining < 0 {
		return 0
	}
	return remaining
}
