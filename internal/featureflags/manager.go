// Package featureflags switches optional blog features on, off or for a share of users.
package featureflags

import (
	"hash/fnv"
	"strconv"
	"strings"
)

// rule is one parsed flag. percent is 0..100; invalid values parse to 0.
type rule struct {
	raw     string
	percent int
}

// Manager evaluates flags from FEATURE_FLAGS, for example "registration=off,comments=25%".
type Manager struct {
	rules map[string]rule
}

// NewManager parses a comma-separated name=value list. Malformed pairs are skipped.
func NewManager(raw string) *Manager {
	rules := make(map[string]rule)
	for _, pair := range strings.Split(raw, ",") {
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		name, value = normalize(name), normalize(value)
		if name == "" || value == "" {
			continue
		}
		rules[name] = rule{raw: value, percent: parsePercent(value)}
	}
	return &Manager{rules: rules}
}

func parsePercent(value string) int {
	switch value {
	case "on", "true", "1":
		return 100
	case "off", "false", "0":
		return 0
	}
	pct, err := strconv.Atoi(strings.TrimSuffix(value, "%"))
	if err != nil || !strings.HasSuffix(value, "%") {
		return 0
	}
	return min(max(pct, 0), 100)
}

// Enabled reports whether name is on for userID. Partial rollouts are deterministic per user
// and never include anonymous visitors (userID 0). Unknown flags are off.
func (m *Manager) Enabled(name string, userID uint) bool {
	if m == nil {
		return false
	}
	r, ok := m.rules[normalize(name)]
	if !ok {
		return false
	}
	return r.enabledFor(normalize(name), userID)
}

func (r rule) enabledFor(name string, userID uint) bool {
	switch {
	case r.percent >= 100:
		return true
	case r.percent <= 0, userID == 0:
		return false
	default:
		return bucket(name, userID) < r.percent
	}
}

// Configured reports whether name has an explicit value.
func (m *Manager) Configured(name string) bool {
	if m == nil {
		return false
	}
	_, ok := m.rules[normalize(name)]
	return ok
}

// EnabledByDefault is Enabled for flags that are on unless configured otherwise.
func (m *Manager) EnabledByDefault(name string, userID uint) bool {
	if !m.Configured(name) {
		return true
	}
	return m.Enabled(name, userID)
}

// Raw returns the configured values as written.
func (m *Manager) Raw() map[string]string {
	out := make(map[string]string, len(m.rules))
	for name, r := range m.rules {
		out[name] = r.raw
	}
	return out
}

// Snapshot evaluates every configured flag for userID.
func (m *Manager) Snapshot(userID uint) map[string]bool {
	out := make(map[string]bool, len(m.rules))
	for name, r := range m.rules {
		out[name] = r.enabledFor(name, userID)
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func bucket(name string, userID uint) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name + ":" + strconv.FormatUint(uint64(userID), 10)))
	return int(h.Sum32() % 100)
}
