// Package settings persists per-identity dashboard preferences as one JSON
// file per identity. Soft-invalid values are coerced to unset rather than
// rejected, and an unreadable file yields defaults.
package settings

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"daydash/internal/domain"
	"daydash/internal/identity"
)

const (
	userFileName  = "settings.json"
	guestFileName = "settings.guest.json"

	// DisplayHourMinute and DisplayDecimal are the two task-time render
	// modes.
	DisplayHourMinute = "hourMinute"
	DisplayDecimal    = "decimal"
)

var timePattern = regexp.MustCompile(`^([01]\d|2[0-3]):([0-5]\d)$`)

// Default returns the settings used before anything is saved.
func Default() domain.AppSettings {
	return domain.AppSettings{TaskTimeDisplayMode: DisplayHourMinute}
}

// Service loads and saves settings for the resolved identity. Guest
// settings live in one shared file under the data root.
type Service struct {
	resolve  identity.Resolver
	dataRoot string
}

// NewService builds a Service rooted at dataRoot.
func NewService(resolve identity.Resolver, dataRoot string) *Service {
	if resolve == nil {
		resolve = func() *domain.UserProfile { return nil }
	}
	return &Service{resolve: resolve, dataRoot: dataRoot}
}

func (s *Service) path(user *domain.UserProfile) string {
	key := identity.Key(user)
	if key == domain.GuestUserID {
		return filepath.Join(s.dataRoot, guestFileName)
	}
	return filepath.Join(identity.UserDataDir(s.dataRoot, key), userFileName)
}

// Load reads the current identity's settings, falling back to defaults
// when the file is missing or unreadable.
func (s *Service) Load() domain.AppSettings {
	return s.LoadFor(s.resolve())
}

// LoadFor is Load acting as an explicit identity.
func (s *Service) LoadFor(user *domain.UserProfile) domain.AppSettings {
	raw, err := os.ReadFile(s.path(user))
	if err != nil {
		return Default()
	}
	var parsed domain.AppSettings
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return Default()
	}
	return Normalize(parsed)
}

// Save normalizes then persists settings, returning what was written.
func (s *Service) Save(settings domain.AppSettings) (domain.AppSettings, error) {
	return s.SaveFor(s.resolve(), settings)
}

// SaveFor is Save acting as an explicit identity.
func (s *Service) SaveFor(user *domain.UserProfile, settings domain.AppSettings) (domain.AppSettings, error) {
	next := Normalize(settings)
	path := s.path(user)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return domain.AppSettings{}, err
	}
	data, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return domain.AppSettings{}, err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return domain.AppSettings{}, err
	}
	return next, nil
}

// Normalize coerces each field to a safe value: times must be strict HH:mm,
// intervals must be at least one minute, the display mode must be known.
func Normalize(settings domain.AppSettings) domain.AppSettings {
	return domain.AppSettings{
		AutoFetchTime:            normalizeAutoFetchTime(settings.AutoFetchTime),
		AutoFetchIntervalMinutes: normalizeInterval(settings.AutoFetchIntervalMinutes),
		TaskTimeDisplayMode:      normalizeDisplayMode(settings.TaskTimeDisplayMode),
	}
}

func normalizeAutoFetchTime(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if !timePattern.MatchString(trimmed) {
		return nil
	}
	return &trimmed
}

func normalizeInterval(value *int) *int {
	if value == nil || *value < 1 {
		return nil
	}
	interval := *value
	return &interval
}

func normalizeDisplayMode(value string) string {
	if value == DisplayHourMinute || value == DisplayDecimal {
		return value
	}
	return DisplayHourMinute
}
