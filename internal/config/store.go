package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/AreteDriver/EVE-Overview/internal/logger"
)

var (
	// ErrProfileNotFound is returned when a profile file is missing or
	// cannot be decoded; callers treat both as absence.
	ErrProfileNotFound = errors.New("profile not found")

	// ErrProtectedProfile is returned when deleting the Default profile.
	ErrProtectedProfile = errors.New("cannot delete the Default profile")

	// ErrInvalidName is returned for empty or unsafe profile names.
	ErrInvalidName = errors.New("invalid profile name")
)

// Store reads and writes profiles and the top-level settings document
// under a config directory. All documents are JSON files; profiles live
// in <dir>/profiles/<name>.json, settings in <dir>/config.json.
type Store struct {
	configDir   string
	profilesDir string
	settings    map[string]interface{}
}

// NewStore creates a store rooted at configDir, creating the directory
// tree if needed. An unreadable settings file is replaced by defaults
// rather than failing.
func NewStore(configDir string) (*Store, error) {
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config", "eve-overview")
	}

	profilesDir := filepath.Join(configDir, "profiles")
	if err := os.MkdirAll(profilesDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	s := &Store{
		configDir:   configDir,
		profilesDir: profilesDir,
	}
	s.loadSettings()

	logger.WithComponent("config").Info().
		Str("path", configDir).
		Str("current_profile", s.currentProfileName()).
		Msg("Config store opened")

	return s, nil
}

// ConfigDir returns the root config directory.
func (s *Store) ConfigDir() string {
	return s.configDir
}

// LogFilePath returns the path of the application's append-only log file.
func (s *Store) LogFilePath() string {
	return filepath.Join(s.configDir, "eve-overview.log")
}

func (s *Store) settingsPath() string {
	return filepath.Join(s.configDir, "config.json")
}

func (s *Store) profilePath(name string) string {
	return filepath.Join(s.profilesDir, name+".json")
}

// ValidateProfileName rejects names that are empty or would escape the
// profiles directory when used as a filename stem.
func ValidateProfileName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidName)
	}
	if strings.ContainsAny(name, "/\\") || name == "." || name == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// loadSettings reads config.json, substituting defaults on any failure.
func (s *Store) loadSettings() {
	s.settings = defaultSettings()

	data, err := os.ReadFile(s.settingsPath())
	if err != nil {
		if !os.IsNotExist(err) {
			logger.WithComponent("config").Error().Err(err).Msg("Failed to read settings, using defaults")
		}
		return
	}

	var loaded map[string]interface{}
	if err := json.Unmarshal(data, &loaded); err != nil {
		logger.WithComponent("config").Error().Err(err).Msg("Malformed settings file, using defaults")
		return
	}
	for k, v := range loaded {
		s.settings[k] = v
	}
}

// saveSettings persists the settings document. I/O errors are logged,
// never propagated; the worst case is a stale settings file.
func (s *Store) saveSettings() {
	data, err := json.MarshalIndent(s.settings, "", "  ")
	if err != nil {
		logger.WithComponent("config").Error().Err(err).Msg("Failed to marshal settings")
		return
	}
	if err := os.WriteFile(s.settingsPath(), data, 0644); err != nil {
		logger.WithComponent("config").Error().Err(err).Msg("Failed to write settings")
	}
}

// LoadProfile reads the named profile. A missing or malformed file
// yields ErrProfileNotFound.
func (s *Store) LoadProfile(name string) (*Profile, error) {
	data, err := os.ReadFile(s.profilePath(name))
	if err != nil {
		if !os.IsNotExist(err) {
			logger.WithComponent("config").Error().Err(err).Str("profile", name).Msg("Failed to read profile")
		}
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}

	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		logger.WithComponent("config").Error().Err(err).Str("profile", name).Msg("Malformed profile file")
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}
	if p.Name == "" {
		p.Name = name
	}
	p.Normalize()
	return &p, nil
}

// SaveProfile serializes the profile to its file, clamping scale and
// refresh rate first. The filename derives from the profile name.
func (s *Store) SaveProfile(p *Profile) error {
	if err := ValidateProfileName(p.Name); err != nil {
		return err
	}
	p.Normalize()

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal profile %q: %w", p.Name, err)
	}
	if err := os.WriteFile(s.profilePath(p.Name), data, 0644); err != nil {
		logger.WithComponent("config").Error().Err(err).Str("profile", p.Name).Msg("Failed to write profile")
		return fmt.Errorf("failed to write profile %q: %w", p.Name, err)
	}

	logger.WithComponent("config").Info().
		Str("profile", p.Name).
		Int("windows", len(p.Windows)).
		Msg("Profile saved")
	return nil
}

// DeleteProfile removes a profile file. Deleting the Default profile
// always fails and leaves its file untouched.
func (s *Store) DeleteProfile(name string) error {
	if name == DefaultProfileName {
		return ErrProtectedProfile
	}
	if err := ValidateProfileName(name); err != nil {
		return err
	}
	if err := os.Remove(s.profilePath(name)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrProfileNotFound, name)
		}
		return fmt.Errorf("failed to delete profile %q: %w", name, err)
	}
	logger.WithComponent("config").Info().Str("profile", name).Msg("Profile deleted")
	return nil
}

// ListProfiles enumerates profile files by name, sorted
// lexicographically. "Default" is always present even before its file
// exists.
func (s *Store) ListProfiles() []string {
	names := []string{}
	entries, err := os.ReadDir(s.profilesDir)
	if err != nil {
		logger.WithComponent("config").Error().Err(err).Msg("Failed to list profiles")
	} else {
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
				continue
			}
			names = append(names, strings.TrimSuffix(e.Name(), ".json"))
		}
	}

	hasDefault := false
	for _, n := range names {
		if n == DefaultProfileName {
			hasDefault = true
			break
		}
	}
	if !hasDefault {
		names = append(names, DefaultProfileName)
	}

	sort.Strings(names)
	return names
}

func (s *Store) currentProfileName() string {
	if v, ok := s.settings["current_profile"].(string); ok && v != "" {
		return v
	}
	return DefaultProfileName
}

// CurrentProfile resolves the settings' current profile and loads it.
// When the profile is absent it synthesizes an empty Default profile
// and persists it immediately.
func (s *Store) CurrentProfile() *Profile {
	name := s.currentProfileName()
	p, err := s.LoadProfile(name)
	if err == nil {
		return p
	}

	logger.WithComponent("config").Warn().
		Str("profile", name).
		Msg("Current profile missing, creating empty Default")

	p = NewProfile(DefaultProfileName)
	if err := s.SaveProfile(p); err != nil {
		logger.WithComponent("config").Error().Err(err).Msg("Failed to persist Default profile")
	}
	if name != DefaultProfileName {
		s.SetCurrentProfile(DefaultProfileName)
	}
	return p
}

// SetCurrentProfile records the active profile in the settings document
// and persists it. The previous value becomes last_profile.
func (s *Store) SetCurrentProfile(name string) {
	if prev := s.currentProfileName(); prev != name {
		s.settings["last_profile"] = prev
	}
	s.settings["current_profile"] = name
	s.saveSettings()
}

// Setting returns a settings value, or def when unset.
func (s *Store) Setting(key string, def interface{}) interface{} {
	if v, ok := s.settings[key]; ok && v != nil {
		return v
	}
	return def
}

// SetSetting stores a settings value and persists the document.
func (s *Store) SetSetting(key string, value interface{}) {
	s.settings[key] = value
	s.saveSettings()
}

// Settings returns a copy of the settings document.
func (s *Store) Settings() map[string]interface{} {
	out := make(map[string]interface{}, len(s.settings))
	for k, v := range s.settings {
		out[k] = v
	}
	return out
}
