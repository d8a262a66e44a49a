package settings

import (
	"context"
	"fmt"
	"log"
)

// DefaultProfile is used when a caller does not name a profile.
const DefaultProfile = "default"

// Loader reads saved settings. It returns found=false when nothing is stored.
type Loader interface {
	LoadSettings(ctx context.Context, profile string) (s Settings, found bool, err error)
}

// Saver persists and removes settings.
type Saver interface {
	SaveSettings(ctx context.Context, profile string, s Settings) error
	DeleteSettings(ctx context.Context, profile string) error
}

// Manager applies defaults and validation on top of a Loader and Saver.
type Manager struct {
	loader Loader
	saver  Saver
}

func NewManager(loader Loader, saver Saver) *Manager {
	return &Manager{loader: loader, saver: saver}
}

// Load returns the stored settings for profile, or Defaults when none are
// stored. Stored settings that no longer validate are replaced by Defaults.
func (m *Manager) Load(ctx context.Context, profile string) (Settings, error) {
	if profile == "" {
		profile = DefaultProfile
	}
	s, found, err := m.loader.LoadSettings(ctx, profile)
	if err != nil {
		return Settings{}, fmt.Errorf("load settings %s: %w", profile, err)
	}
	if !found {
		return Defaults(), nil
	}
	if err := s.Validate(); err != nil {
		log.Printf("settings: stored profile %s is invalid, using defaults: %v", profile, err)
		return Defaults(), nil
	}
	return s, nil
}

// Save validates and stores s.
func (m *Manager) Save(ctx context.Context, profile string, s Settings) error {
	if profile == "" {
		profile = DefaultProfile
	}
	if err := s.Validate(); err != nil {
		return err
	}
	if err := m.saver.SaveSettings(ctx, profile, s); err != nil {
		return fmt.Errorf("save settings %s: %w", profile, err)
	}
	return nil
}

// Reset removes stored settings and returns Defaults.
func (m *Manager) Reset(ctx context.Context, profile string) (Settings, error) {
	if profile == "" {
		profile = DefaultProfile
	}
	if err := m.saver.DeleteSettings(ctx, profile); err != nil {
		return Settings{}, fmt.Errorf("reset settings %s: %w", profile, err)
	}
	return Defaults(), nil
}

// MemoryStore keeps settings in a map. It is not safe for concurrent use.
type MemoryStore map[string]Settings

func (m MemoryStore) LoadSettings(_ context.Context, profile string) (Settings, bool, error) {
	s, ok := m[profile]
	return s, ok, nil
}

func (m MemoryStore) SaveSettings(_ context.Context, profile string, s Settings) error {
	m[profile] = s
	return nil
}

func (m MemoryStore) DeleteSettings(_ context.Context, profile string) error {
	delete(m, profile)
	return nil
}
