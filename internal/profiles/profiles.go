// Package profiles persists named device lighting snapshots as a JSON file.
package profiles

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/scheerer/nightwolf-rgb/internal/logging"
	"github.com/scheerer/nightwolf-rgb/internal/util"
)

var logger = logging.New("profiles")

var (
	ErrNotFound       = errors.New("profile not found")
	ErrInvalidProfile = errors.New("invalid profile")
)

type DeviceState struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
	// Mode is left untouched on apply when nil.
	Mode       *int `json:"mode,omitempty"`
	Brightness int  `json:"brightness"`
}

type Profile struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Devices     []DeviceState `json:"devices"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// Patch carries the fields of an update; nil fields are kept.
type Patch struct {
	Name        *string        `json:"name"`
	Description *string        `json:"description"`
	Devices     *[]DeviceState `json:"devices"`
}

type Store struct {
	path  string
	now   func() time.Time
	newID func() string

	mu       sync.RWMutex
	profiles []Profile
}

// New loads the profiles at path. A missing file is an empty store; the file
// is created on the first write.
func New(path string) (*Store, error) {
	s := &Store{
		path:     path,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
		profiles: []Profile{},
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.With(zap.String("path", path)).Info("No profiles file yet - starting empty")
		return s, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &s.profiles); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	logger.With(zap.String("path", path), zap.Int("profiles", len(s.profiles))).Info("Profiles loaded")
	return s, nil
}

func (s *Store) List() []Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Profile, len(s.profiles))
	for i, p := range s.profiles {
		out[i] = p.clone()
	}
	return out
}

func (s *Store) Get(id string) (Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexOf(id)
	if i < 0 {
		return Profile{}, ErrNotFound
	}
	return s.profiles[i].clone(), nil
}

func (s *Store) Create(name, description string, devices []DeviceState) (Profile, error) {
	if err := validate(name, devices); err != nil {
		return Profile{}, err
	}

	now := s.now()
	p := Profile{
		ID:          s.newID(),
		Name:        name,
		Description: description,
		Devices:     normalizeDevices(devices),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.profiles = append(s.profiles, p)
	if err := s.save(); err != nil {
		s.profiles = s.profiles[:len(s.profiles)-1]
		return Profile{}, err
	}
	return p.clone(), nil
}

func (s *Store) Update(id string, patch Patch) (Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return Profile{}, ErrNotFound
	}

	old := s.profiles[i]
	p := old.clone()
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Devices != nil {
		p.Devices = *patch.Devices
	}
	if err := validate(p.Name, p.Devices); err != nil {
		return Profile{}, err
	}
	p.Devices = normalizeDevices(p.Devices)
	p.UpdatedAt = s.now()

	s.profiles[i] = p
	if err := s.save(); err != nil {
		s.profiles[i] = old
		return Profile{}, err
	}
	return p.clone(), nil
}

func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return ErrNotFound
	}

	old := s.profiles
	s.profiles = append(append([]Profile{}, old[:i]...), old[i+1:]...)
	if err := s.save(); err != nil {
		s.profiles = old
		return err
	}
	return nil
}

func (s *Store) indexOf(id string) int {
	for i, p := range s.profiles {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// save writes the whole store to a temp file next to path and renames it
// into place. Must be called with mu held.
func (s *Store) save() error {
	data, err := json.MarshalIndent(s.profiles, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".profiles-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return err
	}

	logger.With(zap.String("path", s.path), zap.Int("profiles", len(s.profiles))).Debug("Profiles saved")
	return nil
}

func validate(name string, devices []DeviceState) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidProfile)
	}
	for _, d := range devices {
		if _, err := util.ParseHex(d.Color); err != nil {
			return fmt.Errorf("%w: device %d: %v", ErrInvalidProfile, d.ID, err)
		}
		if d.Brightness < 0 || d.Brightness > 100 {
			return fmt.Errorf("%w: device %d: brightness %d out of range 0-100", ErrInvalidProfile, d.ID, d.Brightness)
		}
	}
	return nil
}

// normalizeDevices canonicalizes colors to #RRGGBB.
func normalizeDevices(devices []DeviceState) []DeviceState {
	out := make([]DeviceState, len(devices))
	for i, d := range devices {
		d.Color = util.ColorToHex(util.HexToColor(d.Color))
		if d.Mode != nil {
			mode := *d.Mode
			d.Mode = &mode
		}
		out[i] = d
	}
	return out
}

func (p Profile) clone() Profile {
	p.Devices = normalizeDevices(p.Devices)
	return p
}
