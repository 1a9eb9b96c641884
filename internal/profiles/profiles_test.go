package profiles

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/scheerer/nightwolf-rgb/lights"
	"github.com/scheerer/nightwolf-rgb/mocks"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "profiles.json")
	s, err := New(path)
	require.NoError(t, err)

	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	ids := 0
	s.newID = func() string {
		ids++
		return []string{"", "first", "second", "third"}[ids]
	}
	return s, path
}

func intPtr(i int) *int { return &i }

func TestNewMissingFileIsEmpty(t *testing.T) {
	s, path := newTestStore(t)

	assert.Empty(t, s.List())
	_, err := os.Stat(path)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestNewMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := New(path)
	assert.Error(t, err)
}

func TestCreatePersists(t *testing.T) {
	s, path := newTestStore(t)

	p, err := s.Create("Gaming", "red everything", []DeviceState{{ID: 0, Name: "Keyboard", Color: "FF0000", Mode: intPtr(0), Brightness: 100}})
	require.NoError(t, err)
	assert.Equal(t, "first", p.ID)
	assert.Equal(t, "#ff0000", p.Devices[0].Color)
	assert.Equal(t, p.CreatedAt, p.UpdatedAt)

	reloaded, err := New(path)
	require.NoError(t, err)
	got, err := reloaded.Get("first")
	require.NoError(t, err)
	assert.Equal(t, "Gaming", got.Name)
	assert.Equal(t, 0, *got.Devices[0].Mode)
	assert.True(t, p.CreatedAt.Equal(got.CreatedAt))
}

func TestCreateValidates(t *testing.T) {
	s, path := newTestStore(t)

	_, err := s.Create(" ", "", nil)
	assert.ErrorIs(t, err, ErrInvalidProfile)

	_, err = s.Create("Bad color", "", []DeviceState{{Color: "#12"}})
	assert.ErrorIs(t, err, ErrInvalidProfile)

	_, err = s.Create("Bad brightness", "", []DeviceState{{Color: "#000000", Brightness: 101}})
	assert.ErrorIs(t, err, ErrInvalidProfile)

	assert.Empty(t, s.List())
	_, err = os.Stat(path)
	assert.Error(t, err)
}

func TestUpdateMerges(t *testing.T) {
	s, _ := newTestStore(t)
	created, err := s.Create("Work", "calm", []DeviceState{{ID: 1, Color: "#0000ff"}})
	require.NoError(t, err)

	name := "Focus"
	updated, err := s.Update(created.ID, Patch{Name: &name})
	require.NoError(t, err)

	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "Focus", updated.Name)
	assert.Equal(t, "calm", updated.Description)
	assert.Equal(t, created.Devices, updated.Devices)
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))
	assert.True(t, updated.CreatedAt.Equal(created.CreatedAt))

	devices := []DeviceState{}
	updated, err = s.Update(created.ID, Patch{Devices: &devices})
	require.NoError(t, err)
	assert.Empty(t, updated.Devices)
}

func TestUpdateRejectsEmptyName(t *testing.T) {
	s, _ := newTestStore(t)
	created, err := s.Create("Work", "", nil)
	require.NoError(t, err)

	empty := ""
	_, err = s.Update(created.ID, Patch{Name: &empty})
	assert.ErrorIs(t, err, ErrInvalidProfile)

	got, _ := s.Get(created.ID)
	assert.Equal(t, "Work", got.Name)
}

func TestUnknownProfile(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.Get("nope")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Update("nope", Patch{})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete("nope"), ErrNotFound)
}

func TestDelete(t *testing.T) {
	s, path := newTestStore(t)
	_, err := s.Create("One", "", nil)
	require.NoError(t, err)
	_, err = s.Create("Two", "", nil)
	require.NoError(t, err)

	require.NoError(t, s.Delete("first"))

	reloaded, err := New(path)
	require.NoError(t, err)
	list := reloaded.List()
	require.Len(t, list, 1)
	assert.Equal(t, "Two", list[0].Name)
}

func TestListReturnsCopies(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.Create("One", "", []DeviceState{{Color: "#010203"}})
	require.NoError(t, err)

	list := s.List()
	list[0].Devices[0].Color = "#ffffff"

	got, _ := s.Get("first")
	assert.Equal(t, "#010203", got.Devices[0].Color)
}

func TestNoTempFilesLeftBehind(t *testing.T) {
	s, path := newTestStore(t)
	_, err := s.Create("One", "", nil)
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "profiles.json", entries[0].Name())
}

func TestSnapshot(t *testing.T) {
	states := Snapshot([]lights.Device{
		{ID: 0, Name: "Keyboard", ActiveMode: 2, Colors: []lights.Color{{Red: 255}, {Blue: 255}}},
		{ID: 1, Name: "Empty"},
	})

	require.Len(t, states, 2)
	assert.Equal(t, DeviceState{ID: 0, Name: "Keyboard", Color: "#ff0000", Mode: intPtr(2), Brightness: 100}, states[0])
	assert.Equal(t, "#000000", states[1].Color)
	assert.Equal(t, 0, *states[1].Mode)
}

func TestApplyCollectsFailures(t *testing.T) {
	controller := &mocks.Controller{}
	controller.On("SetDeviceColor", mock.Anything, 0, lights.Color{Red: 255}).Return(nil)
	controller.On("SetDeviceMode", mock.Anything, 0, 1).Return(nil)
	controller.On("SetDeviceColor", mock.Anything, 1, lights.Color{Green: 255}).Return(lights.ErrDeviceNotFound)
	controller.On("SetDeviceColor", mock.Anything, 2, lights.Color{Blue: 255}).Return(nil)

	p := Profile{Name: "Mixed", Devices: []DeviceState{
		{ID: 0, Color: "#ff0000", Mode: intPtr(1)},
		{ID: 1, Color: "#00ff00", Mode: intPtr(1)},
		{ID: 2, Color: "#0000ff"},
	}}

	results := Apply(context.Background(), controller, p)

	assert.Equal(t, []lights.Result{
		{DeviceID: 0, Success: true},
		{DeviceID: 1, Success: false, Error: "device not found"},
		{DeviceID: 2, Success: true},
	}, results)
	controller.AssertExpectations(t)
	controller.AssertNotCalled(t, "SetDeviceMode", mock.Anything, 1, 1)
	controller.AssertNotCalled(t, "SetDeviceMode", mock.Anything, 2, mock.Anything)
}
