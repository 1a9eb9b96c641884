package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"gopkg.in/macaron.v1"

	"github.com/scheerer/nightwolf-rgb/internal/cleanup"
	"github.com/scheerer/nightwolf-rgb/internal/effects"
	"github.com/scheerer/nightwolf-rgb/internal/profiles"
	"github.com/scheerer/nightwolf-rgb/internal/util"
	"github.com/scheerer/nightwolf-rgb/lights"
)

// colorValue accepts either "#rrggbb" or {"red":..,"green":..,"blue":..}.
type colorValue struct {
	lights.Color
}

func (c *colorValue) UnmarshalJSON(data []byte) error {
	var hex string
	if err := json.Unmarshal(data, &hex); err == nil {
		parsed, err := util.ParseHex(hex)
		if err != nil {
			return err
		}
		c.Color = parsed
		return nil
	}
	return json.Unmarshal(data, &c.Color)
}

type colorRequest struct {
	Color *colorValue `json:"color"`
}

func (r colorRequest) color() (lights.Color, error) {
	if r.Color == nil {
		return lights.Black, badRequest("color is required")
	}
	return r.Color.Color, nil
}

func (s *Server) listDevices(ctx *macaron.Context) {
	devices, err := s.controller.ListDevices(ctx.Req.Context())
	if err != nil {
		fail(ctx, err)
		return
	}
	writeJSON(ctx, http.StatusOK, devices)
}

func (s *Server) getDevice(ctx *macaron.Context) {
	id, err := deviceID(ctx)
	if err != nil {
		fail(ctx, err)
		return
	}
	device, err := s.controller.Device(ctx.Req.Context(), id)
	if errors.Is(err, lights.ErrNotConnected) {
		err = lights.ErrDeviceNotFound
	}
	if err != nil {
		fail(ctx, err)
		return
	}
	writeJSON(ctx, http.StatusOK, device)
}

func (s *Server) setDeviceColor(ctx *macaron.Context) {
	id, err := deviceID(ctx)
	if err != nil {
		fail(ctx, err)
		return
	}
	var req colorRequest
	if err := decodeBody(ctx, &req); err != nil {
		fail(ctx, err)
		return
	}
	color, err := req.color()
	if err != nil {
		fail(ctx, err)
		return
	}

	if err := s.controller.SetDeviceColor(ctx.Req.Context(), id, color); err != nil {
		fail(ctx, err)
		return
	}
	writeJSON(ctx, http.StatusOK, map[string]any{"success": true, "deviceId": id, "color": color})
}

func (s *Server) setDeviceMode(ctx *macaron.Context) {
	id, err := deviceID(ctx)
	if err != nil {
		fail(ctx, err)
		return
	}
	var req struct {
		ModeID *int `json:"modeId"`
	}
	if err := decodeBody(ctx, &req); err != nil {
		fail(ctx, err)
		return
	}
	if req.ModeID == nil {
		fail(ctx, badRequest("modeId is required"))
		return
	}

	if err := s.controller.SetDeviceMode(ctx.Req.Context(), id, *req.ModeID); err != nil {
		fail(ctx, err)
		return
	}
	writeJSON(ctx, http.StatusOK, map[string]any{"success": true, "deviceId": id, "modeId": *req.ModeID})
}

func (s *Server) setDeviceBrightness(ctx *macaron.Context) {
	id, err := deviceID(ctx)
	if err != nil {
		fail(ctx, err)
		return
	}
	var req struct {
		Brightness *int `json:"brightness"`
	}
	if err := decodeBody(ctx, &req); err != nil {
		fail(ctx, err)
		return
	}
	if req.Brightness == nil || *req.Brightness < 0 || *req.Brightness > 100 {
		fail(ctx, badRequest("brightness must be between 0 and 100"))
		return
	}

	if err := s.controller.SetDeviceBrightness(ctx.Req.Context(), id, *req.Brightness); err != nil {
		fail(ctx, err)
		return
	}
	writeJSON(ctx, http.StatusOK, map[string]any{"success": true, "deviceId": id, "brightness": *req.Brightness})
}

func (s *Server) syncDevices(ctx *macaron.Context) {
	var req colorRequest
	if err := decodeBody(ctx, &req); err != nil {
		fail(ctx, err)
		return
	}
	color, err := req.color()
	if err != nil {
		fail(ctx, err)
		return
	}

	results, err := s.controller.SetAllDevicesColor(ctx.Req.Context(), color)
	if err != nil {
		fail(ctx, err)
		return
	}
	writeJSON(ctx, http.StatusOK, results)
}

type profileRequest struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Devices     []profiles.DeviceState `json:"devices"`
}

func (s *Server) listProfiles(ctx *macaron.Context) {
	writeJSON(ctx, http.StatusOK, s.profiles.List())
}

func (s *Server) getProfile(ctx *macaron.Context) {
	p, err := s.profiles.Get(ctx.Params(":id"))
	if err != nil {
		fail(ctx, err)
		return
	}
	writeJSON(ctx, http.StatusOK, p)
}

func (s *Server) createProfile(ctx *macaron.Context) {
	var req profileRequest
	if err := decodeBody(ctx, &req); err != nil {
		fail(ctx, err)
		return
	}
	if req.Devices == nil {
		req.Devices = []profiles.DeviceState{}
	}

	p, err := s.profiles.Create(req.Name, req.Description, req.Devices)
	if err != nil {
		fail(ctx, err)
		return
	}
	writeJSON(ctx, http.StatusCreated, p)
}

func (s *Server) updateProfile(ctx *macaron.Context) {
	var patch profiles.Patch
	if err := decodeBody(ctx, &patch); err != nil {
		fail(ctx, err)
		return
	}

	p, err := s.profiles.Update(ctx.Params(":id"), patch)
	if err != nil {
		fail(ctx, err)
		return
	}
	writeJSON(ctx, http.StatusOK, p)
}

func (s *Server) deleteProfile(ctx *macaron.Context) {
	if err := s.profiles.Delete(ctx.Params(":id")); err != nil {
		fail(ctx, err)
		return
	}
	writeJSON(ctx, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) snapshotProfile(ctx *macaron.Context) {
	devices, err := s.controller.ListDevices(ctx.Req.Context())
	if err != nil {
		fail(ctx, err)
		return
	}
	writeJSON(ctx, http.StatusOK, map[string]any{"devices": profiles.Snapshot(devices)})
}

func (s *Server) applyProfile(ctx *macaron.Context) {
	p, err := s.profiles.Get(ctx.Params(":id"))
	if err != nil {
		fail(ctx, err)
		return
	}
	results := profiles.Apply(ctx.Req.Context(), s.controller, p)
	writeJSON(ctx, http.StatusOK, map[string]any{"success": true, "results": results})
}

// cleanupResult reports unsupported platforms as a normal response so
// clients can show the message.
func cleanupResult[T any](ctx *macaron.Context, result T, err error) {
	if err != nil && !errors.Is(err, cleanup.ErrUnsupportedPlatform) {
		fail(ctx, err)
		return
	}
	writeJSON(ctx, http.StatusOK, result)
}

func (s *Server) cleanupStatus(ctx *macaron.Context) {
	r, err := s.cleaner.Report(ctx.Req.Context())
	cleanupResult(ctx, r, err)
}

func (s *Server) cleanupDetect(ctx *macaron.Context) {
	r, err := s.cleaner.Detect(ctx.Req.Context())
	cleanupResult(ctx, r, err)
}

func (s *Server) cleanupKill(ctx *macaron.Context) {
	r, err := s.cleaner.KillProcesses(ctx.Req.Context())
	cleanupResult(ctx, r, err)
}

func (s *Server) cleanupServices(ctx *macaron.Context) {
	r, err := s.cleaner.StopServices(ctx.Req.Context())
	cleanupResult(ctx, r, err)
}

func (s *Server) cleanupFull(ctx *macaron.Context) {
	r, err := s.cleaner.Full(ctx.Req.Context())
	if errors.Is(err, cleanup.ErrUnsupportedPlatform) {
		writeJSON(ctx, http.StatusOK, map[string]any{"success": false, "message": err.Error()})
		return
	}
	cleanupResult(ctx, r, err)
}

func (s *Server) effectStatus(ctx *macaron.Context) {
	writeJSON(ctx, http.StatusOK, s.control.Status())
}

func (s *Server) startEffect(ctx *macaron.Context) {
	var req struct {
		Type    string           `json:"type"`
		Options *effects.Options `json:"options"`
	}
	if err := decodeBody(ctx, &req); err != nil {
		fail(ctx, err)
		return
	}
	if req.Type == "" {
		fail(ctx, badRequest("Effect type is required"))
		return
	}

	resp, err := s.control.Start(ctx.Req.Context(), req.Type, req.Options)
	if err != nil {
		fail(ctx, err)
		return
	}
	writeJSON(ctx, http.StatusOK, resp)
}

func (s *Server) stopEffect(ctx *macaron.Context) {
	writeJSON(ctx, http.StatusOK, s.control.Stop())
}

func (s *Server) effectMetrics(ctx *macaron.Context) {
	writeJSON(ctx, http.StatusOK, s.control.Metrics())
}
