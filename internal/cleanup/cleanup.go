// Package cleanup finds and stops vendor RGB software that fights over the
// same controllers. Only Windows is supported.
package cleanup

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/scheerer/nightwolf-rgb/internal/logging"
)

var logger = logging.New("cleanup")

var ErrUnsupportedPlatform = errors.New("cleanup only supported on Windows")

// Runner runs a command and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

type Detection struct {
	Detected  bool     `json:"detected"`
	Count     int      `json:"count"`
	Processes []string `json:"processes"`
	Message   string   `json:"message"`
	Error     string   `json:"error,omitempty"`
}

type ProcessOutcome struct {
	Process string `json:"process"`
	Status  string `json:"status"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type KillResult struct {
	Success         bool             `json:"success"`
	Killed          int              `json:"killed"`
	Failed          int              `json:"failed"`
	ProcessesKilled []string         `json:"processesKilled"`
	ProcessesFailed []string         `json:"processesFailed"`
	Details         []ProcessOutcome `json:"details"`
	Message         string           `json:"message"`
}

type ServiceOutcome struct {
	Service string `json:"service"`
	Status  string `json:"status"`
	Success bool   `json:"success"`
}

type ServiceResult struct {
	Success bool             `json:"success"`
	Results []ServiceOutcome `json:"results"`
	Message string           `json:"message"`
}

type Summary struct {
	ProcessesDetected int       `json:"processesDetected"`
	ProcessesKilled   int       `json:"processesKilled"`
	Timestamp         time.Time `json:"timestamp"`
}

type FullResult struct {
	Success     bool          `json:"success"`
	Detection   Detection     `json:"detection"`
	ProcessKill KillResult    `json:"processKill"`
	ServiceStop ServiceResult `json:"serviceStop"`
	Summary     Summary       `json:"summary"`
}

type Report struct {
	Platform        string    `json:"platform"`
	Supported       bool      `json:"supported"`
	Detection       Detection `json:"detection"`
	Recommendations string    `json:"recommendations"`
}

type Cleaner struct {
	goos      string
	run       Runner
	now       func() time.Time
	processes []string
	services  []string
}

func New() *Cleaner {
	return NewWithRunner(runtime.GOOS, ExecRunner)
}

func NewWithRunner(goos string, run Runner) *Cleaner {
	return &Cleaner{
		goos:      goos,
		run:       run,
		now:       time.Now,
		processes: KnownProcesses,
		services:  KnownServices,
	}
}

func (c *Cleaner) Supported() bool {
	return c.goos == "windows"
}

// Detect lists the known processes that are currently running.
func (c *Cleaner) Detect(ctx context.Context) (Detection, error) {
	if !c.Supported() {
		return Detection{Processes: []string{}, Message: ErrUnsupportedPlatform.Error()}, ErrUnsupportedPlatform
	}

	out, err := c.run(ctx, "tasklist", "/FO", "CSV", "/NH")
	if err != nil {
		logger.With(zap.Error(err)).Warn("Failed to list running processes")
		return Detection{Processes: []string{}, Error: err.Error()}, fmt.Errorf("listing processes: %w", err)
	}

	running, err := parseTasklist(out)
	if err != nil {
		return Detection{Processes: []string{}, Error: err.Error()}, fmt.Errorf("parsing process list: %w", err)
	}

	found := []string{}
	for _, name := range c.processes {
		if running[imageBase(name)] {
			found = append(found, name)
		}
	}

	d := Detection{
		Detected:  len(found) > 0,
		Count:     len(found),
		Processes: found,
		Message:   "No conflicting RGB processes detected",
	}
	if d.Detected {
		d.Message = fmt.Sprintf("%d conflicting RGB processes detected", len(found))
	}
	return d, nil
}

// KillProcesses force kills every known process and its children. Processes
// that are not running are skipped silently.
func (c *Cleaner) KillProcesses(ctx context.Context) (KillResult, error) {
	if !c.Supported() {
		return KillResult{Message: ErrUnsupportedPlatform.Error()}, ErrUnsupportedPlatform
	}

	r := KillResult{
		Success:         true,
		ProcessesKilled: []string{},
		ProcessesFailed: []string{},
		Details:         []ProcessOutcome{},
	}
	for _, name := range c.processes {
		out, err := c.run(ctx, "taskkill", "/F", "/IM", imageBase(name)+".exe", "/T")
		switch {
		case err == nil:
			r.ProcessesKilled = append(r.ProcessesKilled, name)
			r.Details = append(r.Details, ProcessOutcome{Process: name, Status: "killed", Success: true})
		case strings.Contains(strings.ToLower(string(out)), "not found"):
			// not running
		default:
			r.ProcessesFailed = append(r.ProcessesFailed, name)
			r.Details = append(r.Details, ProcessOutcome{Process: name, Status: "failed", Error: commandError(out, err)})
		}
	}

	r.Killed = len(r.ProcessesKilled)
	r.Failed = len(r.ProcessesFailed)
	r.Message = fmt.Sprintf("Cleanup complete: %d processes terminated", r.Killed)
	return r, nil
}

// StopServices asks the service manager to stop every known service.
func (c *Cleaner) StopServices(ctx context.Context) (ServiceResult, error) {
	if !c.Supported() {
		return ServiceResult{Message: ErrUnsupportedPlatform.Error()}, ErrUnsupportedPlatform
	}

	r := ServiceResult{Success: true, Results: []ServiceOutcome{}}
	for _, service := range c.services {
		if _, err := c.run(ctx, "net", "stop", service); err != nil {
			r.Results = append(r.Results, ServiceOutcome{Service: service, Status: "not_found_or_failed"})
			continue
		}
		r.Results = append(r.Results, ServiceOutcome{Service: service, Status: "stopped", Success: true})
	}
	r.Message = "Attempted to stop RGB services"
	return r, nil
}

// Full runs detection, kills processes and stops services in that order.
func (c *Cleaner) Full(ctx context.Context) (FullResult, error) {
	if !c.Supported() {
		return FullResult{}, ErrUnsupportedPlatform
	}
	logger.Info("Starting RGB cleanup")

	detection, err := c.Detect(ctx)
	if err != nil {
		logger.With(zap.Error(err)).Warn("Detection failed - continuing cleanup")
	}
	logger.With(zap.Int("detected", detection.Count)).Info(detection.Message)

	kill, err := c.KillProcesses(ctx)
	if err != nil {
		return FullResult{}, err
	}
	logger.With(zap.Int("killed", kill.Killed), zap.Int("failed", kill.Failed)).Info(kill.Message)

	stop, err := c.StopServices(ctx)
	if err != nil {
		return FullResult{}, err
	}
	logger.Info(stop.Message)

	return FullResult{
		Success:     true,
		Detection:   detection,
		ProcessKill: kill,
		ServiceStop: stop,
		Summary: Summary{
			ProcessesDetected: detection.Count,
			ProcessesKilled:   kill.Killed,
			Timestamp:         c.now().UTC(),
		},
	}, nil
}

func (c *Cleaner) Report(ctx context.Context) (Report, error) {
	r := Report{Platform: c.goos, Supported: c.Supported()}

	detection, err := c.Detect(ctx)
	r.Detection = detection
	if err != nil && !errors.Is(err, ErrUnsupportedPlatform) {
		return r, err
	}

	r.Recommendations = "System clean, RGB control optimized"
	if detection.Detected {
		r.Recommendations = "Run the cleanup for better RGB control"
	}
	return r, nil
}

// parseTasklist returns the lowercased image names, without .exe, of the
// processes in tasklist CSV output.
func parseTasklist(out []byte) (map[string]bool, error) {
	r := csv.NewReader(bytes.NewReader(out))
	r.FieldsPerRecord = -1

	running := make(map[string]bool)
	for {
		record, err := r.Read()
		if err == io.EOF {
			return running, nil
		}
		if err != nil {
			return nil, err
		}
		if len(record) > 0 && record[0] != "" {
			running[imageBase(record[0])] = true
		}
	}
}

func imageBase(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.TrimSuffix(name, ".exe")
}

func commandError(out []byte, err error) string {
	if msg := strings.TrimSpace(string(out)); msg != "" {
		return msg
	}
	return err.Error()
}
