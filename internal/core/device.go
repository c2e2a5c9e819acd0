package core

import (
	"sort"
	"sync/atomic"
)

// DeviceState is the liveness flag of a device.
type DeviceState int32

const (
	DeviceFree DeviceState = iota
	DeviceBusy
)

func (s DeviceState) String() string {
	if s == DeviceBusy {
		return "busy"
	}
	return "free"
}

// Device is one remote execution agent serving a board class.
type Device struct {
	Name     string
	BoardID  string
	Endpoint string
	// Port is forwarded to the agent untouched, e.g. the serial port the board is on.
	Port string

	// state is written only by the dispatcher bound to this device. It is
	// atomic so the gateway can read it for the dashboard.
	state atomic.Int32
}

// NewDevice returns a free device.
func NewDevice(name, boardID, endpoint, port string) *Device {
	return &Device{Name: name, BoardID: boardID, Endpoint: endpoint, Port: port}
}

// State returns the current state.
func (d *Device) State() DeviceState { return DeviceState(d.state.Load()) }

func (d *Device) setState(s DeviceState) { d.state.Store(int32(s)) }

// DeviceInfo is a point-in-time view of a device.
type DeviceInfo struct {
	Name     string `json:"name"`
	BoardID  string `json:"target_board"`
	Endpoint string `json:"target_url"`
	Port     string `json:"target_port"`
	State    string `json:"status"`
}

// Registry is the fixed set of devices loaded at start.
type Registry struct {
	devices []*Device
}

// NewRegistry builds a registry ordered by device name.
func NewRegistry(devices ...*Device) *Registry {
	sorted := make([]*Device, len(devices))
	copy(sorted, devices)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	return &Registry{devices: sorted}
}

// Devices returns the registered devices.
func (r *Registry) Devices() []*Device { return r.devices }

// Len returns the number of devices.
func (r *Registry) Len() int { return len(r.devices) }

// Boards returns the distinct board ids, sorted.
func (r *Registry) Boards() []string {
	seen := make(map[string]struct{}, len(r.devices))
	boards := make([]string, 0, len(r.devices))
	for _, d := range r.devices {
		if _, ok := seen[d.BoardID]; ok {
			continue
		}
		seen[d.BoardID] = struct{}{}
		boards = append(boards, d.BoardID)
	}
	sort.Strings(boards)
	return boards
}

// Snapshot returns a view of every device.
func (r *Registry) Snapshot() []DeviceInfo {
	out := make([]DeviceInfo, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, DeviceInfo{
			Name:     d.Name,
			BoardID:  d.BoardID,
			Endpoint: d.Endpoint,
			Port:     d.Port,
			State:    d.State().String(),
		})
	}
	return out
}
