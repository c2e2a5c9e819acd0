package core

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// deviceSpec is one entry of the deployment file.
type deviceSpec struct {
	TargetBoard string `yaml:"target_board" json:"target_board"`
	TargetURL   string `yaml:"target_url" json:"target_url"`
	TargetPort  any    `yaml:"target_port" json:"target_port"`
}

// ParseDeployment parses a device roster keyed by device name:
//
//	{"dev-1": {"target_board": "esp32c3", "target_url": "http://host:5001", "target_port": "/dev/ttyUSB0"}}
//
// Both JSON and YAML are accepted. JSON goes through encoding/json because
// tab-indented JSON is not valid YAML.
func ParseDeployment(data []byte) (*Registry, error) {
	var specs map[string]deviceSpec
	var err error
	if json.Valid(data) {
		err = json.Unmarshal(data, &specs)
	} else {
		err = yaml.Unmarshal(data, &specs)
	}
	if err != nil {
		return nil, errors.Wrap(err, "decode deployment")
	}
	if len(specs) == 0 {
		return nil, errors.New("deployment defines no devices")
	}

	devices := make([]*Device, 0, len(specs))
	for name, spec := range specs {
		if spec.TargetBoard == "" {
			return nil, errors.Errorf("device %q: missing target_board", name)
		}
		if spec.TargetURL == "" {
			return nil, errors.Errorf("device %q: missing target_url", name)
		}
		// Ports are sometimes written as numbers.
		port := ""
		if spec.TargetPort != nil {
			port = fmt.Sprint(spec.TargetPort)
		}
		devices = append(devices, NewDevice(name, spec.TargetBoard, spec.TargetURL, port))
	}
	return NewRegistry(devices...), nil
}

// LoadDeployment reads and parses the deployment file at path.
func LoadDeployment(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read deployment file %s", path)
	}
	reg, err := ParseDeployment(data)
	if err != nil {
		return nil, errors.Wrapf(err, "deployment file %s", path)
	}
	return reg, nil
}
