package platform

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Service names registered by Setup.
const (
	ServiceSetFanMinOnTime = "set_fan_min_on_time"
	ServiceResumeProgram   = "resume_program"
)

//go:embed services.yaml
var servicesYAML []byte

// ServiceField describes one schema field of a platform service.
type ServiceField struct {
	Description string `yaml:"description" json:"description"`
	Example     any    `yaml:"example" json:"example,omitempty"`
}

// ServiceDescription is the operator-facing metadata for one service.
type ServiceDescription struct {
	Description string                  `yaml:"description" json:"description"`
	Fields      map[string]ServiceField `yaml:"fields" json:"fields"`
}

func loadServiceDescriptions() (map[string]ServiceDescription, error) {
	descriptions := map[string]ServiceDescription{}
	if err := yaml.Unmarshal(servicesYAML, &descriptions); err != nil {
		return nil, fmt.Errorf("parse services.yaml: %w", err)
	}
	return descriptions, nil
}

// SetFanMinOnTimeRequest is the typed schema of the set_fan_min_on_time
// service call. An empty EntityIDs set targets every thermostat.
type SetFanMinOnTimeRequest struct {
	EntityIDs    []string `json:"entity_id,omitempty"`
	FanMinOnTime int      `json:"fan_min_on_time"`
}

// ResumeProgramRequest is the typed schema of the resume_program service
// call. ResumeAll defaults to false.
type ResumeProgramRequest struct {
	EntityIDs []string `json:"entity_id,omitempty"`
	ResumeAll bool     `json:"resume_all"`
}
