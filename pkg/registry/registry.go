// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

var validStatuses = map[string]bool{
	StatusPlanned:    true,
	StatusInProgress: true,
	StatusCompleted:  true,
	StatusVerified:   true,
}

func LoadRegistry(path string) (*ActivityRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg ActivityRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &reg, nil
}

// LoadOrNew returns an empty registry when path does not exist yet.
func LoadOrNew(path string) (*ActivityRegistry, error) {
	reg, err := LoadRegistry(path)
	if errors.Is(err, os.ErrNotExist) {
		return &ActivityRegistry{Version: "1.0.0", Activities: []Activity{}}, nil
	}
	return reg, err
}

// Save stamps LastUpdated and writes the registry as indented JSON.
func (r *ActivityRegistry) Save(path string) error {
	r.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal registry: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create registry dir: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write registry: %w", err)
	}
	return nil
}

// Find looks an activity up by task type.
func (r *ActivityRegistry) Find(taskType string) (Activity, bool) {
	for _, a := range r.Activities {
		if a.TaskType == taskType {
			return a, true
		}
	}
	return Activity{}, false
}

func (r *ActivityRegistry) Add(a Activity) error {
	for _, existing := range r.Activities {
		if existing.ID == a.ID {
			return fmt.Errorf("activity %s already exists", a.ID)
		}
	}
	r.Activities = append(r.Activities, a)
	return nil
}

// Update sets one named field on the activity with the given id.
func (r *ActivityRegistry) Update(id, field, value string) error {
	for i := range r.Activities {
		a := &r.Activities[i]
		if a.ID != id {
			continue
		}
		switch field {
		case "status":
			if !validStatuses[value] {
				return fmt.Errorf("unknown status %q", value)
			}
			a.ImplementationStatus = value
		case "version":
			a.Version = value
		case "displayName":
			a.DisplayName = value
		case "description":
			a.Description = value
		case "category":
			a.Category = value
		case "taskType":
			a.TaskType = value
		case "timeout":
			if _, err := time.ParseDuration(value); err != nil {
				return fmt.Errorf("invalid timeout: %w", err)
			}
			a.Timeout = value
		case "retries":
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 {
				return fmt.Errorf("invalid retries value %q", value)
			}
			a.Retries = n
		default:
			return fmt.Errorf("unknown field: %s", field)
		}
		return nil
	}
	return fmt.Errorf("activity %s not found", id)
}

// Validate checks required fields, uniqueness of ids and task types, and
// that timeouts parse.
func (r *ActivityRegistry) Validate() error {
	if len(r.Activities) == 0 {
		return errors.New("registry contains no activities")
	}

	var errs []error
	ids := make(map[string]bool)
	taskTypes := make(map[string]bool)
	for _, a := range r.Activities {
		if a.ID == "" {
			errs = append(errs, errors.New("activity missing id"))
			continue
		}
		if ids[a.ID] {
			errs = append(errs, fmt.Errorf("duplicate activity id: %s", a.ID))
		}
		ids[a.ID] = true

		if a.DisplayName == "" {
			errs = append(errs, fmt.Errorf("%s: missing displayName", a.ID))
		}
		if a.Category == "" {
			errs = append(errs, fmt.Errorf("%s: missing category", a.ID))
		}
		if a.TaskType == "" {
			errs = append(errs, fmt.Errorf("%s: missing taskType", a.ID))
		} else if taskTypes[a.TaskType] {
			errs = append(errs, fmt.Errorf("%s: task type %s is already registered", a.ID, a.TaskType))
		}
		taskTypes[a.TaskType] = true

		if !validStatuses[a.ImplementationStatus] {
			errs = append(errs, fmt.Errorf("%s: unknown implementationStatus %q", a.ID, a.ImplementationStatus))
		}
		if a.Timeout != "" {
			if _, err := time.ParseDuration(a.Timeout); err != nil {
				errs = append(errs, fmt.Errorf("%s: invalid timeout %q", a.ID, a.Timeout))
			}
		}
	}
	return errors.Join(errs...)
}
