// cmd/tools/registry-updater/main.go
package main

import (
	"flag"
	"fmt"
	"os"

	"social-support-wizard/pkg/registry"
)

const defaultRegistryPath = "configs/activity-registry.json"

func main() {
	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "add":
		err = runAdd(os.Args[2:])
	case "update":
		err = runUpdate(os.Args[2:])
	case "validate":
		err = runValidate(os.Args[2:])
	default:
		help()
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runAdd(args []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	path := fs.String("path", defaultRegistryPath, "Path to registry file")
	id := fs.String("id", "", "Activity ID (e.g., index-support-application)")
	displayName := fs.String("displayName", "", "Display name")
	description := fs.String("description", "", "Description")
	category := fs.String("category", "", "Category (application, communication, ai)")
	taskType := fs.String("taskType", "", "Zeebe task type, defaults to the id")
	version := fs.String("version", "1.0.0", "Version")
	status := fs.String("status", registry.StatusPlanned, "Implementation status (planned, in-progress, completed, verified)")
	timeout := fs.String("timeout", "30s", "Job timeout")
	retries := fs.Int("retries", 3, "Retries before an incident is raised")
	_ = fs.Parse(args)

	if *id == "" || *displayName == "" || *category == "" {
		fs.Usage()
		return fmt.Errorf("id, displayName and category are required")
	}
	if *taskType == "" {
		*taskType = *id
	}

	reg, err := registry.LoadOrNew(*path)
	if err != nil {
		return err
	}
	err = reg.Add(registry.Activity{
		ID:                   *id,
		DisplayName:          *displayName,
		Description:          *description,
		Category:             *category,
		Version:              *version,
		TaskType:             *taskType,
		ImplementationStatus: *status,
		InputSchema:          map[string]interface{}{},
		OutputSchema:         map[string]interface{}{},
		ErrorCodes:           []string{},
		Timeout:              *timeout,
		Retries:              *retries,
		Workflows:            []string{"social-support-application"},
		Tags:                 []string{},
	})
	if err != nil {
		return err
	}
	if err := reg.Validate(); err != nil {
		return err
	}
	if err := reg.Save(*path); err != nil {
		return err
	}
	fmt.Printf("Added activity: %s\n", *id)
	return nil
}

func runUpdate(args []string) error {
	fs := flag.NewFlagSet("update", flag.ExitOnError)
	path := fs.String("path", defaultRegistryPath, "Path to registry file")
	id := fs.String("id", "", "Activity ID to update")
	field := fs.String("field", "", "Field to update (status, version, timeout, retries, ...)")
	value := fs.String("value", "", "New value for the field")
	_ = fs.Parse(args)

	if *id == "" || *field == "" || *value == "" {
		fs.Usage()
		return fmt.Errorf("id, field and value are required")
	}

	reg, err := registry.LoadRegistry(*path)
	if err != nil {
		return err
	}
	if err := reg.Update(*id, *field, *value); err != nil {
		return err
	}
	if err := reg.Save(*path); err != nil {
		return err
	}
	fmt.Printf("Updated activity %s, field %s to %s\n", *id, *field, *value)
	return nil
}

func runValidate(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	path := fs.String("path", defaultRegistryPath, "Path to registry file")
	_ = fs.Parse(args)

	reg, err := registry.LoadRegistry(*path)
	if err != nil {
		return err
	}
	if err := reg.Validate(); err != nil {
		return fmt.Errorf("registry validation failed:\n%w", err)
	}
	fmt.Printf("Registry validation passed. Found %d activities.\n", len(reg.Activities))
	return nil
}

func help() {
	fmt.Println(`
Usage: registry-updater <command> [flags]

Commands:
  add       Add a new activity to the registry
  update    Update an existing activity's field
  validate  Validate the registry file
  help      Show this help message

Examples:
  registry-updater add -id draft-situation-description -displayName "Draft Situation Description" -category ai
  registry-updater update -id index-support-application -field status -value verified
  registry-updater validate -path configs/activity-registry.json`)
}
