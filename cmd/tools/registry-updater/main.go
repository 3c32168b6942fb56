// cmd/tools/registry-updater/main.go
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"sort"

	"cakeshop-notifier/internal/common/validation"
	"cakeshop-notifier/pkg/registry"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) < 1 {
		help(out)
		return fmt.Errorf("a command is required")
	}

	switch args[0] {
	case "list":
		fs := flag.NewFlagSet("list", flag.ContinueOnError)
		path := fs.String("path", "", "Registry file (defaults to the embedded registry)")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		reg, err := load(*path)
		if err != nil {
			return err
		}
		listActivities(reg, out)
		return nil

	case "validate":
		fs := flag.NewFlagSet("validate", flag.ContinueOnError)
		path := fs.String("path", "", "Registry file (defaults to the embedded registry)")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		reg, err := load(*path)
		if err != nil {
			return err
		}
		if err := reg.Validate(); err != nil {
			return fmt.Errorf("registry validation failed: %w", err)
		}
		fmt.Fprintf(out, "Registry validation passed. Found %d activities.\n", len(reg.Activities))
		return nil

	case "check":
		fs := flag.NewFlagSet("check", flag.ContinueOnError)
		path := fs.String("path", "", "Registry file (defaults to the embedded registry)")
		task := fs.String("task", "", "Task type or body id to check against")
		input := fs.String("input", "", "File holding the JSON document (- for stdin)")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if *task == "" || *input == "" {
			return fmt.Errorf("-task and -input are required for check")
		}
		reg, err := load(*path)
		if err != nil {
			return err
		}
		return checkDocument(reg, *task, *input, out)

	case "help", "-h", "--help":
		help(out)
		return nil

	default:
		help(out)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func load(path string) (*registry.ActivityRegistry, error) {
	if path == "" {
		return registry.Default()
	}
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load registry: %w", err)
	}
	return reg, nil
}

func listActivities(reg *registry.ActivityRegistry, out io.Writer) {
	activities := append([]registry.Activity(nil), reg.Activities...)
	sort.Slice(activities, func(i, j int) bool { return activities[i].TaskType < activities[j].TaskType })

	for _, a := range activities {
		fmt.Fprintf(out, "%-26s %-12s %s\n", a.TaskType, a.Category, a.DisplayName)
	}
}

func checkDocument(reg *registry.ActivityRegistry, task, input string, out io.Writer) error {
	schema := reg.InputSchema(task)
	if schema == nil {
		return fmt.Errorf("no input schema for %q", task)
	}

	var (
		data []byte
		err  error
	)
	if input == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(input)
	}
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	result, err := validation.ValidateJSON(schema, string(data))
	if err != nil {
		return err
	}
	if !result.Valid {
		for _, msg := range result.GetErrorMessages() {
			fmt.Fprintf(out, "  - %s\n", msg)
		}
		return fmt.Errorf("document does not match %s", task)
	}
	fmt.Fprintf(out, "Document matches %s.\n", task)
	return nil
}

func help(out io.Writer) {
	fmt.Fprint(out, `
Usage: registry-updater <command> [flags]

Commands:
  list      List the registered task types
  validate  Validate the registry (unique task types, compilable schemas)
  check     Validate a JSON document against a task's input schema
  help      Show this help message

Examples:
  registry-updater validate
  registry-updater validate -path pkg/registry/activities.json
  registry-updater check -task notify-order-assignment -input job.json
`)
}
