package terraform

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/opslens/internal/util"
)

// Timeouts for the terraform CLI.
const (
	InitTimeout     = 60 * time.Second
	ValidateTimeout = 30 * time.Second
)

// Validation is the outcome of `terraform init` + `terraform validate`.
type Validation struct {
	// Ran is false when terraform is not installed.
	Ran    bool   `json:"ran"`
	Passed bool   `json:"passed"`
	Step   string `json:"step,omitempty"` // failing step: init or validate
	Output string `json:"output,omitempty"`
}

// String summarises the outcome in one line.
func (v Validation) String() string {
	switch {
	case !v.Ran:
		return "skipped (terraform not installed)"
	case v.Passed:
		return "passed"
	default:
		return fmt.Sprintf("failed at terraform %s", v.Step)
	}
}

// Validate runs terraform in dir. A missing terraform binary is not an
// error; the result reports that validation did not run.
func Validate(ctx context.Context, runner util.Runner, dir string) (Validation, error) {
	if runner.LookPath("terraform") != nil {
		return Validation{}, nil
	}

	v := Validation{Ran: true}
	steps := []struct {
		name    string
		args    []string
		timeout time.Duration
	}{
		{"init", []string{"init", "-input=false", "-no-color"}, InitTimeout},
		{"validate", []string{"validate", "-no-color"}, ValidateTimeout},
	}

	for _, s := range steps {
		out, err := run(ctx, runner, dir, s.timeout, s.args...)
		if err != nil {
			var ce *util.CommandError
			if !errors.As(err, &ce) {
				return v, fmt.Errorf("terraform %s: %w", s.name, err)
			}
			v.Step = s.name
			v.Output = strings.TrimSpace(ce.Stderr + "\n" + string(out))
			return v, nil
		}
		v.Output = strings.TrimSpace(string(out))
	}
	v.Passed = true
	return v, nil
}

func run(ctx context.Context, runner util.Runner, dir string, timeout time.Duration, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return runner.Run(ctx, dir, "terraform", args...)
}

// NextSteps lists the commands to apply the generated code.
func NextSteps(dir string) []string {
	return []string{
		"cd " + dir,
		"terraform init",
		"terraform plan",
		"terraform apply",
	}
}
