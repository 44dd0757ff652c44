package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"debatelens/internal/deps"
	"debatelens/internal/preflight"
)

type doctorReport struct {
	Checks       []preflight.Result `json:"checks"`
	Dependencies []deps.Status      `json:"dependencies"`
	Ready        bool               `json:"ready"`
}

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check directories, credentials, model services and external binaries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			report := doctorReport{
				Checks:       preflight.RunAll(cmd.Context(), cfg),
				Dependencies: preflight.CheckSystemDeps(cfg),
			}
			report.Ready = preflight.AllPassed(report.Checks) && deps.Satisfied(report.Dependencies)

			if ctx.wantJSON() {
				if err := writeJSON(cmd, report); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				fmt.Fprintln(out, strings.Join(renderDoctor(report, colorize), "\n"))
			}
			if !report.Ready {
				return errors.New("doctor: one or more required checks failed")
			}
			return nil
		},
	}
}

func renderDoctor(report doctorReport, colorize bool) []string {
	lines := renderSectionHeader("Environment", colorize)
	for _, check := range report.Checks {
		kind := statusOK
		if !check.Passed {
			kind = statusError
		}
		lines = append(lines, renderStatusLine(check.Name, kind, check.Detail, colorize))
	}
	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Binaries", colorize)...)
	for _, status := range report.Dependencies {
		lines = append(lines, dependencyLine(status, colorize))
	}
	return lines
}

func dependencyLine(status deps.Status, colorize bool) string {
	switch {
	case status.Available:
		return renderStatusLine(status.Name, statusOK, status.Path, colorize)
	case status.Optional:
		return renderStatusLine(status.Name, statusWarn, fmt.Sprintf("%s (optional: %s)", status.Detail, status.Description), colorize)
	default:
		return renderStatusLine(status.Name, statusError, fmt.Sprintf("%s (%s)", status.Detail, status.Description), colorize)
	}
}
