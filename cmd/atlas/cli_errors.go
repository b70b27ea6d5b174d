// Copyright 2026 © The Atlas Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/jllopis/atlas/pkg/errors"
)

// hintFor suggests a next step for common failure codes.
func hintFor(code errors.ErrorCode) string {
	switch code {
	case errors.CodeToolNotFound:
		return "run 'atlas tools' to see registered tools"
	case errors.CodeInvalidRequest:
		return "check the tool input schema with 'atlas --json tools'"
	case errors.CodeInvalidConfig:
		return "check your configuration file and --set overrides"
	case errors.CodeUnauthorized:
		return "the tool is blocked by governance.allow, governance.deny or a policy rule"
	case errors.CodeRateLimit:
		return "raise ratelimit.rps or ratelimit.burst, or retry later"
	case errors.CodeResourceNotFound:
		return "run 'atlas --json resource' without a name to list resources"
	default:
		return ""
	}
}

func printError(w io.Writer, err error, asJSON bool) {
	code := errors.CodeOf(err)
	hint := hintFor(code)
	if asJSON {
		payload := map[string]any{"code": code, "message": err.Error()}
		if hint != "" {
			payload["hint"] = hint
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"error": payload})
		return
	}
	color.New(color.FgRed).Fprint(w, "Error: ")
	fmt.Fprintln(w, err.Error())
	if hint != "" {
		color.New(color.Faint).Fprintf(w, "  Hint: %s\n", hint)
	}
}
