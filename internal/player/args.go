// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package player

import (
	"fmt"
	"strings"

	"github.com/kballard/go-shellquote"
)

const (
	placeholderInput     = "{playerinput}"
	placeholderTitleArgs = "{playertitleargs}"
)

// BuildArgs assembles [exe, user args..., input]. template may reference
// {playerinput} and {playertitleargs}; their expansions are shell-quoted
// before the template is split. Other {placeholders} are kept verbatim.
func BuildArgs(exe, template, title, input string, family Family) ([]string, error) {
	if family == nil {
		family = Generic{}
	}

	var titleArgs []string
	if title != "" {
		if t, ok := family.(titledInput); ok {
			if titled, used := t.TitledInput(input, title); used {
				input = titled
			} else {
				titleArgs = family.TitleArgs(title)
			}
		} else {
			titleArgs = family.TitleArgs(title)
		}
	}

	hasInput := strings.Contains(template, placeholderInput)
	hasTitle := strings.Contains(template, placeholderTitleArgs)

	expanded := strings.NewReplacer(
		placeholderInput, shellquote.Join(input),
		placeholderTitleArgs, shellquote.Join(titleArgs...),
	).Replace(template)

	userArgs, err := shellquote.Split(expanded)
	if err != nil {
		return nil, fmt.Errorf("invalid player arguments %q: %w", template, err)
	}

	argv := make([]string, 0, len(userArgs)+len(titleArgs)+2)
	argv = append(argv, exe)
	if !hasTitle {
		argv = append(argv, titleArgs...)
	}
	argv = append(argv, userArgs...)
	if !hasInput {
		argv = append(argv, input)
	}
	return argv, nil
}
