// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "strings"

// MaxMarkerFiles caps DirectoryContext.MarkerFiles.
const MaxMarkerFiles = 20

// ProjectType is the kind of project detected in a directory.
// ProjectNone means detection was not possible, which is distinct from
// ProjectUnknown (the directory was readable but had no project marker).
type ProjectType int

const (
	ProjectNone ProjectType = iota
	ProjectRust
	ProjectNode
	ProjectGo
	ProjectPython
	ProjectCMake
	ProjectGit
	ProjectUnknown
)

// String returns the display name used in prompts.
func (p ProjectType) String() string {
	switch p {
	case ProjectRust:
		return "Rust"
	case ProjectNode:
		return "Node.js"
	case ProjectGo:
		return "Go"
	case ProjectPython:
		return "Python"
	case ProjectCMake:
		return "CMake"
	case ProjectGit:
		return "Git"
	case ProjectUnknown:
		return "Unknown"
	default:
		return ""
	}
}

// DirectoryContext describes the top level of the working directory.
// It is built once per query and not modified afterwards.
type DirectoryContext struct {
	ProjectType      ProjectType
	MarkerFiles      []string
	WorkingDirectory string
}

// HasProjectType reports whether a project type was determined.
func (c DirectoryContext) HasProjectType() bool {
	return c.ProjectType != ProjectNone
}

// FormatSummary renders the context for inclusion in a prompt.
// The Project Type line is omitted when no type was determined.
func (c DirectoryContext) FormatSummary() string {
	var sb strings.Builder
	sb.WriteString("Working Directory: ")
	sb.WriteString(c.WorkingDirectory)
	sb.WriteByte('\n')

	if c.HasProjectType() {
		sb.WriteString("Project Type: ")
		sb.WriteString(c.ProjectType.String())
		sb.WriteByte('\n')
	}

	sb.WriteString("Marker Files: ")
	if len(c.MarkerFiles) == 0 {
		sb.WriteString("none")
	} else {
		sb.WriteString(strings.Join(c.MarkerFiles, ", "))
	}
	return sb.String()
}
