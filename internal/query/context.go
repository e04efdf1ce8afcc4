// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package query

import (
	"os"

	"github.com/jeranaias/ulm/internal/model"
)

// projectMarkers in priority order. The first one present decides the type.
var projectMarkers = []struct {
	name string
	typ  model.ProjectType
}{
	{"Cargo.toml", model.ProjectRust},
	{"package.json", model.ProjectNode},
	{"go.mod", model.ProjectGo},
	{"pyproject.toml", model.ProjectPython},
	{"requirements.txt", model.ProjectPython},
	{"CMakeLists.txt", model.ProjectCMake},
	{".git", model.ProjectGit},
}

// extraMarkers are recorded for the prompt but do not set a project type.
var extraMarkers = map[string]bool{
	"Makefile":            true,
	"Dockerfile":          true,
	"docker-compose.yml":  true,
	"docker-compose.yaml": true,
	"justfile":            true,
	"setup.py":            true,
	"Gemfile":             true,
	"pom.xml":             true,
	"build.gradle":        true,
	"meson.build":         true,
	"flake.nix":           true,
	".env":                true,
	"Pipfile":             true,
	"tsconfig.json":       true,
	"package-lock.json":   true,
	"yarn.lock":           true,
	"Cargo.lock":          true,
	"go.sum":              true,
	"go.work":             true,
}

var markerPriority = func() map[string]int {
	m := make(map[string]int, len(projectMarkers))
	for i, pm := range projectMarkers {
		m[pm.name] = i
	}
	return m
}()

// ScanCurrentDirectory scans the process working directory.
func ScanCurrentDirectory() model.DirectoryContext {
	wd, err := os.Getwd()
	if err != nil {
		return model.DirectoryContext{}
	}
	return ScanDirectory(wd)
}

// ScanDirectory inspects the entries directly inside dir. It never
// recurses. An unreadable directory yields ProjectNone and no markers.
func ScanDirectory(dir string) model.DirectoryContext {
	ctx := model.DirectoryContext{WorkingDirectory: dir}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return ctx
	}

	best := len(projectMarkers)
	for _, e := range entries {
		name := e.Name()
		prio, isProject := markerPriority[name]
		if !isProject && !extraMarkers[name] {
			continue
		}
		if isProject && prio < best {
			best = prio
		}
		if len(ctx.MarkerFiles) < model.MaxMarkerFiles {
			ctx.MarkerFiles = append(ctx.MarkerFiles, name)
		}
	}

	if best < len(projectMarkers) {
		ctx.ProjectType = projectMarkers[best].typ
	} else {
		ctx.ProjectType = model.ProjectUnknown
	}
	return ctx
}
