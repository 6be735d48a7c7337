// SPDX-License-Identifier: MIT
//
// Package build exposes the metadata stamped into the lumen binary at link
// time. A release build sets every field:
//
//	go build -ldflags "-X lumen/pkg/build.buildName=lumen \
//	  -X lumen/pkg/build.buildVersion=0.3.0 \
//	  -X lumen/pkg/build.buildCommit=$(git rev-parse --short HEAD) \
//	  -X lumen/pkg/build.buildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
//
// A plain `go build` sets none of them and gets development defaults. Setting
// only some of them is treated as a broken release pipeline.
package build

import (
	"fmt"
	"strings"
)

const (
	defaultName        = "lumen"
	defaultDescription = "Audio-reactive visual parameter engine"
	devValue           = "dev"
)

type ldFlags struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

// String renders the flags the way `lumen version` prints them.
func (f *ldFlags) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", f.Name, f.Version, f.Commit, f.Time)
}

// Populated by -ldflags.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildFlags   = &ldFlags{
		Name:        defaultName,
		Description: defaultDescription,
		Time:        devValue,
		Commit:      devValue,
		Version:     devValue,
	}
)

// Initialize copies the linker-provided values into the build flags. With no
// values provided it keeps the development defaults. It returns an error naming
// the missing fields when the build provided only part of them.
func Initialize() error {
	provided := map[string]string{
		"BuildName":    buildName,
		"BuildTime":    buildTime,
		"BuildCommit":  buildCommit,
		"BuildVersion": buildVersion,
	}

	var missing []string
	set := 0
	for _, key := range []string{"BuildName", "BuildTime", "BuildCommit", "BuildVersion"} {
		if provided[key] == "" {
			missing = append(missing, key)
			continue
		}
		set++
	}

	if set == 0 {
		return nil
	}
	if len(missing) > 0 {
		return fmt.Errorf("incomplete build flags: %s required", strings.Join(missing, ", "))
	}

	buildFlags.Name = buildName
	buildFlags.Time = buildTime
	buildFlags.Commit = buildCommit
	buildFlags.Version = buildVersion
	return nil
}

// GetBuildFlags returns the current build information.
func GetBuildFlags() *ldFlags {
	return buildFlags
}
