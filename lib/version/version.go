// Copyright 2026 The VibeTunnel Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Release builds stamp these with -ldflags -X. Empty values are filled
// from the VCS settings the go command embeds.
var (
	GitCommit = ""
	GitDirty  = ""
	BuildTime = ""

	// Version is bumped by hand for releases.
	Version = "0.1.0-dev"
)

// readBuildInfo is replaced in tests.
var readBuildInfo = debug.ReadBuildInfo

type stamp struct {
	commit string
	dirty  bool
	time   string
}

func resolve() stamp {
	s := stamp{commit: GitCommit, dirty: GitDirty == "true", time: BuildTime}
	if s.commit == "" || s.time == "" {
		if info, ok := readBuildInfo(); ok {
			s.fillFrom(info.Settings, GitDirty == "")
		}
	}
	if s.commit == "" {
		s.commit = "unknown"
	}
	if s.time == "" {
		s.time = "unknown"
	}
	return s
}

func (s *stamp) fillFrom(settings []debug.BuildSetting, takeDirty bool) {
	for _, setting := range settings {
		switch setting.Key {
		case "vcs.revision":
			if s.commit == "" {
				s.commit = setting.Value[:min(len(setting.Value), 7)]
			}
		case "vcs.modified":
			if takeDirty {
				s.dirty = setting.Value == "true"
			}
		case "vcs.time":
			if s.time == "" {
				s.time = setting.Value
			}
		}
	}
}

// Info returns the one-line form printed by --version.
func Info() string {
	s := resolve()
	dirty := ""
	if s.dirty {
		dirty = "-dirty"
	}
	return fmt.Sprintf("%s (%s%s, %s)", Version, s.commit, dirty, s.time)
}

// Full adds the toolchain and platform to Info.
func Full() string {
	return fmt.Sprintf("%s\n  Go: %s\n  Platform: %s/%s",
		Info(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
