// Copyright 2025
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package pkginfo

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
)

// Set at link time via -ldflags.
var (
	BuildDate  string
	CommitHash string
	Version    = "dev"
)

// BuildVersionString returns version info suitable for printing on the
// command line.
func BuildVersionString() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "mwdata %s %s/%s\n\n", Version, runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(&sb, "Build Date: %s\n", BuildDate)
	fmt.Fprintf(&sb, "Commit: %s\n", CommitHash)
	fmt.Fprintf(&sb, "Built with: %s", runtime.Version())

	return sb.String()
}

// DependencyList returns the modules linked into this binary, one
// path="version" entry per dependency, sorted by path.
func DependencyList() []string {
	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		log.Error().Msg("could not read package build info")
		return nil
	}

	deps := make([]string, 0, len(buildInfo.Deps))
	for _, dep := range buildInfo.Deps {
		deps = append(deps, fmt.Sprintf("%s=%q", dep.Path, dep.Version))
	}

	sort.Strings(deps)

	return deps
}
