/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package version carries build metadata.
package version

import (
	"fmt"
	"runtime"
)

// Version is the release version, set at build time via ldflags:
//
//	-X github.com/friendsincode/notification_central/internal/version.Version=X.Y.Z
var Version = "0.4.0"

// Commit is the git revision, set at build time.
var Commit = "unknown"

// String renders version, commit and Go runtime for the version command.
func String() string {
	return fmt.Sprintf("notifycentral %s (%s, %s)", Version, Commit, runtime.Version())
}
