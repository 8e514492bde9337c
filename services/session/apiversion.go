// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package session

import (
	"strings"

	"golang.org/x/mod/semver"
)

// APIVersion is the ordinal protocol version the client speaks with a
// deployment. Ordinals only ever grow; feature gates compare with >=.
type APIVersion int

const (
	// APIVersionLegacy is served by releases before the consolidated
	// assistant API.
	APIVersionLegacy APIVersion = 0

	// APIVersionCurrent is served by 5.3.0 and later, and by the cloud
	// platform at all times.
	APIVersionCurrent APIVersion = 1
)

// apiVersionBreakpoint is the first release serving APIVersionCurrent.
const apiVersionBreakpoint = "v5.3.0"

// devBuildVersion is what locally built servers report.
const devBuildVersion = "0.0.0"

// InferAPIVersion derives the protocol ordinal from the version string a
// deployment reports. The cloud platform and dev builds always speak the
// newest version. Strings that do not parse as semver (cloud-style build
// identifiers, mostly) map to the oldest ordinal; this never fails.
func InferAPIVersion(siteVersion string, cloud bool) APIVersion {
	if cloud || siteVersion == devBuildVersion {
		return APIVersionCurrent
	}
	v := "v" + strings.TrimPrefix(siteVersion, "v")
	if !semver.IsValid(v) {
		return APIVersionLegacy
	}
	if semver.Compare(v, apiVersionBreakpoint) >= 0 {
		return APIVersionCurrent
	}
	return APIVersionLegacy
}
