// Copyright (c) 2013-2014 The btcsuite developers
// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package version

import "fmt"

// These constants define the application version and follow the semantic
// versioning 2.0.0 spec (http://semver.org/).
const (
	appMajor uint = 0
	appMinor uint = 4
	appPatch uint = 0
)

// appBuild is defined as a variable so it can be overridden during the build
// process with '-ldflags "-X gitlab.com/jaxnet/cnoted/version.appBuild=foo"'.
var appBuild string

// GetVersion returns the application version as a properly formed string per
// the semantic versioning 2.0.0 spec (http://semver.org/).
func GetVersion() string {
	version := fmt.Sprintf("%d.%d.%d", appMajor, appMinor, appPatch)
	if appBuild != "" {
		version = fmt.Sprintf("%s+%s", version, appBuild)
	}
	return version
}
