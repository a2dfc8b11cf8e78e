package build

import "fmt"

// Commit stores the current commit of this build, which includes the most
// recent tag, the number of commits since that tag (if non-zero), the commit
// hash, and a dirty marker. It is set using ldflags in the Makefile.
var Commit string

const (
	// AppMajor defines the major version of this binary.
	AppMajor uint = 0

	// AppMinor defines the minor version of this binary.
	AppMinor uint = 1

	// AppPatch defines the application patch for this binary.
	AppPatch uint = 0
)

// Version returns the application version as a properly formed string per
// the semantic versioning 2.0.0 spec (http://semver.org/).
func Version() string {
	version := fmt.Sprintf("%d.%d.%d", AppMajor, AppMinor, AppPatch)
	if Commit != "" {
		version = fmt.Sprintf("%s commit=%s", version, Commit)
	}
	if Deployment == Development {
		version = fmt.Sprintf("%s build=%v", version, Deployment)
	}

	return version
}
