package mockapi

import (
	"github.com/Masterminds/semver/v3"
)

// Version is the version of the mock backend.
const Version = "0.1.0-alpha.1"

// APIVersion is the version of the REST surface served by the mock backend.
const APIVersion = "0.1.0"

var versionConstraint *semver.Constraints

func init() {
	var err error
	versionConstraint, err = semver.NewConstraint("~" + APIVersion)
	if err != nil {
		panic(err)
	}
}

// IsVersionCompatible reports whether a client built against version can
// talk to this backend: same major and minor, any patch.
func IsVersionCompatible(version string) bool {
	v, err := semver.NewVersion(version)
	if err != nil {
		return false
	}
	return versionConstraint.Check(v)
}
