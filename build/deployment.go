package build

// DeploymentType selects, through the dev build tag, how package loggers are
// created when no sub logger constructor is given.
type DeploymentType byte

const (
	// Development builds may log straight to stdout under the stdlog tag
	// so package tests can show their logs.
	Development DeploymentType = iota

	// Production builds only log through the binary's sub logger manager.
	Production
)

// String returns the name reported in the version string.
func (d DeploymentType) String() string {
	switch d {
	case Development:
		return "dev"
	case Production:
		return "prod"
	default:
		return "unknown"
	}
}
