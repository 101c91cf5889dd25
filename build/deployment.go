package build

// DeploymentType selects between the logging behavior of development builds,
// used by unit tests, and production builds. It is chosen with the dev build
// tag.
type DeploymentType byte

const (
	// Development builds log to the handlers chosen by LoggingType even
	// when no sub logger constructor is given, so unit tests see output at
	// LogLevel.
	Development DeploymentType = iota

	// Production builds only log through the sub logger constructor.
	Production
)

// String returns the name of the deployment.
func (b DeploymentType) String() string {
	switch b {
	case Development:
		return "development"

	case Production:
		return "production"

	default:
		return "unknown"
	}
}
