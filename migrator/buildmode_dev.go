//go:build dev

package migrator

// devBuild enables the Debug and NuclearDebug replay modes in development
// builds.
const devBuild = true
