//go:build !dev

package migrator

// devBuild gates the Debug and NuclearDebug replay modes. It is a build-time
// constant with no runtime switch, so a release binary has no code path that
// re-executes already applied migrations.
const devBuild = false
