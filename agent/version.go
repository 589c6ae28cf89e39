package agent

import "golang.org/x/mod/semver"

// Version is the agent version (semantic version, leading "v").
const Version = "v0.1.0"

// RecordSchema names the record layout written by this version.
const RecordSchema = "MCE/MCED positional, '|' segments, '^^^' fields"

// Info provides runtime information about the agent.
type Info struct {
	// Version is the canonical agent version.
	Version string

	// Major is the major version ("v0"). Trace consumers accept records from
	// agents with the same major version.
	Major string

	// Schema describes the record layout.
	Schema string
}

// GetInfo returns information about the agent.
//
// Example:
//
//	info := agent.GetInfo()
//	fmt.Printf("monitortrace %s (%s)\n", info.Version, info.Schema)
func GetInfo() Info {
	return Info{
		Version: semver.Canonical(Version),
		Major:   semver.Major(Version),
		Schema:  RecordSchema,
	}
}

// Compatible reports whether a trace written by an agent of version v can be
// read by this version. Invalid versions are never compatible.
func Compatible(v string) bool {
	if !semver.IsValid(v) {
		return false
	}
	return semver.Major(v) == semver.Major(Version)
}
