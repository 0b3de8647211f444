package platform

import (
	"context"
	"errors"
	"fmt"
	"os"
)

const (
	probeErrorMessageTemplateConstant = "state probe failed: %s: %v"

	probeReasonVersionUnreadableConstant = "platform version unreadable"
	probeReasonMinorUnreadableConstant   = "platform minor version unreadable"
	probeReasonClusterUnreadableConstant = "cluster membership unreadable"

	versionOracleNotConfiguredMessageConstant     = "version oracle not configured"
	clusterMembershipNotConfiguredMessageConstant = "cluster membership not configured"
)

// Configuration errors reported by NewStateProbe.
var (
	ErrVersionOracleNotConfigured     = errors.New(versionOracleNotConfiguredMessageConstant)
	ErrClusterMembershipNotConfigured = errors.New(clusterMembershipNotConfiguredMessageConstant)
)

// VersionOracle reports the release line the host currently runs.
type VersionOracle interface {
	CurrentGeneration(executionContext context.Context) (Generation, error)
	CurrentMinor(executionContext context.Context) (int, error)
}

// ClusterMembership reports whether the host participates in a cluster.
type ClusterMembership interface {
	IsClustered(executionContext context.Context) (bool, error)
}

// ProbeError reports a required external signal that could not be read.
type ProbeError struct {
	Reason string
	Cause  error
}

// Error describes the unreadable signal.
func (probeFailure ProbeError) Error() string {
	return fmt.Sprintf(probeErrorMessageTemplateConstant, probeFailure.Reason, probeFailure.Cause)
}

// Unwrap exposes the underlying cause for errors.Is and errors.As checks.
func (probeFailure ProbeError) Unwrap() error {
	return probeFailure.Cause
}

// StateProbeDependencies carries the collaborators a StateProbe reads from.
type StateProbeDependencies struct {
	VersionOracle       VersionOracle
	ClusterMembership   ClusterMembership
	BackupComponentPath string
}

// StateProbe gathers the system facts the convergence run branches on.
// Probing is strictly read-only.
type StateProbe struct {
	versionOracle       VersionOracle
	clusterMembership   ClusterMembership
	backupComponentPath string
}

// NewStateProbe validates the supplied dependencies and assembles a StateProbe.
func NewStateProbe(dependencies StateProbeDependencies) (*StateProbe, error) {
	if dependencies.VersionOracle == nil {
		return nil, ErrVersionOracleNotConfigured
	}
	if dependencies.ClusterMembership == nil {
		return nil, ErrClusterMembershipNotConfigured
	}

	return &StateProbe{
		versionOracle:       dependencies.VersionOracle,
		clusterMembership:   dependencies.ClusterMembership,
		backupComponentPath: dependencies.BackupComponentPath,
	}, nil
}

// Probe collects the fact set for this run. Unreadable required signals yield
// a ProbeError; a probed generation outside the supported set surfaces the
// UnsupportedGenerationError through the version reason.
func (probe *StateProbe) Probe(executionContext context.Context) (SystemFactSet, error) {
	installedGeneration, generationError := probe.versionOracle.CurrentGeneration(executionContext)
	if generationError != nil {
		return SystemFactSet{}, ProbeError{Reason: probeReasonVersionUnreadableConstant, Cause: generationError}
	}

	minorVersion, minorError := probe.versionOracle.CurrentMinor(executionContext)
	if minorError != nil {
		return SystemFactSet{}, ProbeError{Reason: probeReasonMinorUnreadableConstant, Cause: minorError}
	}

	clustered, clusterError := probe.clusterMembership.IsClustered(executionContext)
	if clusterError != nil {
		return SystemFactSet{}, ProbeError{Reason: probeReasonClusterUnreadableConstant, Cause: clusterError}
	}

	return SystemFactSet{
		InstalledGeneration:    installedGeneration,
		MinorVersion:           minorVersion,
		Clustered:              clustered,
		BackupComponentPresent: probe.backupComponentPresent(),
	}, nil
}

// backupComponentPresent checks the optional backup component marker path.
// Presence is informational, so stat failures simply report absence.
func (probe *StateProbe) backupComponentPresent() bool {
	if len(probe.backupComponentPath) == 0 {
		return false
	}
	_, statError := os.Stat(probe.backupComponentPath)
	return statError == nil
}
