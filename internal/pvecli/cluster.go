package pvecli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

const (
	clusterConfigurationPathMissingMessageConstant = "cluster configuration path not configured"
	clusterSignalUnreadableTemplateConstant        = "cluster configuration %s unreadable: %w"
)

// ErrClusterConfigurationPathNotConfigured reports membership adapters built without a path.
var ErrClusterConfigurationPathNotConfigured = errors.New(clusterConfigurationPathMissingMessageConstant)

// ClusterMembership decides cluster participation from the presence of the
// cluster configuration file.
type ClusterMembership struct {
	configurationPath string
}

// NewClusterMembership validates the configuration path and assembles the adapter.
func NewClusterMembership(configurationPath string) (*ClusterMembership, error) {
	if len(strings.TrimSpace(configurationPath)) == 0 {
		return nil, ErrClusterConfigurationPathNotConfigured
	}
	return &ClusterMembership{configurationPath: configurationPath}, nil
}

// IsClustered reports whether the cluster configuration file exists. A missing
// file means a standalone node; any other read failure is surfaced so callers
// never normalize services on uncertain membership.
func (membership *ClusterMembership) IsClustered(executionContext context.Context) (bool, error) {
	_, statError := os.Stat(membership.configurationPath)
	if statError == nil {
		return true, nil
	}
	if errors.Is(statError, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf(clusterSignalUnreadableTemplateConstant, membership.configurationPath, statError)
}
