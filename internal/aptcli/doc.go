// Package aptcli adapts apt-get and dpkg-query invocations to the package
// management interface the convergence run consumes.
package aptcli
