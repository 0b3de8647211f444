package aptsources

import (
	"net/url"
	"path/filepath"
	"strings"
)

const (
	defaultPaidComponentConstant       = "pve-enterprise"
	defaultPaidHostConstant            = "enterprise.proxmox.com"
	defaultFreeComponentConstant       = "pve-no-subscription"
	defaultFreeURIConstant             = "http://download.proxmox.com/debian/pve"
	defaultFreeDeclarationNameConstant = "proxmox"
	defaultSignedByPathConstant        = "/usr/share/keyrings/proxmox-archive-keyring.gpg"
)

// ChannelPolicy describes how subscription-gated repositories are handled
// during migration: paid-channel declarations are carried over disabled and a
// free-channel declaration is ensured in their place.
type ChannelPolicy struct {
	PaidComponent       string `mapstructure:"paid_component"`
	PaidHost            string `mapstructure:"paid_host"`
	FreeComponent       string `mapstructure:"free_component"`
	FreeURI             string `mapstructure:"free_uri"`
	FreeDeclarationName string `mapstructure:"free_declaration_name"`
	SignedBy            string `mapstructure:"signed_by"`
}

// DefaultChannelPolicy returns the policy for the enterprise repository
// channel and its no-subscription replacement.
func DefaultChannelPolicy() ChannelPolicy {
	return ChannelPolicy{
		PaidComponent:       defaultPaidComponentConstant,
		PaidHost:            defaultPaidHostConstant,
		FreeComponent:       defaultFreeComponentConstant,
		FreeURI:             defaultFreeURIConstant,
		FreeDeclarationName: defaultFreeDeclarationNameConstant,
		SignedBy:            defaultSignedByPathConstant,
	}
}

// AppliesTo reports whether the declaration belongs to the paid channel,
// matched by component or by repository host.
func (policy ChannelPolicy) AppliesTo(declaration RepositoryDeclaration) bool {
	if len(policy.PaidComponent) > 0 && declaration.HasComponent(policy.PaidComponent) {
		return true
	}
	if len(policy.PaidHost) == 0 {
		return false
	}
	for _, declarationURI := range declaration.URIs {
		if hostOfURI(declarationURI) == policy.PaidHost {
			return true
		}
	}
	return false
}

// MatchesFree reports whether the declaration already provides the free
// channel.
func (policy ChannelPolicy) MatchesFree(declaration RepositoryDeclaration) bool {
	return declaration.HasComponent(policy.FreeComponent)
}

// FreeDeclaration builds the enabled free-channel declaration for the target
// codename, placed in the parts directory under the policy's file name.
func (policy ChannelPolicy) FreeDeclaration(partsDirectoryPath string, targetCodename string) RepositoryDeclaration {
	return RepositoryDeclaration{
		Format:         FormatStructured,
		Path:           filepath.Join(partsDirectoryPath, policy.FreeDeclarationName+structuredFileExtensionConstant),
		Enabled:        true,
		RepositoryType: repositoryTypeDebConstant,
		URIs:           []string{policy.FreeURI},
		Suites:         []string{targetCodename},
		Components:     []string{policy.FreeComponent},
		SignedBy:       policy.SignedBy,
	}
}

func hostOfURI(rawURI string) string {
	parsedURI, parseError := url.Parse(strings.TrimSpace(rawURI))
	if parseError != nil {
		return ""
	}
	return parsedURI.Host
}
