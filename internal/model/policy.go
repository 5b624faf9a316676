package model

// SandboxPolicy is the declarative access configuration handed to the policy
// enforcer. It is immutable once built.
type SandboxPolicy struct {
	Network    NetworkPolicy    `json:"network"`
	Filesystem FilesystemPolicy `json:"filesystem"`
	// EnableWeakerNestedSandbox signals that the host is already confined, so the
	// enforcer may relax protections it would otherwise duplicate.
	EnableWeakerNestedSandbox bool `json:"enableWeakerNestedSandbox"`
}

// NetworkPolicy contains the network rules of a sandbox policy.
type NetworkPolicy struct {
	AllowedDomains    []string `json:"allowedDomains"`
	DeniedDomains     []string `json:"deniedDomains"`
	AllowLocalBinding bool     `json:"allowLocalBinding"`
}

// FilesystemPolicy contains the filesystem rules of a sandbox policy.
// Deny rules take precedence over allow rules.
type FilesystemPolicy struct {
	AllowWrite []string `json:"allowWrite"`
	DenyWrite  []string `json:"denyWrite"`
	DenyRead   []string `json:"denyRead"`
}

// Clone returns a deep copy of the policy.
func (p SandboxPolicy) Clone() SandboxPolicy {
	p.Network.AllowedDomains = cloneStrings(p.Network.AllowedDomains)
	p.Network.DeniedDomains = cloneStrings(p.Network.DeniedDomains)
	p.Filesystem.AllowWrite = cloneStrings(p.Filesystem.AllowWrite)
	p.Filesystem.DenyWrite = cloneStrings(p.Filesystem.DenyWrite)
	p.Filesystem.DenyRead = cloneStrings(p.Filesystem.DenyRead)
	return p
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append(make([]string, 0, len(s)), s...)
}
