package k8sop

// TargetNamespace and TargetDeployment are the process-wide constants
// naming the single deployment this control plane is allowed to mutate
// (invariant I6). They are compiled in, not read from the environment —
// widening them at runtime would undermine the entire safety model.
const (
	TargetNamespace  = "loadlab"
	TargetDeployment = "loadlab"
)

// ResolveNamespace applies the advisory NAMESPACE_OVERRIDE environment
// option. An override is honored only when it narrows or restates the
// compiled-in namespace; anything else is rejected so that no deployment
// config can widen the blast radius of an EXECUTE command.
func ResolveNamespace(override string) (string, error) {
	if override == "" || override == TargetNamespace {
		return TargetNamespace, nil
	}
	return "", &NamespaceOverrideError{Requested: override, Fixed: TargetNamespace}
}

// NamespaceOverrideError reports that NAMESPACE_OVERRIDE asked for a
// namespace other than the compiled-in constant.
type NamespaceOverrideError struct {
	Requested string
	Fixed     string
}

func (e *NamespaceOverrideError) Error() string {
	return "namespace override " + e.Requested + " would widen the fixed namespace " + e.Fixed + ": rejected"
}
