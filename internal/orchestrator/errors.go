package orchestrator

import "errors"

// Error taxonomy surfaced by the bootstrap orchestration. Callers match with
// errors.Is; wrapped messages carry the field-level or collaborator detail.
var (
	// ErrMissingCredential means a required secret is absent
	ErrMissingCredential = errors.New("missing credential")

	// ErrInvalidConfiguration means an option-dependency violation or a
	// malformed value, caught pre-flight before any remote call
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrPrerequisiteMissing means a required companion installer script is
	// absent from the scripts directory
	ErrPrerequisiteMissing = errors.New("prerequisite missing")

	// ErrProvisioningFailed means the cloud VM creation or the remote
	// execution step failed; the collaborator's error text is preserved
	ErrProvisioningFailed = errors.New("provisioning failed")
)
