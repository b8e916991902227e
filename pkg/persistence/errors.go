package persistence

import "errors"

var (
	// ErrAudienceNotFound indicates the audience does not exist.
	ErrAudienceNotFound = errors.New("audience not found")

	// ErrContactNotFound indicates the contact does not exist.
	ErrContactNotFound = errors.New("contact not found")

	// ErrTagNotFound indicates the tag does not exist.
	ErrTagNotFound = errors.New("tag not found")

	// ErrAutomationNotFound indicates the automation does not exist.
	ErrAutomationNotFound = errors.New("automation not found")

	// ErrStepNotFound indicates the automation step does not exist.
	ErrStepNotFound = errors.New("automation step not found")

	// ErrStepNotSpliceable indicates an insertion point that cannot take a
	// new child, e.g. appending under an end step.
	ErrStepNotSpliceable = errors.New("automation step cannot take a child")

	// ErrTriggerExists indicates the automation already has a root trigger
	// step; an automation tree has exactly one root.
	ErrTriggerExists = errors.New("automation already has a trigger step")

	// ErrEmailTemplateNotFound indicates the email template does not exist.
	ErrEmailTemplateNotFound = errors.New("email template not found")

	// ErrSenderIdentityNotFound indicates the sender identity does not exist.
	ErrSenderIdentityNotFound = errors.New("sender identity not found")
)
