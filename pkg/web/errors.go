package web

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/dripkit/dripkit/pkg/filter"
	"github.com/dripkit/dripkit/pkg/persistence"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, errType, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType(errType).
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func conflict(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(409).
		WithInstance(c.Path()).
		WithType("conflict").
		WithDetail(detail)

	return c.Status(fiber.StatusConflict).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// isFilterError reports whether the error came from filter compilation,
// meaning the client sent a malformed or unresolvable filter.
func isFilterError(err error) bool {
	return errors.Is(err, filter.ErrUnknownField) ||
		errors.Is(err, filter.ErrUnsupportedOperation) ||
		errors.Is(err, filter.ErrInvalidValue) ||
		errors.Is(err, filter.ErrAmbiguousGroup)
}

// handlePersistenceError maps storage errors onto problem responses.
func handlePersistenceError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, persistence.ErrAudienceNotFound):
		return notFound(c, "audience_not_found", "audience not found")
	case errors.Is(err, persistence.ErrContactNotFound):
		return notFound(c, "contact_not_found", "contact not found")
	case errors.Is(err, persistence.ErrTagNotFound):
		return notFound(c, "tag_not_found", "tag not found")
	case errors.Is(err, persistence.ErrAutomationNotFound):
		return notFound(c, "automation_not_found", "automation not found")
	case errors.Is(err, persistence.ErrStepNotFound):
		return notFound(c, "step_not_found", "step not found")
	case errors.Is(err, persistence.ErrEmailTemplateNotFound):
		return notFound(c, "email_template_not_found", "email template not found")
	case errors.Is(err, persistence.ErrSenderIdentityNotFound):
		return notFound(c, "sender_identity_not_found", "sender identity not found")
	case errors.Is(err, persistence.ErrStepNotSpliceable):
		return conflict(c, "end steps cannot take children")
	case errors.Is(err, persistence.ErrTriggerExists):
		return conflict(c, "automation already has a trigger step")
	case isFilterError(err):
		return badRequest(c, err.Error())
	default:
		return internalError(c, err)
	}
}
