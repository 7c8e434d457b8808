package handlers

import (
	"errors"

	"shelftrack/internal/core/services"
	"shelftrack/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// PolicyHandler handles loan policy endpoints
type PolicyHandler struct {
	policyService *services.PolicyService
}

// NewPolicyHandler creates a new policy handler
func NewPolicyHandler(policyService *services.PolicyService) *PolicyHandler {
	return &PolicyHandler{
		policyService: policyService,
	}
}

// ListPolicies handles listing loan policies
// @Summary List loan policies
// @Description Get all loan policies
// @Tags Policies
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /policies [get]
func (h *PolicyHandler) ListPolicies(c *fiber.Ctx) error {
	policies, err := h.policyService.List(c.Context())
	if err != nil {
		return response.InternalServerError(c, "Failed to list policies")
	}

	return response.Success(c, "Policies retrieved successfully", fiber.Map{
		"policies": policies,
	})
}

// GetPolicy handles getting a policy by item type
// @Summary Get loan policy
// @Description Get the loan policy for one item type
// @Tags Policies
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param itemType path string true "Item type"
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /policies/{itemType} [get]
func (h *PolicyHandler) GetPolicy(c *fiber.Ctx) error {
	policy, err := h.policyService.GetByItemType(c.Context(), c.Params("itemType"))
	if err != nil {
		if errors.Is(err, services.ErrPolicyNotFound) {
			return response.NotFound(c, "Policy not found")
		}
		return response.InternalServerError(c, "Failed to get policy")
	}

	return response.Success(c, "Policy retrieved successfully", fiber.Map{
		"policy": policy,
	})
}

// UpsertPolicy handles creating or replacing a policy (Admin only)
// @Summary Upsert loan policy
// @Description Create or replace a loan policy. Open loans keep their frozen renewal budget.
// @Tags Policies
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.UpsertPolicyInput true "Policy data"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 401 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /policies [put]
func (h *PolicyHandler) UpsertPolicy(c *fiber.Ctx) error {
	var input services.UpsertPolicyInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	policy, err := h.policyService.Upsert(c.Context(), &input)
	if err != nil {
		if errors.Is(err, services.ErrInvalidPolicy) {
			return response.BadRequest(c, "Policy values are invalid")
		}
		return response.InternalServerError(c, "Failed to upsert policy")
	}

	return response.Success(c, "Policy saved successfully", fiber.Map{
		"policy": policy,
	})
}
