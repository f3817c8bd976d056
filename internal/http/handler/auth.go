package handler

import (
	"github.com/gofiber/fiber/v2"

	"docvault/internal/service"
)

// LoginRequest is the body of POST /login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login godoc
//
//	@Summary	Check a username and password
//	@Tags		auth
//	@Accept		json
//	@Produce	json
//	@Param		body	body		LoginRequest	true	"Credentials"
//	@Success	200		{object}	map[string]string
//	@Failure	400		{object}	errorPayload
//	@Failure	401		{object}	errorPayload
//	@Router		/login [post]
func Login(svc service.FileService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req LoginRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, KindValidation, "invalid request body")
		}
		if err := svc.Login(c.UserContext(), req.Username, req.Password); err != nil {
			return respondError(c, err, "error checking credentials")
		}
		return c.JSON(fiber.Map{"message": "login successful"})
	}
}
