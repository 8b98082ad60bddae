package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"gorm.io/gorm"

	"github.com/example/brickaria/internal/middleware"
	"github.com/example/brickaria/internal/models"
	"github.com/example/brickaria/internal/services"
	"github.com/example/brickaria/internal/validation"
)

// OTPHandler exposes the two-factor enrollment and verification flow.
type OTPHandler struct {
	db       *gorm.DB
	otp      *services.OTPService
	sessions *session.Store
}

// NewOTPHandler constructs an OTPHandler.
func NewOTPHandler(db *gorm.DB, otp *services.OTPService, sessions *session.Store) *OTPHandler {
	return &OTPHandler{db: db, otp: otp, sessions: sessions}
}

func (h *OTPHandler) currentUser(c *fiber.Ctx) (*models.User, error) {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var user models.User
	if err := h.db.First(&user, "id = ?", userID).Error; err != nil {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}
	return &user, nil
}

type enrollRequest struct {
	Email string `json:"email" validate:"omitempty,email"`
}

// Enroll enables 2FA: creates (or reactivates) the device for the user's
// email and sends the first code.
func (h *OTPHandler) Enroll(c *fiber.Ctx) error {
	user, err := h.currentUser(c)
	if err != nil {
		return err
	}

	var req enrollRequest
	if err := validation.BindAndValidate(c, &req); err != nil {
		return err
	}

	device, err := h.otp.EnrollDevice(user, req.Email)
	if err != nil {
		return err
	}

	if _, err := h.otp.IssueToken(device); err != nil {
		return fiber.NewError(fiber.StatusBadGateway, "could not send verification code, please try again")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"device": fiber.Map{
			"id":    device.ID,
			"email": device.Email,
		},
	})
}

// Send issues a fresh code to the user's active device, invalidating any
// previous one.
func (h *OTPHandler) Send(c *fiber.Ctx) error {
	user, err := h.currentUser(c)
	if err != nil {
		return err
	}

	device, err := h.otp.ActiveDevice(user.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "no active 2FA device")
		}
		return err
	}

	if _, err := h.otp.IssueToken(device); err != nil {
		return fiber.NewError(fiber.StatusBadGateway, "could not send verification code, please try again")
	}

	return c.JSON(fiber.Map{"success": true})
}

type verifyOTPRequest struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}

// Verify checks the submitted code and marks the session verified on
// success. Wrong, used and expired codes all get the same response.
func (h *OTPHandler) Verify(c *fiber.Ctx) error {
	user, err := h.currentUser(c)
	if err != nil {
		return err
	}

	var req verifyOTPRequest
	if err := validation.BindAndValidate(c, &req); err != nil {
		return err
	}

	device, err := h.otp.ActiveDevice(user.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "no active 2FA device")
		}
		return err
	}

	ok, err := h.otp.VerifyToken(device, req.Code)
	if err != nil {
		return err
	}
	if !ok {
		return fiber.NewError(fiber.StatusBadRequest, "invalid verification code")
	}

	sess, err := h.sessions.Get(c)
	if err != nil {
		return err
	}
	sess.Set(middleware.SessionOTPVerified, true)
	if err := sess.Save(); err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"verified": true,
	})
}

// Disable turns 2FA off: deactivates the user's devices and clears the
// session flag.
func (h *OTPHandler) Disable(c *fiber.Ctx) error {
	user, err := h.currentUser(c)
	if err != nil {
		return err
	}

	if err := h.otp.DisableDevice(user.ID); err != nil {
		return err
	}

	sess, err := h.sessions.Get(c)
	if err != nil {
		return err
	}
	sess.Delete(middleware.SessionOTPVerified)
	if err := sess.Save(); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true})
}

// Status reports whether the user has 2FA enrolled and whether the current
// session is verified.
func (h *OTPHandler) Status(c *fiber.Ctx) error {
	user, err := h.currentUser(c)
	if err != nil {
		return err
	}

	enrolled, err := h.otp.HasActiveDevice(user.ID)
	if err != nil {
		return err
	}

	sess, err := h.sessions.Get(c)
	if err != nil {
		return err
	}
	verified, _ := sess.Get(middleware.SessionOTPVerified).(bool)

	return c.JSON(fiber.Map{
		"success":  true,
		"enrolled": enrolled,
		"verified": verified,
	})
}
