package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"

	"github.com/example/brickaria/internal/services"
)

// SessionOTPVerified is the session key holding the per-session gate flag.
const SessionOTPVerified = "otp_verified"

// otpGateSkipPrefixes are paths the gate never blocks: the auth and OTP
// flows themselves (to avoid locking users out of verification), the
// gateway-facing payment webhook, and static assets.
var otpGateSkipPrefixes = []string{
	"/api/auth/",
	"/api/otp/",
	"/api/payments/",
	"/static/",
	"/media/",
	"/documents/",
}

// OTPGateMiddleware blocks authenticated requests from users who enrolled
// a second factor but have not verified it in the current session. The
// gate has two states per session: unverified and verified; only a
// successful code verification flips it, and logout or 2FA disablement
// clears it.
func OTPGateMiddleware(otp *services.OTPService, store *session.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok := GetCurrentUserID(c)
		if !ok {
			return c.Next()
		}

		path := c.Path()
		for _, prefix := range otpGateSkipPrefixes {
			if strings.HasPrefix(path, prefix) {
				return c.Next()
			}
		}

		enrolled, err := otp.HasActiveDevice(userID)
		if err != nil {
			return err
		}
		if !enrolled {
			return c.Next()
		}

		sess, err := store.Get(c)
		if err != nil {
			return err
		}
		if verified, _ := sess.Get(SessionOTPVerified).(bool); verified {
			return c.Next()
		}

		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"success":      false,
			"otp_required": true,
			"verify_url":   "/api/otp/verify",
			"message":      "two-factor verification required",
		})
	}
}
