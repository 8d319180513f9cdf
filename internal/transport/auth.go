package transport

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/pi-kari/animal-share-back/internal/models"
	"github.com/pi-kari/animal-share-back/internal/service"
)

const stateTTL = 10 * time.Minute

// Login starts the authorization code flow.
func (s *HTTPServer) Login(c *fiber.Ctx) error {
	state := uuid.NewString()
	c.Cookie(&fiber.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/api/auth",
		Expires:  time.Now().Add(stateTTL),
		HTTPOnly: true,
		Secure:   s.cfg.CookieSecure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return c.Redirect(s.oauth.AuthCodeURL(state), fiber.StatusFound)
}

// Callback finishes the flow: the provider profile is upserted as a user and a
// session cookie is issued before sending the browser back to the frontend.
func (s *HTTPServer) Callback(c *fiber.Ctx) error {
	state := c.Query("state")
	if state == "" || state != c.Cookies(stateCookie) {
		return fiber.NewError(fiber.StatusBadRequest, "invalid oauth state")
	}
	c.ClearCookie(stateCookie)

	if reason := c.Query("error"); reason != "" {
		s.logger.Infow("Login denied by provider.", "reason", reason)
		return fiber.NewError(fiber.StatusUnauthorized, "login was not completed")
	}

	ctx := c.UserContext()
	tok, err := s.oauth.Exchange(ctx, c.Query("code"))
	if err != nil {
		s.logger.Warnw("Code exchange failed.", "error", err)
		return fiber.NewError(fiber.StatusUnauthorized, "login failed")
	}
	info, err := s.oauth.UserInfo(ctx, tok.AccessToken)
	if err != nil {
		s.logger.Warnw("Fetching profile failed.", "error", err)
		return fiber.NewError(fiber.StatusUnauthorized, "login failed")
	}

	user, err := s.sessions.UpsertUser(ctx, service.Profile{
		Subject:    info.Sub,
		Email:      info.Email,
		GivenName:  info.GivenName,
		FamilyName: info.FamilyName,
		Name:       info.Name,
		Picture:    info.Picture,
	})
	if err != nil {
		return err
	}

	token, expires, err := s.sessions.Create(ctx, user.ID)
	if err != nil {
		return err
	}
	c.Cookie(&fiber.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HTTPOnly: true,
		Secure:   s.cfg.CookieSecure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})

	s.logger.Infow("User logged in.", "user_id", user.ID)
	return c.Redirect(s.cfg.FrontendURL, fiber.StatusFound)
}

func (s *HTTPServer) Me(c *fiber.Ctx) error {
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	return c.JSON(models.MeResp{
		UserResp: models.UserResp{
			ID:          user.ID,
			DisplayName: user.DisplayName,
			GivenName:   user.GivenName,
			FamilyName:  user.FamilyName,
			AvatarURL:   user.AvatarURL,
		},
		Email: user.Email,
	})
}

func (s *HTTPServer) Logout(c *fiber.Ctx) error {
	token, _ := c.Locals(localToken).(string)
	if err := s.sessions.Revoke(c.UserContext(), token); err != nil {
		return err
	}
	c.ClearCookie(sessionCookie)
	return c.SendStatus(fiber.StatusNoContent)
}
