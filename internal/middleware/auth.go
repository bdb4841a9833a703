package middleware

import (
	"net/http"

	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"kouden_app/internal/models"
)

// RequireAuth returns a middleware that verifies Firebase session
// cookies and resolves the local user row. The user's id, uid and
// email are placed in the request context for downstream handlers.
func RequireAuth(authClient *auth.Client, db *gorm.DB) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if authClient == nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "auth not configured")
			}

			cookie, err := c.Cookie("session")
			if err != nil || cookie.Value == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing session")
			}

			decodedToken, err := authClient.VerifySessionCookie(c.Request().Context(), cookie.Value)
			if err != nil {
				// Invalid session, clear cookie
				clearCookie := &http.Cookie{
					Name:     "session",
					Value:    "",
					MaxAge:   -1,
					HttpOnly: true,
					Path:     "/",
				}
				c.SetCookie(clearCookie)
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid session")
			}

			c.Set("userUID", decodedToken.UID)
			email, _ := decodedToken.Claims["email"].(string)
			if email != "" {
				c.Set("userEmail", email)
			}
			name, _ := decodedToken.Claims["name"].(string)

			// Upsert the local user row mirroring the Firebase account
			var user models.User
			err = db.Where("firebase_uid = ?", decodedToken.UID).First(&user).Error
			if err == gorm.ErrRecordNotFound {
				user = models.User{
					FirebaseUID: decodedToken.UID,
					Email:       email,
					Name:        name,
				}
				if err := db.Create(&user).Error; err != nil {
					return echo.NewHTTPError(http.StatusInternalServerError, "failed to provision user")
				}
			} else if err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "failed to load user")
			}
			c.Set("userID", user.ID)
			c.Set("user", user)

			return next(c)
		}
	}
}
