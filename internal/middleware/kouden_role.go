package middleware

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"kouden_app/internal/models"
)

// RequireKoudenRole returns a middleware that checks the requesting
// user's membership in the ledger named by the :koudenId route param.
// The member's role must rank at least minRole (viewer < editor <
// owner). The membership is placed in the context as "membership".
func RequireKoudenRole(db *gorm.DB, minRole models.MemberRole) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID, ok := c.Get("userID").(uint)
			if !ok || userID == 0 {
				return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
			}

			koudenID, err := strconv.ParseUint(c.Param("koudenId"), 10, 32)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid kouden id")
			}

			var member models.KoudenMember
			err = db.Where("kouden_id = ? AND user_id = ?", koudenID, userID).First(&member).Error
			if err != nil {
				if err == gorm.ErrRecordNotFound {
					return echo.NewHTTPError(http.StatusForbidden, "not a member of this kouden")
				}
				return echo.NewHTTPError(http.StatusInternalServerError, "failed to check membership")
			}

			if member.Role.Rank() < minRole.Rank() {
				return echo.NewHTTPError(http.StatusForbidden, "insufficient role")
			}

			c.Set("membership", member)
			c.Set("koudenID", uint(koudenID))
			return next(c)
		}
	}
}
