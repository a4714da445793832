// Package middleware carries transport-level concerns shared by handlers.
package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/oguarni/crescebr-b2b-marketplace-sub000/internal/entity"
	"github.com/oguarni/crescebr-b2b-marketplace-sub000/internal/presentation/http/response"
	"github.com/oguarni/crescebr-b2b-marketplace-sub000/pkg/errorbank"
)

// Identity headers forwarded by the auth gateway after credential checks.
const (
	HeaderActorID   = "X-Actor-ID"
	HeaderCompanyID = "X-Company-ID"
	HeaderActorRole = "X-Actor-Role"
)

const actorContextKey = "crescebr.actor"

// Identity parses the gateway identity headers into an entity.Actor and
// stores it on the request context. Requests without a complete, well-formed
// identity are rejected with 401 before reaching any handler.
func Identity() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actorID, err := uuid.Parse(c.Request().Header.Get(HeaderActorID))
			if err != nil {
				return response.New(c).WithError(errorbank.Unauthorized("missing or invalid actor identity")).Build()
			}
			companyID, err := uuid.Parse(c.Request().Header.Get(HeaderCompanyID))
			if err != nil {
				return response.New(c).WithError(errorbank.Unauthorized("missing or invalid company identity")).Build()
			}
			role := entity.Role(c.Request().Header.Get(HeaderActorRole))
			if !role.Valid() {
				return response.New(c).WithError(errorbank.Unauthorized("missing or invalid role")).Build()
			}

			c.Set(actorContextKey, entity.Actor{ID: actorID, CompanyID: companyID, Role: role})
			return next(c)
		}
	}
}

// ActorFrom retrieves the authenticated actor stored by Identity.
func ActorFrom(c echo.Context) (entity.Actor, bool) {
	actor, ok := c.Get(actorContextKey).(entity.Actor)
	return actor, ok
}
