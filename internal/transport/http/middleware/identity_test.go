package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/oguarni/crescebr-b2b-marketplace-sub000/internal/entity"
)

func performIdentity(t *testing.T, headers map[string]string) (*httptest.ResponseRecorder, entity.Actor, bool) {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var (
		actor   entity.Actor
		reached bool
	)
	handler := Identity()(func(c echo.Context) error {
		actor, reached = ActorFrom(c)
		return c.NoContent(http.StatusOK)
	})
	if err := handler(c); err != nil {
		t.Fatalf("handler error = %v", err)
	}
	return rec, actor, reached
}

func TestIdentity(t *testing.T) {
	t.Parallel()

	actorID := uuid.New()
	companyID := uuid.New()

	t.Run("stores the parsed actor", func(t *testing.T) {
		t.Parallel()
		rec, actor, reached := performIdentity(t, map[string]string{
			HeaderActorID:   actorID.String(),
			HeaderCompanyID: companyID.String(),
			HeaderActorRole: "supplier",
		})
		if !reached {
			t.Fatalf("handler not reached, status %d", rec.Code)
		}
		if actor.ID != actorID || actor.CompanyID != companyID || actor.Role != entity.RoleSupplier {
			t.Errorf("actor = %+v", actor)
		}
	})

	t.Run("rejects incomplete identity", func(t *testing.T) {
		t.Parallel()
		cases := map[string]map[string]string{
			"no headers": {},
			"missing actor id": {
				HeaderCompanyID: companyID.String(),
				HeaderActorRole: "supplier",
			},
			"malformed actor id": {
				HeaderActorID:   "not-a-uuid",
				HeaderCompanyID: companyID.String(),
				HeaderActorRole: "supplier",
			},
			"missing company id": {
				HeaderActorID:   actorID.String(),
				HeaderActorRole: "supplier",
			},
			"unknown role": {
				HeaderActorID:   actorID.String(),
				HeaderCompanyID: companyID.String(),
				HeaderActorRole: "superuser",
			},
			"missing role": {
				HeaderActorID:   actorID.String(),
				HeaderCompanyID: companyID.String(),
			},
		}
		for name, headers := range cases {
			headers := headers
			t.Run(name, func(t *testing.T) {
				t.Parallel()
				rec, _, reached := performIdentity(t, headers)
				if reached {
					t.Fatal("handler reached without a complete identity")
				}
				if rec.Code != http.StatusUnauthorized {
					t.Errorf("status = %d, want 401", rec.Code)
				}
			})
		}
	})
}

func TestActorFromWithoutIdentity(t *testing.T) {
	t.Parallel()

	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	if _, ok := ActorFrom(c); ok {
		t.Fatal("ActorFrom() = ok on a bare context")
	}
}
