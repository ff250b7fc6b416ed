package web

import (
	"crypto/subtle"
	"strings"

	"github.com/dukex/onboarding/pkg/persistence"
	"github.com/gofiber/fiber/v3"
)

const (
	TenantHeader = "X-Tenant-ID"

	tenantLocal = "tenant_id"
)

// TokenVerifier decides whether token authorizes requests for tenantID.
type TokenVerifier func(tenantID, token string) bool

// AnyToken accepts every non-empty token. Identity lives in front of this
// service.
func AnyToken(string, string) bool {
	return true
}

// StaticToken accepts a single shared token.
func StaticToken(expected string) TokenVerifier {
	return func(_, token string) bool {
		return subtle.ConstantTimeCompare([]byte(expected), []byte(token)) == 1
	}
}

// RequireTenant resolves the tenant from X-Tenant-ID and requires a bearer
// token accepted by verify.
func RequireTenant(verify TokenVerifier) fiber.Handler {
	if verify == nil {
		verify = AnyToken
	}

	return func(c fiber.Ctx) error {
		token, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
		if !ok {
			return unauthorized(c, ErrMissingToken)
		}

		tenantID := strings.TrimSpace(c.Get(TenantHeader))
		if tenantID == "" {
			return badRequest(c, ErrMissingTenant.Error())
		}

		if err := persistence.ValidateTenantID(tenantID); err != nil {
			return badRequest(c, err.Error())
		}

		if !verify(tenantID, token) {
			return unauthorized(c, ErrInvalidToken)
		}

		c.Locals(tenantLocal, tenantID)

		return c.Next()
	}
}

func tenantID(c fiber.Ctx) string {
	id, _ := c.Locals(tenantLocal).(string)

	return id
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	token = strings.TrimSpace(token)

	return token, token != ""
}
