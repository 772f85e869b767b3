package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths lists route paths that bypass authentication: health checks,
// the OTP login flow, provider onboarding submission and the landing page.
var publicPaths = map[string]bool{
	"/":                        true,
	"/health":                  true,
	"/health/db":               true,
	"/api/v1/auth/otp/request": true,
	"/api/v1/auth/otp/verify":  true,
	"/api/v1/onboarding/:kind": true,
}

// AuthSkipper returns true for requests whose route should skip
// authentication. Pass it as the Skipper on JWTConfig.
func AuthSkipper(c echo.Context) bool {
	return publicPaths[c.Path()]
}

// IsPublicPath reports whether the given route path is public.
func IsPublicPath(path string) bool {
	return publicPaths[path]
}
