package common

// Metadata keys used by the gRPC transport to carry tokens. Servers set them
// as response headers after a successful login or refresh; clients send the
// access token back on authenticated calls.
const (
	AccessTokenHeaderName  = "access_token"
	RefreshTokenHeaderName = "refresh_token"
)

// Cookie names used by the HTTP transport to deliver a token pair.
const (
	AccessTokenCookieName  = "Access_Token"
	RefreshTokenCookieName = "Refresh_Token"
)
