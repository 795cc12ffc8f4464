package common

// AuthorizationHeaderName is the HTTP header that carries the bearer access
// token on protected requests.
const AuthorizationHeaderName = "Authorization"

// RefreshCookieName is the cookie that carries the refresh token. It is set
// HttpOnly so page scripts can never read it.
const RefreshCookieName = "refresh_token"
