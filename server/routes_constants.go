package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Session & CSRF Routes
	RouteCSRFToken    = "/rest/user/csrf"
	RouteAuthenticate = "/rest/user/authenticate"
	RouteLogout       = "/rest/user/logout"
	RouteMe           = "/rest/user/me"

	// Echo route used to probe admission
	RouteTestPost = "/rest/test/post"

	// User data routes
	RouteUsers              = "/restdata/user"
	RouteUsersByLogin       = "/restdata/user/search/login"
	RouteUsersLoginContains = "/restdata/user/search/loginContains"
	RouteUsersNameContains  = "/restdata/user/search/nameContains"

	// Operational routes
	RouteMetrics = "/metrics"
	RouteHealth  = "/healthz"
)

// Request parameter names
const (
	ParamUsername  = "username"
	ParamPassword  = "password"
	ParamMessage   = "message"
	ParamLoginName = "loginname"
	ParamName      = "name"
	ParamPage      = "page"
	ParamSize      = "size"
)
