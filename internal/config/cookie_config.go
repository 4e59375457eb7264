package config

type CookieConfig interface {
	GetSessionCookieName() string
	GetCSRFCookieName() string
	GetCSRFHeaderName() string
	GetCSRFParameterName() string
	GetCookieSecure() bool
}

var _ CookieConfig = mainConfig{}

func (c mainConfig) GetSessionCookieName() string {
	return c.v.GetString("cookies.session_name")
}

func (c mainConfig) GetCSRFCookieName() string {
	return c.v.GetString("cookies.csrf_name")
}

func (c mainConfig) GetCSRFHeaderName() string {
	return c.v.GetString("cookies.csrf_header")
}

func (c mainConfig) GetCSRFParameterName() string {
	return c.v.GetString("cookies.csrf_parameter")
}

// GetCookieSecure forces the Secure attribute even when the request did not
// arrive over TLS.
func (c mainConfig) GetCookieSecure() bool {
	return c.v.GetBool("cookies.secure")
}
