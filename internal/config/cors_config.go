package config

import (
	"sort"
	"strings"
)

var _ CorsConfig = mainConfig{}

type AllowedOrigins map[string]struct{}
type nullValue = struct{}

func (a AllowedOrigins) IsAllowedOrigin(origin string) bool {
	_, ok := a[origin]
	return ok
}

func (a AllowedOrigins) String() string {
	var origins []string
	for k := range a {
		origins = append(origins, k)
	}
	sort.Strings(origins)
	return strings.Join(origins, ", ")
}

func (c mainConfig) GetAllowedOrigins() AllowedOrigins {
	origins := AllowedOrigins{}
	// Environment values arrive as one comma separated string
	for _, entry := range c.v.GetStringSlice("cors.allowed_origins") {
		for _, o := range strings.Split(entry, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins[o] = nullValue{}
			}
		}
	}
	return origins
}

func (mainConfig) GetAllowedMethods() string {
	return "GET, POST, OPTIONS"
}

func (c mainConfig) GetAllowedHeaders() string {
	return "Content-Type, " + c.GetCSRFHeaderName()
}
