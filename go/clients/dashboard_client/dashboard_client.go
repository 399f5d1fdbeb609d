package dashboard_client

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/mcdev12/bzdash/go/clients"
)

type DashboardClient struct {
	*clients.BaseClient
	prefix string
}

// NewDashboardClient builds a client for baseURL. An empty apiPrefix selects DefaultAPIPrefix;
// sessionCookie, when set, is forwarded on every request so signed-in endpoints work.
func NewDashboardClient(baseURL, apiPrefix, sessionCookie string) *DashboardClient {
	if apiPrefix == "" {
		apiPrefix = DefaultAPIPrefix
	}
	client := &DashboardClient{
		BaseClient: clients.NewBaseClient(strings.TrimRight(baseURL, "/")),
		prefix:     "/" + strings.Trim(apiPrefix, "/"),
	}
	if apiPrefix == "/" {
		client.prefix = ""
	}

	if sessionCookie != "" {
		client.SetHeader(CookieHeader, sessionCookie)
	}

	return client
}

func (c *DashboardClient) path(format string, args ...any) string {
	escaped := make([]any, len(args))
	for i, a := range args {
		if s, ok := a.(string); ok {
			escaped[i] = url.PathEscape(s)
			continue
		}
		escaped[i] = a
	}
	return c.prefix + fmt.Sprintf(format, escaped...)
}
