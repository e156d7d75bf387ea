package completion

import "go.uber.org/fx"

var Module = fx.Module("providers.completion",
	fx.Provide(func(c *HTTPClient) Client { return c }),
	fx.Provide(NewHTTPClient),
)
