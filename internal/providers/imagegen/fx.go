package imagegen

import "go.uber.org/fx"

var Module = fx.Module("providers.imagegen",
	fx.Provide(func(c *HTTPClient) Client { return c }),
	fx.Provide(NewHTTPClient),
)
