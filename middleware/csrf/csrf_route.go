package csrf

import "github.com/goliatone/go-router"

// TokenHandler answers with the token the middleware stored under
// contextKey, so script driven sign in forms can echo it back in the
// header. An empty contextKey uses DefaultContextKey.
func TokenHandler(contextKey string) router.HandlerFunc {
	if contextKey == "" {
		contextKey = DefaultContextKey
	}

	return func(ctx router.Context) error {
		token, _ := ctx.Locals(contextKey).(string)
		if token == "" {
			return defaultErrorHandler(ctx, ErrTokenMissing)
		}

		ctx.SetHeader("Cache-Control", "no-store, max-age=0")
		ctx.SetHeader("Pragma", "no-cache")

		fieldName := DefaultFormFieldName
		if v, ok := ctx.Locals(contextKey + "_field").(string); ok && v != "" {
			fieldName = v
		}

		headerName := DefaultHeaderName
		if v, ok := ctx.Locals(contextKey + "_header").(string); ok && v != "" {
			headerName = v
		}

		return ctx.JSON(router.StatusOK, map[string]string{
			"token":       token,
			"field_name":  fieldName,
			"header_name": headerName,
		})
	}
}
