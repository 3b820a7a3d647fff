package http

import (
	"encoding/json"
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const (
	requestBodyLogKey = "http.request.body.summary"
	errorKindLogKey   = "http.error.kind"
	errorCauseLogKey  = "http.error.cause"
	maxLoggedBody     = 2048
)

// redactedKeys hides credentials and attachment payloads from access logs.
var redactedKeys = []string{"password", "token", "photo"}

func requestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogMethod:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			principalID := "anonymous"
			if principal, ok := CurrentPrincipal(c); ok {
				principalID = principal.ID.String()
			}

			attrs := []slog.Attr{
				slog.String("principal_id", principalID),
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Int64("latency_ms", v.Latency.Milliseconds()),
			}
			if summary := c.Get(requestBodyLogKey); summary != nil {
				attrs = append(attrs, slog.Any("body", summary))
			}
			if kind, ok := c.Get(errorKindLogKey).(string); ok && kind != "" {
				attrs = append(attrs, slog.String("error_kind", kind))
			}

			level := slog.LevelInfo
			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
				level = slog.LevelError
			} else if cause, ok := c.Get(errorCauseLogKey).(string); ok && cause != "" {
				attrs = append(attrs, slog.String("error", cause))
				level = slog.LevelError
			} else if v.Status >= 500 {
				level = slog.LevelError
			}
			logger.LogAttrs(c.Request().Context(), level, "http request", attrs...)
			return nil
		},
	})
}

// bodySummary stores a redacted copy of the request body for requestLogger.
func bodySummary() echo.MiddlewareFunc {
	return middleware.BodyDump(func(c echo.Context, reqBody, _ []byte) {
		if summary := sanitizeBody(reqBody); summary != nil {
			c.Set(requestBodyLogKey, summary)
		}
	})
}

func sanitizeBody(body []byte) any {
	if len(body) == 0 {
		return nil
	}
	var data any
	if err := json.Unmarshal(body, &data); err == nil {
		return sanitizeJSON(data)
	}
	if containsBinaryBytes(body) {
		return "binary"
	}
	return clampString(string(body))
}

func sanitizeJSON(value any) any {
	switch v := value.(type) {
	case map[string]any:
		result := make(map[string]any, len(v))
		for key, val := range v {
			lowerKey := strings.ToLower(key)
			if isRedactedKey(lowerKey) {
				result[key] = "redacted"
				continue
			}
			result[key] = sanitizeJSON(val)
		}
		return result
	case []any:
		result := make([]any, len(v))
		for i, item := range v {
			result[i] = sanitizeJSON(item)
		}
		return result
	case string:
		if containsBinaryBytes([]byte(v)) {
			return "binary"
		}
		return clampString(v)
	default:
		return v
	}
}

func isRedactedKey(key string) bool {
	for _, marker := range redactedKeys {
		if strings.Contains(key, marker) {
			return true
		}
	}
	return false
}

func containsBinaryBytes(data []byte) bool {
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			return true
		}
		if !unicode.IsPrint(r) && !unicode.IsSpace(r) {
			return true
		}
		data = data[size:]
	}
	return false
}

func clampString(value string) string {
	if len(value) <= maxLoggedBody {
		return value
	}
	truncated := value[:maxLoggedBody]
	for !utf8.ValidString(truncated) && len(truncated) > 0 {
		truncated = truncated[:len(truncated)-1]
	}
	return truncated + "...(truncated)"
}
