package middleware

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
)

// RequestLogger logs one line per request through logrus.  Query strings
// are left out: the public page carries share tokens in the path only, but
// clients may add identifiers to queries.
func RequestLogger(log *logrus.Logger) echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURIPath:   true,
		LogRoutePath: true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			entry := log.WithFields(logrus.Fields{
				"method":     v.Method,
				"route":      v.RoutePath,
				"status":     v.Status,
				"duration":   v.Latency,
				"client_ip":  v.RemoteIP,
				"user_agent": v.UserAgent,
			})
			switch {
			case v.Error != nil:
				entry.WithError(v.Error).Error("API request")
			case v.Status >= 500:
				entry.Error("API request")
			default:
				entry.Info("API request")
			}
			return nil
		},
	})
}
