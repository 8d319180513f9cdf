package transport

import (
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/pi-kari/animal-share-back/internal/db"
)

const censored = "$censored"

var sensitiveFields = map[string]struct{}{
	"password":      {},
	"token":         {},
	"code":          {},
	"access_token":  {},
	"client_secret": {},
}

// RequestLogger logs one line per request. Errors are rendered through the
// app's ErrorHandler first so the logged status is the one sent.
func RequestLogger(l *zap.SugaredLogger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		if chainErr := c.Next(); chainErr != nil {
			if err := c.App().Config().ErrorHandler(c, chainErr); err != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		status := c.Response().StatusCode()
		fields := []interface{}{
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"latency", time.Since(start),
		}
		if user, ok := c.Locals(localUser).(*db.User); ok && user != nil {
			fields = append(fields, "user_id", user.ID)
		}

		switch {
		case status >= fiber.StatusInternalServerError:
			l.Errorw("Request handled.", fields...)
		case status >= fiber.StatusBadRequest:
			if body := c.Body(); len(body) != 0 {
				fields = append(fields, "body", string(censorBody(body)))
			}
			l.Warnw("Request handled.", fields...)
		default:
			l.Debugw("Request handled.", fields...)
		}
		return nil
	}
}

// censorBody masks credential-like fields of a JSON object body. Anything that
// is not a JSON object is dropped entirely.
func censorBody(body []byte) []byte {
	fields := map[string]interface{}{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return []byte(censored)
	}
	for key := range fields {
		if _, ok := sensitiveFields[key]; ok {
			fields[key] = censored
		}
	}
	out, err := json.Marshal(fields)
	if err != nil {
		return []byte(censored)
	}
	return out
}
