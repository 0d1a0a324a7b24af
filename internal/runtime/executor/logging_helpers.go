package executor

import (
	"context"
	"io"
	"strings"

	"github.com/kiosk-llm/relay/internal/logging"
	"github.com/kiosk-llm/relay/internal/util"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// errorBodyLimit caps how much of an upstream error body is read and relayed in-band.
const errorBodyLimit = 2 << 10

func logWithRequestID(ctx context.Context) *log.Entry {
	if id := logging.GetRequestID(ctx); id != "" {
		return log.WithField("request_id", id)
	}
	return log.NewEntry(log.StandardLogger())
}

// readErrorBody reads at most errorBodyLimit bytes of an upstream error body.
func readErrorBody(body io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(body, errorBodyLimit+1))
	return util.Truncate(string(b), errorBodyLimit, "...(truncated)")
}

// summarizeErrorBody returns the upstream error message when the body is Google-style JSON.
func summarizeErrorBody(contentType string, body []byte) string {
	if strings.Contains(contentType, "json") || gjson.ValidBytes(body) {
		if msg := gjson.GetBytes(body, "error.message").String(); msg != "" {
			return msg
		}
	}
	return util.Truncate(string(body), 256, "...")
}

func closeBody(ctx context.Context, backend string, body io.Closer) {
	if errClose := body.Close(); errClose != nil {
		logWithRequestID(ctx).Errorf("%s executor: close response body error: %v", backend, errClose)
	}
}
