package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// errHeaderTimeout reports that the upstream did not send response headers in time.
var errHeaderTimeout = errors.New("timed out waiting for upstream response headers")

// cancelOnClose releases the request context once the response body is closed.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

// doStreaming sends req with a deadline on the response headers only. The body may then
// stream for as long as the caller's context allows.
func doStreaming(ctx context.Context, client *http.Client, req *http.Request, headerTimeout time.Duration) (*http.Response, error) {
	reqCtx, cancel := context.WithCancel(ctx)
	timedOut := make(chan struct{})
	var timer *time.Timer
	if headerTimeout > 0 {
		timer = time.AfterFunc(headerTimeout, func() {
			close(timedOut)
			cancel()
		})
	}

	resp, err := client.Do(req.WithContext(reqCtx))
	if timer != nil && !timer.Stop() {
		// The deadline fired while the request was in flight.
		<-timedOut
		if resp != nil {
			_ = resp.Body.Close()
		}
		cancel()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w after %s", errHeaderTimeout, headerTimeout)
	}
	if err != nil {
		cancel()
		return nil, err
	}
	resp.Body = cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// newJSONRequest builds a POST request carrying a JSON body.
func newJSONRequest(ctx context.Context, url string, body []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}
