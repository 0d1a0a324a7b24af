package logging

import (
	"context"
	"fmt"

	"github.com/kiosk-llm/relay/internal/util"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// chatInputPreviewLimit caps how much of each message is logged.
const chatInputPreviewLimit = 300

// LogChatInput logs what a chat request asks for: sampling parameters at info level and
// every message, truncated, at debug level. Message content is never logged in full.
func LogChatInput(ctx context.Context, backend string, rawJSON []byte) {
	entry := log.WithField("backend", backend)
	if id := GetRequestID(ctx); id != "" {
		entry = entry.WithField("request_id", id)
	}

	root := gjson.ParseBytes(rawJSON)
	messages := root.Get("messages").Array()
	entry.Infof("chat input: temp=%s max_tokens=%s top_p=%s top_k=%s stream=%s messages=%d",
		paramString(root.Get("temperature")),
		paramString(root.Get("max_tokens")),
		paramString(root.Get("top_p")),
		paramString(root.Get("top_k")),
		paramString(root.Get("stream")),
		len(messages),
	)

	if !log.IsLevelEnabled(log.DebugLevel) {
		return
	}
	for i, m := range messages {
		content := m.Get("content")
		text := content.String()
		if content.IsArray() {
			text = content.Raw
		}
		entry.Debugf("[%d] %s: %s", i, m.Get("role").String(), util.Truncate(text, chatInputPreviewLimit, " ...(truncated)"))
	}
}

func paramString(r gjson.Result) string {
	if !r.Exists() {
		return "<unset>"
	}
	return fmt.Sprint(r.Value())
}
