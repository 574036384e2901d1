package parser

import (
	"encoding/json"
	"strings"
)

// initialPropsMarker is the script global some preview pages assign their
// message payload to instead of rendering the email directly.
const initialPropsMarker = "window.__INITIAL_PROPS__"

type inlineMessage struct {
	body    string
	subject string
}

type initialProps struct {
	Message struct {
		Payload struct {
			Body    string `json:"body"`
			Subject string `json:"subject"`
		} `json:"payload"`
	} `json:"message"`
}

// extractInlineMessage recovers the email body embedded as a serialized
// payload inside a script block. Any malformed payload is ignored and the
// caller falls back to parsing the original document.
func extractInlineMessage(rawHTML string) (inlineMessage, bool) {
	markerIdx := strings.Index(rawHTML, initialPropsMarker)
	if markerIdx == -1 {
		return inlineMessage{}, false
	}

	assignIdx := strings.Index(rawHTML[markerIdx:], "=")
	if assignIdx == -1 {
		return inlineMessage{}, false
	}
	assignIdx += markerIdx

	closeIdx := strings.Index(rawHTML[assignIdx:], "</script>")
	if closeIdx == -1 {
		return inlineMessage{}, false
	}
	closeIdx += assignIdx

	payload := strings.TrimSpace(rawHTML[assignIdx+1 : closeIdx])
	payload = strings.TrimSuffix(payload, ";")
	if payload == "" {
		return inlineMessage{}, false
	}

	var props initialProps
	if err := json.Unmarshal([]byte(payload), &props); err != nil {
		return inlineMessage{}, false
	}

	if strings.TrimSpace(props.Message.Payload.Body) == "" {
		return inlineMessage{}, false
	}

	return inlineMessage{
		body:    props.Message.Payload.Body,
		subject: props.Message.Payload.Subject,
	}, true
}
