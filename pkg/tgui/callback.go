package tgui

import (
	"errors"
	"strings"
)

// MaxCallbackDataLen is Telegram's callback_data size limit in bytes.
// It applies to the full "component:action:payload" string.
const MaxCallbackDataLen = 64

var ErrCallbackDataTooLong = errors.New("tgui: callback_data too long")

// Data formats inline callback data as "component:action:payload".
// Payload is kept as-is (no escaping).
func Data(component, action, payload string) string {
	component = strings.TrimSpace(component)
	action = strings.TrimSpace(action)
	if payload == "" {
		return component + ":" + action
	}
	return component + ":" + action + ":" + payload
}

// Split parses "component:action:payload" back into its parts. Payload may
// itself contain colons; only the first two separators are structural.
func Split(data string) (component, action, payload string) {
	parts := strings.SplitN(data, ":", 3)
	switch len(parts) {
	case 3:
		return parts[0], parts[1], parts[2]
	case 2:
		return parts[0], parts[1], ""
	default:
		return data, "", ""
	}
}
