package keyboard

import (
	"errors"
	"fmt"
	"strings"
)

// Telegram caps callback_data at 64 bytes; everything the builder round-trips
// through a button must fit, namespace included.
const (
	CallbackDataSeparator  = ":"
	CallbackDataLimitBytes = 64
)

// ErrEmptyCallback reports a pressed button that carried no data at all.
var ErrEmptyCallback = errors.New("callback data is empty")

// EncodeCallback joins a namespace and payload into one callback_data string.
// Oversized payloads are refused here, before the keyboard is sent, instead of
// failing the whole API call later.
func EncodeCallback(unique, data string) (string, error) {
	payload := unique
	if data != "" {
		payload = unique + CallbackDataSeparator + data
	}

	if len(payload) > CallbackDataLimitBytes {
		return "", fmt.Errorf("callback data exceeds %d byte limit: got %d", CallbackDataLimitBytes, len(payload))
	}

	return payload, nil
}

// DecodeCallback splits callback_data back into namespace and payload. Only
// the first separator splits, so payloads may themselves contain ":" (leg
// removal values do).
func DecodeCallback(callbackData string) (unique, data string, err error) {
	if callbackData == "" {
		return "", "", ErrEmptyCallback
	}

	unique, data, _ = strings.Cut(callbackData, CallbackDataSeparator)
	return unique, data, nil
}
