package wire

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoPayloadElement indicates a stanza without the namespaced payload element.
var ErrNoPayloadElement = errors.New("stanza carries no payload element")

var (
	openTag  = fmt.Sprintf("<%s xmlns=%q>", ElementName, Namespace)
	closeTag = fmt.Sprintf("</%s>", ElementName)
)

// Unwrap extracts the JSON payload from a stanza produced by the relay or its
// counterpart. Stanzas without the namespaced element are rejected so the
// transport can drop foreign traffic.
func Unwrap(stanza string) (string, error) {
	start := strings.Index(stanza, openTag)
	if start < 0 {
		return "", ErrNoPayloadElement
	}
	rest := stanza[start+len(openTag):]
	end := strings.Index(rest, closeTag)
	if end < 0 {
		return "", ErrNoPayloadElement
	}
	return rest[:end], nil
}
