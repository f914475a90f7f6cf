// Package classify builds operation.Classifier values from status fields.
package classify

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/tidwall/gjson"

	errspkg "github.com/drblury/replyflow/internal/runtime/errors"
	"github.com/drblury/replyflow/internal/runtime/operation"
	"github.com/drblury/replyflow/internal/runtime/selector"
)

// Table maps the text of a status field to a Status.
type Table map[string]operation.Status

func (t Table) lookup(value string) (operation.Status, error) {
	if status, ok := t[value]; ok {
		return status, nil
	}
	return operation.Failure, fmt.Errorf("%w: %q", errspkg.ErrUnrecognizedStatus, value)
}

// Field classifies by the value at key, looked up in table. A missing field
// or a value absent from table is an ErrUnrecognizedStatus.
func Field(key selector.Key, table Table) operation.Classifier {
	return func(raw string, parsed any) (operation.Status, error) {
		value, ok := extract(key, raw, parsed)
		if !ok {
			return operation.Failure, fmt.Errorf("%w: missing %s", errspkg.ErrUnrecognizedStatus, key)
		}
		return table.lookup(value)
	}
}

// Path is Field for a gjson path expression evaluated on the raw text, for
// statuses that need queries or modifiers to reach.
func Path(path string, table Table) operation.Classifier {
	return func(raw string, _ any) (operation.Status, error) {
		res := gjson.Get(raw, path)
		if !res.Exists() || res.IsObject() || res.IsArray() {
			return operation.Failure, fmt.Errorf("%w: missing %s", errspkg.ErrUnrecognizedStatus, path)
		}
		return table.lookup(res.String())
	}
}

// HTTPStatus classifies by an HTTP status code at key: 202 Accepted is still
// waiting, other 2xx codes succeed and 3xx to 5xx fail. Anything else is an
// ErrUnrecognizedStatus.
func HTTPStatus(key selector.Key) operation.Classifier {
	return func(raw string, parsed any) (operation.Status, error) {
		value, ok := extract(key, raw, parsed)
		if !ok {
			return operation.Failure, fmt.Errorf("%w: missing %s", errspkg.ErrUnrecognizedStatus, key)
		}
		code, err := strconv.Atoi(value)
		if err != nil {
			return operation.Failure, fmt.Errorf("%w: status code %q", errspkg.ErrUnrecognizedStatus, value)
		}

		switch {
		case code == http.StatusAccepted:
			return operation.StillWaiting, nil
		case code >= 200 && code < 300:
			return operation.Success, nil
		case code >= 300 && code < 600:
			return operation.Failure, nil
		default:
			return operation.Failure, fmt.Errorf("%w: status code %d", errspkg.ErrUnrecognizedStatus, code)
		}
	}
}

// Always ignores the response and returns status.
func Always(status operation.Status) operation.Classifier {
	return func(string, any) (operation.Status, error) {
		return status, nil
	}
}

func extract(key selector.Key, raw string, parsed any) (string, bool) {
	if parsed != nil {
		return key.Extract(parsed)
	}
	return key.ExtractRaw(raw)
}
