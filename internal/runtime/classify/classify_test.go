package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errspkg "github.com/drblury/replyflow/internal/runtime/errors"
	"github.com/drblury/replyflow/internal/runtime/jsoncodec"
	"github.com/drblury/replyflow/internal/runtime/operation"
	"github.com/drblury/replyflow/internal/runtime/selector"
)

var statusTable = Table{
	"ACCEPTED": operation.StillWaiting,
	"SUCCESS":  operation.Success,
	"REJECTED": operation.Failure,
}

func classifyBoth(t *testing.T, c operation.Classifier, raw string) (operation.Status, error) {
	t.Helper()
	parsed, err := jsoncodec.DecodeGeneric(raw)
	require.NoError(t, err)

	fromParsed, parsedErr := c(raw, parsed)
	fromRaw, rawErr := c(raw, nil)
	assert.Equal(t, fromParsed, fromRaw, "parsed and raw classification differ for %s", raw)
	assert.Equal(t, parsedErr == nil, rawErr == nil)
	return fromParsed, parsedErr
}

func TestField(t *testing.T) {
	c := Field(selector.NewKey("body", "status"), statusTable)

	tests := []struct {
		raw     string
		want    operation.Status
		wantErr bool
	}{
		{raw: `{"body":{"status":"ACCEPTED"}}`, want: operation.StillWaiting},
		{raw: `{"body":{"status":"SUCCESS"}}`, want: operation.Success},
		{raw: `{"body":{"status":"REJECTED"}}`, want: operation.Failure},
		{raw: `{"body":{"status":"MAYBE"}}`, want: operation.Failure, wantErr: true},
		{raw: `{"body":{}}`, want: operation.Failure, wantErr: true},
		{raw: `{"body":{"status":null}}`, want: operation.Failure, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := classifyBoth(t, c, tt.raw)
			assert.Equal(t, tt.want, got)
			if tt.wantErr {
				assert.ErrorIs(t, err, errspkg.ErrUnrecognizedStatus)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPath(t *testing.T) {
	c := Path(`results.#(kind=="final").status`, statusTable)

	got, err := c(`{"results":[{"kind":"ack","status":"ACCEPTED"},{"kind":"final","status":"SUCCESS"}]}`, nil)
	require.NoError(t, err)
	assert.Equal(t, operation.Success, got)

	_, err = c(`{"results":[{"kind":"ack","status":"ACCEPTED"}]}`, nil)
	assert.ErrorIs(t, err, errspkg.ErrUnrecognizedStatus)

	_, err = Path("body", statusTable)(`{"body":{"status":"SUCCESS"}}`, nil)
	assert.ErrorIs(t, err, errspkg.ErrUnrecognizedStatus, "objects are not statuses")
}

func TestHTTPStatus(t *testing.T) {
	c := HTTPStatus(selector.NewKey("code"))

	tests := []struct {
		raw     string
		want    operation.Status
		wantErr bool
	}{
		{raw: `{"code":202}`, want: operation.StillWaiting},
		{raw: `{"code":200}`, want: operation.Success},
		{raw: `{"code":"204"}`, want: operation.Success},
		{raw: `{"code":404}`, want: operation.Failure},
		{raw: `{"code":503}`, want: operation.Failure},
		{raw: `{"code":99}`, want: operation.Failure, wantErr: true},
		{raw: `{"code":"teapot"}`, want: operation.Failure, wantErr: true},
		{raw: `{}`, want: operation.Failure, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := classifyBoth(t, c, tt.raw)
			assert.Equal(t, tt.want, got)
			if tt.wantErr {
				assert.ErrorIs(t, err, errspkg.ErrUnrecognizedStatus)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAlways(t *testing.T) {
	got, err := Always(operation.Success)("anything", nil)
	require.NoError(t, err)
	assert.Equal(t, operation.Success, got)
}
