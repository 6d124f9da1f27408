package reconcile

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportJSONShape(t *testing.T) {
	rep := NewReport()

	raw, err := json.Marshal(rep)
	require.NoError(t, err)

	// updates and errors are always present, even when empty
	assert.JSONEq(t, `{"received":true,"email":"missing email","updates":[],"errors":[]}`, string(raw))
}

func TestReportStatusCode(t *testing.T) {
	rep := NewReport()
	assert.Equal(t, 200, rep.StatusCode())

	rep.addError("unknown or unsupported price id price_x")
	assert.Equal(t, 200, rep.StatusCode(), "acknowledged business failures must not trigger provider retries")

	rep.Received = false
	assert.Equal(t, 500, rep.StatusCode())
}

func TestReportSetEmail(t *testing.T) {
	rep := NewReport()
	rep.setEmail("")
	assert.Equal(t, MissingEmail, rep.Email)

	rep.setEmail("user@example.com")
	assert.Equal(t, "user@example.com", rep.Email)
}
