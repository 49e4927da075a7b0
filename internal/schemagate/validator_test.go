package schemagate

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ondc-bpp/internal/model"
	"ondc-bpp/internal/ondcerr"
)

func validContext() model.Context {
	return model.Context{
		Domain:        "ONDC:RET10",
		Country:       "IND",
		City:          "std:080",
		Action:        "search",
		CoreVersion:   "1.2.0",
		BapID:         "buyer.example.com",
		BapURI:        "https://buyer.example.com/ondc",
		TransactionID: "txn-1",
		MessageID:     "msg-1",
		Timestamp:     "2024-01-01T10:00:00.000Z",
	}
}

func TestValidateContext(t *testing.T) {
	gate := NewGate(false)

	tests := []struct {
		name     string
		mutate   func(c *model.Context)
		wantCode string
		wantMsg  string
	}{
		{"valid", func(c *model.Context) {}, "", ""},
		{"missing domain", func(c *model.Context) { c.Domain = "" }, "10000", "Missing required context field: domain"},
		{"missing bap_uri", func(c *model.Context) { c.BapURI = "" }, "10000", "Missing required context field: bap_uri"},
		{"missing timestamp beats bad domain", func(c *model.Context) { c.Domain = "ONDC:XYZ"; c.Timestamp = "" }, "10000", "Missing required context field: timestamp"},
		{"unsupported domain", func(c *model.Context) { c.Domain = "ONDC:LOG10" }, "10001", "Invalid domain: ONDC:LOG10"},
		{"unsupported action", func(c *model.Context) { c.Action = "on_search" }, "10002", "Invalid action: on_search"},
		{"domain checked before action", func(c *model.Context) { c.Domain = "nope"; c.Action = "nope" }, "10001", "Invalid domain: nope"},
		{"igm action", func(c *model.Context) { c.Action = "issue_status" }, "", ""},
		{"old timestamp outside prod", func(c *model.Context) { c.Timestamp = "2001-01-01T00:00:00Z" }, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validContext()
			tt.mutate(&c)
			err := gate.ValidateContext(&c)
			if tt.wantCode == "" {
				assert.Nil(t, err)
				return
			}
			require.NotNil(t, err)
			assert.Equal(t, tt.wantCode, err.Code)
			assert.Equal(t, tt.wantMsg, err.Message)
			assert.Equal(t, ondcerr.ContextError, err.Type)
		})
	}
}

func TestValidateContextFreshnessInProduction(t *testing.T) {
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	gate := NewGate(true)
	gate.now = func() time.Time { return now }

	c := validContext()
	c.Timestamp = now.Add(-4 * time.Minute).Format(time.RFC3339Nano)
	assert.Nil(t, gate.ValidateContext(&c))

	c.Timestamp = now.Add(-6 * time.Minute).Format(time.RFC3339Nano)
	err := gate.ValidateContext(&c)
	require.NotNil(t, err)
	assert.Equal(t, "10003", err.Code)

	c.Timestamp = now.Add(6 * time.Minute).Format(time.RFC3339Nano)
	require.NotNil(t, gate.ValidateContext(&c))

	c.Timestamp = "yesterday"
	assert.Nil(t, gate.ValidateContext(&c), "unparsable timestamps are tolerated")
}

func TestParseContext(t *testing.T) {
	gate := NewGate(false)

	_, err := gate.ParseContext(nil)
	require.NotNil(t, err)
	assert.Equal(t, "Missing context object", err.Message)

	_, err = gate.ParseContext(json.RawMessage(`[1,2]`))
	require.NotNil(t, err)
	assert.Equal(t, "10000", err.Code)

	raw, jerr := json.Marshal(validContext())
	require.NoError(t, jerr)
	c, err := gate.ParseContext(raw)
	require.Nil(t, err)
	assert.Equal(t, "txn-1", c.TransactionID)
}

func TestFilterProducts(t *testing.T) {
	good := model.Product{ID: "P1", Name: "Tea", Category: "Tea and Coffee", Currency: "INR", Price: 100, Available: 5, IsActive: true}
	inactive := good
	inactive.ID = "P2"
	inactive.IsActive = false
	noName := good
	noName.ID = "P3"
	noName.Name = ""
	badQty := good
	badQty.ID = "P4"
	badQty.MinQty = 10
	badQty.MaxQty = 2

	valid, rejections := FilterProducts([]model.Product{good, inactive, noName, badQty})

	require.Len(t, valid, 1)
	assert.Equal(t, "P1", valid[0].ID)
	require.Len(t, rejections, 2)
	assert.Equal(t, "item:P3", rejections[0].Scope)
	assert.Equal(t, "item:P4", rejections[1].Scope)
}
