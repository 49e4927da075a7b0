package callback

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ondc-bpp/internal/config"
	"ondc-bpp/internal/model"
	"ondc-bpp/internal/ondcerr"
	"ondc-bpp/internal/signing"
)

type keyResolver string

func (k keyResolver) ResolvePublicKey(context.Context, string, string) (string, error) {
	return string(k), nil
}

func newTestClient(t *testing.T, timeout time.Duration) (*Client, string) {
	t.Helper()
	priv, pub, err := signing.GenerateKeyPair()
	require.NoError(t, err)
	signer, err := signing.NewSigner("seller.example.com", "uk-1", priv)
	require.NoError(t, err)
	cfg := &config.Config{
		SubscriberID:    "seller.example.com",
		SubscriberURL:   "https://seller.example.com/ondc",
		Domain:          "ONDC:RET10",
		City:            "std:080",
		Country:         "IND",
		CoreVersion:     "1.2.0",
		CallbackTimeout: timeout,
	}
	return NewClient(cfg, signer), pub
}

func inbound(bapURI string) model.Context {
	return model.Context{
		Domain:        "ONDC:RET12",
		Country:       "IND",
		City:          "std:011",
		Action:        "select",
		CoreVersion:   "1.2.0",
		BapID:         "buyer.example.com",
		BapURI:        bapURI,
		BppID:         "someone-else",
		TransactionID: "txn-42",
		MessageID:     "msg-42",
		Timestamp:     "2020-01-01T00:00:00.000Z",
	}
}

func TestReplyContextEchoesCorrelationFields(t *testing.T) {
	c, _ := newTestClient(t, time.Second)
	in := inbound("https://buyer")
	out := c.ReplyContext(in)

	assert.Equal(t, in.Domain, out.Domain)
	assert.Equal(t, in.Country, out.Country)
	assert.Equal(t, in.City, out.City)
	assert.Equal(t, in.CoreVersion, out.CoreVersion)
	assert.Equal(t, in.TransactionID, out.TransactionID)
	assert.Equal(t, in.MessageID, out.MessageID)
	assert.Equal(t, "on_select", out.Action)
	assert.Equal(t, "seller.example.com", out.BppID)
	assert.NotEqual(t, in.Timestamp, out.Timestamp)
}

func TestUnsolicitedContextUsesFreshMessageID(t *testing.T) {
	c, _ := newTestClient(t, time.Second)
	o := model.OrderRecord{TransactionID: "txn-1", MessageID: "msg-1", BapURI: "https://buyer"}
	out := c.UnsolicitedContext("on_status", o)
	assert.Equal(t, "txn-1", out.TransactionID)
	assert.NotEqual(t, "msg-1", out.MessageID)
	assert.Equal(t, "ONDC:RET10", out.Domain)
}

func TestSendSignsExactBody(t *testing.T) {
	c, pub := newTestClient(t, time.Second)
	var gotPath string
	var verifyErr error
	var got model.Callback
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		_, verifyErr = signing.Verify(r.Context(), r.Header.Get("Authorization"), body, keyResolver(pub))
		_ = json.Unmarshal(body, &got)
		_, _ = w.Write([]byte(`{"message":{"ack":{"status":"ACK"}}}`))
	}))
	defer srv.Close()

	res, err := c.Reply(context.Background(), inbound(srv.URL+"/"), map[string]any{"order": map[string]string{"id": "O1"}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "/on_select", gotPath)
	assert.NoError(t, verifyErr)
	assert.Equal(t, "msg-42", got.Context.MessageID)
}

func TestReplyErrorCarriesErrorObject(t *testing.T) {
	c, _ := newTestClient(t, time.Second)
	var raw map[string]json.RawMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&raw)
	}))
	defer srv.Close()

	_, err := c.ReplyError(context.Background(), inbound(srv.URL), ondcerr.New(ondcerr.CodeOrderNotFound, ""))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"DOMAIN-ERROR","code":"30010","message":"Order not found"}`, string(raw["error"]))
	_, hasMessage := raw["message"]
	assert.False(t, hasMessage)
}

func TestSendFailures(t *testing.T) {
	c, _ := newTestClient(t, 50*time.Millisecond)

	_, err := c.Reply(context.Background(), inbound(""), nil)
	require.Error(t, err)

	calls := 0
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"nope"}`))
	}))
	defer bad.Close()
	res, err := c.Reply(context.Background(), inbound(bad.URL), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, 1, calls, "no retry")

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer slow.Close()
	_, err = c.Reply(context.Background(), inbound(slow.URL), nil)
	require.Error(t, err)
}
