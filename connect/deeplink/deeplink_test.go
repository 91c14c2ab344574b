package deeplink

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goNameAuth/authdoc"
	"github.com/MrEthical07/goNameAuth/connect"
	"github.com/MrEthical07/goNameAuth/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingOpener struct {
	mu    sync.Mutex
	links []string
	err   error
}

func (o *recordingOpener) Open(_ context.Context, link string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return o.err
	}
	o.links = append(o.links, link)
	return nil
}

func (o *recordingOpener) last(t *testing.T) *url.URL {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	require.NotEmpty(t, o.links)
	u, err := url.Parse(o.links[len(o.links)-1])
	require.NoError(t, err)
	return u
}

func newConnector(t *testing.T, opener LinkOpener) *Connector {
	t.Helper()
	states, err := jwt.NewManager(jwt.Config{
		StateTTL:      time.Minute,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    []byte("0123456789abcdef0123456789abcdef"),
		Issuer:        "lwn-test",
	})
	require.NoError(t, err)

	c, err := New(Config{
		Opener:      opener,
		States:      states,
		CallbackURL: "https://dapp.example/lwn/callback",
		DefaultURIs: map[authdoc.Connection]string{authdoc.ConnectionMobileWallet: "https://wallet.example/mwp"},
	})
	require.NoError(t, err)
	return c
}

var (
	mobile  = connect.CapabilityContext{Platform: authdoc.PlatformMobile, CanOpenLinks: true}
	mwpFlow = authdoc.FlowSpec{Platform: authdoc.PlatformMobile, Connection: authdoc.ConnectionMobileWallet}
)

func TestLinkCarriesCallbackAndState(t *testing.T) {
	opener := &recordingOpener{}
	c := newConnector(t, opener)

	hs, err := c.Initiate(context.Background(), mwpFlow, mobile)
	require.NoError(t, err)
	defer hs.Abandon()

	u := opener.last(t)
	assert.Equal(t, "wallet.example", u.Host)
	assert.Equal(t, "/mwp", u.Path)
	assert.Equal(t, "https://dapp.example/lwn/callback", u.Query().Get("callback"))
	assert.NotEmpty(t, u.Query().Get("state"))
	assert.Equal(t, u.String(), hs.URI())
	assert.Equal(t, 1, c.Pending())
}

func TestCallbackApproves(t *testing.T) {
	opener := &recordingOpener{}
	c := newConnector(t, opener)
	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	hs, err := c.Initiate(context.Background(), mwpFlow, mobile)
	require.NoError(t, err)
	state := opener.last(t).Query().Get("state")

	go func() {
		q := url.Values{"state": {state}, "address": {"0xabc"}, "chain": {"eip155:1"}}
		resp, err := http.Get(srv.URL + "?" + q.Encode())
		if err == nil {
			resp.Body.Close()
		}
	}()

	sess, err := hs.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0xabc", sess.Address)
	assert.Equal(t, "eip155:1", sess.Chain)
	assert.Equal(t, authdoc.ConnectionMobileWallet, sess.Connection)
	assert.Equal(t, 0, c.Pending())
}

func TestCallbackRejects(t *testing.T) {
	opener := &recordingOpener{}
	c := newConnector(t, opener)

	hs, err := c.Initiate(context.Background(), mwpFlow, mobile)
	require.NoError(t, err)
	state := opener.last(t).Query().Get("state")

	require.NoError(t, c.Complete(state, "", "", "user declined"))
	_, err = hs.Wait(context.Background())
	assert.ErrorIs(t, err, connect.ErrRejected)
}

func TestCallbackStatusCodes(t *testing.T) {
	opener := &recordingOpener{}
	c := newConnector(t, opener)
	h := c.Handler()

	hs, err := c.Initiate(context.Background(), mwpFlow, mobile)
	require.NoError(t, err)
	state := opener.last(t).Query().Get("state")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cb", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cb?state=forged", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/cb", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cb?state="+url.QueryEscape(state)+"&address=0xabc", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	// A replayed callback no longer matches a pending handshake.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cb?state="+url.QueryEscape(state)+"&address=0xabc", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	sess, err := hs.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0xabc", sess.Address)
}

func TestAbandonDropsPending(t *testing.T) {
	opener := &recordingOpener{}
	c := newConnector(t, opener)

	hs, err := c.Initiate(context.Background(), mwpFlow, mobile)
	require.NoError(t, err)
	state := opener.last(t).Query().Get("state")

	hs.Abandon()
	_, err = hs.Wait(context.Background())
	assert.ErrorIs(t, err, connect.ErrAbandoned)
	assert.ErrorIs(t, c.Complete(state, "0xabc", "", ""), ErrUnknownState)
}

func TestInitiateRequirements(t *testing.T) {
	opener := &recordingOpener{}
	c := newConnector(t, opener)

	_, err := c.Initiate(context.Background(), mwpFlow, connect.CapabilityContext{Platform: authdoc.PlatformMobile})
	assert.ErrorIs(t, err, connect.ErrUnsupported)

	_, err = c.Initiate(context.Background(), authdoc.FlowSpec{Connection: "unknown"}, mobile)
	assert.ErrorIs(t, err, connect.ErrUnsupported)

	opener.err = errors.New("no handler for scheme")
	_, err = c.Initiate(context.Background(), mwpFlow, mobile)
	assert.Error(t, err)
	assert.Equal(t, 0, c.Pending())
}

func TestStateCarriesNonceAndConnection(t *testing.T) {
	opener := &recordingOpener{}
	c := newConnector(t, opener)

	hs, err := c.Initiate(context.Background(), mwpFlow, mobile)
	require.NoError(t, err)
	defer hs.Abandon()

	claims, err := c.cfg.States.ParseState(opener.last(t).Query().Get("state"))
	require.NoError(t, err)
	assert.NotEmpty(t, claims.Nonce)
	assert.Equal(t, string(authdoc.ConnectionMobileWallet), claims.Connection)
}

func TestCallbackRejectsConnectionMismatch(t *testing.T) {
	opener := &recordingOpener{}
	c := newConnector(t, opener)

	hs, err := c.Initiate(context.Background(), mwpFlow, mobile)
	require.NoError(t, err)
	state := opener.last(t).Query().Get("state")

	claims, err := c.cfg.States.ParseState(state)
	require.NoError(t, err)
	swapped, err := c.cfg.States.CreateState(jwt.StateParams{Nonce: claims.Nonce, Connection: "wc"})
	require.NoError(t, err)

	assert.ErrorIs(t, c.Complete(swapped, "0xevil", "", ""), ErrUnknownState)
	assert.Equal(t, 1, c.Pending())

	require.NoError(t, c.Complete(state, "0xabc", "", ""))
	sess, err := hs.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0xabc", sess.Address)
}
