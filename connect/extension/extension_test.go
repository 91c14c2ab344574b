package extension

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/MrEthical07/goNameAuth/authdoc"
	"github.com/MrEthical07/goNameAuth/connect"
	"github.com/MrEthical07/goNameAuth/discovery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWallet struct {
	accounts []string
	chainID  string
	err      error
	block    bool
}

func (w *fakeWallet) Request(ctx context.Context, method string, _ any) (json.RawMessage, error) {
	if w.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if w.err != nil {
		return nil, w.err
	}
	switch method {
	case "eth_requestAccounts":
		return json.Marshal(w.accounts)
	case "eth_chainId":
		return json.Marshal(w.chainID)
	}
	return nil, &ProviderError{Code: 4200, Message: "unsupported method"}
}

func registryWith(t *testing.T, rdns string, w discovery.Provider) *discovery.Registry {
	t.Helper()
	r := discovery.NewRegistry()
	require.NoError(t, r.Announce(discovery.NewProviderInfo("Wallet", rdns, ""), w))
	return r
}

var browser = connect.NewCapabilityContext(authdoc.PlatformBrowser)

func extensionFlow(uri string) authdoc.FlowSpec {
	return authdoc.FlowSpec{Platform: authdoc.PlatformBrowser, Connection: authdoc.ConnectionExtension, URI: uri}
}

func TestHandshakeApproves(t *testing.T) {
	w := &fakeWallet{accounts: []string{"0x52908400098527886E0F7030069857D2E4169EE7"}, chainID: "0x89"}
	c := New(registryWith(t, "io.metamask", w))

	hs, err := c.Initiate(context.Background(), extensionFlow("io.metamask"), browser)
	require.NoError(t, err)
	assert.Empty(t, hs.URI())

	sess, err := hs.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0x52908400098527886E0F7030069857D2E4169EE7", sess.Address)
	assert.Equal(t, "eip155:137", sess.Chain)
	assert.Equal(t, authdoc.ConnectionExtension, sess.Connection)
}

func TestInitiateProviderAbsent(t *testing.T) {
	c := New(discovery.NewRegistry())
	_, err := c.Initiate(context.Background(), extensionFlow("io.metamask"), browser)
	assert.ErrorIs(t, err, connect.ErrProviderNotFound)

	_, err = c.Initiate(context.Background(), extensionFlow(""), browser)
	assert.ErrorIs(t, err, connect.ErrProviderNotFound)
}

func TestInjectedProvider(t *testing.T) {
	r := discovery.NewRegistry()
	r.SetInjected(&fakeWallet{accounts: []string{"0xabc"}})
	c := New(r)

	hs, err := c.Initiate(context.Background(), extensionFlow(authdoc.InjectedURI), browser)
	require.NoError(t, err)
	sess, err := hs.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0xabc", sess.Address)
	assert.Empty(t, sess.Chain)
}

func TestUserRejection(t *testing.T) {
	w := &fakeWallet{err: &ProviderError{Code: CodeUserRejected, Message: "User rejected the request."}}
	c := New(registryWith(t, "io.metamask", w))

	hs, err := c.Initiate(context.Background(), extensionFlow("io.metamask"), browser)
	require.NoError(t, err)
	_, err = hs.Wait(context.Background())
	assert.ErrorIs(t, err, connect.ErrRejected)
}

func TestAbandonUnblocksWait(t *testing.T) {
	c := New(registryWith(t, "io.metamask", &fakeWallet{block: true}))
	hs, err := c.Initiate(context.Background(), extensionFlow("io.metamask"), browser)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := hs.Wait(context.Background())
		done <- err
	}()

	hs.Abandon()
	hs.Abandon()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, connect.ErrAbandoned)
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return after Abandon")
	}
}

func TestWrongConnectionUnsupported(t *testing.T) {
	c := New(discovery.NewRegistry())
	_, err := c.Initiate(context.Background(), authdoc.FlowSpec{Connection: authdoc.ConnectionWalletConnect}, browser)
	assert.ErrorIs(t, err, connect.ErrUnsupported)
}
