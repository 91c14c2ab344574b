package dnstxt

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/MrEthical07/goNameAuth/authdoc"
	"github.com/MrEthical07/goNameAuth/resolver"
	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T, zone map[string][]string) string {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	started := make(chan struct{})
	srv := &dns.Server{
		PacketConn:        pc,
		NotifyStartedFunc: func() { close(started) },
		Handler: dns.HandlerFunc(func(w dns.ResponseWriter, req *dns.Msg) {
			m := new(dns.Msg)
			m.SetReply(req)
			q := req.Question[0]
			if q.Name == "_broken.example." {
				m.Rcode = dns.RcodeServerFailure
				_ = w.WriteMsg(m)
				return
			}
			records, ok := zone[q.Name]
			if !ok {
				m.Rcode = dns.RcodeNameError
				_ = w.WriteMsg(m)
				return
			}
			for _, rec := range records {
				m.Answer = append(m.Answer, &dns.TXT{
					Hdr: dns.RR_Header{Name: q.Name, Rrtype: dns.TypeTXT, Class: dns.ClassINET, Ttl: 60},
					Txt: splitTXT(rec),
				})
			}
			_ = w.WriteMsg(m)
		}),
	}
	go func() { _ = srv.ActivateAndServe() }()
	t.Cleanup(func() { _ = srv.Shutdown() })

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("dns server did not start")
	}
	return pc.LocalAddr().String()
}

// splitTXT breaks s into character-strings the way long records are published.
func splitTXT(s string) []string {
	var out []string
	for len(s) > 40 {
		out = append(out, s[:40])
		s = s[40:]
	}
	return append(out, s)
}

func TestResolveFromTXT(t *testing.T) {
	addr := startServer(t, map[string][]string{
		"_lwn.chrisc.example.": {
			"v=spf1 -all",
			"address=0x52908400098527886E0F7030069857D2E4169EE7",
			"authenticator=https://auth.example/login/{}/document.json",
		},
	})
	r, err := New(Config{Server: addr})
	require.NoError(t, err)

	got, err := r.ResolveName(context.Background(), "ChrisC.example")
	require.NoError(t, err)
	assert.Equal(t, "0x52908400098527886E0F7030069857D2E4169EE7", got)

	src, err := r.ResolveAuthenticator(context.Background(), "chrisc.example")
	require.NoError(t, err)
	url, err := src.Expand("chrisc.example")
	require.NoError(t, err)
	assert.Equal(t, "https://auth.example/login/chrisc.example/document.json", url)
}

func TestInlineAuthenticatorRecord(t *testing.T) {
	addr := startServer(t, map[string][]string{
		"_lwn.inline.example.": {
			`authenticator={"authFlows":[{"platform":"browser","connection":"extension"}]}`,
		},
	})
	r, err := New(Config{Server: addr})
	require.NoError(t, err)

	src, err := r.ResolveAuthenticator(context.Background(), "inline.example")
	require.NoError(t, err)
	assert.Equal(t, authdoc.SourceInline, src.Kind)

	_, err = r.ResolveName(context.Background(), "inline.example")
	assert.ErrorIs(t, err, resolver.ErrNotFound)
}

func TestNXDomainIsNotFound(t *testing.T) {
	addr := startServer(t, map[string][]string{})
	r, err := New(Config{Server: addr})
	require.NoError(t, err)

	_, err = r.ResolveName(context.Background(), "nobody.example")
	assert.ErrorIs(t, err, resolver.ErrNotFound)
}

func TestServerFailureIsAnError(t *testing.T) {
	addr := startServer(t, map[string][]string{})
	r, err := New(Config{Server: addr, Prefix: "_broken"})
	require.NoError(t, err)

	_, err = r.ResolveName(context.Background(), "example")
	assert.ErrorIs(t, err, ErrServerFailure)
	assert.NotErrorIs(t, err, resolver.ErrNotFound)
}
