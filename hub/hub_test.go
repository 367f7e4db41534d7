package hub

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pthm-cable/tofu/cycle"
	"github.com/pthm-cable/tofu/geom"
)

func snapshot(seq int64, shape string, n int) *cycle.Snapshot {
	return &cycle.Snapshot{
		Seq:      seq,
		Shape:    shape,
		AttractK: 1.5,
		Targets:  geom.Uniform(n, rand.New(rand.NewSource(seq))),
	}
}

func dial(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func waitClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for h.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("have %d clients, want %d", h.Clients(), n)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestTargetsRoundTrip(t *testing.T) {
	flat := []float32{-1, 1, 0.25, -0.5, 0, 0}
	b := EncodeTargets(flat)
	if len(b) != 24 {
		t.Fatalf("encoded %d bytes, want 24", len(b))
	}
	// 1.0 little-endian
	if b[4] != 0x00 || b[5] != 0x00 || b[6] != 0x80 || b[7] != 0x3f {
		t.Errorf("unexpected encoding of 1.0: % x", b[4:8])
	}
	got, err := DecodeTargets(b)
	if err != nil {
		t.Fatal(err)
	}
	for i := range flat {
		if got[i] != flat[i] {
			t.Fatalf("value %d = %v, want %v", i, got[i], flat[i])
		}
	}
	if _, err := DecodeTargets(b[:12]); err == nil {
		t.Error("expected error for half a point")
	}
}

func TestLateJoinerGetsLatest(t *testing.T) {
	h := New(snapshot(0, "", 50))
	srv := httptest.NewServer(h.Handler())
	defer srv.Close()
	defer h.Close()

	h.Publish(snapshot(3, "star5", 50))

	c := dial(t, srv)
	f, err := c.Next()
	if err != nil {
		t.Fatal(err)
	}
	if f.Info.Type != MsgShapeInfo || f.Info.Name != "star5" || f.Info.Seq != 3 || f.Info.Count != 50 {
		t.Errorf("info = %+v", f.Info)
	}
	if f.Info.AttractK != 1.5 {
		t.Errorf("attract_k = %v", f.Info.AttractK)
	}
	want := snapshot(3, "star5", 50).Flat()
	for i, p := range f.Targets {
		if p.X != float64(want[2*i]) || p.Y != float64(want[2*i+1]) {
			t.Fatalf("target %d = %+v, want (%v, %v)", i, p, want[2*i], want[2*i+1])
		}
	}
}

func TestPublishReachesAllClients(t *testing.T) {
	h := New(nil)
	srv := httptest.NewServer(h.Handler())
	defer srv.Close()
	defer h.Close()

	clients := []*Client{dial(t, srv), dial(t, srv), dial(t, srv)}
	waitClients(t, h, 3)

	h.Publish(snapshot(1, "circle", 20))
	for i, c := range clients {
		f, err := c.Next()
		if err != nil {
			t.Fatalf("client %d: %v", i, err)
		}
		if f.Info.Name != "circle" || len(f.Targets) != 20 {
			t.Errorf("client %d got %+v with %d targets", i, f.Info, len(f.Targets))
		}
	}
}

func TestHealth(t *testing.T) {
	h := New(snapshot(2, "ring", 30))
	srv := httptest.NewServer(h.Handler())
	defer srv.Close()
	defer h.Close()

	dial(t, srv)
	waitClients(t, h, 1)

	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var got Health
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	want := Health{Status: "ok", Shape: "ring", Clients: 1, ParticleCount: 30}
	if got != want {
		t.Errorf("health = %+v, want %+v", got, want)
	}

	resp2, err := http.Get(srv.URL + "/nope")
	if err != nil {
		t.Fatal(err)
	}
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp2.StatusCode)
	}
}

func TestSlowClientDropped(t *testing.T) {
	h := New(nil)
	srv := httptest.NewServer(h.Handler())
	defer srv.Close()
	defer h.Close()

	// Never read; large frames fill the socket buffers and then the queue.
	dial(t, srv)
	waitClients(t, h, 1)

	big := snapshot(1, "wave", 100000)
	for i := int64(1); i <= 200 && h.Clients() > 0; i++ {
		s := *big
		s.Seq = i
		h.Publish(&s)
	}
	waitClients(t, h, 0)
}

func TestClientDisconnectRemoves(t *testing.T) {
	h := New(nil)
	srv := httptest.NewServer(h.Handler())
	defer srv.Close()
	defer h.Close()

	c := dial(t, srv)
	waitClients(t, h, 1)
	c.Close()
	waitClients(t, h, 0)
}
