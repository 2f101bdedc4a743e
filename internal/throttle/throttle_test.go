package throttle

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"anibot/internal/storage"
	logx "anibot/pkg/logx"
)

func openTestStore(t *testing.T) storage.Store {
	t.Helper()
	st, err := storage.Open(storage.Config{
		Driver: "file",
		Path:   filepath.Join(t.TempDir(), "state.json"),
	}, logx.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestGateAllowsThenDenies(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	g := New(openTestStore(t), 2*time.Hour, logx.Nop())

	t0 := time.Date(2026, time.April, 1, 12, 0, 0, 0, time.UTC)

	ok, err := g.Allow(ctx, 100, t0)
	if err != nil || !ok {
		t.Fatalf("first call: ok=%v err=%v, want allowed", ok, err)
	}

	ok, err = g.Allow(ctx, 100, t0.Add(time.Hour))
	if err != nil || ok {
		t.Fatalf("within cooldown: ok=%v err=%v, want denied", ok, err)
	}

	ok, err = g.Allow(ctx, 100, t0.Add(2*time.Hour))
	if err != nil || !ok {
		t.Fatalf("after cooldown: ok=%v err=%v, want allowed", ok, err)
	}
}

func TestGateDeniedCallKeepsOriginalMark(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	g := New(openTestStore(t), 2*time.Hour, logx.Nop())

	t0 := time.Date(2026, time.April, 1, 12, 0, 0, 0, time.UTC)
	if ok, _ := g.Allow(ctx, 100, t0); !ok {
		t.Fatal("first call denied")
	}

	// Repeated denied calls must not slide the window forward.
	for i := 1; i < 4; i++ {
		if ok, _ := g.Allow(ctx, 100, t0.Add(time.Duration(i)*30*time.Minute)); ok {
			t.Fatalf("call at +%dm allowed, want denied", i*30)
		}
	}
	if ok, _ := g.Allow(ctx, 100, t0.Add(2*time.Hour)); !ok {
		t.Fatal("window slid; call at +2h should be allowed")
	}
}

func TestGateIsPerChat(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	g := New(openTestStore(t), 2*time.Hour, logx.Nop())

	t0 := time.Date(2026, time.April, 1, 12, 0, 0, 0, time.UTC)
	if ok, _ := g.Allow(ctx, 100, t0); !ok {
		t.Fatal("chat 100 denied")
	}
	if ok, _ := g.Allow(ctx, 200, t0); !ok {
		t.Fatal("chat 200 throttled by chat 100's mark")
	}
}

func TestGateCooldownSurvivesRestart(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.json")

	t0 := time.Date(2026, time.April, 1, 12, 0, 0, 0, time.UTC)

	st1, err := storage.Open(storage.Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	g1 := New(st1, 2*time.Hour, logx.Nop())
	if ok, _ := g1.Allow(ctx, 100, t0); !ok {
		t.Fatal("first call denied")
	}
	_ = st1.Close()

	st2, err := storage.Open(storage.Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st2.Close()
	g2 := New(st2, 2*time.Hour, logx.Nop())
	if ok, _ := g2.Allow(ctx, 100, t0.Add(time.Hour)); ok {
		t.Fatal("cooldown lost across restart")
	}
}
