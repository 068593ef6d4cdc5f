package mediacache

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestFSCache_SaveGetDelete(t *testing.T) {
	ctx := context.Background()
	c, err := NewFSCache(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}

	payload := []byte("RIFF....WAVEfmt ")
	id, err := c.Save(ctx, "dua.wav", bytes.NewReader(payload))
	if err != nil {
		t.Fatal(err)
	}

	m, err := c.Get(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	got, err := io.ReadAll(m.Body)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("got %q, want %q", got, payload)
	}
	if m.Name != "dua.wav" || m.Size != int64(len(payload)) {
		t.Errorf("unexpected metadata %q/%d", m.Name, m.Size)
	}
	if err := m.Release(); err != nil {
		t.Fatal(err)
	}
	if err := m.Release(); err != nil {
		t.Errorf("second Release should be a no-op, got %v", err)
	}

	if err := c.Delete(ctx, id); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Get(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after Delete: want ErrNotFound, got %v", err)
	}
	if err := c.Delete(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete: want ErrNotFound, got %v", err)
	}
}

func TestFSCache_DistinctIDs(t *testing.T) {
	ctx := context.Background()
	c, _ := NewFSCache(t.TempDir(), nil)

	a, err := c.Save(ctx, "same.mp3", bytes.NewReader([]byte("a")))
	if err != nil {
		t.Fatal(err)
	}
	b, err := c.Save(ctx, "same.mp3", bytes.NewReader([]byte("b")))
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Fatal("saving twice must produce distinct ids")
	}
}

func TestFSCache_RejectsForeignIDs(t *testing.T) {
	dir := t.TempDir()
	c, _ := NewFSCache(dir, nil)
	outside := filepath.Join(filepath.Dir(dir), "secret.bin")
	_ = os.WriteFile(outside, []byte("x"), 0644)

	for _, id := range []string{"", "../secret", "not-a-uuid"} {
		if _, err := c.Get(context.Background(), id); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get(%q): want ErrNotFound, got %v", id, err)
		}
	}
}

func TestFSCache_CancelledSaveLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	c, _ := NewFSCache(dir, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Save(ctx, "x.mp3", bytes.NewReader([]byte("data"))); err == nil {
		t.Fatal("expected error from cancelled save")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty cache dir, found %d entries", len(entries))
	}
}
