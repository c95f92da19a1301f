package cache

import (
	"context"
	"os"
	"testing"
	"time"
)

func newTestCache(t *testing.T, ttl time.Duration) *Cache {
	t.Helper()
	dir := t.TempDir()
	c, err := New(dir, ttl)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestPutGetRoundTrip(t *testing.T) {
	c := newTestCache(t, time.Minute)
	handle, err := c.Put(context.Background(), Source, "main.cpp", []byte("int main(){}"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	ref, ok := c.Get(handle)
	if !ok {
		t.Fatal("expected Get to find handle")
	}
	data, err := os.ReadFile(ref.FilePath)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if string(data) != "int main(){}" {
		t.Errorf("got %q", data)
	}
	if ref.Metadata.FileName != "main.cpp" || ref.Metadata.Type != Source {
		t.Errorf("unexpected metadata: %+v", ref.Metadata)
	}
}

func TestGetMissingHandle(t *testing.T) {
	c := newTestCache(t, time.Minute)
	if _, ok := c.Get("does-not-exist"); ok {
		t.Fatal("expected miss for unknown handle")
	}
}

func TestGetExpiredHandle(t *testing.T) {
	c := newTestCache(t, time.Millisecond)
	handle, _ := c.Put(context.Background(), Input, "in.txt", []byte("1 2 3"))
	time.Sleep(20 * time.Millisecond)
	if _, ok := c.Get(handle); ok {
		t.Fatal("expected expired handle to miss")
	}
}

func TestRefreshExtendsTTL(t *testing.T) {
	c := newTestCache(t, 50*time.Millisecond)
	handle, _ := c.Put(context.Background(), Input, "in.txt", []byte("data"))
	time.Sleep(30 * time.Millisecond)
	if !c.Refresh(handle) {
		t.Fatal("expected refresh to succeed before expiry")
	}
	time.Sleep(30 * time.Millisecond)
	if _, ok := c.Get(handle); !ok {
		t.Fatal("expected refreshed handle to still be live")
	}
}

func TestDeleteRemovesEntryAndFile(t *testing.T) {
	c := newTestCache(t, time.Minute)
	handle, _ := c.Put(context.Background(), Output, "out.txt", []byte("42"))
	ref, _ := c.Get(handle)
	c.Delete(handle)
	if c.Has(handle) {
		t.Fatal("expected handle gone after delete")
	}
	if _, err := os.Stat(ref.FilePath); !os.IsNotExist(err) {
		t.Fatal("expected backing file removed")
	}
}

func TestSweepReclaimsExpiredArtifacts(t *testing.T) {
	c := newTestCache(t, 10*time.Millisecond)
	handle, _ := c.Put(context.Background(), Output, "out.txt", []byte("42"))
	ref, _ := c.Get(handle)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(ref.FilePath); os.IsNotExist(err) {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("expected sweeper to remove expired artifact file")
}

func TestStatsCountsLiveEntries(t *testing.T) {
	c := newTestCache(t, time.Minute)
	c.Put(context.Background(), Source, "a.cpp", []byte("aaaa"))
	c.Put(context.Background(), Source, "b.cpp", []byte("bb"))
	s := c.Stats()
	if s.Count != 2 {
		t.Errorf("got count %d, want 2", s.Count)
	}
	if s.TotalBytes != 6 {
		t.Errorf("got bytes %d, want 6", s.TotalBytes)
	}
}
