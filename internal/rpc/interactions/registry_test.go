package interactions

import (
	"testing"
	"time"
)

func handle(id uint64) *Handle {
	return &Handle{
		ID:        id,
		GuildID:   1,
		ChannelID: 2,
		UserID:    3,
		Token:     "tok",
		CreatedAt: time.Now(),
	}
}

func TestTakeInvalidates(t *testing.T) {
	reg := NewRegistry(0)
	reg.Put(handle(10))

	h, ok := reg.Take(10)
	if !ok || h.Token != "tok" {
		t.Fatalf("first take = %v, %v", h, ok)
	}
	if _, ok := reg.Take(10); ok {
		t.Fatal("second take must fail")
	}
}

func TestTakeUnknown(t *testing.T) {
	reg := NewRegistry(0)
	if _, ok := reg.Take(99); ok {
		t.Fatal("take of an unregistered id must fail")
	}
}

func TestPutOverwrites(t *testing.T) {
	reg := NewRegistry(0)
	reg.Put(handle(10))
	fresh := handle(10)
	fresh.Token = "tok-2"
	reg.Put(fresh)

	h, ok := reg.Take(10)
	if !ok || h.Token != "tok-2" {
		t.Fatalf("take = %v, %v, want the latest handle", h, ok)
	}
	if reg.Len() != 0 {
		t.Fatalf("len = %d, want 0", reg.Len())
	}
}

func TestLen(t *testing.T) {
	reg := NewRegistry(0)
	reg.Put(handle(1))
	reg.Put(handle(2))
	if reg.Len() != 2 {
		t.Fatalf("len = %d, want 2", reg.Len())
	}
	reg.Take(1)
	if reg.Len() != 1 {
		t.Fatalf("len = %d, want 1", reg.Len())
	}
}

func TestHandlesExpire(t *testing.T) {
	reg := NewRegistry(20 * time.Millisecond)
	reg.Put(handle(10))

	time.Sleep(60 * time.Millisecond)
	if _, ok := reg.Take(10); ok {
		t.Fatal("expired handle must not be takeable")
	}
}
