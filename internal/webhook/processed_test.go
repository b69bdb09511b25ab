package webhook

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestProcessedStoreMarksFirstDelivery(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewProcessedStore(client, time.Minute)

	first, err := store.MarkProcessed(context.Background(), "SM123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !first {
		t.Error("expected first delivery to be marked new")
	}

	again, err := store.MarkProcessed(context.Background(), "SM123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again {
		t.Error("expected duplicate delivery to be detected")
	}
}

func TestProcessedStoreEntriesExpire(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewProcessedStore(client, time.Minute)

	if _, err := store.MarkProcessed(context.Background(), "SM123"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mr.FastForward(2 * time.Minute)

	first, err := store.MarkProcessed(context.Background(), "SM123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !first {
		t.Error("expected expired entry to be treated as new")
	}
}
