package leadership

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.ElectionKey != defaultElectionKey {
		t.Fatalf("key = %q", cfg.ElectionKey)
	}
	if cfg.LeaseDuration <= cfg.RenewalInterval {
		t.Fatalf("lease %v must outlive renewal %v", cfg.LeaseDuration, cfg.RenewalInterval)
	}
	if _, err := uuid.Parse(cfg.InstanceID); err != nil {
		t.Fatalf("instance id %q is not a uuid: %v", cfg.InstanceID, err)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := ElectionConfig{InstanceID: "replica-1", LeaseDuration: time.Minute}
	cfg.applyDefaults()
	if cfg.InstanceID != "replica-1" || cfg.LeaseDuration != time.Minute {
		t.Fatalf("explicit values overwritten: %+v", cfg)
	}
	if cfg.RenewalInterval != defaultRenewalInterval || cfg.RetryInterval != defaultRetryInterval {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

// TestElectionAgainstRedis needs a live server: set NC_TEST_REDIS_ADDR.
func TestElectionAgainstRedis(t *testing.T) {
	addr := os.Getenv("NC_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("NC_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	key := "notifycentral:test:" + uuid.NewString()
	newElection := func(id string) *Election {
		return NewElectionWithClient(client, ElectionConfig{
			InstanceID:      id,
			ElectionKey:     key,
			LeaseDuration:   2 * time.Second,
			RenewalInterval: 100 * time.Millisecond,
			RetryInterval:   100 * time.Millisecond,
		}, zerolog.Nop())
	}
	first := newElection("first")
	second := newElection("second")

	ctx := context.Background()
	if err := first.Start(ctx); err != nil {
		t.Fatal(err)
	}
	select {
	case v := <-first.LeaderCh():
		if !v {
			t.Fatal("first should acquire leadership")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("first never became leader")
	}

	if err := second.Start(ctx); err != nil {
		t.Fatal(err)
	}
	time.Sleep(300 * time.Millisecond)
	if second.IsLeader() {
		t.Fatal("second must not lead while first holds the lease")
	}

	if err := first.Stop(); err != nil {
		t.Fatal(err)
	}
	select {
	case v := <-second.LeaderCh():
		if !v {
			t.Fatal("second should take over")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("second never took over")
	}
	leader, err := second.GetLeader(ctx)
	if err != nil || leader != "second" {
		t.Fatalf("GetLeader() = %q, %v", leader, err)
	}
	_ = second.Stop()
}
