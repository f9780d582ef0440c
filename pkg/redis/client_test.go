package redis

import (
	"testing"

	"github.com/guidely/guidely-backend/pkg/config"
)

func configEmpty() config.RedisConfig {
	return config.RedisConfig{}
}

func TestKeyBuilders(t *testing.T) {
	c := &Client{}

	if got := c.AccessSessionKey("abc"); got != "gl:session:access:abc" {
		t.Fatalf("unexpected session key %q", got)
	}
	if got := c.PendingIntentKey("sess-1"); got != "gl:intent:sess-1" {
		t.Fatalf("unexpected intent key %q", got)
	}
	if got := c.IdempotencyKey("evt:processed:worker", "id-9"); got != "gl:idempotency:evt:processed:worker:id-9" {
		t.Fatalf("unexpected idempotency key %q", got)
	}
}

func TestOptionsFromConfigRequiresTarget(t *testing.T) {
	if _, err := optionsFromConfig(configEmpty()); err == nil {
		t.Fatal("expected error when neither url nor address set")
	}
}

func TestOptionsFromConfigAddress(t *testing.T) {
	cfg := configEmpty()
	cfg.Address = "localhost:6379"
	cfg.PoolSize = 4

	opts, err := optionsFromConfig(cfg)
	if err != nil {
		t.Fatalf("options from config: %v", err)
	}
	if opts.Addr != "localhost:6379" {
		t.Fatalf("unexpected addr %q", opts.Addr)
	}
	if opts.PoolSize != 4 {
		t.Fatalf("unexpected pool size %d", opts.PoolSize)
	}
}

func TestUninitializedClientErrors(t *testing.T) {
	c := &Client{}
	if err := c.Set(t.Context(), "k", "v", 0); err == nil {
		t.Fatal("expected error from uninitialized client")
	}
	if _, err := c.Get(t.Context(), "k"); err == nil {
		t.Fatal("expected error from uninitialized client")
	}
}
