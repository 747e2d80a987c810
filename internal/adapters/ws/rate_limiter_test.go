package ws

import (
	"testing"
	"time"
)

func TestMessageLimiterBlocksOverLimit(t *testing.T) {
	rl := newMessageLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !rl.Allow("c1") {
			t.Fatalf("attempt %d should be allowed", i+1)
		}
	}
	if rl.Allow("c1") {
		t.Fatal("fourth attempt inside the window should be blocked")
	}
}

func TestMessageLimiterIsPerConnection(t *testing.T) {
	rl := newMessageLimiter(1, time.Minute)

	if !rl.Allow("c1") {
		t.Fatal("c1 first attempt blocked")
	}
	if !rl.Allow("c2") {
		t.Fatal("c2 must not share c1's window")
	}
	if rl.Allow("c1") {
		t.Fatal("c1 second attempt should be blocked")
	}
}

func TestMessageLimiterWindowExpires(t *testing.T) {
	rl := newMessageLimiter(1, 10*time.Millisecond)

	if !rl.Allow("c1") {
		t.Fatal("first attempt blocked")
	}
	time.Sleep(20 * time.Millisecond)
	if !rl.Allow("c1") {
		t.Fatal("attempt after window expiry should be allowed")
	}
}

func TestMessageLimiterForget(t *testing.T) {
	rl := newMessageLimiter(1, time.Minute)
	rl.Allow("c1")
	rl.Forget("c1")
	if !rl.Allow("c1") {
		t.Fatal("forgotten connection should start a fresh window")
	}
}
