package httpmiddleware

import "testing"

func TestTokenBucketExhaustion(t *testing.T) {
	limiter := NewSimpleTokenBucket(3, 60)

	for i := 0; i < 3; i++ {
		if !limiter.allow("1.2.3.4") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if limiter.allow("1.2.3.4") {
		t.Error("expected request over capacity to be denied")
	}
}

func TestTokenBucketPerKeyIsolation(t *testing.T) {
	limiter := NewSimpleTokenBucket(1, 60)

	if !limiter.allow("1.2.3.4") {
		t.Fatal("first key should be allowed")
	}
	if limiter.allow("1.2.3.4") {
		t.Error("first key should be exhausted")
	}
	if !limiter.allow("5.6.7.8") {
		t.Error("second key should have its own bucket")
	}
}

func TestTokenBucketDefaultCapacity(t *testing.T) {
	limiter := NewSimpleTokenBucket(0, 10)
	if limiter.capacity != 10 {
		t.Errorf("expected capacity to default to rate, got %d", limiter.capacity)
	}
}
