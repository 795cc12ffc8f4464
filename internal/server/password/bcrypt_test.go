package password

import "testing"

func TestBcryptHasher_HashAndVerify(t *testing.T) {
	t.Parallel()

	h := NewBcryptHasher(4) // min cost keeps the test fast

	digest, err := h.Hash("pw")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !h.Verify("pw", digest) {
		t.Fatalf("correct password did not verify")
	}
	if h.Verify("other", digest) {
		t.Fatalf("wrong password verified")
	}
}

func TestBcryptHasher_DistinctDigests(t *testing.T) {
	t.Parallel()

	h := NewBcryptHasher(4)
	a, err := h.Hash("pw")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	b, err := h.Hash("pw")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if string(a) == string(b) {
		t.Fatalf("two hashes of the same password are identical; salt missing?")
	}
}

func TestNewBcryptHasher_ClampsCost(t *testing.T) {
	t.Parallel()

	h := NewBcryptHasher(99)
	if _, err := h.Hash("pw"); err != nil {
		t.Fatalf("Hash with clamped cost failed: %v", err)
	}
}
