package security

import (
	"testing"
)

func TestHasher_HashAndCompare(t *testing.T) {
	h := NewHasher(4)
	hash, err := h.Hash("Abcd1234")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if hash == "" || hash == "Abcd1234" {
		t.Fatalf("Hash returned %q", hash)
	}
	if err := h.Compare(hash, "Abcd1234"); err != nil {
		t.Fatalf("Compare: %v", err)
	}
}

func TestHasher_CompareWrongPassword(t *testing.T) {
	h := NewHasher(4)
	hash, _ := h.Hash("Abcd1234")
	if err := h.Compare(hash, "abcd1234"); err == nil {
		t.Fatal("Compare with wrong password should fail")
	}
}

func TestHasher_Cost(t *testing.T) {
	if h := NewHasher(12); h.Cost != 12 {
		t.Errorf("Cost want 12, got %d", h.Cost)
	}
	if h := NewHasher(0); h.Cost < 4 {
		t.Errorf("zero cost should be clamped to at least MinCost, got %d", h.Cost)
	}
	if h := NewHasher(99); h.Cost != 31 {
		t.Errorf("cost above max should clamp to 31, got %d", h.Cost)
	}
}

func TestHasher_NeedsRehash(t *testing.T) {
	low := NewHasher(4)
	hash, err := low.Hash("Abcd1234")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if low.NeedsRehash(hash) {
		t.Error("hash at the hasher's own cost should not need rehash")
	}
	if !NewHasher(5).NeedsRehash(hash) {
		t.Error("hash at a different cost should need rehash")
	}
	if !low.NeedsRehash("not-a-bcrypt-hash") {
		t.Error("garbage hash should need rehash")
	}
}
