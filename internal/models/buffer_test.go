package models

import "testing"

func TestBufferFillAndReset(t *testing.T) {
	b := NewBuffer(3)

	if b.Cap() != 3 || b.Len() != 0 || b.Full() {
		t.Fatalf("fresh buffer: cap=%d len=%d full=%v", b.Cap(), b.Len(), b.Full())
	}

	for i := int64(1); i <= 3; i++ {
		b.Append(Sample{Key: Key{Scope: 1, Kind: KindCounter}, Value: i, Timestamp: i})
	}

	if !b.Full() {
		t.Fatal("buffer not full after filling every slot")
	}

	samples := b.Samples()
	for i, s := range samples {
		if s.Value != int64(i+1) {
			t.Fatalf("slot %d holds value %d, order not preserved", i, s.Value)
		}
	}

	b.Reset()
	if b.Len() != 0 || b.Cap() != 3 {
		t.Fatalf("after reset: len=%d cap=%d", b.Len(), b.Cap())
	}
}

func TestKindString(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindCounter, "counter"},
		{KindGauge, "gauge"},
		{KindHistogram, "histogram"},
		{Kind(0), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("Kind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestKindValid(t *testing.T) {
	for _, k := range []Kind{KindCounter, KindGauge, KindHistogram} {
		if !k.Valid() {
			t.Errorf("Kind %v reported invalid", k)
		}
	}
	if Kind(0).Valid() || Kind(9).Valid() {
		t.Error("out-of-range kind reported valid")
	}
}
