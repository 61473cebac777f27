package mathx

import "testing"

func TestDividers(t *testing.T) {
	if got := CeilDiv[uint32](216, 30); got != 8 {
		t.Fatalf("CeilDiv: %d", got)
	}
	if got := CeilDiv[uint32](1, 0); got != 0 {
		t.Fatalf("CeilDiv by zero: %d", got)
	}
	if got := RoundDiv[uint32](8_000_000, 115_200); got != 69 {
		t.Fatalf("RoundDiv: %d", got)
	}
	if got := RoundDiv[uint32](24_000_000, 115_200); got != 208 {
		t.Fatalf("RoundDiv: %d", got)
	}
	if q, ok := ExactDiv[uint32](432, 2); !ok || q != 216 {
		t.Fatalf("ExactDiv exact: %d %v", q, ok)
	}
	if _, ok := ExactDiv[uint32](433, 2); ok {
		t.Fatal("ExactDiv should report remainder")
	}
	if _, ok := ExactDiv[uint32](1, 0); ok {
		t.Fatal("ExactDiv by zero")
	}
}

func TestAbsDiff(t *testing.T) {
	if AbsDiff[uint32](3, 10) != 7 || AbsDiff[uint32](10, 3) != 7 || AbsDiff[uint8](0, 255) != 255 {
		t.Fatal("AbsDiff")
	}
}
