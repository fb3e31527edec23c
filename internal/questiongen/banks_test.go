package questiongen

import "testing"

func TestBank_KnownTypesAndFallback(t *testing.T) {
	for _, typ := range []string{"general", "technical", "sales", "leadership", "customer_service", "coding", "home_care"} {
		qs := Bank(typ)
		if len(qs) == 0 {
			t.Fatalf("%s: empty bank", typ)
		}
	}
	fallback := Bank("astronaut")
	general := Bank("general")
	if len(fallback) != len(general) || fallback[0] != general[0] {
		t.Fatalf("unknown type did not fall back to general")
	}
}

func TestBank_ReturnsIndependentCopy(t *testing.T) {
	a := Bank("general")
	a[0] = "mutated"
	b := Bank("general")
	if b[0] == "mutated" {
		t.Fatalf("bank slice is shared with callers")
	}
}
