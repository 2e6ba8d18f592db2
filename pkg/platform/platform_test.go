package platform

import "testing"

func TestParse(t *testing.T) {
	cases := []struct {
		in    string
		want  Platform
		valid bool
	}{
		{"QQ", QQ, true},
		{"qq", QQ, true},
		{"YH", Yunhu, true},
		{"yunhu", Yunhu, true},
		{"MC", Minecraft, true},
		{"minecraft", Minecraft, true},
		{"", 0, false},
		{"telegram", 0, false},
	}
	for _, tc := range cases {
		got, valid := Parse(tc.in)
		if valid != tc.valid {
			t.Errorf("Parse(%q) valid = %v, want %v", tc.in, valid, tc.valid)
			continue
		}
		if valid && got != tc.want {
			t.Errorf("Parse(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestOthers(t *testing.T) {
	others := QQ.Others()
	if len(others) != 2 {
		t.Fatalf("expected 2 other platforms, got %d", len(others))
	}
	for _, o := range others {
		if o == QQ {
			t.Error("Others must not include the platform itself")
		}
	}
}

func TestKeys(t *testing.T) {
	a := NewNode(QQ, "123")
	b := NewNode(Yunhu, "abc")

	if got := PairKey(a, b); got != "QQ:123:YH:abc" {
		t.Errorf("PairKey = %q", got)
	}
	if got := PairKey(b, a); got != "YH:abc:QQ:123" {
		t.Errorf("reversed PairKey = %q", got)
	}
	if got := LocalKey(a); got != "QQ:123:QQ:123" {
		t.Errorf("LocalKey = %q", got)
	}
	if got := InboundPattern(b); got != "*:*:YH:abc" {
		t.Errorf("InboundPattern = %q", got)
	}
}
