package main

import "testing"

func TestParseFloats(t *testing.T) {
	got, err := parseFloats("0.5, 1,2", 3)
	if err != nil {
		t.Fatalf("parseFloats() error = %v", err)
	}
	if got[0] != 0.5 || got[1] != 1 || got[2] != 2 {
		t.Errorf("parseFloats() = %v", got)
	}
	if _, err := parseFloats("1,2", 4); err == nil {
		t.Error("parseFloats() with too few numbers should fail")
	}
	if _, err := parseFloats("1,x", 2); err == nil {
		t.Error("parseFloats() with a bad number should fail")
	}
}
