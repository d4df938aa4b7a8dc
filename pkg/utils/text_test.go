package utils

import (
	"testing"
)

func TestTruncate(t *testing.T) {
	if Truncate("hello", 10) != "hello" {
		t.Error("short string unchanged")
	}
	if Truncate("hello world", 5) != "hello..." {
		t.Errorf("got %s", Truncate("hello world", 5))
	}
	if Truncate("x", 0) != "x" {
		t.Error("maxLen 0 returns as-is")
	}
	if got := Truncate("Geschlecht-männlich", 12); got != "Geschlecht-m..." {
		t.Errorf("rune truncation: got %s", got)
	}
}

func TestFeatureLabel(t *testing.T) {
	names := []string{"sex", "", "age"}
	if FeatureLabel(names, 0) != "sex" {
		t.Error("expected name")
	}
	if FeatureLabel(names, 1) != "x1" {
		t.Errorf("blank name: got %s", FeatureLabel(names, 1))
	}
	if FeatureLabel(names, 7) != "x7" {
		t.Errorf("out of range: got %s", FeatureLabel(names, 7))
	}
	if FeatureLabel(nil, 2) != "x2" {
		t.Error("nil names")
	}
}
