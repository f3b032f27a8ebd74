package inspect

import (
	"reflect"
	"testing"
)

func TestSurface(t *testing.T) {
	s := New()

	if _, ok := s.Lookup("os"); ok {
		t.Fatal("empty surface should not have os")
	}

	s.Expose("os", 1)
	s.Expose("loader", 2)
	s.Expose("os", 3)

	v, ok := s.Lookup("os")
	if !ok || v != 3 {
		t.Errorf("Lookup(os) = %v, %v; want 3, true", v, ok)
	}
	if got := s.Names(); !reflect.DeepEqual(got, []string{"loader", "os"}) {
		t.Errorf("Names() = %v", got)
	}

	s.Withdraw("os")
	if _, ok := s.Lookup("os"); ok {
		t.Error("os should be withdrawn")
	}
}

func TestDefault(t *testing.T) {
	Expose("inspect-test", "v")
	t.Cleanup(func() { Withdraw("inspect-test") })

	if Default() != Default() {
		t.Fatal("Default() should be stable")
	}
	if v, ok := Lookup("inspect-test"); !ok || v != "v" {
		t.Errorf("Lookup = %v, %v", v, ok)
	}

	found := false
	for _, n := range Names() {
		found = found || n == "inspect-test"
	}
	if !found {
		t.Error("Names() should include inspect-test")
	}
}
