package gait

import (
	"reflect"
	"testing"
)

func TestSettleFilter_Allows(t *testing.T) {
	f := NewSettleFilter(0, 2, 4)
	for i := 0; i < 8; i++ {
		want := i == 0 || i == 2 || i == 4
		if got := f.Allows(i); got != want {
			t.Errorf("Allows(%d) = %v, want %v", i, got, want)
		}
	}

	var all *SettleFilter
	if !all.Allows(7) {
		t.Error("nil filter rejected servo 7")
	}
	if NewSettleFilter().Allows(0) {
		t.Error("empty filter allowed servo 0")
	}
}

func TestSettleFilter_WithCopies(t *testing.T) {
	base := NewSettleFilter(1)
	next := base.With(3)

	if base.Allows(3) {
		t.Error("With modified the original filter")
	}
	if want := []int{1, 3}; !reflect.DeepEqual(next.Indices(), want) {
		t.Errorf("Indices() = %v, want %v", next.Indices(), want)
	}

	var all *SettleFilter
	if all.With(2) != nil {
		t.Error("nil.With(2) restricted an unrestricted filter")
	}
}

func TestSettleFilter_String(t *testing.T) {
	tests := []struct {
		f    *SettleFilter
		want string
	}{
		{nil, "all"},
		{NewSettleFilter(), "{}"},
		{NewSettleFilter(4, 0, 2), "{0,2,4}"},
	}
	for _, tt := range tests {
		if got := tt.f.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
