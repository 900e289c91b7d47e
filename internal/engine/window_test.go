package engine

import (
	"reflect"
	"testing"
)

func TestWindowFIFOEviction(t *testing.T) {
	w := NewWindow(3)
	for _, v := range []float64{1, 2, 3, 4} {
		w.Push(v)
	}
	if got, want := w.Values(), []float64{2, 3, 4}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Values() = %v, want %v", got, want)
	}
	if !w.Full() || w.Len() != 3 {
		t.Fatalf("expected full window of 3, got len=%d", w.Len())
	}
}

func TestWindowFilling(t *testing.T) {
	w := NewWindow(4)
	if w.Mean() != 0 {
		t.Fatalf("empty mean = %v", w.Mean())
	}
	w.Push(10)
	w.Push(20)
	if w.Full() {
		t.Fatalf("window with 2/4 samples reported full")
	}
	if got := w.Mean(); got != 15 {
		t.Fatalf("Mean() = %v, want 15", got)
	}
}

func TestWindowCapacityOne(t *testing.T) {
	w := NewWindow(1)
	w.Push(5)
	w.Push(7)
	if got := w.Values(); !reflect.DeepEqual(got, []float64{7}) {
		t.Fatalf("Values() = %v", got)
	}
	if w.Mean() != 7 {
		t.Fatalf("Mean() = %v", w.Mean())
	}
}

func TestWindowValuesIsCopy(t *testing.T) {
	w := NewWindow(2)
	w.Push(1)
	vals := w.Values()
	vals[0] = 99
	if w.Values()[0] != 1 {
		t.Fatalf("Values() leaked internal buffer")
	}
}
