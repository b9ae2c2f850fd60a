package domain

import (
	"reflect"
	"testing"
)

func TestClampWeight(t *testing.T) {
	tests := []struct{ in, want int }{
		{-3, 1},
		{0, 1},
		{1, 1},
		{5, 5},
		{10, 10},
		{25, 10},
	}
	for _, tt := range tests {
		if got := ClampWeight(tt.in); got != tt.want {
			t.Errorf("ClampWeight(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestBuildWeightedList(t *testing.T) {
	list := BuildWeightedList([]Candidate[string]{
		{ID: "A", Weight: 1},
		{ID: "B", Weight: 3},
	})
	want := []string{"A", "B", "B", "B"}
	if !reflect.DeepEqual(list, want) {
		t.Fatalf("BuildWeightedList() = %v, want %v", list, want)
	}

	if got := BuildWeightedList([]Candidate[string]{{ID: "X", Weight: 0}, {ID: "Y", Weight: 99}}); len(got) != 11 {
		t.Fatalf("expected clamped length 11, got %d", len(got))
	}
	if got := BuildWeightedList[string](nil); len(got) != 0 {
		t.Fatalf("expected empty list, got %v", got)
	}
}

func TestSelectAtDistributesByWeight(t *testing.T) {
	list := BuildWeightedList([]Candidate[string]{
		{ID: "A", Weight: 1},
		{ID: "B", Weight: 3},
	})

	counts := map[string]int{}
	var sequence []string
	for pointer := int64(0); pointer < 4; pointer++ {
		id, ok := SelectAt(list, pointer)
		if !ok {
			t.Fatalf("expected selection for pointer %d", pointer)
		}
		counts[id]++
		sequence = append(sequence, id)
	}

	if counts["A"] != 1 || counts["B"] != 3 {
		t.Fatalf("expected A x1 and B x3, got %v", counts)
	}
	if !reflect.DeepEqual(sequence, []string{"A", "B", "B", "B"}) {
		t.Fatalf("unexpected sequence %v", sequence)
	}
}

func TestSelectAtIsCyclic(t *testing.T) {
	list := []string{"A", "B", "C"}
	var got []string
	for pointer := int64(0); pointer < 7; pointer++ {
		id, _ := SelectAt(list, pointer)
		got = append(got, id)
	}
	want := []string{"A", "B", "C", "A", "B", "C", "A"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	if id, _ := SelectAt(list, -1); id != "C" {
		t.Fatalf("expected negative pointer to wrap to C, got %s", id)
	}
	if _, ok := SelectAt([]string(nil), 3); ok {
		t.Fatal("expected no selection from empty list")
	}
}
