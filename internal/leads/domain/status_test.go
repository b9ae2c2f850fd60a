package domain

import "testing"

func TestStatusIsTerminal(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusNew, false},
		{StatusQualifying, false},
		{StatusQualified, false},
		{StatusAssigned, true},
		{StatusClosed, true},
		{StatusLost, true},
		{StatusDoNotContact, true},
	}

	for _, tt := range tests {
		if got := tt.status.IsTerminal(); got != tt.want {
			t.Errorf("%s.IsTerminal() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestCanRunPipeline(t *testing.T) {
	tests := []struct {
		name     string
		status   Status
		assigned bool
		want     bool
	}{
		{"new lead", StatusNew, false, true},
		{"qualifying lead", StatusQualifying, false, true},
		{"qualified waiting for agent", StatusQualified, false, true},
		{"qualified but agent attached", StatusQualified, true, false},
		{"assigned", StatusAssigned, true, false},
		{"opted out", StatusDoNotContact, false, false},
		{"closed", StatusClosed, false, false},
		{"unknown status", Status("nurturing"), false, false},
		{"empty status", Status(""), false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanRunPipeline(tt.status, tt.assigned); got != tt.want {
				t.Errorf("CanRunPipeline(%s, %v) = %v, want %v", tt.status, tt.assigned, got, tt.want)
			}
		})
	}
}

func TestCanTransition(t *testing.T) {
	if !CanTransition(StatusNew, StatusQualifying) {
		t.Fatal("expected new -> qualifying")
	}
	if !CanTransition(StatusQualified, StatusAssigned) {
		t.Fatal("expected qualified -> assigned")
	}
	if CanTransition(StatusNew, StatusAssigned) {
		t.Fatal("unqualified lead must not be assigned")
	}
	if CanTransition(StatusDoNotContact, StatusQualifying) {
		t.Fatal("opted-out lead must not re-enter qualification")
	}
	if CanTransition(StatusAssigned, StatusQualified) {
		t.Fatal("assigned lead must not be demoted")
	}
}

func TestNextStatusAfterReply(t *testing.T) {
	if got := NextStatusAfterReply(StatusNew, false); got != StatusQualifying {
		t.Fatalf("expected qualifying, got %s", got)
	}
	if got := NextStatusAfterReply(StatusQualifying, true); got != StatusQualified {
		t.Fatalf("expected qualified, got %s", got)
	}
	if got := NextStatusAfterReply(StatusQualified, false); got != StatusQualified {
		t.Fatalf("qualified lead must stay qualified, got %s", got)
	}
}
