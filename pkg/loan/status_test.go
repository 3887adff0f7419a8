package loan

import (
	"encoding/json"
	"testing"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from Status
		to   Status
		want bool
	}{
		{"created to validating", StatusCreated, StatusValidating, true},
		{"validating to verifying", StatusValidating, StatusVerifyingDocuments, true},
		{"validating to rejected", StatusValidating, StatusRejected, true},
		{"verifying to awaiting", StatusVerifyingDocuments, StatusAwaitingDocuments, true},
		{"verifying to credit", StatusVerifyingDocuments, StatusCheckingCredit, true},
		{"awaiting resumes to verifying", StatusAwaitingDocuments, StatusVerifyingDocuments, true},
		{"credit to risk", StatusCheckingCredit, StatusAssessingRisk, true},
		{"credit to failed", StatusCheckingCredit, StatusFailed, true},
		{"risk to deciding", StatusAssessingRisk, StatusDeciding, true},
		{"deciding to review", StatusDeciding, StatusPendingHumanReview, true},
		{"deciding to counter offer", StatusDeciding, StatusCounterOffered, true},
		{"review to approved", StatusPendingHumanReview, StatusApproved, true},
		{"review to counter offer", StatusPendingHumanReview, StatusCounterOffered, true},

		{"no backward transition", StatusCheckingCredit, StatusValidating, false},
		{"no skip to deciding", StatusValidating, StatusDeciding, false},
		{"terminal approved has no exits", StatusApproved, StatusRejected, false},
		{"terminal failed has no exits", StatusFailed, StatusValidating, false},
		{"awaiting cannot jump to credit", StatusAwaitingDocuments, StatusCheckingCredit, false},
		{"deciding cannot fail", StatusDeciding, StatusFailed, false},
		{"review cannot fail", StatusPendingHumanReview, StatusFailed, false},
		{"created cannot reject directly", StatusCreated, StatusRejected, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestTerminalStatesHaveNoOutgoingEdges(t *testing.T) {
	for _, s := range AllStatuses() {
		if !s.IsTerminal() {
			continue
		}
		if got := TransitionsFrom(s); len(got) != 0 {
			t.Errorf("terminal status %s has outgoing transitions %v", s, got)
		}
	}
}

func TestStatusClassification(t *testing.T) {
	terminal := 0
	suspended := 0
	active := 0
	for _, s := range AllStatuses() {
		if err := s.Validate(); err != nil {
			t.Errorf("status %s failed validation: %v", s, err)
		}
		if s.IsTerminal() {
			terminal++
		}
		if s.IsSuspended() {
			suspended++
		}
		if s.IsActive() {
			active++
		}
		if s.IsTerminal() && s.IsSuspended() {
			t.Errorf("status %s is both terminal and suspended", s)
		}
		if s.IsTerminal() && s.IsActive() {
			t.Errorf("status %s is both terminal and active", s)
		}
	}
	if terminal != 4 {
		t.Errorf("expected 4 terminal statuses, got %d", terminal)
	}
	if suspended != 2 {
		t.Errorf("expected 2 suspended statuses, got %d", suspended)
	}
	if active != 5 {
		t.Errorf("expected 5 active statuses, got %d", active)
	}
}

func TestStatusValidateRejectsUnknown(t *testing.T) {
	if err := Status("funded").Validate(); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestStatusJSONRoundTrip(t *testing.T) {
	raw, err := json.Marshal(StatusPendingHumanReview)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != `"pending_human_review"` {
		t.Errorf("unexpected marshaled form: %s", raw)
	}

	var s Status
	if err := json.Unmarshal(raw, &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if s != StatusPendingHumanReview {
		t.Errorf("round trip changed status: %s", s)
	}

	if err := json.Unmarshal([]byte(`"bogus"`), &s); err == nil {
		t.Error("expected unmarshal error for unknown status")
	}
}

func TestStageFor(t *testing.T) {
	tests := []struct {
		status Status
		want   Stage
	}{
		{StatusValidating, StageValidate},
		{StatusVerifyingDocuments, StageVerifyDocuments},
		{StatusAwaitingDocuments, StageVerifyDocuments},
		{StatusCheckingCredit, StageCreditCheck},
		{StatusAssessingRisk, StageAssessRisk},
		{StatusDeciding, StageDecide},
		{StatusPendingHumanReview, StageHumanReview},
		{StatusCreated, ""},
		{StatusApproved, ""},
		{StatusFailed, ""},
	}
	for _, tt := range tests {
		if got := StageFor(tt.status); got != tt.want {
			t.Errorf("StageFor(%s) = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestEveryNonTerminalStatusReachesATerminal(t *testing.T) {
	// BFS over the transition table from each status.
	for _, start := range AllStatuses() {
		if start.IsTerminal() {
			continue
		}
		seen := map[Status]bool{start: true}
		queue := []Status{start}
		reached := false
		for len(queue) > 0 && !reached {
			cur := queue[0]
			queue = queue[1:]
			for _, next := range TransitionsFrom(cur) {
				if next.IsTerminal() {
					reached = true
					break
				}
				if !seen[next] {
					seen[next] = true
					queue = append(queue, next)
				}
			}
		}
		if !reached {
			t.Errorf("status %s cannot reach a terminal state", start)
		}
	}
}
