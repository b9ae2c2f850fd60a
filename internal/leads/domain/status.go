// Package domain provides core business rules for the leads bounded context.
package domain

// Status is a lead lifecycle state.
type Status string

const (
	StatusNew          Status = "new"
	StatusQualifying   Status = "qualifying"
	StatusQualified    Status = "qualified"
	StatusAssigned     Status = "assigned"
	StatusDoNotContact Status = "do_not_contact"
	StatusClosed       Status = "closed"
	StatusLost         Status = "lost"
)

// IntentOptOut is the reserved intent recorded for leads that unsubscribed.
const IntentOptOut = "opt_out"

// terminalStatuses are statuses where the inbound pipeline only stores messages.
var terminalStatuses = map[Status]bool{
	StatusAssigned:     true,
	StatusClosed:       true,
	StatusLost:         true,
	StatusDoNotContact: true,
}

var knownStatuses = map[Status]bool{
	StatusNew:          true,
	StatusQualifying:   true,
	StatusQualified:    true,
	StatusAssigned:     true,
	StatusDoNotContact: true,
	StatusClosed:       true,
	StatusLost:         true,
}

// allowedTransitions lists the status writes the automated pipeline may perform.
// Manual transitions (closing, marking lost) happen outside this service.
var allowedTransitions = map[Status]map[Status]bool{
	StatusNew: {
		StatusQualifying:   true,
		StatusQualified:    true,
		StatusDoNotContact: true,
	},
	StatusQualifying: {
		StatusQualifying:   true,
		StatusQualified:    true,
		StatusDoNotContact: true,
	},
	StatusQualified: {
		StatusQualified:    true,
		StatusAssigned:     true,
		StatusDoNotContact: true,
	},
}

// IsKnown reports whether s is a valid lead status.
func (s Status) IsKnown() bool {
	return knownStatuses[s]
}

// IsTerminal reports whether no further automated action is taken for s.
func (s Status) IsTerminal() bool {
	return terminalStatuses[s]
}

// CanRunPipeline is the state-machine gate: opt-out detection and
// qualification run only for known, non-terminal, unassigned leads. A status
// written by another system that this service does not know is store-only.
func CanRunPipeline(status Status, hasAssignedAgent bool) bool {
	return status.IsKnown() && !status.IsTerminal() && !hasAssignedAgent
}

// CanTransition reports whether the pipeline may move a lead from -> to.
func CanTransition(from, to Status) bool {
	return allowedTransitions[from][to]
}

// NextStatusAfterReply is the status a lead takes once the AI has replied:
// qualified when the guard passed, otherwise qualifying.
func NextStatusAfterReply(current Status, qualified bool) Status {
	if qualified {
		return StatusQualified
	}
	if current == StatusQualified {
		// A qualified lead waiting for an agent is never demoted by a later reply.
		return StatusQualified
	}
	return StatusQualifying
}
