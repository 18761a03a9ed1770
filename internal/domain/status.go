package domain

import (
	"fmt"
	"time"
)

// LoanStatus is the workflow state of a loan application
type LoanStatus string

const (
	StatusSubmitted   LoanStatus = "SUBMITTED"
	StatusUnderReview LoanStatus = "UNDER_REVIEW"
	StatusAssessed    LoanStatus = "ASSESSED"
	StatusApproved    LoanStatus = "APPROVED"
	StatusRejected    LoanStatus = "REJECTED"
	StatusDisbursed   LoanStatus = "DISBURSED"
)

// AllStatuses lists every status in pipeline order
var AllStatuses = []LoanStatus{
	StatusSubmitted,
	StatusUnderReview,
	StatusAssessed,
	StatusApproved,
	StatusRejected,
	StatusDisbursed,
}

// StatusInfo carries the presentation metadata of a status
type StatusInfo struct {
	DisplayName string        `json:"display_name"`
	SLA         time.Duration `json:"sla"`
	Terminal    bool          `json:"terminal"`
}

// StatusCatalog is the single lookup table for display names, SLA windows and terminality.
// A zero SLA means the status has no deadline.
var StatusCatalog = map[LoanStatus]StatusInfo{
	StatusSubmitted:   {DisplayName: "Submitted", SLA: 24 * time.Hour},
	StatusUnderReview: {DisplayName: "Under review", SLA: 48 * time.Hour},
	StatusAssessed:    {DisplayName: "Assessed", SLA: 48 * time.Hour},
	StatusApproved:    {DisplayName: "Approved", SLA: 72 * time.Hour},
	StatusRejected:    {DisplayName: "Rejected", Terminal: true},
	StatusDisbursed:   {DisplayName: "Disbursed", Terminal: true},
}

// transitions holds the only legal edges of the state machine
var transitions = map[LoanStatus][]LoanStatus{
	StatusSubmitted:   {StatusUnderReview},
	StatusUnderReview: {StatusAssessed, StatusRejected},
	StatusAssessed:    {StatusApproved, StatusRejected},
	StatusApproved:    {StatusDisbursed},
}

// ParseStatus converts a raw string into a LoanStatus
func ParseStatus(s string) (LoanStatus, error) {
	status := LoanStatus(s)
	if _, ok := StatusCatalog[status]; !ok {
		return "", fmt.Errorf("invalid loan status: %q", s)
	}
	return status, nil
}

func (s LoanStatus) String() string {
	return string(s)
}

// Valid reports whether s is one of the defined statuses
func (s LoanStatus) Valid() bool {
	_, ok := StatusCatalog[s]
	return ok
}

// Info returns the catalog entry for s
func (s LoanStatus) Info() StatusInfo {
	return StatusCatalog[s]
}

// IsTerminal reports whether no further transition can leave s
func (s LoanStatus) IsTerminal() bool {
	return StatusCatalog[s].Terminal
}

// CanTransition reports whether from -> to is an edge of the state machine
func CanTransition(from, to LoanStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Section is a back-office desk working one slice of the pipeline
type Section string

const (
	SectionIntake       Section = "intake"
	SectionAssessment   Section = "assessment"
	SectionDisbursement Section = "disbursement"
)

var sectionQueues = map[Section][]LoanStatus{
	SectionIntake:       {StatusSubmitted},
	SectionAssessment:   {StatusUnderReview, StatusAssessed},
	SectionDisbursement: {StatusApproved, StatusDisbursed},
}

// actionable lists the statuses a section can still move forward
var actionable = map[Section][]LoanStatus{
	SectionIntake:       {StatusSubmitted},
	SectionAssessment:   {StatusUnderReview, StatusAssessed},
	SectionDisbursement: {StatusApproved},
}

// ParseSection converts a raw string into a Section
func ParseSection(s string) (Section, error) {
	section := Section(s)
	if _, ok := sectionQueues[section]; !ok {
		return "", fmt.Errorf("invalid section: %q", s)
	}
	return section, nil
}

// QueueStatuses returns the statuses listed on a section's queue
func (s Section) QueueStatuses() []LoanStatus {
	return sectionQueues[s]
}

// CanModify reports whether the section may still act on the application
func CanModify(app *LoanApplication, section Section) bool {
	if app == nil {
		return false
	}
	for _, status := range actionable[section] {
		if app.Status == status {
			return true
		}
	}
	return false
}
