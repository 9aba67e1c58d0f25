package regulatory

import (
	"context"
	"strings"

	"github.com/turtacn/RxDossier/internal/domain/candidate"
)

// essentialMedicines is a bundled subset of the WHO Model List of Essential
// Medicines.  The list ships with the binary; the checker never performs
// network I/O.
var essentialMedicines = []string{
	"paracetamol", "acetaminophen", "ibuprofen", "aspirin", "morphine",
	"codeine", "tramadol", "amoxicillin", "ampicillin", "penicillin",
	"metformin", "insulin", "atenolol", "amlodipine", "lisinopril",
	"simvastatin", "atorvastatin", "omeprazole", "ranitidine",
	"salbutamol", "prednisolone", "hydrocortisone", "furosemide",
}

// WHOEMLChecker answers from the bundled essential-medicines list.
type WHOEMLChecker struct {
	medicines []string
}

var _ Checker = (*WHOEMLChecker)(nil)

// NewWHOEMLChecker constructs the static-list checker.
func NewWHOEMLChecker() *WHOEMLChecker {
	return &WHOEMLChecker{medicines: essentialMedicines}
}

// Authority implements Checker.
func (c *WHOEMLChecker) Authority() string { return AuthorityWHOEML }

// Check implements Checker.  Matching is bidirectional-substring so that
// salt forms ("metformin hydrochloride") still hit their base entry.
func (c *WHOEMLChecker) Check(_ context.Context, inn string) (candidate.RegulatoryCheckResult, error) {
	lower := strings.ToLower(strings.TrimSpace(inn))
	if lower != "" {
		for _, med := range c.medicines {
			if strings.Contains(lower, med) || strings.Contains(med, lower) {
				return candidate.RegulatoryCheckResult{
					Authority: AuthorityWHOEML,
					Status:    candidate.RegulatoryApproved,
					Detail:    "listed as " + med,
				}, nil
			}
		}
	}
	return candidate.RegulatoryCheckResult{
		Authority: AuthorityWHOEML,
		Status:    candidate.RegulatoryNotFound,
		Detail:    "not on the essential medicines list",
	}, nil
}
