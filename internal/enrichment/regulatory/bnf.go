package regulatory

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/turtacn/RxDossier/internal/domain/candidate"
	"github.com/turtacn/RxDossier/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/RxDossier/pkg/errors"
)

// bnfContextWindow is how many characters around the first mention are kept
// as the result detail.
const bnfContextWindow = 200

// BNFChecker searches locally stored formulary text (one .txt file per
// edition, e.g. adult and children) for mentions of the INN.  The corpus is
// loaded once at construction; Check is pure string matching and never
// fails transiently.
type BNFChecker struct {
	editions map[string]string // edition name -> lowercased content
	logger   logging.Logger
}

var _ Checker = (*BNFChecker)(nil)

// NewBNFChecker loads every .txt file under corpusDir as one edition, named
// after the file.  A missing or empty directory yields a checker that
// answers not-found with an explanatory detail rather than an error.
func NewBNFChecker(corpusDir string, logger logging.Logger) (*BNFChecker, error) {
	c := &BNFChecker{
		editions: make(map[string]string),
		logger:   logger.Named("bnf"),
	}
	if corpusDir == "" {
		return c, nil
	}

	entries, err := os.ReadDir(corpusDir)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to read formulary corpus directory").
			WithDetail(corpusDir)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		content, err := os.ReadFile(filepath.Join(corpusDir, entry.Name()))
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to read formulary file").
				WithDetail(entry.Name())
		}
		edition := strings.TrimSuffix(entry.Name(), ".txt")
		c.editions[edition] = string(content)
		c.logger.Info("loaded formulary edition",
			logging.String("edition", edition),
			logging.Int("bytes", len(content)),
		)
	}
	return c, nil
}

// Authority implements Checker.
func (c *BNFChecker) Authority() string { return AuthorityBNF }

// Check implements Checker.
func (c *BNFChecker) Check(_ context.Context, inn string) (candidate.RegulatoryCheckResult, error) {
	if len(c.editions) == 0 {
		return candidate.RegulatoryCheckResult{
			Authority: AuthorityBNF,
			Status:    candidate.RegulatoryNotFound,
			Detail:    "no formulary corpus loaded",
		}, nil
	}

	pattern, err := mentionPattern(inn)
	if err != nil {
		return candidate.RegulatoryCheckResult{
			Authority: AuthorityBNF,
			Status:    candidate.RegulatoryNotFound,
			Detail:    "name not searchable",
		}, nil
	}

	var foundIn []string
	var snippet string
	for edition, content := range c.editions {
		loc := pattern.FindStringIndex(content)
		if loc == nil {
			continue
		}
		foundIn = append(foundIn, edition)
		if snippet == "" {
			snippet = contextAround(content, loc[0], loc[1])
		}
	}
	if len(foundIn) == 0 {
		return candidate.RegulatoryCheckResult{
			Authority: AuthorityBNF,
			Status:    candidate.RegulatoryNotFound,
			Detail:    "not mentioned in loaded formularies",
		}, nil
	}

	sort.Strings(foundIn)
	return candidate.RegulatoryCheckResult{
		Authority: AuthorityBNF,
		Status:    candidate.RegulatoryApproved,
		Detail:    "found in " + strings.Join(foundIn, ", ") + ": " + snippet,
	}, nil
}

// mentionPattern matches the name on a word boundary, tolerating a plural
// "s" suffix.
func mentionPattern(name string) (*regexp.Regexp, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return nil, errors.New(errors.ErrCodeValidation, "empty name")
	}
	return regexp.Compile(`(?i)\b` + regexp.QuoteMeta(trimmed) + `s?\b`)
}

func contextAround(content string, start, end int) string {
	lo := start - bnfContextWindow/2
	if lo < 0 {
		lo = 0
	}
	hi := end + bnfContextWindow
	if hi > len(content) {
		hi = len(content)
	}
	return strings.Join(strings.Fields(content[lo:hi]), " ")
}
