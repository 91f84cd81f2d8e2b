package audit

import (
	"context"
	"errors"
	"time"

	"github.com/rhuss/modelserve/pkg/api"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("audit record not found")

// OutcomeOK is the outcome of a request that produced a result.
const OutcomeOK = "ok"

// Record describes one handled request.
type Record struct {
	ID         string
	Time       time.Time
	RequestID  string
	Kind       api.Kind
	Protocol   string
	RemoteAddr string
	Subject    string

	// Outcome is OutcomeOK or the error type of a failed request.
	Outcome  string
	Duration time.Duration
}

// ListOptions filters and bounds List results. Records are returned newest
// first.
type ListOptions struct {
	// Limit caps the number of records. Zero means DefaultListLimit.
	Limit int

	// Subject, when set, keeps only records of that caller.
	Subject string

	// Kind, when set, keeps only records of that command kind.
	Kind api.Kind
}

// DefaultListLimit applies when ListOptions.Limit is zero.
const DefaultListLimit = 100

// EffectiveLimit returns the limit to apply for o.
func (o ListOptions) EffectiveLimit() int {
	if o.Limit <= 0 {
		return DefaultListLimit
	}
	return o.Limit
}

// Matches reports whether r passes the filters of o.
func (o ListOptions) Matches(r Record) bool {
	if o.Subject != "" && r.Subject != o.Subject {
		return false
	}
	if o.Kind != "" && r.Kind != o.Kind {
		return false
	}
	return true
}

// Sink persists audit records.
type Sink interface {
	Append(ctx context.Context, rec Record) error
	Get(ctx context.Context, id string) (Record, error)
	List(ctx context.Context, opts ListOptions) ([]Record, error)
	HealthCheck(ctx context.Context) error
	Close() error
}
