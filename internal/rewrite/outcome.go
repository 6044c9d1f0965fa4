package rewrite

import "fmt"

// Kind tags an Outcome variant.
type Kind int

const (
	KindSuccess Kind = iota
	KindNoTextSelected
	KindAuthRequired
	KindAuthExpired
	KindRateLimited
	KindQuotaExceeded
	KindValidationError
	KindNetworkError
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindNoTextSelected:
		return "no_text_selected"
	case KindAuthRequired:
		return "auth_required"
	case KindAuthExpired:
		return "auth_expired"
	case KindRateLimited:
		return "rate_limited"
	case KindQuotaExceeded:
		return "quota_exceeded"
	case KindValidationError:
		return "validation_error"
	case KindNetworkError:
		return "network_error"
	default:
		return "unknown"
	}
}

// Usage is the remaining-quota snapshot returned with a successful rewrite.
type Usage struct {
	RemainingToday int     `json:"remainingToday"`
	DailyLimit     int     `json:"dailyLimit"`
	PercentUsed    float64 `json:"percentUsed"`
}

// Plan describes the user's subscription plan.
type Plan struct {
	Name     string   `json:"name"`
	Features []string `json:"features"`
}

// Outcome is the classified result of one rewrite (or subscription) call.
// Exactly one variant applies per call; the fields beyond Kind are populated
// per-variant as documented.
type Outcome struct {
	Kind Kind

	// Success
	Text  string
	Usage *Usage
	Plan  *Plan

	// RateLimited
	RetryAfter int // seconds; 0 when the server did not say

	// QuotaExceeded
	PlanName string

	// ValidationError
	Message string

	// NetworkError
	Err error

	// Unknown
	Code string
	Raw  string
}

func (o Outcome) String() string {
	switch o.Kind {
	case KindRateLimited:
		return fmt.Sprintf("%s(retry_after=%ds)", o.Kind, o.RetryAfter)
	case KindQuotaExceeded:
		return fmt.Sprintf("%s(plan=%s)", o.Kind, o.PlanName)
	case KindValidationError:
		return fmt.Sprintf("%s(%s)", o.Kind, o.Message)
	case KindUnknown:
		return fmt.Sprintf("%s(code=%s)", o.Kind, o.Code)
	default:
		return o.Kind.String()
	}
}
