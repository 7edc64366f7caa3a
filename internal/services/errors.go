package services

import (
	"errors"
	"fmt"
	"strings"
)

// Failure markers. Run-fatal markers abort the whole batch; the rest are
// recorded against a single edition.
var (
	ErrAuth          = errors.New("authentication error")
	ErrDiscovery     = errors.New("discovery error")
	ErrScrape        = errors.New("scrape error")
	ErrBuild         = errors.New("build error")
	ErrDelivery      = errors.New("delivery error")
	ErrLedgerIO      = errors.New("ledger io error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrTransient     = errors.New("transient failure")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// RunFatal reports whether err must abort the whole run rather than a single
// edition.
func RunFatal(err error) bool {
	return errors.Is(err, ErrAuth) ||
		errors.Is(err, ErrDiscovery) ||
		errors.Is(err, ErrLedgerIO) ||
		errors.Is(err, ErrConfiguration)
}

// Kind returns a short label for the outermost recognised marker in err.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAuth):
		return "auth"
	case errors.Is(err, ErrDiscovery):
		return "discovery"
	case errors.Is(err, ErrLedgerIO):
		return "ledger_io"
	case errors.Is(err, ErrScrape):
		return "scrape"
	case errors.Is(err, ErrBuild):
		return "build"
	case errors.Is(err, ErrDelivery):
		return "delivery"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrTransient):
		return "transient"
	default:
		return "unknown"
	}
}

// Hint returns an operator-facing next step for err.
func Hint(err error) string {
	switch Kind(err) {
	case "auth":
		return "check site credentials or run 'quire session reset'"
	case "discovery":
		return "the index layout may have changed; review selectors.edition_link"
	case "ledger_io":
		return "check permissions and free space for paths.ledger_db"
	case "scrape":
		return "the edition page may be unreachable or its layout changed"
	case "build":
		return "run 'quire doctor' to verify the converter is installed"
	case "delivery":
		return "check SMTP credentials and destination addresses"
	case "configuration":
		return "run 'quire config validate'"
	default:
		return "check logs for details"
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
