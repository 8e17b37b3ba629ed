package record

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/idna"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/yourorg/guest-provisioner/internal/types"
)

var (
	// ErrMalformed indicates an operator record line with too few fields.
	ErrMalformed = errors.New("malformed operator record")
	// ErrInvalidEmail indicates a value that is not an email address.
	ErrInvalidEmail = errors.New("invalid email address")
)

// Operator records are whitespace separated with at least six fields:
// email, password, then the provider credentials after a reserved column.
const minFields = 6

var (
	wsRe    = regexp.MustCompile(`\s+`)
	titler  = cases.Title(language.Und)
	nameSep = strings.NewReplacer(".", " ", "_", " ", "-", " ")
)

// Parse parses one operator record line.
func Parse(line string) (types.Operator, error) {
	fields := wsRe.Split(strings.TrimSpace(line), -1)
	if len(fields) < minFields {
		return types.Operator{}, fmt.Errorf("%w: %d fields", ErrMalformed, len(fields))
	}
	domain, err := OperatorDomain(fields[0])
	if err != nil {
		return types.Operator{}, err
	}
	return types.Operator{
		Email:        fields[0],
		Password:     fields[1],
		ClientSecret: fields[3],
		ClientID:     fields[4],
		TenantID:     fields[5],
		Domain:       domain,
	}, nil
}

// ParseAll parses every line, skipping blanks and malformed records.
// It returns the valid operators and the number of lines skipped.
func ParseAll(lines []string) ([]types.Operator, int) {
	ops := make([]types.Operator, 0, len(lines))
	skipped := 0
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		op, err := Parse(line)
		if err != nil {
			skipped++
			continue
		}
		ops = append(ops, op)
	}
	return ops, skipped
}

// SplitEmail returns the local and domain parts of an email address.
func SplitEmail(email string) (local, domain string, err error) {
	at := strings.LastIndexByte(email, '@')
	if at <= 0 || at == len(email)-1 {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidEmail, email)
	}
	return email[:at], email[at+1:], nil
}

// OperatorDomain derives the operator's tenant domain from its own email,
// normalized to lowercase ASCII (punycode for IDN domains).
func OperatorDomain(email string) (string, error) {
	_, domain, err := SplitEmail(email)
	if err != nil {
		return "", err
	}
	ascii, err := idna.Lookup.ToASCII(strings.ToLower(domain))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidEmail, email)
	}
	return ascii, nil
}

// DisplayName derives a human display name from a candidate email:
// the local part with separators turned into spaces, title-cased.
func DisplayName(email string) string {
	local := email
	if i := strings.IndexByte(email, '@'); i >= 0 {
		local = email[:i]
	}
	return titler.String(nameSep.Replace(local))
}

// MailNickname is the local part of the candidate email, unchanged.
func MailNickname(email string) string {
	if i := strings.IndexByte(email, '@'); i >= 0 {
		return email[:i]
	}
	return email
}

// PrincipalName builds the external-guest UPN the provider expects:
// the candidate email with '@' replaced by '_', the #EXT# marker, then
// the operator's domain.
func PrincipalName(email, operatorDomain string) string {
	return strings.Replace(email, "@", "_", 1) + "#EXT#@" + operatorDomain
}
