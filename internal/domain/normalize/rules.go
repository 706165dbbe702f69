package normalize

import (
	"regexp"
	"strings"
)

// merchantRule maps a descriptor pattern to a canonical merchant name.
type merchantRule struct {
	pattern *regexp.Regexp
	name    string
}

// RuleSet holds the ordered normalization rules for a session. Zero value is
// not usable; construct with DefaultRules and extend with AddMerchantRule.
type RuleSet struct {
	noise         []*regexp.Regexp
	merchants     []merchantRule
	transferRes   []*regexp.Regexp
	feeRes        []*regexp.Regexp
	incomeRes     []*regexp.Regexp
	foreignRes    []*regexp.Regexp
	conversionFee *regexp.Regexp
}

// DefaultRules returns the built-in rule set.
func DefaultRules() *RuleSet {
	return &RuleSet{
		noise: []*regexp.Regexp{
			// card-network and POS prefixes
			regexp.MustCompile(`(?i)^(VISA|MASTERCARD|MAESTRO|POS|PURCHASE|PAYMENT|EFTPOS|SQ \*|PAYPAL \*|PP\*)\s*`),
			// trailing store/terminal/reference numbers
			regexp.MustCompile(`\s+#?\d{3,}$`),
			// trailing city + state/country codes ("SYDNEY NSW", "PORTLAND OR US")
			regexp.MustCompile(`\s+[A-Z]{2,}[/ ][A-Z]{2,3}( [A-Z]{2})?$`),
			// embedded reference blobs ("*2K4F7", "P21E4FA1B2")
			regexp.MustCompile(`\s*\*[A-Z0-9]{4,}\b`),
			// trailing dates ("12/01")
			regexp.MustCompile(`\s+\d{1,2}/\d{1,2}/?$`),
			// card suffixes ("CARD 1234", "xx1234")
			regexp.MustCompile(`(?i)\s+(card\s+|xx)\d{2,4}$`),
		},
		merchants: []merchantRule{
			{regexp.MustCompile(`WOOLWORTHS|WOOLIES`), "Woolworths"},
			{regexp.MustCompile(`COLES(?:\s|$)`), "Coles"},
			{regexp.MustCompile(`ALDI\b`), "Aldi"},
			{regexp.MustCompile(`AMAZON|AMZN`), "Amazon"},
			{regexp.MustCompile(`UBER\s*EATS`), "Uber Eats"},
			{regexp.MustCompile(`\bUBER\b`), "Uber"},
			{regexp.MustCompile(`NETFLIX`), "Netflix"},
			{regexp.MustCompile(`SPOTIFY`), "Spotify"},
			{regexp.MustCompile(`MC\s*DONALDS|MCDONALD`), "McDonald's"},
			{regexp.MustCompile(`STARBUCKS`), "Starbucks"},
			{regexp.MustCompile(`SHELL\b|BP CONNECT|CALTEX`), "Fuel Station"},
			{regexp.MustCompile(`PAYPAL`), "PayPal"},
			{regexp.MustCompile(`APPLE\.COM|ITUNES`), "Apple"},
			{regexp.MustCompile(`GOOGLE\s*\*?`), "Google"},
		},
		transferRes: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(transfer|tfr|trf)\b`),
			regexp.MustCompile(`(?i)\bto (savings|checking|offset)\b`),
			regexp.MustCompile(`(?i)\bbpay\b`),
			regexp.MustCompile(`(?i)internal (txn|transaction)`),
		},
		feeRes: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bfee\b`),
			regexp.MustCompile(`(?i)\bcharge\b`),
			regexp.MustCompile(`(?i)account service`),
			regexp.MustCompile(`(?i)\binterest\b`),
		},
		incomeRes: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bsalary\b`),
			regexp.MustCompile(`(?i)direct credit`),
			regexp.MustCompile(`(?i)\bpayroll\b`),
			regexp.MustCompile(`(?i)\brefund\b`),
		},
		foreignRes: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bintl\b`),
			regexp.MustCompile(`(?i)international`),
			regexp.MustCompile(`(?i)foreign (currency|txn|transaction)`),
			regexp.MustCompile(`(?i)\bfx rate\b`),
			regexp.MustCompile(`(?i)exchange rate`),
		},
		conversionFee: regexp.MustCompile(`(?i)(conversion|intl|foreign).{0,20}fee`),
	}
}

// AddMerchantRule appends a canonical-name rule. Later rules only fire when
// no earlier rule matched, so built-ins keep priority.
func (rs *RuleSet) AddMerchantRule(pattern, name string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	rs.merchants = append(rs.merchants, merchantRule{pattern: re, name: name})
	return nil
}

func (rs *RuleSet) stripNoise(raw string) string {
	s := strings.TrimSpace(raw)
	for _, re := range rs.noise {
		s = re.ReplaceAllString(s, "")
	}
	return strings.Join(strings.Fields(s), " ")
}

// classifyKind decides what a line is. Description evidence outranks the
// amount sign: a positive "TRANSFER FROM SAVINGS" is still a transfer.
func (rs *RuleSet) classifyKind(desc string, amountCents int64) Kind {
	for _, re := range rs.transferRes {
		if re.MatchString(desc) {
			return KindTransfer
		}
	}
	for _, re := range rs.feeRes {
		if re.MatchString(desc) {
			return KindFee
		}
	}
	for _, re := range rs.incomeRes {
		if re.MatchString(desc) {
			return KindIncome
		}
	}
	if amountCents > 0 {
		return KindIncome
	}
	if amountCents == 0 {
		return KindIgnore
	}
	return KindExpense
}

func (rs *RuleSet) isForeign(desc string) bool {
	for _, re := range rs.foreignRes {
		if re.MatchString(desc) {
			return true
		}
	}
	return false
}

func (rs *RuleSet) isConversionFee(desc string) bool {
	return rs.conversionFee.MatchString(desc)
}
