package redaction

import "regexp"

const (
	CategoryEmail         = "EMAIL"
	CategorySSN           = "SSN"
	CategoryANumber       = "A_NUMBER"
	CategoryCreditCard    = "CREDIT_CARD"
	CategoryPhone         = "PHONE"
	CategoryDateOfBirth   = "DATE_OF_BIRTH"
	CategoryAccountNumber = "ACCOUNT_NUMBER"
	CategoryStreetAddress = "STREET_ADDRESS"
	CategoryDriverLicense = "DRIVER_LICENSE"
	CategoryZIPCode       = "ZIP_CODE"
	CategoryPersonName    = "PERSON_NAME"
	CategoryCaseNumber    = "CASE_NUMBER"
	CategoryDocketNumber  = "DOCKET_NUMBER"
)

// detector replaces every match of re. When keepPrefix is set the first
// capture group is a label that stays in the text and only the remainder is
// replaced.
type detector struct {
	category   string
	re         *regexp.Regexp
	keepPrefix bool
}

const states = `A[LKZR]|C[AOT]|D[EC]|FL|GA|HI|I[ADLN]|K[SY]|LA|M[ADEINOST]|N[CDEHJMVY]|O[HKR]|PA|RI|S[CD]|T[NX]|UT|V[AT]|W[AIVY]`

const dateValue = `\d{1,2}[/.\-]\d{1,2}[/.\-]\d{2,4}|\d{4}[/.\-]\d{1,2}[/.\-]\d{1,2}|` +
	`(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Sept|Oct|Nov|Dec)[a-z]*\.?\s+\d{1,2},?\s+\d{4}|` +
	`\d{1,2}\s+(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Sept|Oct|Nov|Dec)[a-z]*\.?\s+\d{4}`

func baseCatalog() []detector {
	return []detector{
		{category: CategoryEmail, re: regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`)},
		{category: CategorySSN, re: regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
		{category: CategoryANumber, re: regexp.MustCompile(`\bA-?\d{8,9}\b`)},
		{category: CategoryCreditCard, re: regexp.MustCompile(`\b\d{4}[ \-]?\d{4}[ \-]?\d{4}[ \-]?\d{4}\b`)},
		{category: CategoryPhone, re: regexp.MustCompile(`(?:\+?1[ .\-]?)?(?:\(\d{3}\)\s?|\b\d{3}[ .\-])\d{3}[ .\-]\d{4}\b`)},
		{
			category:   CategoryDateOfBirth,
			re:         regexp.MustCompile(`((?i:\b(?:date\s+of\s+birth|d\.?o\.?b\.?|birth\s*date|born(?:\s+on)?))\s*[:\-]?\s*)(` + dateValue + `)`),
			keepPrefix: true,
		},
		{
			category:   CategoryAccountNumber,
			re:         regexp.MustCompile(`((?i:\b(?:account|acct|routing|iban)(?:\s+(?:no|number|num|#))?)\.?\s*[:#]?\s*)(\d[\d\-]{4,}\d)\b`),
			keepPrefix: true,
		},
		{category: CategoryStreetAddress, re: regexp.MustCompile(`\b\d{1,5}\s+(?:[A-Z][A-Za-z0-9.'\-]*\s+){1,4}(?:Street|St|Avenue|Ave|Road|Rd|Boulevard|Blvd|Lane|Ln|Drive|Dr|Way|Place|Pl|Terrace|Parkway|Pkwy)\b\.?(?:,?\s+(?:Apt|Suite|Unit|#)\.?\s*[A-Za-z0-9\-]+)?`)},
		{category: CategoryDriverLicense, re: regexp.MustCompile(`\b[A-Z]{2}\d{6,8}\b`)},
		{
			category:   CategoryZIPCode,
			re:         regexp.MustCompile(`(\b(?:` + states + `),?\s+)(\d{5}(?:-\d{4})?)\b`),
			keepPrefix: true,
		},
		{
			category:   CategoryPersonName,
			re:         regexp.MustCompile(`(\b(?:Mr|Mrs|Ms|Miss|Dr|Hon|Judge)\.?[ \t]+)([A-Z][a-z]+(?:[ \t]+[A-Z]\.)?(?:[ \t]+[A-Z][a-z'\-]+){0,2})`),
			keepPrefix: true,
		},
		{
			category:   CategoryPersonName,
			re:         regexp.MustCompile(`((?i:\b(?:full\s+name|name|applicant|respondent|petitioner|beneficiary|client|signed\s+by))\s*:\s*)([A-Z][a-z'\-]+(?:[ \t]+[A-Z][a-z'\-]+){1,3})`),
			keepPrefix: true,
		},
	}
}

func legalCatalog() []detector {
	return []detector{
		{
			category:   CategoryCaseNumber,
			re:         regexp.MustCompile(`((?i:\bcase\s+(?:no|number|#))\.?\s*:?\s*)([A-Z0-9\-]*\d[A-Z0-9:\-]*)`),
			keepPrefix: true,
		},
		{category: CategoryCaseNumber, re: regexp.MustCompile(`\b[A-Z]{2,3}\s+\d{2,3}-\d{3,6}\b`)},
		{
			category:   CategoryDocketNumber,
			re:         regexp.MustCompile(`((?i:\bdocket\s+(?:no|number|#))\.?\s*:?\s*)([A-Z0-9\-]*\d[A-Z0-9:\-]*)`),
			keepPrefix: true,
		},
	}
}
