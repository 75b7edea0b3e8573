package taxonomy

import "regexp"

var (
	trailingNAICSRe = regexp.MustCompile(`(\d{4})$`)
	firstNAICSRe    = regexp.MustCompile(`\d{4}`)
	looseNAICSRe    = regexp.MustCompile(`\d{4,6}`)
)

// NAICSFromSeriesID extracts the 4-digit industry code from the tail of a
// QCEW series ID (e.g. "ENU2600020523361" -> "3361"). Series IDs encode
// area and data type before the industry, so only a trailing match counts.
func NAICSFromSeriesID(seriesID string) (string, bool) {
	m := trailingNAICSRe.FindStringSubmatch(seriesID)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// NAICSFromMnemonic extracts the first 4-digit run from a Moody's series
// mnemonic (e.g. "MIWEMP3361Q" -> "3361"). Mnemonics put the industry in
// the middle, so the first run wins.
func NAICSFromMnemonic(mnemonic string) (string, bool) {
	code := firstNAICSRe.FindString(mnemonic)
	return code, code != ""
}

// NAICS4 extracts an industry code of 4 to 6 digits and truncates it to the
// 4-digit level. Attribution share tables mix granularities; everything in
// this pipeline joins at 4 digits.
func NAICS4(s string) (string, bool) {
	code := looseNAICSRe.FindString(s)
	if code == "" {
		return "", false
	}
	return code[:4], true
}
