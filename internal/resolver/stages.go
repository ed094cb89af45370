package resolver

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"

	"github.com/beleghq/beleg/internal/model"
	"github.com/beleghq/beleg/internal/pattern"
)

// Per-stage confidence levels.
const (
	confidenceIBAN    = 100
	confidenceVAT     = 95
	confidenceWebsite = 90
	confidenceAlias   = 90
	fuzzyFloor        = 60
	fuzzyCeiling      = 90
	fuzzyMinSim       = 0.6
)

func matchIBAN(txn model.Transaction, _ string, partners []model.Partner) []Candidate {
	if txn.CounterpartyIBAN == "" {
		return nil
	}
	var out []Candidate
	for i := range partners {
		if partners[i].HasIBAN(txn.CounterpartyIBAN) {
			out = append(out, Candidate{
				PartnerID:   partners[i].ID,
				PartnerType: partners[i].Type,
				Source:      model.SourceIBAN,
				Confidence:  confidenceIBAN,
				patternIdx:  -1,
			})
		}
	}
	return out
}

func matchLearnedPatterns(_ model.Transaction, text string, partners []model.Partner) []Candidate {
	var out []Candidate
	for i := range partners {
		p := &partners[i]
		idx, conf := pattern.BestMatch(p.LearnedPatterns, p.ManualRemovals, text)
		if idx < 0 {
			continue
		}
		out = append(out, Candidate{
			PartnerID:   p.ID,
			PartnerType: p.Type,
			Source:      model.SourcePattern,
			Confidence:  conf,
			patternIdx:  idx,
		})
	}
	return out
}

func matchVAT(_ model.Transaction, text string, partners []model.Partner) []Candidate {
	normalized := strings.ToLower(strings.ReplaceAll(text, " ", ""))
	var out []Candidate
	for i := range partners {
		vat := strings.ToLower(strings.ReplaceAll(partners[i].VATID, " ", ""))
		if vat == "" || !strings.Contains(normalized, vat) {
			continue
		}
		out = append(out, Candidate{
			PartnerID:   partners[i].ID,
			PartnerType: partners[i].Type,
			Source:      model.SourceVAT,
			Confidence:  confidenceVAT,
			patternIdx:  -1,
		})
	}
	return out
}

func matchWebsite(_ model.Transaction, text string, partners []model.Partner) []Candidate {
	var out []Candidate
	for i := range partners {
		domain := normalizeDomain(partners[i].Website)
		if domain == "" || !strings.Contains(text, domain) {
			continue
		}
		out = append(out, Candidate{
			PartnerID:   partners[i].ID,
			PartnerType: partners[i].Type,
			Source:      model.SourceWebsite,
			Confidence:  confidenceWebsite,
			patternIdx:  -1,
		})
	}
	return out
}

func matchAliases(_ model.Transaction, text string, partners []model.Partner) []Candidate {
	var out []Candidate
	for i := range partners {
		for _, alias := range partners[i].Aliases {
			if !pattern.Match(alias, text) {
				continue
			}
			out = append(out, Candidate{
				PartnerID:   partners[i].ID,
				PartnerType: partners[i].Type,
				Source:      model.SourceAlias,
				Confidence:  confidenceAlias,
				patternIdx:  -1,
			})
			break
		}
	}
	return out
}

func matchFuzzyName(txn model.Transaction, text string, partners []model.Partner) []Candidate {
	hint := normalizeName(txn.CounterpartyName)
	var out []Candidate
	for i := range partners {
		sim := 0.0
		names := append([]string{partners[i].Name}, partners[i].Aliases...)
		for _, name := range names {
			n := normalizeName(strings.Trim(name, "*"))
			if n == "" {
				continue
			}
			if s := similarity(n, hint, text); s > sim {
				sim = s
			}
		}
		if sim < fuzzyMinSim {
			continue
		}
		conf := fuzzyFloor + int(sim*float64(fuzzyCeiling-fuzzyFloor)+0.5)
		if conf > fuzzyCeiling {
			conf = fuzzyCeiling
		}
		out = append(out, Candidate{
			PartnerID:   partners[i].ID,
			PartnerType: partners[i].Type,
			Source:      model.SourceFuzzy,
			Confidence:  conf,
			patternIdx:  -1,
		})
	}
	return out
}

// similarity scores a partner name against the counterparty hint and the
// full free text. A substring hit in the free text counts as a full
// match; otherwise edit distance against the hint decides.
func similarity(name, hint, text string) float64 {
	if strings.Contains(normalizeName(text), name) {
		return 1.0
	}
	if hint == "" {
		return 0
	}
	dist := levenshtein.ComputeDistance(name, hint)
	longest := len(name)
	if len(hint) > longest {
		longest = len(hint)
	}
	if longest == 0 {
		return 0
	}
	return 1.0 - float64(dist)/float64(longest)
}

// normalizeName lowercases and strips everything but letters, digits and
// single spaces.
func normalizeName(s string) string {
	var b strings.Builder
	lastSpace := true
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		default:
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// normalizeDomain reduces a website URL to its bare host.
func normalizeDomain(website string) string {
	s := strings.ToLower(strings.TrimSpace(website))
	if s == "" {
		return ""
	}
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimPrefix(s, "www.")
	if idx := strings.IndexByte(s, '/'); idx >= 0 {
		s = s[:idx]
	}
	return s
}

// resemblesCompanyName gates the AI lookup: the text must carry at least
// one stable word that is not a reference number or date fragment.
func resemblesCompanyName(text string) bool {
	for _, token := range strings.Fields(text) {
		letters := 0
		digits := 0
		for _, r := range token {
			switch {
			case unicode.IsLetter(r):
				letters++
			case unicode.IsDigit(r):
				digits++
			}
		}
		if letters >= 3 && letters > digits {
			return true
		}
	}
	return false
}
