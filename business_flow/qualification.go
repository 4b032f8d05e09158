package businessflow

import (
	"strings"
	"unicode"

	"github.com/linkdms/linkdms/models"
)

// studentSignals mark profiles too early-career to contact regardless of the
// campaign's own exclusion list
var studentSignals = []string{
	"student",
	"intern",
	"internship",
	"entry level",
	"entry-level",
	"undergraduate",
	"graduate student",
	"aspiring",
	"seeking opportunities",
	"looking for opportunities",
}

// founderSignals trigger the broad-targeting acceptance carve-out
var founderSignals = []string{
	"founder",
	"co-founder",
	"cofounder",
	"startup",
	"entrepreneur",
	"owner",
	"self-employed",
}

// senioritySynonyms maps a configured seniority level to the phrasings that
// count as a match in profile text
var senioritySynonyms = map[string][]string{
	"director": {"director", "head of", "vp", "vice president"},
	"vp":       {"vp", "vice president"},
	"c-level":  {"ceo", "cto", "cfo", "coo", "cmo", "chief"},
	"executive": {"executive", "ceo", "cto", "cfo", "coo", "chief",
		"president", "managing director"},
	"manager": {"manager", "lead", "head of"},
	"senior":  {"senior", "sr.", "principal", "staff"},
	"founder": {"founder", "co-founder", "owner"},
}

// femaleNames and maleNames back the first-name gender heuristic. The lists
// are deliberately short; any name not listed is treated as unknown and passes.
var femaleNames = map[string]bool{
	"mary": true, "jennifer": true, "linda": true, "elizabeth": true,
	"susan": true, "jessica": true, "sarah": true, "karen": true,
	"lisa": true, "nancy": true, "emily": true, "anna": true,
	"maria": true, "laura": true, "emma": true, "olivia": true,
	"sophia": true, "julia": true, "rachel": true, "hannah": true,
}

var maleNames = map[string]bool{
	"james": true, "robert": true, "john": true, "michael": true,
	"david": true, "william": true, "richard": true, "joseph": true,
	"thomas": true, "daniel": true, "matthew": true, "andrew": true,
	"paul": true, "mark": true, "george": true, "steven": true,
	"kevin": true, "brian": true, "peter": true, "eric": true,
}

// Qualifies decides whether a candidate profile matches the targeting
// criteria. Pure and total; empty criteria accept everything. Checks run in a
// fixed order and the first failing check rejects, with one exception: profiles
// carrying founder/startup signals are accepted ahead of the job-title check.
// The matcher leans inclusive since a missed prospect costs more than an
// occasional off-target invite.
func Qualifies(candidateText, firstName string, criteria models.TargetingCriteria) bool {
	if criteria.IsEmpty() {
		return true
	}

	text := strings.ToLower(candidateText)

	if matchesExclusion(text, criteria.Professional.ExcludedKeywords) {
		return false
	}

	if !passesGenderCheck(text, firstName, criteria.Demographics.GenderKeywords) {
		return false
	}

	if !passesRequiredKeywords(text, criteria.Professional.RequiredKeywords) {
		return false
	}

	if !passesSeniority(text, criteria.Professional.SeniorityLevels) {
		return false
	}

	if containsAny(text, founderSignals) {
		return true
	}

	if !passesJobTitles(text, criteria.Professional.CurrentJobTitles) {
		return false
	}

	return true
}

func matchesExclusion(text string, excluded []string) bool {
	for _, kw := range excluded {
		if kw != "" && strings.Contains(text, strings.ToLower(kw)) {
			return true
		}
	}
	return containsAny(text, studentSignals)
}

// genderTextSignals are the profile-text phrasings that count as an explicit
// signal for a targeted gender, matched as whole tokens so "men" never fires
// inside "development"
var genderTextSignals = map[string][]string{
	"female": {"female", "woman", "women", "she", "her", "hers"},
	"male":   {"male", "man", "men", "he", "him", "his"},
}

// passesGenderCheck is permissive by default: an explicit gender signal in
// the profile text passes outright, and otherwise it only rejects when the
// name heuristic positively classifies the candidate as a gender other than
// the one the keywords target. Unknown names always pass.
func passesGenderCheck(text, firstName string, genderKeywords []string) bool {
	if len(genderKeywords) == 0 {
		return true
	}

	for _, kw := range genderKeywords {
		if kw != "" && strings.Contains(text, strings.ToLower(kw)) {
			return true
		}
	}

	target := targetGender(genderKeywords)
	if target == "" {
		return true
	}

	for _, signal := range genderTextSignals[target] {
		if containsToken(text, signal) {
			return true
		}
	}

	inferred := nameGender(firstName)
	if inferred == "" {
		return true
	}

	return inferred == target
}

func targetGender(keywords []string) string {
	for _, kw := range keywords {
		switch strings.ToLower(strings.TrimSpace(kw)) {
		case "female", "woman", "women", "she", "her":
			return "female"
		case "male", "man", "men", "he", "him":
			return "male"
		}
	}
	return ""
}

func nameGender(firstName string) string {
	name := strings.ToLower(strings.TrimSpace(firstName))
	if name == "" {
		return ""
	}
	if femaleNames[name] {
		return "female"
	}
	if maleNames[name] {
		return "male"
	}
	return ""
}

func passesRequiredKeywords(text string, required []string) bool {
	if len(required) == 0 {
		return true
	}
	for _, kw := range required {
		if kw != "" && strings.Contains(text, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func passesSeniority(text string, levels []string) bool {
	if len(levels) == 0 {
		return true
	}
	for _, level := range levels {
		key := strings.ToLower(strings.TrimSpace(level))
		synonyms, ok := senioritySynonyms[key]
		if !ok {
			synonyms = []string{key}
		}
		if containsAny(text, synonyms) {
			return true
		}
	}
	return false
}

func passesJobTitles(text string, titles []string) bool {
	if len(titles) == 0 {
		return true
	}
	for _, title := range titles {
		if title != "" && strings.Contains(text, strings.ToLower(title)) {
			return true
		}
	}
	return false
}

func containsToken(text, word string) bool {
	for _, tok := range strings.FieldsFunc(text, func(r rune) bool { return !unicode.IsLetter(r) }) {
		if tok == word {
			return true
		}
	}
	return false
}

func containsAny(text string, needles []string) bool {
	for _, n := range needles {
		if n != "" && strings.Contains(text, n) {
			return true
		}
	}
	return false
}
