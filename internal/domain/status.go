package domain

// Section statuses.
const (
	SectionPending    = "pending"
	SectionGenerating = "generating"
	SectionComplete   = "complete"
	SectionError      = "error"
)

// Playbook overall statuses, derived from sections.
const (
	PlaybookGenerating = "generating"
	PlaybookComplete   = "complete"
	PlaybookFailed     = "failed"
	PlaybookPartial    = "partial"
)

// Content source tags.
const (
	SourceVerbatim    = "verbatim"
	SourceConstrained = "constrained"
	SourceSynthesis   = "synthesis"
	SourceHybrid      = "hybrid"
)

// Section types in presentation order.
const (
	SectionKeyThemes     = "key_themes"
	SectionProductFit    = "product_fit"
	SectionObjections    = "objections"
	SectionStakeholders  = "stakeholders"
	SectionDistrictData  = "district_data"
	SectionFitAssessment = "fit_assessment"
)

// OverallStatus reduces section statuses into the playbook status. It is a pure
// function of its input so the derived status can never drift from the sections;
// callers recompute it on every read.
func OverallStatus(sections []Section) string {
	if len(sections) == 0 {
		return PlaybookGenerating
	}
	complete, failed := 0, 0
	for _, s := range sections {
		switch s.Status {
		case SectionPending, SectionGenerating:
			return PlaybookGenerating
		case SectionComplete:
			complete++
		case SectionError:
			failed++
		}
	}
	switch {
	case failed == 0:
		return PlaybookComplete
	case complete == 0:
		return PlaybookFailed
	default:
		return PlaybookPartial
	}
}
