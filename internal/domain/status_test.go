package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func sectionsWith(statuses ...string) []Section {
	out := make([]Section, len(statuses))
	for i, st := range statuses {
		out[i] = Section{ID: "s", Status: st}
	}
	return out
}

func TestOverallStatus(t *testing.T) {
	cases := []struct {
		name     string
		statuses []string
		want     string
	}{
		{"all pending", []string{SectionPending, SectionPending}, PlaybookGenerating},
		{"one still generating", []string{SectionComplete, SectionGenerating, SectionError}, PlaybookGenerating},
		{"pending among terminals", []string{SectionComplete, SectionPending}, PlaybookGenerating},
		{"all complete", []string{SectionComplete, SectionComplete, SectionComplete}, PlaybookComplete},
		{"all error", []string{SectionError, SectionError}, PlaybookFailed},
		{"mixed terminals", []string{SectionComplete, SectionError}, PlaybookPartial},
		{"single complete", []string{SectionComplete}, PlaybookComplete},
		{"single error", []string{SectionError}, PlaybookFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, OverallStatus(sectionsWith(tc.statuses...)))
		})
	}
}

func TestOverallStatusEmpty(t *testing.T) {
	// A playbook always has its full section set, but an empty slice must not
	// read as complete.
	require.Equal(t, PlaybookGenerating, OverallStatus(nil))
}

func TestOverallStatusOrderIndependent(t *testing.T) {
	a := OverallStatus(sectionsWith(SectionError, SectionComplete, SectionComplete))
	b := OverallStatus(sectionsWith(SectionComplete, SectionComplete, SectionError))
	require.Equal(t, a, b)
	require.Equal(t, PlaybookPartial, a)
}
