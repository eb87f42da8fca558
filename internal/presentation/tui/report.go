package tui

import (
	"fmt"
	"io"

	"github.com/aretw0/hsmgrid/pkg/codec"
	"github.com/aretw0/hsmgrid/pkg/domain"
	"github.com/muesli/termenv"
)

// Report prints validation outcomes, coloured when the output supports it.
type Report struct {
	out      *termenv.Output
	Failures int
	Warnings int
}

// NewReport writes to w. Colours follow the terminal capabilities of w.
func NewReport(w io.Writer) *Report {
	return &Report{out: termenv.NewOutput(w)}
}

// NewPlainReport writes to w without colours.
func NewPlainReport(w io.Writer) *Report {
	return &Report{out: termenv.NewOutput(w, termenv.WithProfile(termenv.Ascii))}
}

// Valid records a definition that loaded cleanly, with its anomalies.
func (r *Report) Valid(file string, anomalies []codec.Anomaly) {
	if len(anomalies) == 0 {
		fmt.Fprintf(r.out, "%s %s\n", r.out.String("ok").Foreground(termenv.ANSIGreen).Bold(), file)
		return
	}
	fmt.Fprintf(r.out, "%s %s\n", r.out.String("warn").Foreground(termenv.ANSIYellow).Bold(), file)
	for _, a := range anomalies {
		r.Warnings++
		fmt.Fprintf(r.out, "    %s\n", r.out.String(a.String()).Foreground(termenv.ANSIYellow))
	}
}

// Invalid records a definition that failed to load. Validation failures are
// listed one per line.
func (r *Report) Invalid(file string, err error) {
	r.Failures++
	fmt.Fprintf(r.out, "%s %s\n", r.out.String("fail").Foreground(termenv.ANSIRed).Bold(), file)
	errs := domain.ValidationErrors(err)
	if len(errs) == 0 {
		errs = []error{err}
	}
	for _, e := range errs {
		fmt.Fprintf(r.out, "    %s\n", r.out.String(e.Error()).Foreground(termenv.ANSIRed))
	}
}

// Summary prints the totals.
func (r *Report) Summary(files int) {
	fmt.Fprintf(r.out, "\n%d file(s), %d failure(s), %d warning(s)\n", files, r.Failures, r.Warnings)
}
