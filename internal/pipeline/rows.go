package pipeline

import "github.com/sells-group/codebook-cli/internal/model"

// BuildRows flattens a coding payload into table rows. Within each theme,
// codings[i] is paired with verbatims[i] up to the shorter of the two
// sequences; excess entries are dropped from the rows. Row order follows
// theme order, then pairing order. Pure and deterministic.
//
// The second return is the total number of dropped entries so callers can
// surface the mismatch; it does not affect the rows.
func BuildRows(p model.CodingPayload) (model.Table, int) {
	var rows model.Table
	dropped := 0

	for _, theme := range p.Themes {
		n := len(theme.Codings)
		if len(theme.Verbatims) < n {
			n = len(theme.Verbatims)
		}
		dropped += len(theme.Codings) - n + len(theme.Verbatims) - n

		for i := 0; i < n; i++ {
			rows = append(rows, model.Row{
				Theme:    theme.Theme,
				Coding:   theme.Codings[i],
				Verbatim: theme.Verbatims[i],
			})
		}
	}

	return rows, dropped
}
