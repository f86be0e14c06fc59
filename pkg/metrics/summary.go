package metrics

import (
	"fmt"
	"io"
	"sort"
	"strings"

	dto "github.com/prometheus/client_model/go"
)

// WriteSummary prints every collected series of the global registry, one
// line each. Counters print their value, histograms their count and sum.
// Nothing is written when metrics are disabled.
func WriteSummary(w io.Writer) error {
	reg := GetRegistry()
	if reg == nil {
		return nil
	}

	families, err := reg.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}

	for _, family := range families {
		for _, m := range family.GetMetric() {
			series := family.GetName() + formatLabels(m.GetLabel())

			switch family.GetType() {
			case dto.MetricType_COUNTER:
				_, err = fmt.Fprintf(w, "%s %g\n", series, m.GetCounter().GetValue())
			case dto.MetricType_GAUGE:
				_, err = fmt.Fprintf(w, "%s %g\n", series, m.GetGauge().GetValue())
			case dto.MetricType_HISTOGRAM:
				h := m.GetHistogram()
				_, err = fmt.Fprintf(w, "%s count=%d sum=%g\n", series, h.GetSampleCount(), h.GetSampleSum())
			}
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func formatLabels(labels []*dto.LabelPair) string {
	if len(labels) == 0 {
		return ""
	}

	pairs := make([]string, 0, len(labels))
	for _, l := range labels {
		pairs = append(pairs, fmt.Sprintf("%s=%q", l.GetName(), l.GetValue()))
	}
	sort.Strings(pairs)
	return "{" + strings.Join(pairs, ",") + "}"
}
