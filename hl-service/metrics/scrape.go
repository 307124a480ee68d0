// Package metrics reads prometheus text-format metrics exported by other processes.
package metrics

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

var ErrEndpointUnavailable = errors.New("metrics endpoint unavailable")

// Families is a scraped set of metric families, keyed by name.
type Families map[string]*dto.MetricFamily

// Scraper fetches metrics pages over HTTP.
type Scraper struct {
	client *resty.Client
}

func NewScraper(timeout time.Duration) *Scraper {
	return &Scraper{
		client: resty.New().SetTimeout(timeout),
	}
}

// LocalURL is the metrics page of a process bound to localhost.
func LocalURL(port int) string {
	return fmt.Sprintf("http://127.0.0.1:%d/metrics", port)
}

// Scrape fetches and parses the metrics page at url.
// Connection failures and non-2xx responses wrap ErrEndpointUnavailable.
func (s *Scraper) Scrape(ctx context.Context, url string) (Families, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Accept", "text/plain; version=0.0.4").
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEndpointUnavailable, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: status %s", ErrEndpointUnavailable, resp.Status())
	}
	return Parse(resp.Body())
}

// Parse reads a prometheus text exposition page.
func Parse(page []byte) (Families, error) {
	var parser expfmt.TextParser
	fams, err := parser.TextToMetricFamilies(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("failed to parse metrics: %w", err)
	}
	return fams, nil
}

// Sum adds up the values of all series of the named family that carry every given label pair.
// The second return value is false if the family is not present at all.
func (f Families) Sum(name string, labels map[string]string) (float64, bool) {
	fam, ok := f[name]
	if !ok {
		return 0, false
	}
	var total float64
	for _, m := range fam.GetMetric() {
		if !hasLabels(m, labels) {
			continue
		}
		total += value(fam.GetType(), m)
	}
	return total, true
}

func hasLabels(m *dto.Metric, labels map[string]string) bool {
	matched := 0
	for _, lp := range m.GetLabel() {
		if want, ok := labels[lp.GetName()]; ok {
			if want != lp.GetValue() {
				return false
			}
			matched++
		}
	}
	return matched == len(labels)
}

func value(typ dto.MetricType, m *dto.Metric) float64 {
	switch typ {
	case dto.MetricType_COUNTER:
		return m.GetCounter().GetValue()
	case dto.MetricType_GAUGE:
		return m.GetGauge().GetValue()
	case dto.MetricType_SUMMARY:
		return m.GetSummary().GetSampleSum()
	case dto.MetricType_HISTOGRAM:
		return m.GetHistogram().GetSampleSum()
	default:
		return m.GetUntyped().GetValue()
	}
}
