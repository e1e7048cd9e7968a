package cost

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	cetypes "github.com/aws/aws-sdk-go-v2/service/costexplorer/types"
)

// MinServiceCost drops services that round to nothing.
const MinServiceCost = 0.01

// TopServices is how many services go into the analysis prompt.
const TopServices = 5

const (
	dateLayout = "2006-01-02"
	metric     = "UnblendedCost"
)

// ServiceCost is the spend of one AWS service over the window.
type ServiceCost struct {
	Service string  `json:"service"`
	Cost    float64 `json:"cost"`
	Unit    string  `json:"unit,omitempty"`
}

// Share is a service cost with its part of the total.
type Share struct {
	ServiceCost
	Percent float64 `json:"percent"`
}

// Window returns the Cost Explorer period covering the last days days,
// ending today (end is exclusive).
func Window(days int, now time.Time) *cetypes.DateInterval {
	if days <= 0 {
		days = 30
	}
	end := now.UTC()
	start := end.AddDate(0, 0, -days)
	return &cetypes.DateInterval{
		Start: aws.String(start.Format(dateLayout)),
		End:   aws.String(end.Format(dateLayout)),
	}
}

// FetchCosts returns every monthly result for the window, grouped by
// service, following pagination.
func FetchCosts(ctx context.Context, api CostExplorerAPI, days int, now time.Time) ([]cetypes.ResultByTime, error) {
	in := &costexplorer.GetCostAndUsageInput{
		TimePeriod:  Window(days, now),
		Granularity: cetypes.GranularityMonthly,
		Metrics:     []string{metric},
		GroupBy: []cetypes.GroupDefinition{{
			Type: cetypes.GroupDefinitionTypeDimension,
			Key:  aws.String("SERVICE"),
		}},
	}

	var results []cetypes.ResultByTime
	for {
		out, err := api.GetCostAndUsage(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch cost data: %w", err)
		}
		results = append(results, out.ResultsByTime...)
		if aws.ToString(out.NextPageToken) == "" {
			return results, nil
		}
		in.NextPageToken = out.NextPageToken
	}
}

// ParseCosts sums each service across periods, drops services at or below
// MinServiceCost and sorts by cost, highest first. Unparseable amounts
// count as zero.
func ParseCosts(results []cetypes.ResultByTime) []ServiceCost {
	totals := make(map[string]*ServiceCost)
	var order []string
	for _, r := range results {
		for _, g := range r.Groups {
			if len(g.Keys) == 0 {
				continue
			}
			name := g.Keys[0]
			mv, ok := g.Metrics[metric]
			if !ok {
				continue
			}
			amount, err := strconv.ParseFloat(aws.ToString(mv.Amount), 64)
			if err != nil {
				continue
			}
			sc, seen := totals[name]
			if !seen {
				sc = &ServiceCost{Service: name, Unit: aws.ToString(mv.Unit)}
				totals[name] = sc
				order = append(order, name)
			}
			sc.Cost += amount
		}
	}

	var services []ServiceCost
	for _, name := range order {
		if sc := totals[name]; sc.Cost > MinServiceCost {
			services = append(services, *sc)
		}
	}
	sort.SliceStable(services, func(i, j int) bool { return services[i].Cost > services[j].Cost })
	return services
}

// Total sums services.
func Total(services []ServiceCost) float64 {
	var t float64
	for _, s := range services {
		t += s.Cost
	}
	return t
}

// Top returns the n most expensive services with their share of the total
// over all services.
func Top(services []ServiceCost, n int) []Share {
	total := Total(services)
	if n > len(services) {
		n = len(services)
	}
	out := make([]Share, 0, n)
	for _, s := range services[:n] {
		var pct float64
		if total > 0 {
			pct = s.Cost / total * 100
		}
		out = append(out, Share{ServiceCost: s, Percent: pct})
	}
	return out
}

// FormatServices renders shares as prompt lines, "- Amazon EC2: $12.34".
func FormatServices(shares []Share) string {
	lines := make([]string, 0, len(shares))
	for _, s := range shares {
		lines = append(lines, fmt.Sprintf("- %s: $%.2f", s.Service, s.Cost))
	}
	return strings.Join(lines, "\n")
}

// Money formats a dollar amount with two decimals.
func Money(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
