package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/ppiankov/opslens/internal/cost"
	"github.com/ppiankov/opslens/internal/prompt"
	"github.com/ppiankov/opslens/internal/report"
	"github.com/ppiankov/opslens/internal/response"
	"github.com/ppiankov/opslens/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var costConfig struct {
	Days    int
	Tips    int
	Region  string
	Profile string
}

// awsClients builds the AWS clients; tests replace it.
var awsClients = cost.NewClients

var costCmd = &cobra.Command{
	Use:   "cost",
	Short: "Find waste in the AWS bill",
	Long: `Read the cost of the last N days per service from Cost Explorer, count the
running resources and ask the model where the money goes and how to save it.

Credentials come from the standard AWS chain (environment, ~/.aws, SSO or an
instance role). Cost Explorer charges $0.01 per request.

Examples:
  opslens cost
  opslens cost --days 7 --tips 3
  opslens cost --profile billing -o cost.md`,
	RunE: runCost,
}

func init() {
	rootCmd.AddCommand(costCmd)

	costCmd.Flags().IntVar(&costConfig.Days, "days", 30, "number of days to analyze")
	costCmd.Flags().IntVar(&costConfig.Tips, "tips", 0, "ask for savings tips for the N most expensive services")
	costCmd.Flags().StringVar(&costConfig.Region, "region", "", "AWS region for the resource inventory (default from AWS config)")
	costCmd.Flags().StringVar(&costConfig.Profile, "profile", "", "AWS shared config profile")
	_ = viper.BindPFlag("aws_region", costCmd.Flags().Lookup("region"))
	_ = viper.BindPFlag("aws_profile", costCmd.Flags().Lookup("profile"))
}

func runCost(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if costConfig.Days <= 0 {
		return util.Invalid("--days must be positive")
	}
	if costConfig.Tips < 0 {
		return util.Invalid("--tips must be >= 0")
	}

	clients, err := awsClients(ctx, viper.GetString("aws_region"), viper.GetString("aws_profile"))
	if err != nil {
		return util.Invalid("%v", err)
	}
	account, err := clients.CheckCredentials(ctx)
	if err != nil {
		return util.Invalid("%v", err)
	}
	debugf("AWS account %s", account)

	s, err := newSession(ctx, "cost", costTimeout)
	if err != nil {
		return err
	}
	defer s.close()

	logf("Fetching AWS costs for the last %d days...", costConfig.Days)
	results, err := cost.FetchCosts(ctx, clients.CostExplorer, costConfig.Days, time.Now())
	if err != nil {
		return fmt.Errorf("could not fetch cost data: %w", err)
	}
	services := cost.ParseCosts(results)

	r := report.New("cost", fmt.Sprintf("AWS account %s, last %d days", account, costConfig.Days))
	r.AddFact("Account", account).AddFact("Period", fmt.Sprintf("%d days", costConfig.Days))

	if len(services) == 0 {
		logf("No AWS costs detected in the last %d days", costConfig.Days)
		r.AddFact("Total", "$0.00")
		r.SetAnalysis("STATUS: No costs above $0.01 in this period. Either the free tier covers everything or nothing is deployed.", response.LineKey)
		return s.finish(r)
	}

	logf("Analyzing AWS resources...")
	resources := clients.ResourceCounts(ctx)
	if len(resources.Unavailable) > 0 {
		debugf("Inventory not readable: %v", resources.Unavailable)
	}

	if err := analyzeCosts(ctx, s, r, services, resources); err != nil {
		return err
	}
	return s.finish(r)
}

// analyzeCosts fills r with the breakdown, the analysis and optional tips.
func analyzeCosts(ctx context.Context, s *session, r *report.Report, services []cost.ServiceCost, resources cost.Resources) error {
	total := cost.Total(services)
	top := cost.Top(services, cost.TopServices)

	r.Findings = map[string]any{
		"services":  services,
		"resources": resources,
	}
	r.AddFact("Total", "$"+cost.Money(total)).
		AddFact("Services", strconv.Itoa(len(services)))

	logf("Generating cost analysis...")
	analysis, err := s.ask(ctx, prompt.CostAnalysis, map[string]string{
		"days":       strconv.Itoa(costConfig.Days),
		"total_cost": cost.Money(total),
		"services":   cost.FormatServices(top),
		"resources":  resources.String(),
	})
	if err != nil {
		return err
	}
	r.SetAnalysis(analysis, response.Heading, prompt.Headings(prompt.CostAnalysis)...)

	for i, sh := range top {
		text := ""
		if i < costConfig.Tips {
			logf("Savings tips for %s...", sh.Service)
			text, err = s.ask(ctx, prompt.SavingsTips, map[string]string{
				"service": sh.Service,
				"cost":    cost.Money(sh.Cost),
			})
			if err != nil {
				return err
			}
			text = response.DeduplicateTrailingRepeat(text)
		}
		r.AddDetail(sh.Service, text,
			report.Fact{Label: "Cost", Value: "$" + cost.Money(sh.Cost)},
			report.Fact{Label: "Share", Value: fmt.Sprintf("%.1f%%", sh.Percent)},
		)
	}

	r.AddDetail("Resources", resources.String())
	w := cost.Window(costConfig.Days, time.Now())
	r.AddNextStep(fmt.Sprintf("aws ce get-cost-and-usage --time-period Start=%s,End=%s --granularity MONTHLY --metrics UnblendedCost --group-by Type=DIMENSION,Key=SERVICE",
		aws.ToString(w.Start), aws.ToString(w.End)))
	return nil
}
