package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ppiankov/opslens/internal/actions"
	"github.com/ppiankov/opslens/internal/evidence"
	"github.com/ppiankov/opslens/internal/prompt"
	"github.com/ppiankov/opslens/internal/report"
	"github.com/ppiankov/opslens/internal/response"
	"github.com/ppiankov/opslens/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var actionsConfig struct {
	Repo            string
	RunID           int64
	Limit           int
	IncludeKeywords string
}

// githubClient builds the GitHub client; tests replace it.
var githubClient = actions.NewClient

var actionsCmd = &cobra.Command{
	Use:   "actions",
	Short: "Explain the latest failed GitHub Actions run",
	Long: `Fetch the most recent failed workflow run of a repository (or the run given
with --run-id), cut the failing job's log down to the lines around errors and
ask the model for the root cause and a fix.

The token comes from --token, GITHUB_TOKEN, or the gh CLI login.

Examples:
  opslens actions --repo owner/app
  opslens actions --repo owner/app --run-id 9876543210 -o ci.md`,
	RunE: runActions,
}

func init() {
	rootCmd.AddCommand(actionsCmd)

	actionsCmd.Flags().StringVar(&actionsConfig.Repo, "repo", "", "repository as owner/repo (required)")
	actionsCmd.Flags().String("token", "", "GitHub token (default $GITHUB_TOKEN or gh CLI credentials)")
	actionsCmd.Flags().Int64Var(&actionsConfig.RunID, "run-id", 0, "analyze this workflow run instead of the latest failure")
	actionsCmd.Flags().IntVar(&actionsConfig.Limit, "limit", 5, "failed runs to list")
	actionsCmd.Flags().StringVar(&actionsConfig.IncludeKeywords, "include-keywords", "", "extra comma-separated log keywords that mark a line as interesting")
	_ = actionsCmd.MarkFlagRequired("repo")

	_ = viper.BindPFlag("github_token", actionsCmd.Flags().Lookup("token"))
	_ = viper.BindEnv("github_token", "OPSLENS_GITHUB_TOKEN", "GITHUB_TOKEN")
}

func runActions(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if actionsConfig.Limit <= 0 {
		return util.Invalid("--limit must be positive")
	}
	if _, _, err := actions.ParseRepo(actionsConfig.Repo); err != nil {
		return util.Invalid("--repo: %v", err)
	}

	gh, err := githubClient(actionsConfig.Repo, viper.GetString("github_token"))
	if err != nil {
		return util.Invalid("%v", err)
	}
	login, err := gh.CheckToken(ctx)
	if err != nil {
		return util.Invalid("invalid GitHub token (needs repo and workflow scopes): %v", err)
	}
	debugf("Authenticated to GitHub as %s", login)

	s, err := newSession(ctx, "actions", actionsTimeout)
	if err != nil {
		return err
	}
	defer s.close()

	run, others, found, err := pickRun(ctx, gh)
	if err != nil {
		return err
	}
	if !found {
		logf("No failed workflow runs in %s", gh.Repo())
		r := report.New("actions", gh.Repo())
		r.SetAnalysis("STATUS: No failed workflow runs found.", response.LineKey)
		return s.finish(r)
	}

	r, err := analyzeRun(ctx, s, gh, run)
	if err != nil {
		return err
	}
	for _, o := range others {
		r.AddLink(fmt.Sprintf("%s #%d", o.Name, o.RunNumber), o.HTMLURL)
	}
	return s.finish(r)
}

// pickRun returns the run to analyze and the other recent failures.
func pickRun(ctx context.Context, gh *actions.Client) (actions.Run, []actions.Run, bool, error) {
	if actionsConfig.RunID > 0 {
		logf("Analyzing run %d...", actionsConfig.RunID)
		run, err := gh.GetRun(ctx, actionsConfig.RunID)
		if err != nil {
			return actions.Run{}, nil, false, util.Invalid("%v", err)
		}
		return run, nil, true, nil
	}

	logf("Fetching last %d failed workflow runs...", actionsConfig.Limit)
	runs, err := gh.FailedRuns(ctx, actionsConfig.Limit)
	if err != nil {
		return actions.Run{}, nil, false, fmt.Errorf("failed to list workflow runs: %w", err)
	}
	if len(runs) == 0 {
		return actions.Run{}, nil, false, nil
	}
	logf("Found %d failed run(s), analyzing the most recent: %s #%d", len(runs), runs[0].Name, runs[0].RunNumber)
	return runs[0], runs[1:], true, nil
}

// analyzeRun collects the failing job's evidence and asks for a fix.
func analyzeRun(ctx context.Context, s *session, gh *actions.Client, run actions.Run) (*report.Report, error) {
	r := report.New("actions", fmt.Sprintf("%s: %s #%d", gh.Repo(), run.Name, run.RunNumber))
	r.AddFact("Workflow", run.Name).
		AddFact("Run", strconv.Itoa(run.RunNumber)).
		AddFact("Branch", run.HeadBranch).
		AddFact("Event", run.Event).
		AddFact("Conclusion", run.Conclusion).
		AddFact("Created", run.CreatedAt.Format("2006-01-02 15:04:05"))
	r.AddLink("Run", run.HTMLURL)

	debugf("Fetching jobs of run %d...", run.ID)
	jobs, err := gh.Jobs(ctx, run.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	job, ok := actions.FirstFailedJob(jobs)
	if !ok {
		logf("Run %d has no failed job", run.ID)
		r.SetAnalysis("STATUS: The run has no job with a failure conclusion (cancelled or timed out runs have no failing step to analyze).", response.LineKey)
		return r, nil
	}
	r.Findings = job
	r.AddFact("Failed job", job.Name).AddFact("Failed step", job.FailedStep())
	r.AddLink("Job", job.HTMLURL)

	logf("Fetching logs of job %s...", job.Name)
	logs, err := gh.JobLogs(ctx, job.ID)
	if err != nil {
		// degraded: analysis continues without log evidence
		logf("Warning: could not fetch job logs: %v", err)
	}
	profile := evidence.WorkflowLogs.WithKeywords(evidence.ParseKeywords(actionsConfig.IncludeKeywords))
	excerpt := s.evidence(profile.Extract(logs))
	if excerpt == "" {
		excerpt = "No logs available"
	}

	workflowYAML := ""
	if path := run.WorkflowPath(); path != "" {
		content, err := gh.WorkflowFile(ctx, path, run.HeadSHA)
		if err != nil {
			debugf("Could not read %s: %v", path, err)
		} else {
			workflowYAML = actions.FailedJobDefinition(content, job.Name)
		}
	}

	logf("Analyzing failure...")
	analysis, err := s.ask(ctx, prompt.WorkflowFailure, map[string]string{
		"workflow":      run.Name,
		"job":           job.Name,
		"workflow_yaml": s.redactor.Redact(workflowYAML),
		"evidence":      excerpt,
	})
	if err != nil {
		return nil, err
	}
	r.SetAnalysis(analysis, response.Heading, prompt.Headings(prompt.WorkflowFailure)...)
	r.AddDetail("Error excerpt", excerpt)
	r.AddNextStep(fmt.Sprintf("gh run view %d --repo %s --log-failed", run.ID, gh.Repo()))
	r.AddNextStep(fmt.Sprintf("gh run rerun %d --repo %s --failed", run.ID, gh.Repo()))
	return r, nil
}
