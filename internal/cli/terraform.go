package cli

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ppiankov/opslens/internal/llm"
	"github.com/ppiankov/opslens/internal/prompt"
	"github.com/ppiankov/opslens/internal/report"
	"github.com/ppiankov/opslens/internal/response"
	"github.com/ppiankov/opslens/internal/terraform"
	"github.com/ppiankov/opslens/internal/util"
	"github.com/spf13/cobra"
)

var terraformConfig struct {
	Description string
	Provider    string
	OutputDir   string
	Validate    bool
	Diff        bool
}

var terraformCmd = &cobra.Command{
	Use:   "terraform [DESCRIPTION]",
	Short: "Generate Terraform files from a plain-language description",
	Long: `Ask the model for main.tf, variables.tf, outputs.tf and
terraform.tfvars.example implementing a description, and write them to a
directory. Review generated code before applying it.

Examples:
  opslens terraform -d "S3 bucket with versioning and a lifecycle rule"
  opslens terraform -d "AKS cluster with 3 nodes" -p azure --output-dir aks
  opslens terraform -d "VPC with two private subnets" --diff --validate`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTerraform,
}

func init() {
	rootCmd.AddCommand(terraformCmd)

	terraformCmd.Flags().StringVarP(&terraformConfig.Description, "description", "d", "", "infrastructure to generate")
	terraformCmd.Flags().StringVarP(&terraformConfig.Provider, "provider", "p", "aws", "cloud provider: aws|azure|gcp")
	terraformCmd.Flags().StringVar(&terraformConfig.OutputDir, "output-dir", "generated", "directory for the generated files")
	terraformCmd.Flags().BoolVar(&terraformConfig.Validate, "validate", false, "run terraform init and validate on the result")
	terraformCmd.Flags().BoolVar(&terraformConfig.Diff, "diff", false, "show changes against files already in the output directory")
}

func runTerraform(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	description := strings.TrimSpace(terraformConfig.Description)
	if description == "" && len(args) == 1 {
		description = strings.TrimSpace(args[0])
	}
	if description == "" {
		return util.Invalid("a description is required (--description or first argument)")
	}
	provider, err := terraform.ProviderName(terraformConfig.Provider)
	if err != nil {
		return util.Invalid("%v", err)
	}
	dir := terraformConfig.OutputDir
	if strings.TrimSpace(dir) == "" {
		return util.Invalid("--output-dir must not be empty")
	}

	s, err := newSession(ctx, "terraform", terraformTimeout)
	if err != nil {
		return err
	}
	defer s.close()

	logf("Generating Terraform code for %s (this may take a few minutes)...", terraformConfig.Provider)
	raw, err := s.ask(ctx, prompt.TerraformGeneration, map[string]string{
		"description": description,
		"provider":    provider,
	})
	if err != nil {
		return err
	}

	r := report.New("terraform", description)
	r.AddFact("Provider", provider).AddFact("Output", dir)

	if llm.IsErrorText(raw) {
		r.SetAnalysis(raw, response.BlockMarker)
		if err := s.finish(r); err != nil {
			return err
		}
		return fmt.Errorf("generation failed: %s", raw)
	}

	files := terraform.ParseFiles(response.DeduplicateTrailingRepeat(raw))
	if len(files) == 0 {
		return fmt.Errorf("the model returned no code")
	}
	r.Findings = files

	if terraformConfig.Diff {
		diffs, err := terraform.Diff(dir, files)
		if err != nil {
			return err
		}
		names := make([]string, 0, len(diffs))
		for name := range diffs {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			r.AddDetail("diff "+name, diffs[name])
		}
		if len(diffs) == 0 {
			debugf("No existing files change")
		}
	}

	paths, err := terraform.Save(dir, files)
	if err != nil {
		return err
	}
	total := 0
	for i, f := range files {
		total += f.Lines()
		r.AddDetail(f.Name, "",
			report.Fact{Label: "Lines", Value: strconv.Itoa(f.Lines())},
			report.Fact{Label: "Path", Value: paths[i]},
		)
	}
	r.AddFact("Files", strconv.Itoa(len(files))).AddFact("Lines", strconv.Itoa(total))
	logf("Saved %d files to %s", len(files), dir)

	if terraformConfig.Validate {
		logf("Validating with terraform...")
		v, err := terraform.Validate(ctx, runner, dir)
		if err != nil {
			return err
		}
		r.AddFact("Validation", v.String())
		if v.Ran && !v.Passed {
			r.AddDetail("terraform "+v.Step, v.Output)
		}
	}

	for _, step := range terraform.NextSteps(dir) {
		r.AddNextStep(step)
	}
	return s.finish(r)
}
