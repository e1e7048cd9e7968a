package prompt

// hintFormat mirrors the --hint flag: a user suspicion that steers analysis.
const hintFormat = "PROBLEM HINT: The user suspects this may be related to: %s\n\n"

func hintField() Field {
	return Field{Name: "hint", Format: hintFormat}
}

var registry = map[ID]Template{
	VulnerabilityExplanation: {
		ID:   VulnerabilityExplanation,
		Kind: Analysis,
		Text: vulnerabilityExplanationText,
		Fields: []Field{
			{Name: "id", Required: true, Limit: 64},
			{Name: "package", Required: true, Limit: 128},
			{Name: "version", Limit: 64, Default: "unknown"},
			{Name: "severity", Required: true, Limit: 16},
			{Name: "title", Limit: 300, Default: "N/A"},
			{Name: "fixed_version", Limit: 128, Default: "Not available"},
		},
	},
	ImageSummary: {
		ID:   ImageSummary,
		Kind: Analysis,
		Text: imageSummaryText,
		Fields: []Field{
			{Name: "image", Required: true, Limit: 256},
			{Name: "total", Required: true, Limit: 16},
			{Name: "critical", Limit: 16, Default: "0"},
			{Name: "high", Limit: 16, Default: "0"},
			{Name: "packages", Limit: 500, Default: "none identified"},
			hintField(),
		},
	},
	PodDiagnosis: {
		ID:       PodDiagnosis,
		Kind:     Analysis,
		Headings: []string{"ROOT CAUSE", "WHY THIS HAPPENS", "HOW TO FIX"},
		Text:     podDiagnosisText,
		Fields: []Field{
			{Name: "name", Required: true, Limit: 253},
			{Name: "namespace", Limit: 63, Default: "default"},
			{Name: "status", Required: true, Limit: 64},
			{Name: "ready", Limit: 8, Default: "false"},
			{Name: "restarts", Limit: 16, Default: "0"},
			{Name: "usage", Limit: 200, Format: "- Resource Usage: %s\n"},
			{Name: "logs", Limit: 2000, Default: "No logs available"},
			{Name: "events", Limit: 1000, Default: "No events available"},
			hintField(),
		},
	},
	CostAnalysis: {
		ID:       CostAnalysis,
		Kind:     Analysis,
		Headings: []string{"COST ANALYSIS", "HIDDEN COSTS DETECTED", "OPTIMIZATION RECOMMENDATIONS", "ESTIMATED SAVINGS"},
		Text:     costAnalysisText,
		Fields: []Field{
			{Name: "days", Limit: 8, Default: "30"},
			{Name: "total_cost", Required: true, Limit: 32},
			{Name: "services", Required: true, Limit: 1000},
			{Name: "resources", Limit: 600, Default: "No resource inventory available"},
			hintField(),
		},
	},
	SavingsTips: {
		ID:   SavingsTips,
		Kind: Analysis,
		Text: savingsTipsText,
		Fields: []Field{
			{Name: "service", Required: true, Limit: 128},
			{Name: "cost", Required: true, Limit: 32},
		},
	},
	WorkflowFailure: {
		ID:       WorkflowFailure,
		Kind:     Analysis,
		Headings: []string{"ROOT CAUSE", "WHY THIS HAPPENED", "HOW TO FIX", "YAML CHANGES", "PREVENTION"},
		Text:     workflowFailureText,
		Fields: []Field{
			{Name: "workflow", Required: true, Limit: 200},
			{Name: "job", Required: true, Limit: 200},
			{Name: "workflow_yaml", Limit: 1000, Format: "Workflow YAML:\n```yaml\n%s\n```\n\n"},
			{Name: "evidence", Required: true, Limit: 1200},
			hintField(),
		},
	},
	TerraformGeneration: {
		ID:   TerraformGeneration,
		Kind: Generation,
		Text: terraformGenerationText,
		Fields: []Field{
			{Name: "description", Required: true, Limit: 2000},
			{Name: "provider", Required: true, Limit: 16},
		},
	},
}

const vulnerabilityExplanationText = `You are a security expert explaining vulnerabilities to developers.

Vulnerability Details:
- ID: {{ID}}
- Package: {{PACKAGE}} (version {{VERSION}})
- Severity: {{SEVERITY}}
- Title: {{TITLE}}

Explain in 2-3 sentences:
1. What this vulnerability means in simple terms
2. Why it's dangerous
3. How to fix it (fixed version: {{FIXED_VERSION}})

Keep it concise and actionable. Use analogies if helpful.`

const imageSummaryText = `You are a security consultant reviewing a Docker image scan.

Image: {{IMAGE}}
Total vulnerabilities: {{TOTAL}}
- Critical: {{CRITICAL}}
- High: {{HIGH}}

Main vulnerable packages: {{PACKAGES}}

IMPORTANT CONTEXT:
- If the image tag is "latest", it doesn't mean it's vulnerability-free
- "latest" just means the most recent build, which may still contain CVEs from base layers
- Recommend specific alternative images (e.g., alpine variants, specific version tags)

{{HINT}}Answer with exactly these three lines and nothing else:

SECURITY_POSTURE: <good, concerning or critical, plus one sentence why>
VULNERABLE_PACKAGES: <the packages or layers causing the issues>
RECOMMENDATION: <one specific fix, e.g. "Use nginx:1.27-alpine instead" or "Rebuild with Ubuntu 24.04 base">

Be specific, not generic. Avoid saying "update to latest" if already using latest.`

const podDiagnosisText = `You are a Kubernetes expert helping debug pod failures.

Pod Information:
- Name: {{NAME}}
- Namespace: {{NAMESPACE}}
- Status: {{STATUS}}
- Ready: {{READY}}
- Restart Count: {{RESTARTS}}
{{USAGE}}
Relevant Logs:
{{LOGS}}

Recent Events:
{{EVENTS}}

{{HINT}}Provide a diagnosis in this format:

**ROOT CAUSE:**
[Explain in 1-2 sentences what's causing the pod to fail, using simple terms]

**WHY THIS HAPPENS:**
[Explain why this error occurs, use an analogy if helpful]

**HOW TO FIX:**
[Provide specific kubectl commands or YAML changes to fix the issue]

Keep it concise and actionable. If logs show common errors like ImagePullBackOff, CrashLoopBackOff, or OOMKilled, explain those clearly.`

const costAnalysisText = `You are an AWS cost optimization expert analyzing a user's AWS bill.

COST SUMMARY (Last {{DAYS}} Days):
Total Cost: ${{TOTAL_COST}}

Top Services by Cost:
{{SERVICES}}

Resources Currently Running:
{{RESOURCES}}

{{HINT}}Provide cost optimization recommendations in this format:

**COST ANALYSIS:**
[Summarize the spending pattern in 1-2 sentences - what's expensive and why]

**HIDDEN COSTS DETECTED:**
[List 2-3 specific areas where money is being wasted, use bullet points]

**OPTIMIZATION RECOMMENDATIONS:**
[Provide 3-4 actionable steps to reduce costs, be specific with AWS service names and features]

**ESTIMATED SAVINGS:**
[Estimate potential monthly savings if recommendations are followed]

Keep it practical and specific. If costs are low (under $10), acknowledge they're doing well but still suggest optimizations for when they scale.`

const savingsTipsText = `You are an AWS cost expert. A user is spending ${{COST}}/month on {{SERVICE}}.

Provide 2-3 specific, actionable tips to reduce costs for this service. Be brief (max 3 sentences total).

Examples:
- For EC2: "Use t3.micro instead of t3.small, enable auto-scaling, use spot instances"
- For S3: "Enable lifecycle policies to move old data to Glacier, delete incomplete multipart uploads"
- For RDS: "Use Aurora Serverless for variable workloads, enable automated backups retention reduction"

Your tips:`

const workflowFailureText = `You are a GitHub Actions expert analyzing a failed CI/CD workflow.

WORKFLOW INFO:
Workflow: {{WORKFLOW}}
Failed Job: {{JOB}}

{{WORKFLOW_YAML}}ERROR LOGS:
` + "```" + `
{{EVIDENCE}}
` + "```" + `

{{HINT}}Analyze ALL failures present in the logs and provide recommendations in this format:

**ROOT CAUSE:**
[Identify EACH specific error causing the failure - list all if multiple]

**WHY THIS HAPPENED:**
[Explain why each error occurred - use simple language]

**HOW TO FIX:**
[Provide specific, actionable steps to fix ALL issues found - number them]

**YAML CHANGES:**
[Show exact YAML changes needed - if applicable]

**PREVENTION:**
[How to prevent these errors in the future]

IMPORTANT: If you see multiple errors (e.g., "file not found" AND "command failed"), address BOTH of them. Don't focus on just one issue.`

const terraformGenerationText = `You are a Terraform/OpenTofu expert. Generate production-ready infrastructure code.

USER REQUEST:
{{DESCRIPTION}}

PROVIDER: {{PROVIDER}}

Generate complete, working Terraform code with these files:

1. main.tf - Main infrastructure resources
2. variables.tf - Input variables with descriptions
3. outputs.tf - Output values
4. terraform.tfvars.example - Example variable values

REQUIREMENTS:
- Use Terraform 1.0+ syntax
- Include proper resource dependencies
- Add comments explaining each resource
- Use variables for configurable values
- Follow best practices (tagging, naming conventions)
- Include data sources where appropriate
- Add validation for variables
- Use locals for computed values

CRITICAL:
- Generate ONLY valid Terraform/HCL code
- NO markdown formatting or code blocks
- Start each file with a comment showing the filename
- Separate files with: ### FILENAME ###

Format your response like this:

### main.tf ###
# Main infrastructure configuration

terraform {
  required_version = ">= 1.0"
  required_providers {
    {{PROVIDER}} = {
      source  = "hashicorp/{{PROVIDER}}"
    }
  }
}

[rest of main.tf code]

### variables.tf ###
# Input variables

[variables code]

### outputs.tf ###
# Output values

[outputs code]

### terraform.tfvars.example ###
# Example variable values
# Copy to terraform.tfvars and customize

[example values]

Generate production-ready code now:`
