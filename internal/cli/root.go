package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/ppiankov/opslens/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var version = "dev"

var (
	// Global flags
	cfgFile    string
	verbose    bool
	outputFile string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "opslens",
	Short: "AI-assisted diagnosis for container images, pods, cloud bills, CI runs and Terraform",
	Long: `opslens collects operational evidence and asks a local language model
(Ollama by default) to explain it:

• docker scan      Explain HIGH/CRITICAL vulnerabilities found by trivy
• docker compare   Rank images by vulnerability count
• pod              Diagnose unhealthy Kubernetes pods from logs and events
• cost             Find waste in the AWS bill of the last N days
• actions          Explain the latest failed GitHub Actions run
• terraform        Generate Terraform files from a description
• history          List reports recorded with --history-db

Evidence is reduced to the lines around errors before it is sent, and
answers are parsed into sections so reports can be saved as JSON or Markdown.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	// Disable default completion command
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
}

// SetVersion sets the version reported by --version and stored in saved reports
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return util.Invalid("%v", err)
	})

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.opslens.yaml)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	// Model endpoint
	pf.String("endpoint", "", "model server URL (default http://localhost:11434)")
	pf.String("model", "", "model name (default llama3.2)")
	pf.String("api", "ollama", "endpoint API: ollama|openai")
	pf.String("api-key", "", "API key for OpenAI-compatible endpoints (optional for local models)")
	pf.Int("timeout-seconds", 0, "generation timeout in seconds (0 uses the per-tool default)")
	pf.String("llm-service", "", "reach an in-cluster model server through a port-forward (namespace/service:port)")
	pf.String("kubeconfig", "", "path to kubeconfig file (default is $KUBECONFIG or $HOME/.kube/config)")

	// Output
	pf.StringVarP(&outputFile, "output", "o", "", "save report to file (format auto-detected: .json, .md, .txt)")
	pf.String("format", "human", "stdout format: human|json|markdown")
	pf.String("hint", "", "problem hint to steer the analysis (e.g. 'memory leak', 'DNS')")
	pf.Bool("no-redact", false, "send evidence without masking tokens and passwords")
	pf.String("history-db", "", "record every report in this SQLite database")
	pf.String("metrics-file", "", "write run metrics in Prometheus text format to this file")

	// config and output are per-invocation and stay out of viper
	pf.VisitAll(func(f *pflag.Flag) {
		if f.Name == "config" || f.Name == "output" {
			return
		}
		_ = viper.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f)
	})
}

// initConfig reads in config file, .env and ENV variables if set
func initConfig() {
	// .env in the working directory; real environment variables win
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "[opslens] Ignoring .env: %v\n", err)
	}

	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			// Search config in home directory with name ".opslens" (without extension)
			viper.AddConfigPath(home)
		}
		viper.SetConfigType("yaml")
		viper.SetConfigName(".opslens")
	}

	viper.SetEnvPrefix("OPSLENS")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in
	if err := viper.ReadInConfig(); err == nil && IsVerbose() {
		fmt.Fprintf(os.Stderr, "[opslens] Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// IsVerbose returns the verbose flag value
func IsVerbose() bool {
	return verbose || viper.GetBool("verbose")
}

// GetKubeconfig returns the kubeconfig path
func GetKubeconfig() string {
	return viper.GetString("kubeconfig")
}

// logf prints progress to stderr.
func logf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "[opslens] "+format+"\n", args...)
}

// debugf prints only in verbose mode.
func debugf(format string, args ...interface{}) {
	if IsVerbose() {
		logf(format, args...)
	}
}
