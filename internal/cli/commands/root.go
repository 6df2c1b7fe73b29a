package commands

import (
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/dynres/pkg/resources"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = "unknown"
)

// app carries the global flags shared by every subcommand
type app struct {
	configFile string
	logLevel   string
	noColor    bool

	// invokers replaces the AWS-backed invoker provider when set
	invokers resources.InvokerProvider
}

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	return newRootCommand(&app{})
}

func newRootCommand(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "dynres",
		Short: "Explore and call remote services through metadata-driven resources",
		Long: color.CyanString(`dynres - metadata-driven resource objects

dynres reads service descriptions and turns them into resource and
collection types whose methods call remote operations.

Examples:
  dynres versions sqs
  dynres describe sqs Queue
  dynres call sqs QueueCollection create --collection --arg name=orders`),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if a.noColor {
				color.NoColor = true
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&a.configFile, "config", "c", "", "config file (default ./dynres.yaml)")
	flags.StringVar(&a.logLevel, "log-level", "", "override log.level from the config")
	flags.BoolVar(&a.noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(NewVersionCommand())
	rootCmd.AddCommand(newVersionsCommand(a))
	rootCmd.AddCommand(newDescribeCommand(a))
	rootCmd.AddCommand(newCallCommand(a))
	rootCmd.AddCommand(newPublishCommand(a))
	rootCmd.AddCommand(newCacheCommand(a))

	return rootCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  "Display the dynres version, Git commit, build date, and Go version",
		Run: func(cmd *cobra.Command, args []string) {
			// Set GoVersion to actual runtime if not set at build time
			goVer := GoVersion
			if goVer == "unknown" {
				goVer = runtime.Version()
			}

			out := cmd.OutOrStdout()
			titleColor := color.New(color.FgCyan, color.Bold)

			titleColor.Fprint(out, "dynres version: ")
			cmd.Println(Version)

			titleColor.Fprint(out, "Git commit: ")
			cmd.Println(GitCommit)

			titleColor.Fprint(out, "Build date: ")
			cmd.Println(BuildDate)

			titleColor.Fprint(out, "Go version: ")
			cmd.Println(goVer)
		},
	}
}

// Execute runs the root command
func Execute() error {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		errorColor := color.New(color.FgRed, color.Bold)
		errorColor.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		return err
	}
	return nil
}
