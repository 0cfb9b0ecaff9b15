package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "jobctl",
	Short: "jobctl is a command line tool for interacting with the jobplane platform",
	Long: `jobctl is the command-line interface for the JobPlane distributed job execution platform.

Common workflows:

  List registered jobs:
    jobctl jobs list

  Execute a job:
    jobctl jobs execute my-job --param key=value

  Check a job's recent history:
    jobctl jobs records my-job --size 20

  Abort a running execution:
    jobctl jobs abort my-job <record-id>

Configuration:
  Set the API endpoint and credentials via environment variables or a config file:
    JOBPLANE_URL      Controller URL (default: http://localhost:6161)
    JOBPLANE_TOKEN     Tenant API token for authentication`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".jobctl")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("JOBPLANE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("using config file:", viper.ConfigFileUsed())
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.jobctl.yaml)")

	rootCmd.PersistentFlags().String("url", "http://localhost:6161", "jobplane controller URL")
	viper.BindPFlag("url", rootCmd.PersistentFlags().Lookup("url"))

	rootCmd.PersistentFlags().StringP("token", "t", "", "tenant API token for authentication")
	viper.BindPFlag("token", rootCmd.PersistentFlags().Lookup("token"))

	rootCmd.PersistentFlags().String("internal-secret", "", "internal system secret, required for admin-only endpoints like tenant creation")
	viper.BindPFlag("internal-secret", rootCmd.PersistentFlags().Lookup("internal-secret"))
}
