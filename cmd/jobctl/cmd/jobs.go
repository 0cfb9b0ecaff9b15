package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"jobplane/pkg/api"
)

func clientFromFlags() *Client {
	return NewClient(viper.GetString("url"), viper.GetString("token"))
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect and control job definitions and their executions",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every registered job name",
	RunE: func(cmd *cobra.Command, args []string) error {
		names, err := clientFromFlags().ListJobNames()
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return nil
	},
}

var jobsStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether scheduler-wide execution is enabled",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := clientFromFlags().Status()
		if err != nil {
			return err
		}
		fmt.Printf("status: %s\nlocalRunningJobs: %v\n", status.Status, status.LocalRunningJobs)
		return nil
	},
}

var jobsEnableCmd = &cobra.Command{
	Use:   "enable [name]",
	Short: "Enable execution, scheduler-wide or for one job name",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setEnabled(args, true)
	},
}

var jobsDisableCmd = &cobra.Command{
	Use:   "disable [name]",
	Short: "Disable execution, scheduler-wide or for one job name",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setEnabled(args, false)
	},
}

func setEnabled(args []string, enabled bool) error {
	client := clientFromFlags()

	var resp *api.StatusResponse
	var err error
	if len(args) == 1 {
		resp, err = client.SetJobExecutionEnabled(args[0], enabled)
	} else {
		resp, err = client.SetExecutionEnabled(enabled)
	}
	if err != nil {
		return err
	}
	fmt.Printf("status: %s\n", resp.Status)
	return nil
}

var jobsExecuteCmd = &cobra.Command{
	Use:   "execute <name>",
	Short: "Execute a job, forcing admission ahead of anything queued",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := parseParams(cmd)
		if err != nil {
			return err
		}
		rec, err := clientFromFlags().ExecuteJob(args[0], params)
		if err != nil {
			return err
		}
		fmt.Printf("id: %s\nrunningState: %s\n", rec.ID, rec.RunningState)
		return nil
	},
}

var jobsRecordsCmd = &cobra.Command{
	Use:   "records <name>",
	Short: "List a job's most recent execution records",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		size, _ := cmd.Flags().GetInt("size")
		records, err := clientFromFlags().JobRecords(args[0], size)
		if err != nil {
			return err
		}
		for _, rec := range records {
			printRecordSummary(rec)
		}
		return nil
	},
}

var jobsGetCmd = &cobra.Command{
	Use:   "get <name> <id>",
	Short: "Show a single execution record",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, err := clientFromFlags().GetJobRecord(args[0], args[1])
		if err != nil {
			return err
		}
		printRecordDetail(*rec)
		return nil
	},
}

var jobsAbortCmd = &cobra.Command{
	Use:   "abort <name> <id>",
	Short: "Request abort of a running execution",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := clientFromFlags().AbortJobRecord(args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("id: %s\naborted: %v\n", resp.ID, resp.Aborted)
		return nil
	},
}

var jobsHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Query execution history across one or every job name",
	RunE: func(cmd *cobra.Command, args []string) error {
		hours, _ := cmd.Flags().GetInt("hours")
		jobName, _ := cmd.Flags().GetString("job-name")
		resultCode, _ := cmd.Flags().GetString("result-code")
		history, err := clientFromFlags().History(hours, jobName, resultCode)
		if err != nil {
			return err
		}
		for name, records := range history {
			fmt.Printf("%s:\n", name)
			for _, rec := range records {
				fmt.Print("  ")
				printRecordSummary(rec)
			}
		}
		return nil
	},
}

func parseParams(cmd *cobra.Command) (map[string]string, error) {
	raw, err := cmd.Flags().GetStringArray("param")
	if err != nil {
		return nil, err
	}
	params := make(map[string]string, len(raw))
	for _, kv := range raw {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid --param %q, want key=value", kv)
		}
		params[parts[0]] = parts[1]
	}
	return params, nil
}

func printRecordSummary(rec api.JobRecord) {
	fmt.Printf("%s  %-10s  %-6s  %s\n", rec.ID, rec.RunningState, rec.ResultCode, rec.CreatedAt.Format("2006-01-02T15:04:05Z07:00"))
}

func printRecordDetail(rec api.JobRecord) {
	printRecordSummary(rec)
	for _, p := range rec.Parameters {
		fmt.Printf("  param: %s=%s\n", p.Key, p.Value)
	}
	for _, line := range rec.LogLines {
		fmt.Printf("  log: %s\n", line.Text)
	}
}

func init() {
	jobsExecuteCmd.Flags().StringArray("param", nil, "job parameter as key=value, may be repeated")
	jobsRecordsCmd.Flags().Int("size", 10, "number of recent records to list")
	jobsHistoryCmd.Flags().Int("hours", 24, "lookback window in hours")
	jobsHistoryCmd.Flags().String("job-name", "", "restrict history to one job name")
	jobsHistoryCmd.Flags().String("result-code", "", "restrict history to one result code")

	jobsCmd.AddCommand(jobsListCmd, jobsStatusCmd, jobsEnableCmd, jobsDisableCmd,
		jobsExecuteCmd, jobsRecordsCmd, jobsGetCmd, jobsAbortCmd, jobsHistoryCmd)
	rootCmd.AddCommand(jobsCmd)
}
