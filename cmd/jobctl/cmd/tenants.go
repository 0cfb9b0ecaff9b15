package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"jobplane/pkg/api"
)

var tenantsCmd = &cobra.Command{
	Use:   "tenants",
	Short: "Manage tenants",
}

var tenantsCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a tenant and print its API key",
	Long:  "Create a tenant and print its API key. Requires --internal-secret, since tenant creation happens before any tenant token exists.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		secret := viper.GetString("internal-secret")
		if secret == "" {
			return fmt.Errorf("--internal-secret is required to create a tenant")
		}
		rateLimit, _ := cmd.Flags().GetFloat64("rate-limit")
		burst, _ := cmd.Flags().GetInt("rate-limit-burst")

		resp, err := clientFromFlags().CreateTenant(api.CreateTenantRequest{
			Name:           args[0],
			RateLimit:      rateLimit,
			RateLimitBurst: burst,
		}, secret)
		if err != nil {
			return err
		}
		fmt.Printf("tenant_id: %s\napi_key: %s\n", resp.ID, resp.APIKey)
		return nil
	},
}

func init() {
	tenantsCreateCmd.Flags().Float64("rate-limit", 0, "requests per second allowed for this tenant, 0 means unlimited")
	tenantsCreateCmd.Flags().Int("rate-limit-burst", 0, "burst size for the tenant's rate limiter")

	tenantsCmd.AddCommand(tenantsCreateCmd)
	rootCmd.AddCommand(tenantsCmd)
}
