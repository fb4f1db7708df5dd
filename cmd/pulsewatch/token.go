package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/voice2fire/pulsewatch/internal/api/auth"
)

var (
	tokenUser string
	tokenRole string
	tokenTTL  time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an ops API access token",
	Long: `Generates a JWT for the ops API, signed with PULSEWATCH_JWT_SECRET.
There is no login endpoint; tokens are issued out of band with this command.`,
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().StringVarP(&tokenUser, "user", "u", "", "caller identifier (required)")
	tokenCmd.Flags().StringVarP(&tokenRole, "role", "r", string(auth.RoleViewer), "role: admin, operator, or viewer")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 15*time.Minute, "token lifetime")
	tokenCmd.MarkFlagRequired("user")
}

func runToken(cmd *cobra.Command, args []string) error {
	secret := os.Getenv("PULSEWATCH_JWT_SECRET")
	if secret == "" {
		return fmt.Errorf("PULSEWATCH_JWT_SECRET environment variable is required")
	}

	svc := auth.NewJWTService([]byte(secret), tokenTTL)
	token, err := svc.GenerateToken(tokenUser, auth.Role(tokenRole))
	if err != nil {
		return fmt.Errorf("generate token: %w", err)
	}

	fmt.Println(token)
	return nil
}
