package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/evermart/cart/internal/common"
	"github.com/evermart/cart/internal/log"
)

func Start() {
	logger := log.Get(
		fmt.Sprintf("/var/log/%s.log", common.AppCartService),
		os.Getenv("APPLICATION_ENV"),
	).With().
		Str(log.KeyAppName, common.AppCartService).
		Str(log.KeyTag, "main Start").
		Logger()

	logger.Info().Msg("adding listener for SIGINT and SIGTERM")
	c, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	logger.Info().Msg("added listener for SIGINT and SIGTERM")

	c = logger.WithContext(c)

	rootCmd := &cobra.Command{Use: common.AppCartService}
	rootCmd.AddCommand(&cobra.Command{
		Use:   "cart",
		Short: "Run cart service",
		Run: func(cmd *cobra.Command, args []string) {
			RunCartService(cmd.Context())
		},
	})
	if err := rootCmd.ExecuteContext(c); err != nil {
		logger.Fatal().Err(err).Msgf("error when executing command=%s", err.Error())
	}
}
