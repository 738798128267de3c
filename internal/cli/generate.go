package cli

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/shellsage/shellsage/internal/ids"
	"github.com/shellsage/shellsage/internal/shelldomain"
)

func newGenerateCmd(opts *rootOptions) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "generate <request text>",
		Short: "Translate a natural-language request into a validated shell command",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			requestID, err := ids.New()
			if err != nil {
				return fmt.Errorf("generate request id: %w", err)
			}

			shell, err := shelldomain.ParseShell(opts.shell)
			if err != nil {
				return err
			}
			level, err := shelldomain.ParseSafetyLevel(opts.safetyLevel)
			if err != nil {
				return err
			}

			cwd, _ := os.Getwd()
			hostname, _ := os.Hostname()
			reqCtx := shelldomain.NewRequestContext(cwd, currentPlatform(), shell, os.Environ(), hostname, currentUsername())

			req, err := shelldomain.NewRequest(strings.Join(args, " "), shell, level, reqCtx)
			if err != nil {
				return err
			}

			o, _, err := buildOrchestrator(opts)
			if err != nil {
				return err
			}
			defer o.Shutdown()

			ctx := context.Background()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			generated, err := o.Generate(ctx, req)
			if err != nil {
				return fmt.Errorf("[%s] generate: %w", requestID, err)
			}

			validator, err := newValidator()
			if err != nil {
				return err
			}
			result, err := validator.Validate(generated.CommandText, level)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "request_id=%s backend=%s risk=%s blocked=%t\n%s\n",
				requestID, generated.BackendLabel, result.Risk, result.Blocked, generated.CommandText)
			if result.Blocked {
				return fmt.Errorf("command blocked at %s safety level: %s", level, result.Reason)
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Deadline for the backend generate call")
	return cmd
}

func currentPlatform() shelldomain.Platform {
	switch runtime.GOOS {
	case "darwin":
		return shelldomain.MacOS
	case "windows":
		return shelldomain.Windows
	default:
		return shelldomain.Linux
	}
}

func currentUsername() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return os.Getenv("USERNAME")
}
