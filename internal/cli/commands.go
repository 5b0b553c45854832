package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mikey/phish-alert/internal/adapters/watcher"
	"github.com/mikey/phish-alert/internal/core"
	"github.com/mikey/phish-alert/internal/di"
	"github.com/mikey/phish-alert/internal/factory"
	"github.com/mikey/phish-alert/internal/presentation"
)

// release closes the classifier and stops the store
func release(logger *zap.Logger, classifier core.Classifier, store core.Store) {
	if closer, ok := classifier.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close classifier", zap.Error(err))
		}
	}
	if stopper, ok := store.(interface{ Stop() }); ok {
		stopper.Stop()
	}
	logger.Sync()
}

func urlCmd(flags *di.CLIFlags, build containerBuilder) *cobra.Command {
	return &cobra.Command{
		Use:   "url <url>...",
		Short: "Classify one or more URLs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return invoke(flags, build, func(pipeline *core.Pipeline) {
				for _, u := range args {
					printOutcome(cmd.OutOrStdout(), u, pipeline.ProcessURL(cmd.Context(), u))
				}
			})
		},
	}
}

func emailCmd(flags *di.CLIFlags, build containerBuilder) *cobra.Command {
	var (
		file      string
		candidate core.EmailCandidate
	)

	cmd := &cobra.Command{
		Use:   "email",
		Short: "Classify an email from a message file, stdin or flags",
		Long: `Classify an email. With --file the message is read as RFC 5322 text
("-" reads stdin); otherwise --sender, --subject and --body are used.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			email := &candidate
			if file != "" {
				parsed, err := readMessage(cmd.InOrStdin(), file)
				if err != nil {
					return err
				}
				email = parsed
			}
			if strings.TrimSpace(email.Sender+email.Subject+email.Body) == "" {
				return errors.New(presentation.ToastNoContent)
			}

			return invoke(flags, build, func(pipeline *core.Pipeline) {
				subject := email.Subject
				if subject == "" {
					subject = "(no subject)"
				}
				printOutcome(cmd.OutOrStdout(), subject, pipeline.ProcessEmail(cmd.Context(), email))
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "RFC 5322 message file to classify")
	cmd.Flags().StringVar(&candidate.Sender, "sender", "", "Sender address")
	cmd.Flags().StringVar(&candidate.Subject, "subject", "", "Subject line")
	cmd.Flags().StringVar(&candidate.Body, "body", "", "Message body")
	return cmd
}

func readMessage(stdin io.Reader, path string) (*core.EmailCandidate, error) {
	if path == "-" {
		return watcher.ParseMessage(stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open message file: %w", err)
	}
	defer f.Close()
	return watcher.ParseMessage(f)
}

func listCmd(flags *di.CLIFlags, build containerBuilder) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show the stored classification lists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var runErr error
			err := invoke(flags, build, func(store core.Store) {
				records, err := store.GetAll(cmd.Context())
				if err != nil {
					runErr = fmt.Errorf("failed to read records: %w", err)
					return
				}
				printLists(cmd.OutOrStdout(), presentation.Render(records))
			})
			return errors.Join(err, runErr)
		},
	}
}

func clearCmd(flags *di.CLIFlags, build containerBuilder) *cobra.Command {
	var verdict string

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove stored records, all of them or those with one verdict",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var target core.Verdict
			if verdict != "" {
				v, err := core.ParseVerdict(verdict)
				if err != nil || v == core.VerdictUnknown {
					return fmt.Errorf("invalid verdict %q: use whitelist or blacklist", verdict)
				}
				target = v
			}

			var runErr error
			err := invoke(flags, build, func(store core.Store, logger *zap.Logger) {
				runErr = clearRecords(cmd.Context(), cmd.OutOrStdout(), store, logger, target)
			})
			return errors.Join(err, runErr)
		},
	}

	cmd.Flags().StringVar(&verdict, "verdict", "", "Only remove records with this verdict (whitelist or blacklist)")
	return cmd
}

func clearRecords(ctx context.Context, w io.Writer, store core.Store, logger *zap.Logger, verdict core.Verdict) error {
	presenter, err := presentation.NewPresenter(ctx, store, logger)
	if err != nil {
		return err
	}
	defer presenter.Close()

	var toast presentation.Toast
	if verdict == "" {
		toast, err = presenter.ClearAll(ctx)
	} else {
		toast, err = presenter.ClearVerdict(ctx, verdict)
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(w, color.New(color.FgCyan).Sprint(toast.Message))
	return nil
}

func healthCmd(flags *di.CLIFlags, build containerBuilder) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the classification backend is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var runErr error
			err := invoke(flags, build, func(classifier core.Classifier) {
				check := factory.HealthCheck(classifier)
				if check == nil {
					fmt.Fprintln(cmd.OutOrStdout(), dimColor.Sprint("Backend has no health endpoint"))
					return
				}
				if runErr = check(cmd.Context()); runErr != nil {
					fmt.Fprintln(cmd.OutOrStdout(), color.New(color.FgRed).Sprint("Backend unhealthy"))
					return
				}
				fmt.Fprintln(cmd.OutOrStdout(), color.New(color.FgHiGreen).Sprint("Backend healthy"))
			})
			return errors.Join(err, runErr)
		},
	}
}
