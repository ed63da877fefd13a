package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"phone-agent/internal/config"
	"phone-agent/internal/llm"
	"phone-agent/internal/logging"
	"phone-agent/internal/screenshot"
	"phone-agent/internal/server"
	"phone-agent/internal/task"
	"phone-agent/internal/token"
	"phone-agent/internal/websocket"
)

var (
	version  = "0.1.0"
	cfgFile  string
	logLevel string
	maxSteps int
	lang     string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "phone-agent",
		Short: "Drive an Android phone with a vision language model",
		Long: `phone-agent captures the phone screen, asks a decision model for the next
operation and performs it over adb or a privileged command broker until the
task is done.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/phone-agent/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newCheckCmd())
	rootCmd.AddCommand(newResolveCmd())
	rootCmd.AddCommand(newScreenshotCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newTranscribeCmd())
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("phone-agent version %s\n", version)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig loads, applies flag overrides, validates and sets up logging.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if maxSteps > 0 {
		cfg.Agent.MaxSteps = maxSteps
	}
	if lang != "" {
		cfg.Agent.Lang = lang
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Console, os.Stderr)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <goal>",
		Short: "Run one task and print its progress",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			backend, closeBackend, err := buildBackend(cfg)
			if err != nil {
				return err
			}
			defer closeBackend()

			model, closeModel := buildModel(cfg, token.NewTracker(nil))
			defer closeModel()

			out := cmd.OutOrStdout()
			sink := task.SinkFuncs{
				Action:    func(text string) { fmt.Fprintf(out, "\n%s\n", text) },
				Assistant: func(chunk string) { fmt.Fprint(out, chunk) },
				Screenshot: func(shot *screenshot.Screenshot) {
					if shot.Sensitive {
						fmt.Fprintln(out, "[screen unavailable, sent a placeholder]")
					}
				},
				Error: func(msg string) { fmt.Fprintf(out, "\nerror: %s\n", msg) },
				Done:  func(msg string) { fmt.Fprintf(out, "\n%s\n", msg) },
			}

			t := task.New(strings.Join(args, " "), cfg.Agent.MaxSteps, cfg.Agent.Lang)
			ctx, cancel := signalContext()
			defer cancel()
			go func() {
				<-ctx.Done()
				t.Cancel()
			}()

			in := bufio.NewReader(cmd.InOrStdin())
			takeover := func(ctx context.Context, msg string) {
				fmt.Fprintf(out, "\nTake over: %s\nPress Enter when done...", msg)
				in.ReadString('\n')
			}

			res := buildLoop(cfg, backend, model, sink, takeover).Run(context.Background(), t)
			if res.State == task.StateFailed {
				return fmt.Errorf("task failed after %d steps", res.Steps)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&maxSteps, "max-steps", 0, "step budget (default from config)")
	cmd.Flags().StringVar(&lang, "lang", "", "prompt language: en or cn")
	return cmd
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check the device connection and the model endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			backend, closeBackend, err := buildBackend(cfg)
			if err != nil {
				return err
			}
			defer closeBackend()

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if err := backend.Ping(ctx); err != nil {
				fmt.Fprintf(out, "device (%s): %v\n", backend.Name(), err)
			} else {
				fmt.Fprintf(out, "device (%s): ok, foreground %s\n", backend.Name(), backend.CurrentApp(ctx))
			}

			client := buildLLMClient(cfg)
			defer client.Close()
			report, err := llm.TestConnection(ctx, client, cfg.Model.Name)
			if err != nil {
				fmt.Fprintf(out, "model (%s): %s\n", cfg.Model.BaseURL, llm.DescribeError(err))
				return err
			}
			if len(report.Models) > 0 && !report.ModelFound {
				fmt.Fprintf(out, "model: %q is not listed by the endpoint (%s)\n", cfg.Model.Name, strings.Join(report.Models, ", "))
			}
			fmt.Fprintf(out, "model (%s): ok, replied %q\n", cfg.Model.Name, report.Reply)
			return nil
		},
	}
}

func newResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <app>",
		Short: "Print the package an app name resolves to",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			backend, closeBackend, err := buildBackend(cfg)
			if err != nil {
				return err
			}
			defer closeBackend()

			name := strings.Join(args, " ")
			pkg := backend.Resolver().Resolve(cmd.Context(), name)
			if pkg == "" {
				return fmt.Errorf("no package found for %q", name)
			}
			fmt.Fprintln(cmd.OutOrStdout(), pkg)
			return nil
		},
	}
}

func newScreenshotCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "screenshot",
		Short: "Capture the screen as the model sees it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			backend, closeBackend, err := buildBackend(cfg)
			if err != nil {
				return err
			}
			defer closeBackend()

			shot := backend.Screenshot(cmd.Context())
			if err := os.WriteFile(output, shot.Data, 0o644); err != nil {
				return fmt.Errorf("failed to write screenshot: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %dx%d, %d bytes, sensitive=%v\n", output, shot.Width, shot.Height, len(shot.Data), shot.Sensitive)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "screen.jpg", "output file")
	return cmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the task API and progress websocket",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			backend, closeBackend, err := buildBackend(cfg)
			if err != nil {
				return err
			}
			defer closeBackend()

			ctx, cancel := signalContext()
			defer cancel()

			var current atomic.Pointer[config.Config]
			current.Store(cfg)
			path := cfgFile
			if path == "" {
				path = config.DefaultPath()
			}
			go func() {
				err := config.Watch(ctx, path, func(next *config.Config) {
					// Device settings need a restart; model and agent
					// settings apply to the next task.
					next.Device = cfg.Device
					current.Store(next)
					log.Info().Str("model", next.Model.Name).Msg("config reloaded")
				})
				if err != nil {
					log.Warn().Err(err).Str("path", path).Msg("config watch disabled")
				}
			}()

			hub := websocket.NewHub()
			tokens := token.NewTracker(hub.SendTokenUpdate)

			// The manager runs one task at a time; each gets a loop built
			// from the latest config.
			run := func(ctx context.Context, t *task.Task) task.Result {
				c := current.Load()
				model, closeModel := buildModel(c, tokens)
				defer closeModel()
				sink := hub.TaskSink(t.ID)
				takeover := func(ctx context.Context, msg string) {
					sink.OnAction("Take over: " + msg)
				}
				return buildLoop(c, backend, model, sink, takeover).Run(ctx, t)
			}
			manager := task.NewManager(ctx, run, hub.SendTaskUpdate)

			var transcriber server.Transcriber
			if sp := buildSpeech(cfg); sp != nil {
				transcriber = sp
			}
			srv := server.New(server.Options{
				Bind:     cfg.Server.Bind,
				MaxSteps: cfg.Agent.MaxSteps,
				Lang:     cfg.Agent.Lang,
			}, manager, hub, backend, transcriber)
			return srv.Start(ctx)
		},
	}
}

func newTranscribeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "transcribe <file.wav>",
		Short: "Transcribe a mono 16 kHz WAV recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			client := buildSpeech(cfg)
			if client == nil {
				return fmt.Errorf("speech api key is not configured: set ZHIPU_API_KEY")
			}
			wav, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
			defer cancel()
			text, err := client.Transcribe(ctx, wav)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
}
