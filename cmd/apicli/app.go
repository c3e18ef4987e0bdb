package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/eshaffer321/apiclient-go/pkg/apiclient"
	"github.com/eshaffer321/apiclient-go/pkg/config"
	"github.com/eshaffer321/apiclient-go/pkg/logging"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags
var Version = "dev"

// ConfigLoader loads configuration from a path
type ConfigLoader func(path string) (*config.Config, error)

// App holds CLI state and runtime dependencies
type App struct {
	root *cobra.Command

	loadConfig ConfigLoader
	stdout     io.Writer
	stderr     io.Writer

	cfgFile    string
	baseURL    string
	verbose    bool
	jsonOutput bool

	cfg    *config.Config
	client *apiclient.Client
}

// NewApp creates the CLI with default dependencies
func NewApp(stdout, stderr io.Writer) *App {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}

	a := &App{
		loadConfig: config.Load,
		stdout:     stdout,
		stderr:     stderr,
	}
	a.root = a.newRootCommand()
	return a
}

// Execute runs the CLI with args
func (a *App) Execute(ctx context.Context, args []string) error {
	a.root.SetArgs(args)
	a.root.SetOut(a.stdout)
	a.root.SetErr(a.stderr)
	return a.root.ExecuteContext(ctx)
}

func (a *App) newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "apicli",
		Short: "apicli - call an API through the resilient client",
		Long: `apicli issues requests through the API client: tokens are attached and
refreshed automatically, and transient failures are retried with backoff.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.client != nil {
				return a.client.Close()
			}
			return nil
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (YAML)")
	root.PersistentFlags().StringVar(&a.baseURL, "base-url", "", "override the API base URL")
	root.PersistentFlags().BoolVar(&a.verbose, "verbose", false, "enable debug logging")
	root.PersistentFlags().BoolVar(&a.jsonOutput, "json", false, "emit JSON output")

	root.AddCommand(
		a.newRequestCommand(),
		a.newLoginCommand(),
		a.newLogoutCommand(),
		a.newSessionCommand(),
		a.newVersionCommand(),
	)
	return root
}

func (a *App) init(ctx context.Context) error {
	cfg, err := a.loadConfig(a.cfgFile)
	if err != nil {
		return err
	}
	if a.baseURL != "" {
		cfg.BaseURL = a.baseURL
	}
	if a.verbose {
		cfg.Log.Level = "debug"
	}
	a.cfg = cfg

	logger := logging.New(cfg.Log.Level, cfg.Log.Pretty)

	client, err := apiclient.NewClientFromConfig(ctx, cfg, logger)
	if err != nil {
		return err
	}
	client.OnSessionExpired(func(e apiclient.SessionExpiredEvent) {
		fmt.Fprintln(a.stderr, "session expired, run `apicli login` to sign in again")
	})
	a.client = client
	return nil
}

func (a *App) newRequestCommand() *cobra.Command {
	var (
		data    string
		headers []string
	)

	cmd := &cobra.Command{
		Use:   "request METHOD PATH",
		Short: "Send a request and print the response body",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := &apiclient.Request{
				Method: strings.ToUpper(args[0]),
				URL:    args[1],
			}
			if data != "" {
				if !json.Valid([]byte(data)) {
					return fmt.Errorf("--data is not valid JSON")
				}
				req.Body = []byte(data)
			}
			for _, h := range headers {
				k, v, ok := strings.Cut(h, ":")
				if !ok {
					return fmt.Errorf("invalid header %q, want Name: value", h)
				}
				req.SetHeader(strings.TrimSpace(k), strings.TrimSpace(v))
			}

			resp, err := a.client.Do(cmd.Context(), req)
			if err != nil {
				return a.printError(err)
			}

			if a.jsonOutput {
				return json.NewEncoder(a.stdout).Encode(map[string]interface{}{
					"status":     resp.StatusCode,
					"requestId":  req.ID,
					"retryCount": req.RetryCount,
					"durationMs": resp.Duration.Milliseconds(),
					"body":       rawBody(resp.Body),
				})
			}
			_, err = fmt.Fprintln(a.stdout, string(resp.Body))
			return err
		},
	}

	cmd.Flags().StringVarP(&data, "data", "d", "", "JSON request body")
	cmd.Flags().StringArrayVarP(&headers, "header", "H", nil, "extra header, Name: value (repeatable)")
	return cmd
}

func (a *App) newLoginCommand() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("APICLIENT_PASSWORD")
			}
			if email == "" || password == "" {
				return fmt.Errorf("--email and --password (or APICLIENT_PASSWORD) are required")
			}

			if err := a.client.Login(cmd.Context(), email, password); err != nil {
				return a.printError(err)
			}
			fmt.Fprintln(a.stdout, "logged in")
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	return cmd
}

func (a *App) newLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			a.client.Logout(cmd.Context())
			fmt.Fprintln(a.stdout, "logged out")
			return nil
		},
	}
}

func (a *App) newSessionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "session",
		Short: "Show whether a session is stored",
		RunE: func(cmd *cobra.Command, args []string) error {
			s := a.client.Session()
			if a.jsonOutput {
				return json.NewEncoder(a.stdout).Encode(map[string]interface{}{
					"authenticated":   s.IsAuthenticated(),
					"hasRefreshToken": s.RefreshToken != "",
					"baseUrl":         a.client.BaseURL(),
				})
			}
			if s.IsAuthenticated() {
				fmt.Fprintf(a.stdout, "authenticated against %s\n", a.client.BaseURL())
			} else {
				fmt.Fprintf(a.stdout, "not authenticated against %s\n", a.client.BaseURL())
			}
			return nil
		},
	}
}

func (a *App) newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		// Needs no config or client
		PersistentPreRunE:  func(cmd *cobra.Command, args []string) error { return nil },
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(a.stdout, "apicli %s\n", Version)
		},
	}
}

// printError writes the typed failure and returns it for the exit code
func (a *App) printError(err error) error {
	if e, ok := err.(*apiclient.Error); ok {
		if a.jsonOutput {
			_ = json.NewEncoder(a.stderr).Encode(e)
		} else {
			fmt.Fprintf(a.stderr, "%s: %s\n", e.Kind, e.Message)
			for field, msgs := range e.FieldErrors {
				fmt.Fprintf(a.stderr, "  %s: %s\n", field, strings.Join(msgs, ", "))
			}
		}
	}
	return err
}

// rawBody embeds a JSON body as is and quotes anything else
func rawBody(body []byte) json.RawMessage {
	if len(body) == 0 {
		return json.RawMessage("null")
	}
	if json.Valid(body) {
		return body
	}
	b, _ := json.Marshal(string(body))
	return b
}
