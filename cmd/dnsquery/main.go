package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/meidoworks/nekoq-dnsreplica/client"
	"github.com/meidoworks/nekoq-dnsreplica/config"
	"github.com/meidoworks/nekoq-dnsreplica/logging"
)

const prompt = "Enter DNS query or command (e.g., example.com:A, ADD:<domain>:<record_type>:<value>): "

type queryOptions struct {
	configFile string
	primary    string
	secondary  string
	retries    int
	retryDelay time.Duration
	logLevel   string
	http       []string
}

func main() {
	opts := new(queryOptions)
	cmd := &cobra.Command{
		Use:   "dnsquery [query]",
		Short: "Query and update records on a primary/secondary pair",
		Long: `Query and update records on a primary/secondary pair.

Requests go to the primary first and are retried there before the
secondary is tried. Without a query argument an interactive prompt
is started; type 'quit' to leave it. With --http the JSON API of the
given endpoints is used instead, tried in order.
`,
		Example: `  dnsquery example.com:A
  dnsquery ADD:example.com:A:192.0.2.1
  dnsquery --primary 10.0.0.1:8053 --secondary 10.0.0.2:8054
  dnsquery --http http://10.0.0.1:8080,http://10.0.0.2:8080 example.com:A`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, args)
		},
		SilenceUsage: true,
	}
	cmd.Flags().StringVarP(&opts.configFile, "config", "c", "", "TOML config file, only the [client] section is used")
	cmd.Flags().StringVar(&opts.primary, "primary", "", "primary server address")
	cmd.Flags().StringVar(&opts.secondary, "secondary", "", "secondary server address")
	cmd.Flags().IntVar(&opts.retries, "retries", 0, "attempts against the primary")
	cmd.Flags().DurationVar(&opts.retryDelay, "retry-delay", 0, "pause between primary attempts")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "warn", "log level of the client")
	cmd.Flags().StringSliceVar(&opts.http, "http", nil, "HTTP API endpoints, replaces the text protocol client")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func clientConfig(opts *queryOptions) (config.ClientConfig, error) {
	c := config.DefaultClientConfig()
	if opts.configFile != "" {
		cfg, err := config.Load(opts.configFile)
		if err != nil {
			return c, err
		}
		c = cfg.Client
	}
	if opts.primary != "" {
		c.Primary = opts.primary
	}
	if opts.secondary != "" {
		c.Secondary = opts.secondary
	}
	if opts.retries > 0 {
		c.RetryAttempts = opts.retries
	}
	if opts.retryDelay > 0 {
		c.RetryDelayMs = int(opts.retryDelay / time.Millisecond)
	}
	return c, nil
}

func run(cmd *cobra.Command, opts *queryOptions, args []string) error {
	if err := logging.Setup(opts.logLevel, ""); err != nil {
		return err
	}
	sender, err := newSender(opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	if len(args) == 1 {
		if _, err := client.ValidateQuery(args[0]); err != nil {
			return err
		}
		fmt.Fprintln(out, sender.Send(ctx, strings.TrimSpace(args[0])))
		return nil
	}
	return interactive(ctx, sender, cmd.InOrStdin(), out)
}

func newSender(opts *queryOptions) (client.QuerySender, error) {
	if len(opts.http) > 0 {
		return client.NewHttpServiceClient(opts.http...), nil
	}
	c, err := clientConfig(opts)
	if err != nil {
		return nil, err
	}
	return client.NewFailoverClient(c), nil
}

func interactive(ctx context.Context, sender client.QuerySender, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, "[INFO] DNS Client started. Type 'quit' to exit.")
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	for {
		fmt.Fprint(out, prompt)
		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(out, "\n[INFO] Goodbye!")
			return nil
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(out, "\n[INFO] Goodbye!")
				return nil
			}
			line = strings.TrimSpace(l)
		}

		kind, err := client.ValidateQuery(line)
		var malformed *client.MalformedQueryError
		switch {
		case errors.As(err, &malformed):
			fmt.Fprintln(out, malformed.Error())
			continue
		case err != nil:
			return err
		case kind == client.QueryQuit:
			fmt.Fprintln(out, "[INFO] Goodbye!")
			return nil
		}
		fmt.Fprintln(out, "Server response:", sender.Send(ctx, line))
	}
}
