package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"gallery-go/internal/app"
	"gallery-go/internal/config"
	"gallery-go/internal/gallery"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/spf13/cobra"
)

func main() {
	app.LoadEnv()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// readConfig reads the config file named by the defaults.
func readConfig() (*config.Config, string, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, "", fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, "", fmt.Errorf("reading config: %w", err)
	}
	return cfg, defaults["config_path"], nil
}

// newApp reads the config and creates a GalleryApp. The caller must defer app.Close().
// command identifies the CLI command being run (e.g. "ingest", "serve").
func newApp(ctx context.Context, command string) (*app.GalleryApp, error) {
	cfg, _, err := readConfig()
	if err != nil {
		return nil, err
	}

	a, err := app.NewGalleryApp(ctx, cfg, command, app.Deps{})
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// bucketFlag resolves --bucket or --bucket-arn to a bucket name.
func bucketFlag(cmd *cobra.Command) (string, error) {
	name, _ := cmd.Flags().GetString("bucket")
	bucketARN, _ := cmd.Flags().GetString("bucket-arn")
	if name == "" && bucketARN == "" {
		return "", errors.New("one of --bucket or --bucket-arn is required")
	}
	return gallery.Notification{Bucket: name, BucketARN: bucketARN}.BucketName()
}

var rootCmd = &cobra.Command{
	Use:          "gallery",
	Short:        "Index a photo export into albums",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", cfg.BaseDir)
		fmt.Println("Run `gallery migrate` to create the item database.")
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := readConfig()
		if err != nil {
			return err
		}

		fmt.Printf("Configuration from %s:\n\n", path)
		m := &config.Manager{}
		return m.Write(os.Stdout, cfg)
	},
}

// migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply item database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := readConfig()
		if err != nil {
			return err
		}
		if err := app.Migrate(cfg); err != nil {
			return fmt.Errorf("migrating: %w", err)
		}
		fmt.Println("Database is up to date.")
		return nil
	},
}

// ingest command
var ingestCmd = &cobra.Command{
	Use:   "ingest KEY...",
	Short: "Process object keys as if they had just been uploaded",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bucket, err := bucketFlag(cmd)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		a, err := newApp(ctx, "ingest")
		if err != nil {
			return err
		}
		defer a.Close()

		results := a.Ingest(ctx, bucket, args)

		failed := 0
		rows := make([][]string, 0, len(results))
		for _, r := range results {
			msg := ""
			if r.Err != nil {
				failed++
				msg = r.Err.Error()
			}
			rows = append(rows, []string{r.Key, r.Outcome.String(), msg})
		}
		if err := printTable(cmd, []string{"Key", "Outcome", "Error"}, rows, nil, nil); err != nil {
			return err
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d key(s) failed", failed, len(results))
		}
		return nil
	},
}

// scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run every object in a bucket through the batch handler",
	RunE: func(cmd *cobra.Command, args []string) error {
		prefix, _ := cmd.Flags().GetString("prefix")
		verbose, _ := cmd.Flags().GetBool("verbose")
		bucket, err := bucketFlag(cmd)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		a, err := newApp(ctx, "scan")
		if err != nil {
			return err
		}
		defer a.Close()

		resp, err := a.Scan(ctx, bucket, prefix)
		if err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}

		if verbose {
			rows := make([][]string, 0, len(resp.Results))
			for _, r := range resp.Results {
				rows = append(rows, []string{r.TaskID, r.ResultCode, r.ResultString})
			}
			if err := printTable(cmd, []string{"Task", "Result", "Detail"}, rows, nil, resp); err != nil {
				return err
			}
		}

		op := a.Operation()
		rows := make([][]string, 0, len(op.Results))
		for _, code := range op.Codes() {
			rows = append(rows, []string{code, strconv.Itoa(op.Results[code])})
		}
		rows = append(rows, []string{"Total", strconv.Itoa(op.Total())})
		return printTable(cmd, []string{"Result", "Count"}, rows, []columnAlignment{alignLeft, alignRight}, op)
	},
}

// albums command
var albumsCmd = &cobra.Command{
	Use:   "albums",
	Short: "List albums",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, "albums")
		if err != nil {
			return err
		}
		defer a.Close()

		albums, err := a.Albums(ctx)
		if err != nil {
			return err
		}

		var rows [][]string
		for _, namespace := range []string{"source", "date"} {
			for _, name := range albums[namespace] {
				rows = append(rows, []string{namespace, name})
			}
		}
		if len(rows) == 0 && !jsonOutput(cmd) {
			fmt.Println("No albums.")
			return nil
		}
		return printTable(cmd, []string{"Namespace", "Album"}, rows, nil, albums)
	},
}

// album command
var albumCmd = &cobra.Command{
	Use:   "album ALBUM",
	Short: "List the items of an album, e.g. source/Trip or date/2020/2/15",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, "album")
		if err != nil {
			return err
		}
		defer a.Close()

		members, err := a.AlbumMembers(ctx, args[0])
		if err != nil {
			return err
		}

		rows := make([][]string, 0, len(members))
		for _, hash := range members {
			rows = append(rows, []string{hash})
		}
		return printTable(cmd, []string{"Content Hash"}, rows, nil, members)
	},
}

// item command
var itemCmd = &cobra.Command{
	Use:   "item HASH",
	Short: "Show an indexed item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, "item")
		if err != nil {
			return err
		}
		defer a.Close()

		item, err := a.GetItem(ctx, args[0])
		if err != nil {
			return err
		}
		if item == nil {
			return fmt.Errorf("no item with hash %s", args[0])
		}

		captured := "-"
		if item.CaptureTime != nil {
			captured = time.Unix(*item.CaptureTime, 0).UTC().Format(time.RFC3339)
		}
		rows := [][]string{
			{"Content Hash", item.ContentHash},
			{"Content Type", item.ContentType},
			{"Captured", captured},
			{"Locations", strings.Join(item.Locations, "\n")},
			{"Albums", strings.Join(item.Albums, "\n")},
		}
		return printTable(cmd, []string{"Field", "Value"}, rows, nil, item)
	},
}

// serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the read-only album API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, "serve")
		if err != nil {
			return err
		}
		defer a.Close()

		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			cfg, _, err := readConfig()
			if err != nil {
				return err
			}
			addr = cfg.Server.Addr
		}

		srv := &http.Server{
			Addr:              addr,
			Handler:           a.Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			a.Logger().Info("listening", "addr", addr)
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serving: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		a.Logger().Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

// lambda command
var lambdaCmd = &cobra.Command{
	Use:   "lambda",
	Short: "Run as an AWS Lambda function",
	Long: `Run as an AWS Lambda function.

--mode queue handles SQS messages carrying S3 event notifications.
--mode batch handles S3 Batch Operations jobs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, _ := cmd.Flags().GetString("mode")

		a, err := newApp(cmd.Context(), "lambda-"+mode)
		if err != nil {
			return err
		}
		defer a.Close()

		switch mode {
		case "queue":
			lambda.Start(a.QueueHandler().Handle)
		case "batch":
			lambda.Start(a.BatchHandler().Handle)
		default:
			return fmt.Errorf("unknown mode %q (want queue or batch)", mode)
		}
		return nil
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.PersistentFlags().Bool("json", false, "Print JSON even on a terminal")
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().StringP("bucket", "b", "", "Bucket the keys live in")
	ingestCmd.Flags().String("bucket-arn", "", "Bucket ARN, instead of --bucket")
	ingestCmd.MarkFlagsMutuallyExclusive("bucket", "bucket-arn")
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().StringP("bucket", "b", "", "Bucket to scan")
	scanCmd.Flags().String("bucket-arn", "", "Bucket ARN, instead of --bucket")
	scanCmd.MarkFlagsMutuallyExclusive("bucket", "bucket-arn")
	scanCmd.Flags().StringP("prefix", "p", "", "Only scan keys starting with this prefix")
	scanCmd.Flags().BoolP("verbose", "v", false, "Show the result of every task")
	rootCmd.AddCommand(albumsCmd)
	rootCmd.AddCommand(albumCmd)
	rootCmd.AddCommand(itemCmd)
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address (default from config)")
	rootCmd.AddCommand(lambdaCmd)
	lambdaCmd.Flags().String("mode", "queue", "Event source: queue or batch")
}
