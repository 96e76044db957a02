// Package main implements the schedules operator tool.
//
// It validates the schedule table and renders the EventBridge Scheduler
// schedules that fire the dispatcher, so that the deployed schedules are
// derived from the same table the dispatcher resolves against.
//
// Usage:
//
//	go run ./cmd/ops/schedules validate [-file=schedules.json]
//	go run ./cmd/ops/schedules scheduler -target-arn=arn:aws:lambda:...:function:lotto-dispatcher -role-arn=arn:aws:iam::...:role/lotto-scheduler
//	go run ./cmd/ops/schedules preview -name=powerball-only
//	go run ./cmd/ops/schedules match -at=2026-10-16T20:20:00Z
//	go run ./cmd/ops/schedules next [-from=2026-10-16T00:00:00Z]
//	go run ./cmd/ops/schedules games
//	go run ./cmd/ops/schedules token -env=dev [-overwrite] [-from-env=VAR]
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"lottodispatch/internal/catalog"
	"lottodispatch/internal/config"
	"lottodispatch/internal/invoker"
	"lottodispatch/internal/payload"
	"lottodispatch/internal/schedule"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

var validEnvironments = map[string]bool{
	"dev":     true,
	"staging": true,
	"prod":    true,
}

type cli struct {
	stdout io.Writer
	stderr io.Writer
	logger *slog.Logger
	now    func() time.Time
	getenv func(string) string
	newSSM func(ctx context.Context, region string) (SSMClient, error)
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	c := &cli{
		stdout: os.Stdout,
		stderr: os.Stderr,
		logger: logger,
		now:    time.Now,
		getenv: os.Getenv,
		newSSM: newSSMClient,
	}
	code := c.run(ctx, os.Args[1:])
	cancel()
	os.Exit(code)
}

func newSSMClient(ctx context.Context, region string) (SSMClient, error) {
	endpoint := os.Getenv("AWS_ENDPOINT_URL")
	awsCfg, err := invoker.LoadAWSConfig(ctx, config.AWSConfig{Region: region, EndpointURL: endpoint})
	if err != nil {
		return nil, err
	}
	return ssm.NewFromConfig(awsCfg, func(o *ssm.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}

func (c *cli) usage() {
	fmt.Fprintf(c.stderr, "Lottery schedule operator tool\n\n")
	fmt.Fprintf(c.stderr, "Usage:\n")
	fmt.Fprintf(c.stderr, "  schedules <command> [flags]\n\n")
	fmt.Fprintf(c.stderr, "Commands:\n")
	fmt.Fprintf(c.stderr, "  validate   load and validate the schedule table\n")
	fmt.Fprintf(c.stderr, "  scheduler  render EventBridge Scheduler schedules as JSON\n")
	fmt.Fprintf(c.stderr, "  preview    print the payload for one schedule\n")
	fmt.Fprintf(c.stderr, "  match      list the schedules a firing at a given time dispatches\n")
	fmt.Fprintf(c.stderr, "  next       list the next firing of every schedule\n")
	fmt.Fprintf(c.stderr, "  games      list the lottery types the compute function accepts\n")
	fmt.Fprintf(c.stderr, "  token      publish the compute auth token to SSM Parameter Store\n\n")
	fmt.Fprintf(c.stderr, "Run 'schedules <command> -h' for command flags.\n")
}

func (c *cli) run(ctx context.Context, args []string) int {
	if len(args) == 0 {
		c.usage()
		return exitUsage
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "validate":
		return c.validate(rest)
	case "scheduler":
		return c.scheduler(rest)
	case "preview":
		return c.preview(rest)
	case "match":
		return c.match(rest)
	case "next":
		return c.next(rest)
	case "games":
		return c.games(rest)
	case "token":
		return c.token(ctx, rest)
	case "help", "-h", "--help":
		c.usage()
		return exitOK
	default:
		fmt.Fprintf(c.stderr, "error: unknown command %q\n\n", cmd)
		c.usage()
		return exitUsage
	}
}

// tableFlags are shared by every command that reads the schedule table.
type tableFlags struct {
	file     string
	timezone string
}

func (c *cli) newFlagSet(name string) (*flag.FlagSet, *tableFlags) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	tf := &tableFlags{}
	fs.StringVar(&tf.file, "file", "", "Schedule table JSON (default: embedded table)")
	fs.StringVar(&tf.timezone, "tz", "UTC", "Time zone the cron expressions are evaluated in")
	return fs, tf
}

func (tf *tableFlags) load() (*schedule.Table, error) {
	loc, err := config.ScheduleConfig{Timezone: tf.timezone}.Location()
	if err != nil {
		return nil, err
	}
	return schedule.Load(tf.file, schedule.WithLocation(loc))
}

// parseFlags returns an exit code and false when the command should stop.
func parseFlags(fs *flag.FlagSet, args []string) (int, bool) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK, false
		}
		return exitUsage, false
	}
	return exitOK, true
}

func (c *cli) validate(args []string) int {
	fs, tf := c.newFlagSet("validate")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}

	table, err := tf.load()
	if err != nil {
		fmt.Fprintf(c.stderr, "invalid schedule table:\n%v\n", err)
		return exitError
	}

	fmt.Fprintf(c.stdout, "ok: %d schedules (%s)\n", table.Len(), table.Location())
	return exitOK
}

func (c *cli) scheduler(args []string) int {
	fs, tf := c.newFlagSet("scheduler")
	ts := targetSpec{}
	fs.StringVar(&ts.prefix, "prefix", "lotto-", "Schedule name prefix")
	fs.StringVar(&ts.group, "group", "", "Scheduler schedule group (default: the account's default group)")
	fs.StringVar(&ts.arn, "target-arn", "", "ARN of the target function")
	fs.StringVar(&ts.roleArn, "role-arn", "", "IAM role Scheduler assumes to invoke the target")
	fs.StringVar(&ts.mode, "target", targetDispatcher, "Target kind: dispatcher (input names the schedule) or compute (input is the payload)")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}

	table, err := tf.load()
	if err != nil {
		fmt.Fprintf(c.stderr, "invalid schedule table:\n%v\n", err)
		return exitError
	}

	out := make([]SchedulerSchedule, 0, table.Len())
	for _, s := range table.All() {
		def, err := buildSchedule(s, ts, table.Location().String())
		if err != nil {
			fmt.Fprintf(c.stderr, "error: %v\n", err)
			return exitError
		}
		out = append(out, def)
	}

	enc := json.NewEncoder(c.stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(c.stderr, "error: %v\n", err)
		return exitError
	}
	return exitOK
}

func (c *cli) preview(args []string) int {
	fs, tf := c.newFlagSet("preview")
	name := fs.String("name", "", "Schedule name [required]")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if *name == "" {
		fmt.Fprintf(c.stderr, "error: -name is required\n")
		return exitUsage
	}

	table, err := tf.load()
	if err != nil {
		fmt.Fprintf(c.stderr, "invalid schedule table:\n%v\n", err)
		return exitError
	}

	s, ok := table.ByName(*name)
	if !ok {
		fmt.Fprintf(c.stderr, "error: schedule %q not found\n", *name)
		return exitError
	}

	body, err := payload.Render(s)
	if err != nil {
		fmt.Fprintf(c.stderr, "error: %v\n", err)
		return exitError
	}

	fmt.Fprintln(c.stdout, string(body))
	fmt.Fprintf(c.stderr, "digest: %s\n", payload.Digest(body))
	return exitOK
}

func (c *cli) match(args []string) int {
	fs, tf := c.newFlagSet("match")
	at := fs.String("at", "", "Firing time, RFC 3339 [required]")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if *at == "" {
		fmt.Fprintf(c.stderr, "error: -at is required\n")
		return exitUsage
	}
	firedAt, err := time.Parse(time.RFC3339, *at)
	if err != nil {
		fmt.Fprintf(c.stderr, "error: invalid -at: %v\n", err)
		return exitUsage
	}

	table, err := tf.load()
	if err != nil {
		fmt.Fprintf(c.stderr, "invalid schedule table:\n%v\n", err)
		return exitError
	}

	matches := table.Matching(firedAt)
	if len(matches) == 0 {
		fmt.Fprintf(c.stderr, "no schedule matches %s\n", firedAt.Format(time.RFC3339))
		return exitError
	}
	for _, s := range matches {
		fmt.Fprintln(c.stdout, s.Name)
	}
	return exitOK
}

func (c *cli) next(args []string) int {
	fs, tf := c.newFlagSet("next")
	from := fs.String("from", "", "Reference time, RFC 3339 (default: now)")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}

	ref := c.now()
	if *from != "" {
		t, err := time.Parse(time.RFC3339, *from)
		if err != nil {
			fmt.Fprintf(c.stderr, "error: invalid -from: %v\n", err)
			return exitUsage
		}
		ref = t
	}

	table, err := tf.load()
	if err != nil {
		fmt.Fprintf(c.stderr, "invalid schedule table:\n%v\n", err)
		return exitError
	}

	w := tabwriter.NewWriter(c.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SCHEDULE\tNEXT FIRING\tTOLERANCE")
	for _, f := range table.NextFirings(ref) {
		s, _ := table.ByName(f.Schedule)
		fmt.Fprintf(w, "%s\t%s\t%s\n", f.Schedule, f.At.Format(time.RFC3339), s.Tolerance())
	}
	if err := w.Flush(); err != nil {
		fmt.Fprintf(c.stderr, "error: %v\n", err)
		return exitError
	}
	return exitOK
}

func (c *cli) games(args []string) int {
	fs := flag.NewFlagSet("games", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}

	w := tabwriter.NewWriter(c.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "LOTTERY TYPE\tDEFAULT BOARDS\tMAX BOARDS")
	for _, lt := range catalog.Types() {
		fmt.Fprintf(w, "%s\t%d\t%d\n", lt, catalog.DefaultBoards(lt), catalog.MaxBoardCount)
	}
	if err := w.Flush(); err != nil {
		fmt.Fprintf(c.stderr, "error: %v\n", err)
		return exitError
	}
	return exitOK
}

func (c *cli) token(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	env := fs.String("env", "", "Target environment (dev/staging/prod) [required]")
	region := fs.String("region", "af-south-1", "AWS region")
	overwrite := fs.Bool("overwrite", false, "Replace an existing token")
	fromEnv := fs.String("from-env", "", "Read the token from this environment variable instead of generating one")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}

	if !validEnvironments[*env] {
		fmt.Fprintf(c.stderr, "error: invalid environment %q (must be dev, staging, or prod)\n", *env)
		return exitUsage
	}

	var value string
	if *fromEnv != "" {
		value = c.getenv(*fromEnv)
		if value == "" {
			fmt.Fprintf(c.stderr, "error: environment variable %s is empty\n", *fromEnv)
			return exitUsage
		}
	} else {
		generated, err := generateToken()
		if err != nil {
			fmt.Fprintf(c.stderr, "error: %v\n", err)
			return exitError
		}
		value = generated
	}

	client, err := c.newSSM(ctx, *region)
	if err != nil {
		fmt.Fprintf(c.stderr, "error: %v\n", err)
		return exitError
	}

	path := tokenPath(*env)
	if err := NewTokenPublisher(client, c.logger).Publish(ctx, path, value, *overwrite); err != nil {
		fmt.Fprintf(c.stderr, "error: %v\n", err)
		return exitError
	}

	fmt.Fprintf(c.stdout, "COMPUTE_AUTH_TOKEN_SSM_PARAM=%s\n", path)
	return exitOK
}
