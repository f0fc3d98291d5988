// Command taskctl manages tasks on a taskboard server from the terminal.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/taskboard/app/internal/logger"
	"github.com/taskboard/app/internal/models"
	"github.com/taskboard/app/internal/taskclient"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

const usage = `usage: taskctl [flags] <command> [args]

commands:
  list [active|completed]          show tasks, newest first
  add <title> [description] [due]  create a task (due: 2006-01-02 or 2006-01-02T15:04)
  done <id>                        mark a task completed
  undo <id>                        mark a task active again
  rm <id>                          delete a task

flags:
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("taskctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}
	addr := fs.String("addr", getEnv("TASKBOARD_URL", "http://localhost:8080"), "server base URL")
	email := fs.String("email", os.Getenv("TASKBOARD_EMAIL"), "account email")
	password := fs.String("password", os.Getenv("TASKBOARD_PASSWORD"), "account password")
	timeout := fs.Duration("timeout", taskclient.DefaultTimeout, "per-command timeout")
	verbose := fs.Bool("v", false, "log requests to stderr")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return exitUsage
	}
	if *email == "" || *password == "" {
		fmt.Fprintln(stderr, "taskctl: -email and -password (or TASKBOARD_EMAIL and TASKBOARD_PASSWORD) are required")
		return exitUsage
	}

	level := "warn"
	if *verbose {
		level = "debug"
	}
	client, err := taskclient.New(*addr, taskclient.WithLogger(logger.New("taskctl", level, stderr)))
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	cmd := command{client: client, out: stdout}
	if _, err := client.Login(ctx, *email, *password); err != nil {
		return cmd.fail(stderr, err)
	}
	if err := client.Load(ctx); err != nil {
		return cmd.fail(stderr, err)
	}

	switch rest[0] {
	case "list":
		tab := ""
		if len(rest) > 1 {
			tab = rest[1]
		}
		err = cmd.list(tab)
	case "add":
		err = cmd.add(ctx, rest[1:])
	case "done", "undo":
		err = cmd.setCompleted(ctx, rest[1:], rest[0] == "done")
	case "rm":
		err = cmd.remove(ctx, rest[1:])
	default:
		fmt.Fprintf(stderr, "taskctl: unknown command %q\n", rest[0])
		fs.Usage()
		return exitUsage
	}
	if err != nil {
		return cmd.fail(stderr, err)
	}
	return exitOK
}

type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

type command struct {
	client *taskclient.Client
	out    io.Writer
}

func (c command) fail(stderr io.Writer, err error) int {
	var ue usageError
	if errors.As(err, &ue) {
		fmt.Fprintln(stderr, "taskctl:", ue.msg)
		return exitUsage
	}
	fmt.Fprintln(stderr, "taskctl:", err)
	return exitFailure
}

func (c command) list(tab string) error {
	var tasks []models.Task
	switch tab {
	case "":
		tasks = c.client.Tasks()
	case "active":
		tasks = c.client.Active()
	case "completed":
		tasks = c.client.Completed()
	default:
		return usageError{fmt.Sprintf("unknown tab %q (want active or completed)", tab)}
	}
	if len(tasks) == 0 {
		fmt.Fprintln(c.out, "no tasks")
		return nil
	}
	for _, t := range tasks {
		fmt.Fprintln(c.out, c.format(t))
	}
	return nil
}

func (c command) format(t models.Task) string {
	mark := " "
	if t.Completed {
		mark = "x"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%4d [%s] %s", t.ID, mark, t.Title)
	if t.DueDate != nil {
		fmt.Fprintf(&b, "  due %s", t.DueDate.Local().Format("2006-01-02 15:04"))
		if s := c.client.DueStatus(t); s != models.DueNone {
			fmt.Fprintf(&b, " (%s)", s)
		}
	}
	if t.Description != nil {
		fmt.Fprintf(&b, "\n       %s", *t.Description)
	}
	return b.String()
}

func (c command) add(ctx context.Context, args []string) error {
	if len(args) == 0 || len(args) > 3 {
		return usageError{"add needs a title and at most a description and a due date"}
	}
	in := models.TaskInput{Title: args[0]}
	if len(args) > 1 && args[1] != "" {
		in.Description = &args[1]
	}
	if len(args) > 2 {
		due, err := models.ParseDueDate(args[2])
		if err != nil {
			return usageError{err.Error()}
		}
		in.DueDate = due
	}
	task, err := c.client.Create(ctx, in)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, c.format(task))
	return nil
}

func (c command) setCompleted(ctx context.Context, args []string, completed bool) error {
	id, err := parseID(args)
	if err != nil {
		return err
	}
	task, err := c.client.SetCompleted(ctx, id, completed)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, c.format(task))
	return nil
}

func (c command) remove(ctx context.Context, args []string) error {
	id, err := parseID(args)
	if err != nil {
		return err
	}
	if err := c.client.Delete(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "deleted %d\n", id)
	return nil
}

func parseID(args []string) (int64, error) {
	if len(args) != 1 {
		return 0, usageError{"expected exactly one task id"}
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, usageError{fmt.Sprintf("invalid task id %q", args[0])}
	}
	return id, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
