// Command bookingctl sends one action to a booking server and prints the
// response.
//
// Usage:
//
//	bookingctl [flags] <action> [key=value ...]
//
// Examples:
//
//	bookingctl list_movies
//	bookingctl list_seats screening_id=3
//	bookingctl --user testuser --password password book_seat seat_id=12
//
// With --user the connection logs in before sending the action.  The
// process exits with status 1 when the server answers with an error.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/iliyamo/seat-booking-server/internal/client"
	"github.com/iliyamo/seat-booking-server/internal/protocol"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		var rerr *client.ResponseError
		if !errors.As(err, &rerr) {
			fmt.Fprintf(os.Stderr, "bookingctl: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := pflag.NewFlagSet("bookingctl", pflag.ContinueOnError)
	addr := flags.String("addr", "127.0.0.1:65432", "server address")
	user := flags.StringP("user", "u", "", "log in as this user first")
	password := flags.StringP("password", "p", "", "password for --user")
	timeout := flags.Duration("timeout", 10*time.Second, "overall deadline")
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: bookingctl [flags] <action> [key=value ...]\n\nactions: %s\n\nflags:\n", strings.Join(actionNames(), ", "))
		flags.PrintDefaults()
	}
	if err := flags.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	req, err := buildRequest(flags.Args())
	if err != nil {
		flags.Usage()
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	c, err := client.Dial(ctx, *addr)
	if err != nil {
		return err
	}
	defer c.Close()

	if *user != "" {
		if err := c.Login(ctx, *user, *password); err != nil {
			return fmt.Errorf("login: %w", err)
		}
	}
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}

	out := json.NewEncoder(os.Stdout)
	out.SetIndent("", "  ")
	if err := out.Encode(resp); err != nil {
		return err
	}
	if !resp.IsOK() {
		return &client.ResponseError{Code: resp.Text("code"), Message: resp.Text("message")}
	}
	return nil
}

// buildRequest turns "action key=value ..." into a request.
func buildRequest(args []string) (protocol.Request, error) {
	if len(args) == 0 {
		return protocol.Request{}, errors.New("missing action")
	}
	a := protocol.ParseAction(args[0])
	if a == protocol.ActionUnknown {
		return protocol.Request{}, fmt.Errorf("unknown action %q", args[0])
	}
	req := protocol.NewRequest(a)
	for _, kv := range args[1:] {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			return protocol.Request{}, fmt.Errorf("parameter %q is not key=value", kv)
		}
		if err := req.Set(key, value); err != nil {
			return protocol.Request{}, err
		}
	}
	return req, nil
}

func actionNames() []string {
	var names []string
	for _, a := range protocol.Actions() {
		names = append(names, a.String())
	}
	return names
}
