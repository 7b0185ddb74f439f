package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/samber/do/v2"
	"golang.org/x/term"

	"library-circulation/internal/config"
	"library-circulation/internal/di"
	"library-circulation/internal/di/providers"
	"library-circulation/internal/logger"
	"library-circulation/library"
)

// readPassword securely reads a password with masking. Replaced in tests.
var readPassword = func(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", err
	}
	fmt.Fprintln(os.Stderr) // Add newline after password input
	return strings.TrimSpace(string(bytePassword)), nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps domain failures to distinct exit statuses for scripts.
func exitCode(err error) int {
	switch library.KindOf(err) {
	case library.KindInvalidCredentials, library.KindForbidden:
		return 3
	case library.KindNotFound:
		return 4
	case library.KindUnavailable, library.KindAlreadyReturned, library.KindConflict:
		return 5
	case library.KindValidation:
		return 2
	}
	return 1
}

// app is the set of services one command runs against.
type app struct {
	injector *do.RootScope
	manager  *library.LibraryManager
	log      *logger.Logger
}

func openApp(flags config.Flags) (*app, error) {
	injector := di.NewContainer(flags)
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		injector.Shutdown()
		return nil, err
	}
	log, err := do.Invoke[*logger.Logger](injector)
	if err != nil {
		injector.Shutdown()
		return nil, err
	}
	handle, err := do.Invoke[*providers.ManagerHandle](injector)
	if err != nil {
		injector.Shutdown()
		return nil, fmt.Errorf("open database: %w", err)
	}
	return &app{injector: injector, manager: handle.LibraryManager, log: log}, nil
}

func (a *app) Close() {
	a.injector.Shutdown()
}

var errNoOperator = errors.New("this command needs an operator: pass --as <user id>")

// login prompts for the operator's password and opens a session.
func (a *app) login(ctx context.Context, userID int64) (*library.Session, error) {
	if userID <= 0 {
		return nil, errNoOperator
	}
	password, err := readPassword(fmt.Sprintf("Password for user %d: ", userID))
	if err != nil {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}
	return a.manager.AuthenticateUser(ctx, userID, password)
}

// truncateString shortens s to at most maxLen runes.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
