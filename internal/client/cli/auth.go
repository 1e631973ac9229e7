package cli

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/memberauth/internal/client/client"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

func (a *App) readCredentials() (string, string, error) {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return "", "", err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return "", "", err
	}
	defer wipe(password)

	return email, string(password), nil
}

func (a *App) report(res client.Result) {
	if res.OK() {
		a.printf("Success!\n")
		return
	}
	a.printf("Rejected (%s): %s\n", res.Code, res.Message)
}

// explain turns a transport error into a user-facing line.
func (a *App) explain(err error) error {
	switch {
	case errors.Is(err, client.ErrUnavailable):
		a.printf("Server unavailable, try again later\n")
	case errors.Is(err, client.ErrNotLoggedIn):
		a.printf("Not logged in\n")
	case errors.Is(err, client.ErrUnauthorized):
		a.printf("Session expired, please log in again\n")
	default:
		a.printf("Error: %s\n", err)
	}
	return err
}

// Join prompts for credentials and creates a new member. It does not log in.
func (a *App) Join(ctx context.Context) error {
	email, password, err := a.readCredentials()
	if err != nil {
		return err
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	res, err := a.client.Join(ctx, email, password)
	if err != nil {
		return a.explain(err)
	}

	a.report(res)
	return nil
}

func (a *App) Login(ctx context.Context) error {
	email, password, err := a.readCredentials()
	if err != nil {
		return err
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	res, err := a.client.Login(ctx, email, password)
	if err != nil {
		return a.explain(err)
	}

	if res.OK() {
		a.email = email
	}
	a.report(res)
	return nil
}

func (a *App) Refresh(ctx context.Context) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	res, err := a.client.Refresh(ctx)
	if err != nil {
		return a.explain(err)
	}

	a.report(res)
	return nil
}

func (a *App) Whoami(ctx context.Context) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	id, err := a.client.Whoami(ctx)
	if err != nil {
		return a.explain(err)
	}

	a.printf("%s (%s)\n", id.Email, id.MemberID)
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	res, err := a.client.Logout(ctx)
	a.email = ""
	if err != nil {
		return a.explain(err)
	}

	a.report(res)
	return nil
}

func (a *App) Ping(ctx context.Context) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	if err := a.client.Ping(ctx); err != nil {
		return a.explain(err)
	}

	a.printf("Server is up\n")
	return nil
}

