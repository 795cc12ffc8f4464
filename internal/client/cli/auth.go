package cli

import (
	"context"
	"errors"
	"os"

	"github.com/dkuzmenko/authd/internal/common"
)

func (a *App) promptCredentials() (string, string, error) {
	email, err := GetSimpleText(a.reader, "Enter email:", os.Stdout)
	if err != nil {
		return "", "", err
	}
	pw, err := GetPassword(os.Stdout)
	if err != nil {
		return "", "", err
	}
	defer common.WipeByteArray(pw)
	return email, string(pw), nil
}

func (a *App) Register(ctx context.Context) error {
	email, pwd, err := a.promptCredentials()
	if err != nil {
		return err
	}

	err = a.api.Register(ctx, email, pwd)
	switch {
	case err == nil:
		printlnFn("Account created, you can now log in.")
	case errors.Is(err, common.ErrorAlreadyExists):
		printlnFn("That email is already registered.")
	case errors.Is(err, common.ErrInvalidCredentials):
		printlnFn("A valid email and a password of at least 8 characters are required.")
	default:
		printlnFn("Registration failed:", err)
	}
	return err
}

func (a *App) Login(ctx context.Context) error {
	email, pwd, err := a.promptCredentials()
	if err != nil {
		return err
	}

	err = a.api.Login(ctx, email, pwd)
	switch {
	case err == nil:
		a.email = email
		printlnFn("Logged in.")
	case errors.Is(err, common.ErrInvalidCredentials):
		printlnFn("Invalid credentials.")
	default:
		printlnFn("Login failed:", err)
	}
	return err
}

func (a *App) Me(ctx context.Context) error {
	account, err := a.api.Me(ctx)
	if err != nil {
		if errors.Is(err, common.ErrorUnauthorized) {
			printlnFn("Session expired, please log in again.")
			a.email = ""
		} else {
			printlnFn("Request failed:", err)
		}
		return err
	}
	printlnFn("ID:     ", account.ID)
	printlnFn("Email:  ", account.Email)
	printlnFn("Created:", account.CreatedAt.Format("2006-01-02 15:04:05"))
	return nil
}

func (a *App) Refresh(ctx context.Context) error {
	err := a.api.Refresh(ctx)
	switch {
	case err == nil:
		printlnFn("Tokens refreshed.")
	case errors.Is(err, common.ErrorUnauthorized):
		printlnFn("Session expired, please log in again.")
		a.email = ""
	default:
		printlnFn("Refresh failed:", err)
	}
	return err
}

func (a *App) Logout(ctx context.Context) error {
	err := a.api.Logout(ctx)
	a.email = ""
	if err != nil {
		printlnFn("Logout request failed, local session dropped anyway:", err)
		return err
	}
	printlnFn("Logged out.")
	return nil
}
