package cli

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/dmitrijs2005/mealkeeper/internal/client/client"
	"github.com/dmitrijs2005/mealkeeper/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// readCredentials asks for a user name and a password.
func (a *App) readCredentials() (string, string, error) {
	userName, err := getSimpleText(a.reader, "Enter user name", a.out)
	if err != nil {
		return "", "", err
	}

	password, err := getPassword("Enter password", a.out)
	if err != nil {
		return "", "", err
	}
	defer common.WipeByteArray(password)

	return userName, string(password), nil
}

// Register prompts for credentials and creates an account. It does not log in.
func (a *App) Register(ctx context.Context) error {
	userName, password, err := a.readCredentials()
	if err != nil {
		return err
	}

	u, err := a.api.Register(ctx, userName, password)
	if err != nil {
		log.Printf("Registration unsuccessful: %v", err)
		return err
	}

	fmt.Fprintf(a.out, "Registered %s (%s)\n", u.UserName, u.ID)
	return nil
}

// Login prompts for credentials and opens a session for this device.
func (a *App) Login(ctx context.Context) error {
	userName, password, err := a.readCredentials()
	if err != nil {
		return err
	}

	s, err := a.api.Login(ctx, userName, password)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrInvalidCredentials):
			log.Printf("Login unsuccessful: wrong user name or password")
		case errors.Is(err, client.ErrRateLimited):
			log.Printf("Login unsuccessful: too many attempts, try again later")
		default:
			log.Printf("Login unsuccessful: %v", err)
		}
		return err
	}

	log.Printf("Login successful, welcome %s", s.UserName)
	return nil
}

// Logout ends the session of this device only.
func (a *App) Logout(ctx context.Context) error {
	if err := a.api.Logout(ctx); err != nil {
		log.Printf("Logout: %v", err)
		return err
	}
	fmt.Fprintln(a.out, "Logged out")
	return nil
}

// LogoutAll revokes the sessions of every device of the current user.
func (a *App) LogoutAll(ctx context.Context) error {
	n, err := a.api.LogoutAll(ctx)
	if err != nil {
		log.Printf("Logout everywhere: %v", err)
		return err
	}
	fmt.Fprintf(a.out, "Logged out of %d session(s)\n", n)
	return nil
}

// ChangePassword asks for the current and the new password. Every session,
// this one included, ends on success.
func (a *App) ChangePassword(ctx context.Context) error {
	oldPassword, err := getPassword("Current password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(oldPassword)

	newPassword, err := getPassword("New password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(newPassword)

	if err := a.api.ChangePassword(ctx, string(oldPassword), string(newPassword)); err != nil {
		log.Printf("Change password: %v", err)
		return err
	}

	fmt.Fprintln(a.out, "Password changed, please log in again")
	return nil
}
