package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/rpupo63/diary-backend/database"
	"github.com/rpupo63/diary-backend/services"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

func promptLine(reader *bufio.Reader, w io.Writer, prompt string) (string, error) {
	if _, err := fmt.Fprint(w, prompt+": "); err != nil {
		return "", err
	}
	line, err := reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func promptPassword(w io.Writer, prompt string) (string, error) {
	if _, err := fmt.Fprint(w, prompt+": "); err != nil {
		return "", err
	}
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return "", err
	}
	return string(pw), nil
}

// createSuperuser asks for an email and a password (typed twice, without
// echo) and stores a staff account with every permission.
func createSuperuser(ctx context.Context, db database.Database, in io.Reader, out io.Writer) error {
	reader := bufio.NewReader(in)

	email, err := promptLine(reader, out, "Email address")
	if err != nil {
		return fmt.Errorf("read email: %w", err)
	}
	password, err := promptPassword(out, "Password")
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}
	again, err := promptPassword(out, "Password (again)")
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}
	if password != again {
		return errors.New("passwords didn't match")
	}

	user, err := services.NewAccounts(db.UserRepo()).CreateSuperuser(ctx, email, password)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Superuser %s created successfully.\n", user.Email)
	return nil
}
