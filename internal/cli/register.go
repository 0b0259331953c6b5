package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/isdelr/bookshare-be/internal/config"
	"github.com/isdelr/bookshare-be/internal/database"
	"github.com/isdelr/bookshare-be/internal/services"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// prompter reads a credential after printing prompt.
type prompter func(prompt string, in io.Reader, out io.Writer) (string, error)

// passwordPrompt reads without echo when stdin is a terminal and falls back
// to a plain line read otherwise.
func passwordPrompt(prompt string, in io.Reader, out io.Writer) (string, error) {
	fmt.Fprint(out, prompt)
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func newRegisterCommand(load func() (*config.Config, error), in io.Reader, prompt prompter) *cobra.Command {
	return &cobra.Command{
		Use:   "register <username>",
		Short: "Register an account from the terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			credential, err := prompt("Credential: ", in, cmd.OutOrStdout())
			if err != nil {
				return fmt.Errorf("failed to read credential: %w", err)
			}
			if credential == "" {
				return errors.New("credential cannot be empty")
			}

			db, err := database.New(cfg.DatabasePath)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := database.Migrate(cmd.Context(), db); err != nil {
				return err
			}

			account, err := services.NewAccountService(db, cfg.BcryptCost).Register(cmd.Context(), args[0], credential)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s\n", account.Username)
			return nil
		},
	}
}
