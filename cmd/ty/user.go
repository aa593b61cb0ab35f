package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zulandar/testyard/internal/alias"
	"github.com/zulandar/testyard/internal/auth"
	"github.com/zulandar/testyard/internal/config"
	"golang.org/x/term"
)

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "User management commands",
	}

	cmd.AddCommand(newUserAddCmd())
	cmd.AddCommand(newUserGrantCmd())
	return cmd
}

func newUserAddCmd() *cobra.Command {
	var (
		configPath string
		admin      bool
	)

	cmd := &cobra.Command{
		Use:   "add <username>",
		Short: "Create a dashboard user",
		Long: `Creates a dashboard user. The password is prompted for with echo
disabled, or read from the first line of stdin when stdin is not a terminal.
With --admin the user is granted admin on every project.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUserAdd(cmd, configPath, args[0], admin)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultPath, "path to Testyard config file")
	cmd.Flags().BoolVar(&admin, "admin", false, "grant admin on every project")
	return cmd
}

func runUserAdd(cmd *cobra.Command, configPath, username string, admin bool) error {
	password, err := readPassword(cmd)
	if err != nil {
		return err
	}

	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	scopes := map[string]string{}
	if admin {
		scopes[auth.Wildcard] = auth.RightAdmin
	}
	user, err := auth.CreateUser(gormDB, username, password, scopes)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created user %q%s\n", user.Username, formatScopes(user.Scopes.Data()))
	return nil
}

func newUserGrantCmd() *cobra.Command {
	var (
		configPath string
		revoke     bool
	)

	cmd := &cobra.Command{
		Use:   "grant <username> <project|*> [admin|user]",
		Short: "Grant or revoke a project right",
		Long: `Grants a right on a project to a user. The project is given by name
and stored under its alias; "*" grants the right on every project.
With --revoke the right on the project is removed.`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			right := ""
			if len(args) == 3 {
				right = args[2]
			}
			if revoke == (right != "") {
				return errors.New("give either a right or --revoke")
			}
			return runUserGrant(cmd, configPath, args[0], args[1], right)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultPath, "path to Testyard config file")
	cmd.Flags().BoolVar(&revoke, "revoke", false, "remove the user's right on the project")
	return cmd
}

func runUserGrant(cmd *cobra.Command, configPath, username, projectName, right string) error {
	_, gormDB, reg, err := connectWithRegistry(configPath)
	if err != nil {
		return err
	}

	key, err := scopeKey(reg, projectName)
	if err != nil {
		return err
	}
	user, err := auth.SetScope(gormDB, username, key, right)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Updated user %q%s\n", user.Username, formatScopes(user.Scopes.Data()))
	return nil
}

func scopeKey(reg *alias.Registry, name string) (string, error) {
	if name == auth.Wildcard {
		return name, nil
	}
	return reg.Resolve(name)
}

func formatScopes(scopes map[string]string) string {
	if len(scopes) == 0 {
		return " with no scopes"
	}
	keys := make([]string, 0, len(scopes))
	for k := range scopes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+scopes[k])
	}
	return " with scopes " + strings.Join(parts, ", ")
}

// readPassword prompts on the terminal with echo disabled. Without a
// terminal it reads one line from the command's input.
func readPassword(cmd *cobra.Command) (string, error) {
	if in, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(in.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
		b, err := term.ReadPassword(int(in.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		if len(b) == 0 {
			return "", errors.New("password must not be empty")
		}
		return string(b), nil
	}

	scanner := bufio.NewScanner(cmd.InOrStdin())
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return "", errors.New("password must not be empty")
	}
	password := strings.TrimRight(scanner.Text(), "\r")
	if password == "" {
		return "", errors.New("password must not be empty")
	}
	return password, nil
}
