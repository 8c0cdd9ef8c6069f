package main

import (
	"github.com/spf13/cobra"

	"github.com/sagarc03/diskcli/output"
)

func newLoginCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log a user in to the storage account",
		Long: `Log a user in to the storage account.

The first login of a user asks for the account's access key pair. The
credential is checked against the server before it is stored.

Examples:
  diskcli login --user alice
  diskcli login`,
		Args: cobra.NoArgs,
		RunE: a.runLogin,
	}
	addUserFlag(cmd, a, "user to log in (default: the default user)")
	return cmd
}

func (a *app) runLogin(cmd *cobra.Command, _ []string) error {
	e, err := a.openEnv(cmd)
	if err != nil {
		return a.fail(output.OpLogin, a.user, err)
	}
	defer func() { _ = e.Close() }()

	s, err := e.resolver.Resolve(cmd.Context(), a.user, true)
	if err != nil {
		return a.fail(output.OpLogin, e.displayUser(a.user), err)
	}

	return a.out.FormatLogin(a.stdout, s.User)
}

func newLogoutCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Remove a user's stored credential",
		Long: `Remove a user's stored credential.

The user's directory is removed as well once it is empty.

Examples:
  diskcli logout --user alice`,
		Args: cobra.NoArgs,
		RunE: a.runLogout,
	}
	addUserFlag(cmd, a, "user to log out (default: the default user)")
	return cmd
}

func (a *app) runLogout(cmd *cobra.Command, _ []string) error {
	e, err := a.openEnv(cmd)
	if err != nil {
		return a.fail(output.OpLogout, a.user, err)
	}
	defer func() { _ = e.Close() }()

	user, err := e.resolver.EffectiveUser(a.user)
	if err != nil {
		return a.fail(output.OpLogout, a.user, err)
	}

	removed, err := e.vault.ClearUser(user)
	if err != nil {
		return a.fail(output.OpLogout, user, err)
	}

	return a.out.FormatLogout(a.stdout, user, removed)
}

func newSetDefaultUserCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-default-user",
		Short: "Set the user commands act for without --user",
		Long: `Set the user commands act for without --user.

Examples:
  diskcli set-default-user --user alice`,
		Args: cobra.NoArgs,
		RunE: a.runSetDefaultUser,
	}
	addUserFlag(cmd, a, "user to make the default")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func (a *app) runSetDefaultUser(cmd *cobra.Command, _ []string) error {
	e, err := a.openEnv(cmd)
	if err != nil {
		return a.fail(output.OpSetDefaultUser, a.user, err)
	}
	defer func() { _ = e.Close() }()

	if err := e.defaults.Set(a.user); err != nil {
		return a.fail(output.OpSetDefaultUser, a.user, err)
	}

	return a.out.FormatDefaultUser(a.stdout, a.user)
}

func newUsersCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List known users",
		Long: `List the users that have a directory in the diskcli home, whether
they are logged in, and which one is the default (marked with *).`,
		Args: cobra.NoArgs,
		RunE: a.runUsers,
	}
}

func (a *app) runUsers(cmd *cobra.Command, _ []string) error {
	e, err := a.openEnv(cmd)
	if err != nil {
		return a.fail(output.OpUsers, "", err)
	}
	defer func() { _ = e.Close() }()

	users, err := e.vault.Users()
	if err != nil {
		return a.fail(output.OpUsers, "", err)
	}

	defaultUser, err := e.defaults.Get()
	if err != nil {
		return a.fail(output.OpUsers, "", err)
	}

	return a.out.FormatUsers(a.stdout, users, defaultUser)
}
