package main

import (
	"fmt"
	"strings"

	"github.com/jrsteele09/go-login-server/server"
	"github.com/jrsteele09/go-login-server/users"
	"github.com/spf13/cobra"
)

func newUserAddCmd() *cobra.Command {
	var (
		displayName string
		password    string
		roles       []string
	)

	cmd := &cobra.Command{
		Use:   "useradd <loginname>",
		Short: "Create a user in the configured user store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig()
			if err != nil {
				return err
			}
			st, err := openStores(cmd.Context(), c)
			if err != nil {
				return err
			}
			defer st.Close()

			roleTypes := make([]users.RoleType, 0, len(roles))
			for _, r := range roles {
				roleTypes = append(roleTypes, users.RoleType(strings.ToLower(strings.TrimSpace(r))))
			}
			if displayName == "" {
				displayName = args[0]
			}
			user, err := server.CreateUser(cmd.Context(), st.repos.Users, args[0], displayName, password, roleTypes...)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user %s (%s)\n", user.LoginName, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&displayName, "name", "", "Display name (defaults to the login name)")
	cmd.Flags().StringVar(&password, "password", "", "Password")
	cmd.Flags().StringSliceVar(&roles, "role", nil, "Role to grant, repeatable (default user)")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Remove expired sessions from the configured session store once",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			st, err := openStores(ctx, c)
			if err != nil {
				return err
			}
			defer st.Close()

			srv, err := server.New(c, st.repos)
			if err != nil {
				return err
			}
			removed, err := srv.SweepSessions(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired sessions\n", removed)
			return nil
		},
	}
}
