package main

import (
	"fmt"

	"github.com/beekhof/exchange-sync/internal/auth"
	"github.com/beekhof/exchange-sync/internal/config"

	"github.com/spf13/cobra"
)

func newLoginCommand(opts *globalOptions) *cobra.Command {
	var (
		manual       bool
		callbackAddr string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authorize exsync for the oauth2 authentication mode",
		Long: `Run the OAuth 2.0 authorization code flow and store the token at the
configured oauth.token_path. By default a local server receives the redirect;
with --manual the authorization code is pasted instead.

Only needed with "auth": "oauth2". NTLM authentication needs no login.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			if cfg.Auth != config.AuthOAuth2 {
				return fmt.Errorf("login is only needed for auth mode %q, configured mode is %q", config.AuthOAuth2, cfg.Auth)
			}

			oauthConfig, err := auth.OAuthConfig(cfg)
			if err != nil {
				return err
			}
			store := auth.NewFileTokenStore(cfg.OAuth.TokenPath)

			if manual {
				_, err = auth.LoginWithReader(cmd.Context(), oauthConfig, store, cmd.InOrStdin(), cmd.OutOrStdout())
			} else {
				_, err = auth.Login(cmd.Context(), oauthConfig, store, callbackAddr, cmd.OutOrStdout())
			}
			if err != nil {
				return fmt.Errorf("failed to authorize: %w", err)
			}

			logger.Info("token saved", "path", cfg.OAuth.TokenPath)
			return nil
		},
	}

	cmd.Flags().BoolVar(&manual, "manual", false, "Paste the authorization code instead of running a callback server")
	cmd.Flags().StringVar(&callbackAddr, "callback-addr", auth.DefaultCallbackAddr, "Address of the local callback server")
	return cmd
}
