package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"payalert/internal/domain/company"
)

func companyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "company",
		Short: "Manage companies",
	}

	cmd.AddCommand(
		companyCreateCmd(),
		companyConnectMailboxCmd(),
		companySetActiveCmd(),
	)

	return cmd
}

func companyCreateCmd() *cobra.Command {
	var (
		name  string
		code  string
		pin   string
		banks []string
	)

	cmd := &cobra.Command{
		Use:     "create",
		Short:   "Register a company and its staff PIN",
		Example: `  admin company create --name "Mama Put" --code mamaput --pin 4821
  admin company create --name "Mama Put" --code mamaput --pin 4821 --banks gtbank.com,kuda.com`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			companies, err := e.companies()
			if err != nil {
				return err
			}

			c, err := companies.Create(cmd.Context(), company.CreateCompanyParams{
				Name:           name,
				CompanyCode:    code,
				StaffPIN:       pin,
				ConnectedBanks: normalizeDomains(banks),
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created company %s\n", c.Name)
			fmt.Fprintf(cmd.OutOrStdout(), "  id:   %s\n", c.ID)
			fmt.Fprintf(cmd.OutOrStdout(), "  code: %s\n", c.CompanyCode)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Company display name (required)")
	cmd.Flags().StringVar(&code, "code", "", "Company code viewers log in with (required)")
	cmd.Flags().StringVar(&pin, "pin", "", "Staff PIN (required)")
	cmd.Flags().StringSliceVar(&banks, "banks", nil, "Bank sender domains; defaults to the global list")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("code")
	_ = cmd.MarkFlagRequired("pin")

	return cmd
}

func companyConnectMailboxCmd() *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "connect-mailbox <company-id>",
		Short: "Store a Gmail refresh token for scheduled polling",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			companies, err := e.companies()
			if err != nil {
				return err
			}
			if err := companies.ConnectMailbox(cmd.Context(), args[0], strings.TrimSpace(token)); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Mailbox connected for company %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "refresh-token", "", "OAuth refresh token with gmail.modify scope (required)")
	_ = cmd.MarkFlagRequired("refresh-token")

	return cmd
}

func companySetActiveCmd() *cobra.Command {
	var active bool

	cmd := &cobra.Command{
		Use:     "set-active <company-id>",
		Short:   "Enable or disable viewer access and polling for a company",
		Example: `  admin company set-active 6f1c... --active=false`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			companies, err := e.companies()
			if err != nil {
				return err
			}
			if err := companies.SetActive(cmd.Context(), args[0], active); err != nil {
				return err
			}

			state := "inactive"
			if active {
				state = "active"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Company %s is now %s\n", args[0], state)
			return nil
		},
	}

	cmd.Flags().BoolVar(&active, "active", true, "Whether the system is active")

	return cmd
}

func normalizeDomains(in []string) []string {
	out := make([]string, 0, len(in))
	for _, d := range in {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			out = append(out, d)
		}
	}
	return out
}
