package main

import (
	"errors"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"qms/dispatch-service/internal/ledger"
	"qms/dispatch-service/internal/store"
)

func officeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "office",
		Short: "Manage offices",
	}
	cmd.AddCommand(officeAddCmd())
	cmd.AddCommand(officeListCmd())
	cmd.AddCommand(officeDeleteCmd())
	return cmd
}

func officeAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create an office",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			details, _ := cmd.Flags().GetString("details")

			a, err := newApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.close()

			office, err := a.ledger.CreateOffice(cmd.Context(), name, details)
			if errors.Is(err, store.ErrInvalidOffice) {
				return errors.New("office name is required")
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s office %d (%s)\n", color.New(color.FgGreen).Sprint("created"), office.OfficeID, office.Name)
			return nil
		},
	}
	cmd.Flags().String("name", "", "Office name (required)")
	cmd.Flags().String("details", "", "Free-text office details")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func officeListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List offices",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.close()

			offices, err := a.ledger.ListOffices(cmd.Context())
			if err != nil {
				return err
			}
			if len(offices) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), color.New(color.FgYellow).Sprint("no offices"))
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tPENDING\tDETAILS")
			for _, office := range offices {
				pending, err := a.ledger.ListPending(cmd.Context(), office.OfficeID)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", office.OfficeID, color.New(color.FgCyan).Sprint(office.Name), len(pending), office.Details)
			}
			return w.Flush()
		},
	}
}

func officeDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <office-id>",
		Short: "Delete an office that has no tickets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			officeID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || officeID <= 0 {
				return fmt.Errorf("invalid office id %q", args[0])
			}

			a, err := newApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.close()

			err = a.ledger.DeleteOffice(cmd.Context(), officeID)
			switch {
			case errors.Is(err, ledger.ErrUnknownOffice):
				return fmt.Errorf("no office found with id %d", officeID)
			case errors.Is(err, ledger.ErrDeleteConflict):
				return fmt.Errorf("office %d still has tickets and cannot be deleted", officeID)
			case err != nil:
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s office %d\n", color.New(color.FgRed).Sprint("deleted"), officeID)
			return nil
		},
	}
}
