package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// list: print the saved storybook index.
func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved storybooks",
		RunE: func(_ *cobra.Command, _ []string) error {
			books := appService.ListSavedStories()
			if len(books) == 0 {
				fmt.Println("No saved storybooks.")

				return nil
			}

			for _, book := range books {
				fmt.Printf("%s  %q  (%d pages)\n", book.ID, book.Title, len(book.Pages))
			}

			return nil
		},
	}
}

// delete <id>: remove a storybook from the index.
func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a saved storybook",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			deleteErr := appService.DeleteStory(args[0])
			if deleteErr != nil {
				return fmt.Errorf("delete failed: %w", deleteErr)
			}

			fmt.Println("deleted")

			return nil
		},
	}
}

// balance: print the current credit balance.
func balanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Show the credit balance",
		RunE: func(_ *cobra.Command, _ []string) error {
			fmt.Printf("%d credits\n", appService.Balance())

			return nil
		},
	}
}

// credit <product-id> [amount]: report a confirmed purchase to the ledger.
func creditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "credit <product-id> [amount]",
		Short: "Deliver credits for a confirmed purchase",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(_ *cobra.Command, args []string) error {
			amount := 0

			if len(args) == 2 {
				parsed, parseErr := strconv.Atoi(args[1])
				if parseErr != nil {
					return fmt.Errorf("invalid amount '%s': %w", args[1], parseErr)
				}

				amount = parsed
			}

			purchaseErr := appService.PurchaseCompleted(args[0], amount)
			if purchaseErr != nil {
				return fmt.Errorf("credit delivery failed: %w", purchaseErr)
			}

			fmt.Printf("balance is now %d credits\n", appService.Balance())

			return nil
		},
	}
}
