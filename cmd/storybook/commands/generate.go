package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/book-expert/storybook-service/internal/core"
)

// generate: run the full pipeline and optionally save the result.
func generateCmd() *cobra.Command {
	var (
		heroName    string
		description string
		theme       string
		language    string
		pageCount   int
		title       string
		heroImage   string
		save        bool
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate an illustrated story for a hero profile",
		RunE: func(cmd *cobra.Command, _ []string) error {
			profile := core.HeroProfile{
				Name:              heroName,
				VisualDescription: description,
				Theme:             theme,
				Language:          language,
			}

			pages, runErr := appService.RequestGeneration(cmd.Context(), profile, pageCount, "")
			if runErr != nil {
				return fmt.Errorf("generation failed: %w", runErr)
			}

			fmt.Printf("Generated %d pages (balance: %d credits)\n", len(pages), appService.Balance())

			if !save {
				return nil
			}

			if title == "" {
				title = heroName + "'s Tale"
			}

			var cover []byte

			if heroImage != "" {
				data, readErr := os.ReadFile(heroImage)
				if readErr != nil {
					return fmt.Errorf("failed to read hero image: %w", readErr)
				}

				cover = data
			}

			book, saveErr := appService.SaveCurrentDraft(cmd.Context(), title, cover)
			if saveErr != nil {
				return fmt.Errorf("save failed: %w", saveErr)
			}

			fmt.Printf("Saved storybook %s (%q, %d pages)\n", book.ID, book.Title, len(book.Pages))

			return nil
		},
	}

	cmd.Flags().StringVar(&heroName, "name", "", "hero name")
	cmd.Flags().StringVar(&description, "description", "", "hero visual description")
	cmd.Flags().StringVar(&theme, "theme", "", "story theme")
	cmd.Flags().StringVar(&language, "language", "English", "story language")
	cmd.Flags().IntVar(&pageCount, "pages", 10, "page count")
	cmd.Flags().StringVar(&title, "title", "", "storybook title (defaults to \"<name>'s Tale\")")
	cmd.Flags().StringVar(&heroImage, "hero-image", "", "path to a cover image file")
	cmd.Flags().BoolVar(&save, "save", true, "persist the story after generation")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("theme")

	return cmd
}
