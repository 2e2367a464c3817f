package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"kmanga/internal/model"
	"kmanga/internal/search"
)

func newSearchCmd(a *app) *cobra.Command {
	var offset, limit int
	cmd := &cobra.Command{
		Use:   "search TERM",
		Short: "Search the catalog by name, alternative name or description",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			idx := search.New(store, a.log)
			if err := idx.Refresh(cmd.Context()); err != nil {
				return err
			}

			term := strings.Join(args, " ")
			res := idx.Search(term)
			out := cmd.OutOrStdout()
			if res.Len() == 0 {
				fmt.Fprintf(out, "No manga found for %q.\n", term)
				if suggestions := idx.Suggest(term, 5); len(suggestions) > 0 {
					fmt.Fprintln(out, "Did you mean:")
					for _, m := range suggestions {
						fmt.Fprintf(out, "  #%d %s\n", m.ID, m.Name)
					}
				}
				return nil
			}

			page := res.Page(offset, limit)
			fmt.Fprintf(out, "%d result(s)\n", res.Len())
			for _, h := range page.Hits() {
				printManga(out, h.Manga)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&offset, "offset", 0, "number of results to skip")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of results to print")
	return cmd
}

func printManga(out io.Writer, m model.Manga) {
	fmt.Fprintf(out, "#%d %s [%s]\n", m.ID, m.Name, m.Status)
	if alts := m.AltNameStrings(); len(alts) > 0 {
		fmt.Fprintf(out, "   aka %s\n", strings.Join(alts, ", "))
	}
}

func newMangaCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "manga",
		Short: "Manage the catalog",
	}
	cmd.AddCommand(newMangaAddCmd(a), newMangaLatestCmd(a), newMangaStatusCmd(a))
	return cmd
}

func newMangaAddCmd(a *app) *cobra.Command {
	var m model.Manga
	var alts []string
	var status string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a manga to the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			m.Status = model.MangaStatus(status)
			for _, alt := range alts {
				m.AltNames = append(m.AltNames, model.AltName{Name: alt})
			}
			if err := store.CreateManga(cmd.Context(), &m); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added manga #%d %s\n", m.ID, m.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&m.Name, "name", "", "manga name")
	cmd.Flags().StringVar(&m.Description, "description", "", "description")
	cmd.Flags().StringArrayVar(&alts, "alt", nil, "alternative name (repeatable)")
	cmd.Flags().StringVar(&m.URL, "url", "", "release feed URL")
	cmd.Flags().StringVar(&status, "status", string(model.MangaOngoing), "ongoing, completed or deleted")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newMangaLatestCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "latest",
		Short: "List manga with the most recent issues first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			list, err := store.LatestManga(cmd.Context(), limit)
			if err != nil {
				return err
			}
			for _, m := range list {
				printManga(cmd.OutOrStdout(), m)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of manga to list")
	return cmd
}

func newMangaStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status MANGA_ID STATUS",
		Short: "Change the lifecycle status of a manga",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("manga", args[0])
			if err != nil {
				return err
			}
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			m, err := store.GetManga(cmd.Context(), id)
			if err != nil {
				return err
			}
			m.Status = model.MangaStatus(args[1])
			if err := store.UpdateManga(cmd.Context(), m); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Manga #%d is now %s\n", m.ID, m.Status)
			return nil
		},
	}
}

func newIssueCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Manage issues",
	}

	var issue model.Issue
	add := &cobra.Command{
		Use:   "add MANGA_ID",
		Short: "Add an issue to a manga",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mangaID, err := parseID("manga", args[0])
			if err != nil {
				return err
			}
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			issue.MangaID = mangaID
			if err := store.CreateIssue(cmd.Context(), &issue); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added issue #%d %s\n", issue.ID, issue.Name)
			return nil
		},
	}
	add.Flags().StringVar(&issue.Name, "name", "", "issue name")
	add.Flags().StringVar(&issue.Number, "number", "", "release number")
	add.Flags().StringVar(&issue.URL, "url", "", "link to the issue")
	_ = add.MarkFlagRequired("name")

	list := &cobra.Command{
		Use:   "list MANGA_ID",
		Short: "List the issues of a manga",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mangaID, err := parseID("manga", args[0])
			if err != nil {
				return err
			}
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			issues, err := store.ListIssues(cmd.Context(), mangaID)
			if err != nil {
				return err
			}
			for _, i := range issues {
				fmt.Fprintf(cmd.OutOrStdout(), "#%d %s\n", i.ID, i.Name)
			}
			return nil
		},
	}

	cmd.AddCommand(add, list)
	return cmd
}

func parseID(what, s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s ID %q", what, s)
	}
	return id, nil
}
