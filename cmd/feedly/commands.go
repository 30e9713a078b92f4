package main

import (
	"context"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"feedlykit/internal/render"
	"feedlykit/pkg/cloudapi"
	"feedlykit/pkg/entity"
)

// tagStreamID maps a tag label to the user's tag id. Full ids pass through.
func tagStreamID(p *entity.Profile, label string) string {
	if strings.HasPrefix(label, "user/") {
		return label
	}
	return p.TagID(label)
}

// streamID resolves a stream argument: "all", "saved", a full stream id, or a tag label.
func streamID(p *entity.Profile, arg string) string {
	switch arg {
	case "all":
		return p.GlobalAllID()
	case "saved":
		return p.GlobalSavedID()
	}
	if strings.Contains(arg, "/") {
		return arg
	}
	return p.TagID(arg)
}

// withProfile runs fn with the client and the cached profile.
func (a *app) withProfile(ctx context.Context, fn func(*cloudapi.Client, *entity.Profile) error) error {
	c, err := a.apiClient()
	if err != nil {
		return err
	}
	p, err := c.Profile(ctx)
	if err != nil {
		return err
	}
	return fn(c, p)
}

func (a *app) profileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profile",
		Short: "Show the authenticated account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withProfile(cmd.Context(), func(_ *cloudapi.Client, p *entity.Profile) error {
				return render.Profile(cmd.OutOrStdout(), p)
			})
		},
	}
}

func (a *app) tagsCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "tags",
		Short: "List tags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.apiClient()
			if err != nil {
				return err
			}
			tags, err := c.FetchTags(cmd.Context())
			if err != nil {
				return err
			}
			if !all {
				tags = cloudapi.UserTags(tags)
			}
			return render.Tags(cmd.OutOrStdout(), tags)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include system tags such as global.saved")
	return cmd
}

func (a *app) tagCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tag <label> <entryId>...",
		Short: "Tag entries, creating the tag if needed",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withProfile(cmd.Context(), func(c *cloudapi.Client, p *entity.Profile) error {
				tagIDs := []string{tagStreamID(p, args[0])}
				var err error
				if len(args) == 2 {
					err = c.TagEntry(cmd.Context(), tagIDs, args[1])
				} else {
					err = c.TagEntries(cmd.Context(), tagIDs, args[1:])
				}
				if err != nil {
					return err
				}
				printf(cmd.OutOrStdout(), "tagged %d entries with %s\n", len(args)-1, args[0])
				return nil
			})
		},
	}
}

func (a *app) untagCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "untag <label> <entryId>...",
		Short: "Remove a tag from entries",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withProfile(cmd.Context(), func(c *cloudapi.Client, p *entity.Profile) error {
				if err := c.UntagEntries(cmd.Context(), []string{tagStreamID(p, args[0])}, args[1:]); err != nil {
					return err
				}
				printf(cmd.OutOrStdout(), "removed %s from %d entries\n", args[0], len(args)-1)
				return nil
			})
		},
	}
}

func (a *app) renameTagCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename-tag <label> <newLabel>",
		Short: "Change the label of a tag",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withProfile(cmd.Context(), func(c *cloudapi.Client, p *entity.Profile) error {
				if err := c.ChangeTagLabel(cmd.Context(), tagStreamID(p, args[0]), args[1]); err != nil {
					return err
				}
				printf(cmd.OutOrStdout(), "renamed %s to %s\n", args[0], args[1])
				return nil
			})
		},
	}
}

func (a *app) deleteTagsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-tags <label>...",
		Short: "Delete tags",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withProfile(cmd.Context(), func(c *cloudapi.Client, p *entity.Profile) error {
				ids := lo.Map(args, func(label string, _ int) string { return tagStreamID(p, label) })
				if err := c.DeleteTags(cmd.Context(), ids); err != nil {
					return err
				}
				printf(cmd.OutOrStdout(), "deleted %d tags\n", len(ids))
				return nil
			})
		},
	}
}

func (a *app) streamCmd() *cobra.Command {
	var (
		count  int
		unread bool
		oldest bool
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "stream [streamId|label]",
		Short: "List entries of a stream (default: all)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withProfile(cmd.Context(), func(c *cloudapi.Client, p *entity.Profile) error {
				params := cloudapi.PaginationParams{Count: count}
				if unread {
					params.UnreadOnly = lo.ToPtr(true)
				}
				if oldest {
					params.Ranked = cloudapi.RankedOldest
				}
				arg := "all"
				if len(args) == 1 {
					arg = args[0]
				}
				id := streamID(p, arg)

				if limit <= count {
					page, err := c.FetchContents(cmd.Context(), id, params)
					if err != nil {
						return err
					}
					return render.Entries(cmd.OutOrStdout(), page.Items)
				}
				entries, err := c.NewStreamPager(id, params).Collect(cmd.Context(), limit)
				if err != nil {
					return err
				}
				return render.Entries(cmd.OutOrStdout(), entries)
			})
		},
	}
	cmd.Flags().IntVar(&count, "count", 20, "entries per page")
	cmd.Flags().BoolVar(&unread, "unread", false, "only unread entries")
	cmd.Flags().BoolVar(&oldest, "oldest", false, "oldest entries first")
	cmd.Flags().IntVar(&limit, "limit", 0, "follow continuations until this many entries are listed")
	return cmd
}

func (a *app) entryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "entry <entryId>",
		Short: "Show one entry with its thumbnail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.apiClient()
			if err != nil {
				return err
			}
			e, err := c.FetchEntry(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return render.Entry(cmd.OutOrStdout(), e)
		},
	}
}
