package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/todos/internal/store"
	"github.com/mesh-intelligence/todos/pkg/types"
)

func newAddCmd(a *app) *cobra.Command {
	var draft types.Draft
	var priority string

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a todo",
		Long: `Add creates a pending todo.

Example:
  todo add "Buy milk"
  todo add "Write report" --priority high --description "Q3 numbers"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			draft.Title = strings.Join(args, " ")
			draft.Priority = types.Priority(priority)
			return a.withStore(cmd.Context(), func(s *store.Store) error {
				todo, err := s.Create(cmd.Context(), draft)
				if err != nil {
					return err
				}
				if a.flags.jsonMode {
					return printJSON(cmd.OutOrStdout(), todo)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", todo.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&draft.Description, "description", "d", "", "longer description")
	cmd.Flags().StringVarP(&priority, "priority", "p", string(types.PriorityMedium), "priority (high, medium, low)")
	return cmd
}

func newListCmd(a *app) *cobra.Command {
	var status, priority, search, sortField, order string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List todos",
		Long: `List shows todos matching the filters, newest first unless --sort is given.

Filters are ANDed together. --search matches title or description,
ignoring case.

Example:
  todo list
  todo list --status pending --priority high
  todo list --search milk --sort title
  todo list --sort priority --order desc`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filters, err := parseFilters(status, priority, search)
			if err != nil {
				return err
			}
			sort, err := parseSort(sortField, order)
			if err != nil {
				return err
			}
			return a.withStore(cmd.Context(), func(s *store.Store) error {
				s.SetFilters(filters)
				s.SetSort(sort)
				st := s.State()
				if a.flags.jsonMode {
					return printJSON(cmd.OutOrStdout(), struct {
						Todos []types.Todo `json:"todos"`
						Stats types.Stats  `json:"stats"`
					}{st.View, st.Stats})
				}
				printTodoTable(cmd.OutOrStdout(), st.View)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status (pending, completed)")
	cmd.Flags().StringVar(&priority, "priority", "", "filter by priority (high, medium, low)")
	cmd.Flags().StringVarP(&search, "search", "s", "", "case-insensitive text in title or description")
	cmd.Flags().StringVar(&sortField, "sort", "", "sort by title, priority, createdAt or updatedAt")
	cmd.Flags().StringVar(&order, "order", "", "sort direction (asc, desc)")
	return cmd
}

func newUpdateCmd(a *app) *cobra.Command {
	var title, description, priority, status string

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update fields of a todo",
		Long: `Update changes only the fields whose flags are given. An empty
--description clears the description. The id may be any unique prefix.

Example:
  todo update 0193 --title "Buy oat milk"
  todo update 0193 --priority low --description ""`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			if !f.Changed("title") && !f.Changed("description") && !f.Changed("priority") && !f.Changed("status") {
				return usageError("nothing to update: pass at least one of --title, --description, --priority, --status")
			}
			return a.withStore(cmd.Context(), func(s *store.Store) error {
				id, err := resolveID(s, args[0])
				if err != nil {
					return err
				}
				p := types.Patch{ID: id}
				if f.Changed("title") {
					p.Title = &title
				}
				if f.Changed("description") {
					p.Description = &description
				}
				if f.Changed("priority") {
					v := types.Priority(priority)
					p.Priority = &v
				}
				if f.Changed("status") {
					v := types.Status(status)
					p.Status = &v
				}
				todo, err := s.Update(cmd.Context(), p)
				if err != nil {
					return err
				}
				return a.printResult(cmd, todo)
			})
		},
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "new title")
	cmd.Flags().StringVarP(&description, "description", "d", "", "new description")
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "new priority (high, medium, low)")
	cmd.Flags().StringVar(&status, "status", "", "new status (pending, completed)")
	return cmd
}

func newToggleCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <id>",
		Short: "Flip a todo between pending and completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), func(s *store.Store) error {
				id, err := resolveID(s, args[0])
				if err != nil {
					return err
				}
				todo, err := s.ToggleStatus(cmd.Context(), id)
				if err != nil {
					return err
				}
				return a.printResult(cmd, todo)
			})
		},
	}
}

func newDoneCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "done <id>",
		Short: "Mark a todo completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), func(s *store.Store) error {
				id, err := resolveID(s, args[0])
				if err != nil {
					return err
				}
				completed := types.StatusCompleted
				todo, err := s.Update(cmd.Context(), types.Patch{ID: id, Status: &completed})
				if err != nil {
					return err
				}
				return a.printResult(cmd, todo)
			})
		},
	}
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a todo permanently",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), func(s *store.Store) error {
				id, err := resolveID(s, args[0])
				if err != nil {
					return err
				}
				if err := s.Remove(cmd.Context(), id); err != nil {
					return err
				}
				if a.flags.jsonMode {
					return printJSON(cmd.OutOrStdout(), map[string]string{"deleted": id})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
				return nil
			})
		},
	}
}

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show counts by status and priority",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withStore(cmd.Context(), func(s *store.Store) error {
				st := s.State().Stats
				if a.flags.jsonMode {
					return printJSON(cmd.OutOrStdout(), st)
				}
				printStats(cmd.OutOrStdout(), st)
				return nil
			})
		},
	}
}

func (a *app) printResult(cmd *cobra.Command, todo types.Todo) error {
	if a.flags.jsonMode {
		return printJSON(cmd.OutOrStdout(), todo)
	}
	printTodo(cmd.OutOrStdout(), todo)
	return nil
}

// resolveID returns the id of the loaded todo that equals ref or is the only
// one starting with it. An unmatched ref is returned as-is so the store
// reports it as not found.
func resolveID(s *store.Store, ref string) (string, error) {
	var matches []string
	for _, t := range s.State().Todos {
		if t.ID == ref {
			return ref, nil
		}
		if strings.HasPrefix(t.ID, ref) {
			matches = append(matches, t.ID)
		}
	}
	switch len(matches) {
	case 0:
		return ref, nil
	case 1:
		return matches[0], nil
	default:
		return "", usageError("id prefix %q is ambiguous (%d matches)", ref, len(matches))
	}
}

func parseFilters(status, priority, search string) (types.Filters, error) {
	f := types.Filters{
		Status:   types.Status(status),
		Priority: types.Priority(priority),
		Search:   search,
	}
	if f.Status != "" && !f.Status.Valid() {
		return types.Filters{}, usageError("invalid status %q (valid: pending, completed)", status)
	}
	if f.Priority != "" && !f.Priority.Valid() {
		return types.Filters{}, usageError("invalid priority %q (valid: high, medium, low)", priority)
	}
	return f, nil
}

// parseSort builds the view order. With no flags the default sort applies;
// a field without an order sorts ascending.
func parseSort(field, order string) (types.Sort, error) {
	sort := types.DefaultSort
	if field != "" {
		f, ok := types.ParseSortField(field)
		if !ok {
			return types.Sort{}, usageError("invalid sort field %q (valid: title, priority, createdAt, updatedAt)", field)
		}
		sort = types.Sort{Field: f, Direction: types.SortAsc}
	}
	switch types.SortDirection(order) {
	case "":
	case types.SortAsc, types.SortDesc:
		sort.Direction = types.SortDirection(order)
	default:
		return types.Sort{}, usageError("invalid order %q (valid: asc, desc)", order)
	}
	return sort, nil
}
