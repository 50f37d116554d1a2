package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/iqpnni/pkg/candidate"
	"github.com/matzehuels/iqpnni/pkg/errors"
	"github.com/matzehuels/iqpnni/pkg/render"
)

// candidatesOpts holds the command-line flags of the candidates command.
type candidatesOpts struct {
	top         int
	interactive bool
	draw        string // format to draw the picked tree in
}

// candidatesCommand creates the candidates command.
func (c *CLI) candidatesCommand() *cobra.Command {
	var opts candidatesOpts

	cmd := &cobra.Command{
		Use:   "candidates <result.json>",
		Short: "List or pick the candidate trees of a search",
		Long: `Candidates lists the distinct topologies a search visited, best first,
with their visit counts and RELL bootstrap support. The search must have
run with --candidates.

With --interactive, pick a tree from the list; its Newick string is
printed, and drawn when --draw is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runCandidates(cmd.Context(), args[0], opts)
		},
	}

	f := cmd.Flags()
	f.IntVarP(&opts.top, "top", "n", 20, "number of candidates to list (0 for all)")
	f.BoolVarP(&opts.interactive, "interactive", "i", false, "pick a candidate interactively")
	f.StringVar(&opts.draw, "draw", "", "draw the picked candidate in this format")

	return cmd
}

func (c *CLI) runCandidates(ctx context.Context, path string, opts candidatesOpts) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(errors.ErrCodeFileNotFound, err, "read result")
	}
	res, err := decodeResult(data)
	if err != nil {
		return err
	}
	if len(res.Candidates) == 0 {
		return errors.New(errors.ErrCodeNotFound, "%s has no candidate trees (search with --candidates)", path)
	}

	rows := candidateRows(res.Candidates, res.Support)
	if !opts.interactive {
		if opts.top > 0 && opts.top < len(rows) {
			rows = rows[:opts.top]
		}
		fmt.Println(candidateTable(rows, -1, 0).Render())
		if len(rows) < len(res.Candidates) {
			printDetail("%d of %d candidates shown", len(rows), len(res.Candidates))
		}
		return nil
	}

	final, err := tea.NewProgram(newCandidateListModel(rows), tea.WithContext(ctx)).Run()
	if err != nil {
		return err
	}
	m := final.(candidateListModel)
	if m.Selected == nil {
		return nil
	}
	fmt.Println(m.Selected.Newick)

	if opts.draw == "" {
		return nil
	}
	out, _, err := render.Draw(ctx, nil, nil, m.Selected.Newick, opts.draw, render.Options{})
	if err != nil {
		return err
	}
	output := drawPath(path, opts.draw)
	output = strings.TrimSuffix(output, "."+opts.draw) + fmt.Sprintf(".candidate%d.%s", m.Selected.ID, opts.draw)
	if err := os.WriteFile(output, out, 0644); err != nil {
		return err
	}
	printFile(output)
	return nil
}

// candidateRow is one listed candidate tree.
type candidateRow struct {
	candidate.Record
	Support float64
	Delta   float64 // log-likelihood below the best candidate
}

// candidateRows pairs records with their bootstrap support. support is
// indexed by record id and may be empty.
func candidateRows(records []candidate.Record, support []float64) []candidateRow {
	rows := make([]candidateRow, len(records))
	for i, r := range records {
		rows[i] = candidateRow{Record: r, Delta: records[0].LogL - r.LogL}
		if r.ID < len(support) {
			rows[i].Support = support[r.ID]
		}
	}
	return rows
}

// candidateTable renders rows in a bordered table, highlighting cursor.
// offset is the index of the first row in the full list.
func candidateTable(rows []candidateRow, cursor, offset int) *table.Table {
	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	cells := make([][]string, len(rows))
	for i, r := range rows {
		mark := "  "
		if offset+i == cursor {
			mark = "▸ "
		}
		support := "-"
		if r.Support > 0 {
			support = fmt.Sprintf("%.1f%%", 100*r.Support)
		}
		cells[i] = []string{
			mark,
			fmt.Sprint(offset + i + 1),
			fmt.Sprintf("%.4f", r.LogL),
			fmt.Sprintf("%.4f", r.Delta),
			fmt.Sprint(r.Visits),
			support,
		}
	}
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "Rank", "logL", "ΔlogL", "Visits", "Support").
		Rows(cells...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == -1:
				return headerStyle
			case offset+row == cursor:
				return lipgloss.NewStyle().Foreground(colorGreen).Bold(true)
			case col == 3 || col == 4:
				return lipgloss.NewStyle().Foreground(colorDim)
			}
			return lipgloss.NewStyle()
		})
}

// =============================================================================
// candidateListModel - Interactive candidate selection
// =============================================================================

// candidateListModel is the bubbletea model for picking a candidate tree.
type candidateListModel struct {
	Rows     []candidateRow
	Cursor   int
	Offset   int
	Height   int
	Selected *candidateRow
}

func newCandidateListModel(rows []candidateRow) candidateListModel {
	return candidateListModel{Rows: rows, Height: 15}
}

func (m candidateListModel) Init() tea.Cmd {
	return nil
}

func (m candidateListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.Rows)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case "enter":
			row := m.Rows[m.Cursor]
			m.Selected = &row
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.Height = max(msg.Height-8, 5)
		if m.Cursor >= m.Offset+m.Height {
			m.Offset = m.Cursor - m.Height + 1
		}
	}
	return m, nil
}

func (m candidateListModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Select Candidate Tree"))
	b.WriteString("\n")
	b.WriteString(StyleDim.Render("↑/↓ navigate  ⏎ select  q quit"))
	b.WriteString("\n\n")

	end := min(m.Offset+m.Height, len(m.Rows))
	b.WriteString(candidateTable(m.Rows[m.Offset:end], m.Cursor, m.Offset).Render())
	b.WriteString("\n")
	if len(m.Rows) > 0 {
		b.WriteString(StyleDim.Render(fmt.Sprintf("  [%d/%d]  %s", m.Cursor+1, len(m.Rows), m.Rows[m.Cursor].Topology)))
	}
	return b.String()
}
