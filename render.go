package workbench

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	savedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	addStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dirtyStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	deleteStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Strikethrough(true)
	cellStyle      = lipgloss.NewStyle()
	headerRowStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	borderStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// TagStyle picks the style for a tag; a pending delete wins over everything else.
func TagStyle(flags TagFlags) lipgloss.Style {
	switch {
	case flags.Has(TagToDelete):
		return deleteStyle
	case flags.Has(TagToAdd):
		return addStyle
	case flags.Has(TagDirty):
		return dirtyStyle
	default:
		return savedStyle
	}
}

// RenderAssetTags renders one asset's tags in display order with a status
// marker: + pending add, - pending delete, ~ moved or renamed.
func RenderAssetTags(fileID string, tags []TagWithStatus) string {
	var sb strings.Builder
	sb.WriteString(headerStyle.Render(fileID))
	sb.WriteString("\n")
	if len(tags) == 0 {
		sb.WriteString("  " + labelStyle.Render("(no tags)") + "\n")
		return sb.String()
	}
	for _, tag := range tags {
		sb.WriteString(fmt.Sprintf("  %s %s\n", statusMarker(tag.Status), TagStyle(tag.Status).Render(tag.Name)))
	}
	return sb.String()
}

func statusMarker(flags TagFlags) string {
	switch {
	case flags.Has(TagToDelete):
		return "-"
	case flags.Has(TagToAdd):
		return "+"
	case flags.Has(TagDirty):
		return "~"
	default:
		return " "
	}
}

func RenderTagCounts(tags []TagInfo) string {
	if len(tags) == 0 {
		return "No tags found."
	}
	rows := make([][]string, len(tags))
	for i, tag := range tags {
		rows[i] = []string{tag.Name, strconv.Itoa(tag.Count)}
	}

	t := table.New().
		Headers("Tag", "Assets").
		Rows(rows...).
		BorderStyle(borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerRowStyle
			}
			return cellStyle
		})
	return t.Render()
}
