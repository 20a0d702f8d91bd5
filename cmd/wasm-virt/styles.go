package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/wasm-virt/manifest"
	"github.com/wippyai/wasm-virt/virt"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#90EE90"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F59E0B"))

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B"))

	nameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

func renderReport(w io.Writer, rep *virt.Report) {
	fmt.Fprintln(w, titleStyle.Render(rep.Family+"@"+rep.Version))
	fmt.Fprintf(w, "  imports %d/%d  exports %d/%d\n",
		rep.PresentImports(), len(rep.Imports),
		rep.PresentExports(), len(rep.Exports))

	for _, s := range rep.Imports {
		if s.Present {
			continue
		}
		style, label := errorStyle, "missing import"
		if s.Entry.Requirement != manifest.Required {
			style, label = mutedStyle, "absent optional"
		}
		fmt.Fprintf(w, "  %s %s\n", style.Render(label), nameStyle.Render(s.Entry.String()))
	}
	for _, name := range rep.MissingExports() {
		fmt.Fprintf(w, "  %s %s\n", warnStyle.Render("missing export"), nameStyle.Render(name))
	}

	switch {
	case rep.Strippable():
		fmt.Fprintln(w, "  "+okStyle.Render("strippable"))
	case rep.ImportsStrippable():
		fmt.Fprintln(w, "  "+warnStyle.Render("strippable with --imports-only"))
	default:
		fmt.Fprintln(w, "  "+errorStyle.Render("not strippable"))
	}
}

func renderStripSummary(w io.Writer, rep *virt.Report, importsOnly bool, dest string, before, after int) {
	fmt.Fprintln(w, titleStyle.Render("stripped "+rep.Family+"@"+rep.Version))
	fmt.Fprintf(w, "  stubbed imports  %s\n", okStyle.Render(fmt.Sprint(rep.PresentImports())))
	if importsOnly {
		fmt.Fprintf(w, "  removed exports  %s\n", mutedStyle.Render("skipped"))
	} else {
		fmt.Fprintf(w, "  removed exports  %s\n", okStyle.Render(fmt.Sprint(rep.PresentExports())))
	}
	fmt.Fprintf(w, "  wrote %s %s\n", nameStyle.Render(dest), mutedStyle.Render(fmt.Sprintf("(%d -> %d bytes)", before, after)))
}
